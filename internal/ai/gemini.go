// internal/ai/gemini.go
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"career-timeline-api/internal/apperrors"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// Gemini calls the Google Generative Language REST API.
type Gemini struct {
	apiKey     string
	model      string
	httpClient *http.Client

	// BaseURL is overridable for tests.
	BaseURL string
}

// NewGemini creates a Gemini provider.
func NewGemini(apiKey, model string) *Gemini {
	return &Gemini{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		BaseURL: defaultGeminiBaseURL,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiRequest struct {
	SystemInstruction geminiContent   `json:"system_instruction"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		ResponseMimeType string  `json:"responseMimeType"`
		Temperature      float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Analyze sends the prompt context and decodes the structured verdict.
func (g *Gemini) Analyze(ctx context.Context, promptContext string) (*AnalysisResult, error) {
	reqBody := geminiRequest{
		SystemInstruction: geminiContent{Parts: []geminiPart{{Text: systemInstruction}}},
		Contents:          []geminiContent{{Parts: []geminiPart{{Text: promptContext}}, Role: "user"}},
	}
	reqBody.GenerationConfig.ResponseMimeType = "application/json"
	reqBody.GenerationConfig.Temperature = 0

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.BaseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewIntegration("gemini request failed", nil, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperrors.NewIntegration("gemini returned an error", map[string]any{
			"status": resp.StatusCode,
			"body":   string(body),
		}, nil)
	}

	var geminiResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return nil, apperrors.NewIntegration("decoding gemini response", nil, err)
	}
	if geminiResp.Error != nil {
		return nil, apperrors.NewIntegration("gemini returned an error", map[string]any{
			"code":    geminiResp.Error.Code,
			"message": geminiResp.Error.Message,
		}, nil)
	}
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return nil, apperrors.NewIntegration("gemini returned no candidates", nil, nil)
	}

	result, err := parseResult(geminiResp.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		return nil, apperrors.NewIntegration("gemini returned malformed analysis", nil, err)
	}
	return result, nil
}
