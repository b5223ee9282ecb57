// internal/ai/ollama.go
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"career-timeline-api/internal/apperrors"
)

// Ollama calls a local Ollama server through its OpenAI-compatible
// chat-completions endpoint.
type Ollama struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllama creates an Ollama provider. baseURL is the server root, e.g.
// http://localhost:11434.
func NewOllama(baseURL, model string) *Ollama {
	return &Ollama{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type ollamaResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Analyze sends the prompt context and decodes the structured verdict.
func (o *Ollama) Analyze(ctx context.Context, promptContext string) (*AnalysisResult, error) {
	reqBody := ollamaRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: promptContext},
		},
		Temperature: 0,
	}
	reqBody.ResponseFormat.Type = "json_object"

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewIntegration("ollama request failed", nil, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperrors.NewIntegration("ollama returned an error", map[string]any{
			"status": resp.StatusCode,
			"body":   string(body),
		}, nil)
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, apperrors.NewIntegration("decoding ollama response", nil, err)
	}
	if ollamaResp.Error != nil {
		return nil, apperrors.NewIntegration("ollama returned an error", map[string]any{
			"message": ollamaResp.Error.Message,
		}, nil)
	}
	if len(ollamaResp.Choices) == 0 {
		return nil, apperrors.NewIntegration("ollama returned no choices", nil, nil)
	}

	result, err := parseResult(ollamaResp.Choices[0].Message.Content)
	if err != nil {
		return nil, apperrors.NewIntegration("ollama returned malformed analysis", nil, err)
	}
	return result, nil
}
