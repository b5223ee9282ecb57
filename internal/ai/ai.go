// internal/ai/ai.go

// Package ai turns commit clusters into professional timeline entries by
// delegating to a language-model provider.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Action is the provider's verdict for one cluster.
type Action string

const (
	ActionCreateNode    Action = "CREATE_NODE"
	ActionMergeToParent Action = "MERGE_TO_PARENT"
	ActionIgnore        Action = "IGNORE"
)

// NodeContent is the drafted timeline entry returned alongside a
// CREATE_NODE action.
type NodeContent struct {
	Title        string `json:"title"`
	ShortSummary string `json:"short_summary"`
	Description  string `json:"description"`
}

// AnalysisResult is the structured provider response for one cluster.
type AnalysisResult struct {
	Action      Action       `json:"action"`
	NodeContent *NodeContent `json:"node_content"`
	TechStack   []string     `json:"tech_stack"`
	Reasoning   string       `json:"reasoning"`
}

// Analyzer is implemented by each provider backend.
type Analyzer interface {
	Analyze(ctx context.Context, promptContext string) (*AnalysisResult, error)
}

// Config selects and parameterizes the provider backend.
type Config struct {
	Provider     string
	GeminiAPIKey string
	GeminiModel  string
	OllamaURL    string
	OllamaModel  string
}

// NewFromConfig builds the configured provider.
func NewFromConfig(cfg Config) (Analyzer, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel), nil
	case "ollama":
		return NewOllama(cfg.OllamaURL, cfg.OllamaModel), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
}

// systemInstruction is shared by every provider backend.
const systemInstruction = "You are a Senior Technical Recruiter and CTO. Your goal is to transform " +
	"messy developer git logs into high-impact professional achievements. " +
	"Use strong action verbs (Architected, Spearheaded, Optimized). " +
	"Focus on the 'Why' and 'Impact', not just the 'What'."

// parseResult decodes the model's JSON payload. Models occasionally wrap
// JSON in a markdown code fence even when asked not to, so fences are
// stripped first.
func parseResult(raw string) (*AnalysisResult, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
		raw = strings.TrimSpace(raw)
	}

	var result AnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("decoding analysis result: %w", err)
	}

	switch result.Action {
	case ActionCreateNode, ActionMergeToParent, ActionIgnore:
	default:
		return nil, fmt.Errorf("unknown analysis action: %q", result.Action)
	}
	if result.Action == ActionCreateNode && result.NodeContent == nil {
		return nil, fmt.Errorf("analysis result has action %s but no node content", ActionCreateNode)
	}

	return &result, nil
}
