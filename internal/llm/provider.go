// Package llm fronts the configured model backends behind a single facade.
// Each backend implements Provider; the facade routes generation requests to
// a requested provider with fallback to the configured default.
package llm

import (
	"context"
	"time"
)

// GenerationRequest carries one prompt to a backend. Zero-valued Model,
// Temperature and MaxTokens fall back to the provider's configured defaults.
type GenerationRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// GenerationResult is a completed generation.
type GenerationResult struct {
	Text       string        `json:"text"`
	Model      string        `json:"model"`
	Provider   string        `json:"provider"`
	TokensUsed int           `json:"tokens_used"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
}

// Capabilities describes what a backend supports.
type Capabilities struct {
	SupportedModels   []string `json:"supported_models"`
	SupportsStreaming bool     `json:"supports_streaming"`
	MaxTokens         int      `json:"max_tokens"`
	Local             bool     `json:"local"`
}

// Provider is one model backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error)
	HealthCheck(ctx context.Context) error
	Capabilities() *Capabilities
}

// approxTokens estimates token usage when a backend does not report it.
func approxTokens(text string) int {
	return len(text) / 4
}
