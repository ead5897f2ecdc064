package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"digital.vasic.promptforge/internal/config"
	apperrors "digital.vasic.promptforge/internal/errors"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
)

// AnthropicProvider talks to the Anthropic messages API.
type AnthropicProvider struct {
	baseURL    string
	apiKey     string
	model      string
	cfg        config.AnthropicConfig
	httpClient *http.Client
	retry      RetryConfig
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewAnthropicProvider creates the adapter from configuration.
func NewAnthropicProvider(cfg config.AnthropicConfig) *AnthropicProvider {
	return &AnthropicProvider{
		baseURL: defaultAnthropicBaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		cfg:     cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retry: DefaultRetryConfig(),
	}
}

func (p *AnthropicProvider) Name() string { return string(config.ProviderAnthropic) }

func (p *AnthropicProvider) Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	if p.apiKey == "" {
		return nil, apperrors.NewProvider(p.Name(), "API key is not configured")
	}

	model := req.Model
	if model == "" {
		model = p.model
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = p.cfg.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.cfg.MaxTokens
	}

	body, err := json.Marshal(anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return nil, apperrors.NewProvider(p.Name(), "failed to encode request").WithCause(err)
	}

	start := time.Now()
	resp, err := doWithRetry(ctx, p.retry, func() (*http.Response, error) {
		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost,
			p.baseURL+"/messages", bytes.NewReader(body))
		if reqErr != nil {
			return nil, reqErr
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", p.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicVersion)
		return p.httpClient.Do(httpReq)
	})
	if err != nil {
		return nil, apperrors.NewProvider(p.Name(), "generation request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apperrors.NewProvider(p.Name(),
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(payload)))
	}

	var out anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.NewProvider(p.Name(), "failed to decode response").WithCause(err)
	}
	if len(out.Content) == 0 {
		return nil, apperrors.NewProvider(p.Name(), "response contained no content blocks")
	}

	text := out.Content[0].Text
	tokens := out.Usage.InputTokens + out.Usage.OutputTokens
	if tokens == 0 {
		tokens = approxTokens(text)
	}

	elapsed := time.Since(start)
	return &GenerationResult{
		Text:       text,
		Model:      out.Model,
		Provider:   p.Name(),
		TokensUsed: tokens,
		Duration:   elapsed,
		DurationMS: elapsed.Milliseconds(),
	}, nil
}

func (p *AnthropicProvider) HealthCheck(ctx context.Context) error {
	if p.apiKey == "" {
		return apperrors.NewProvider(p.Name(), "API key is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return apperrors.NewProvider(p.Name(), "health check failed").WithCause(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apperrors.NewProvider(p.Name(), fmt.Sprintf("health check returned %d", resp.StatusCode))
	}
	return nil
}

func (p *AnthropicProvider) Capabilities() *Capabilities {
	return &Capabilities{
		SupportedModels:   []string{"claude-3-sonnet", "claude-3-haiku", "claude-3-opus"},
		SupportsStreaming: true,
		MaxTokens:         p.cfg.MaxTokens,
	}
}
