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

// BedrockProvider reaches AWS Bedrock through an OpenAI-compatible access
// gateway. Request signing lives in the gateway, so this adapter only needs
// the gateway URL and an optional bearer key.
type BedrockProvider struct {
	gatewayURL string
	apiKey     string
	model      string
	cfg        config.BedrockConfig
	httpClient *http.Client
	retry      RetryConfig
}

// NewBedrockProvider creates the adapter from configuration.
func NewBedrockProvider(cfg config.BedrockConfig) *BedrockProvider {
	return &BedrockProvider{
		gatewayURL: cfg.GatewayURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		cfg:        cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retry: DefaultRetryConfig(),
	}
}

func (p *BedrockProvider) Name() string { return string(config.ProviderBedrock) }

func (p *BedrockProvider) Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	if p.gatewayURL == "" {
		return nil, apperrors.NewProvider(p.Name(), "BEDROCK_GATEWAY_URL is not configured")
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

	body, err := json.Marshal(openAIChatRequest{
		Model:       model,
		Messages:    []openAIMessage{{Role: "user", Content: req.Prompt}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, apperrors.NewProvider(p.Name(), "failed to encode request").WithCause(err)
	}

	start := time.Now()
	resp, err := doWithRetry(ctx, p.retry, func() (*http.Response, error) {
		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost,
			p.gatewayURL+"/chat/completions", bytes.NewReader(body))
		if reqErr != nil {
			return nil, reqErr
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if p.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
		}
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

	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.NewProvider(p.Name(), "failed to decode response").WithCause(err)
	}
	if len(out.Choices) == 0 {
		return nil, apperrors.NewProvider(p.Name(), "response contained no choices")
	}

	text := out.Choices[0].Message.Content
	tokens := out.Usage.TotalTokens
	if tokens == 0 {
		tokens = approxTokens(text)
	}

	elapsed := time.Since(start)
	return &GenerationResult{
		Text:       text,
		Model:      model,
		Provider:   p.Name(),
		TokensUsed: tokens,
		Duration:   elapsed,
		DurationMS: elapsed.Milliseconds(),
	}, nil
}

func (p *BedrockProvider) HealthCheck(ctx context.Context) error {
	if p.gatewayURL == "" {
		return apperrors.NewProvider(p.Name(), "BEDROCK_GATEWAY_URL is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.gatewayURL+"/models", nil)
	if err != nil {
		return err
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
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

func (p *BedrockProvider) Capabilities() *Capabilities {
	return &Capabilities{
		SupportedModels:   []string{"anthropic.claude-v2", "anthropic.claude-instant-v1"},
		SupportsStreaming: false,
		MaxTokens:         p.cfg.MaxTokens,
	}
}
