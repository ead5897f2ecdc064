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

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider talks to the OpenAI chat completions API.
type OpenAIProvider struct {
	baseURL    string
	apiKey     string
	model      string
	cfg        config.OpenAIConfig
	httpClient *http.Client
	retry      RetryConfig
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// NewOpenAIProvider creates the adapter from configuration.
func NewOpenAIProvider(cfg config.OpenAIConfig) *OpenAIProvider {
	return &OpenAIProvider{
		baseURL: defaultOpenAIBaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		cfg:     cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retry: DefaultRetryConfig(),
	}
}

func (p *OpenAIProvider) Name() string { return string(config.ProviderOpenAI) }

func (p *OpenAIProvider) Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
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
			p.baseURL+"/chat/completions", bytes.NewReader(body))
		if reqErr != nil {
			return nil, reqErr
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
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
		Model:      out.Model,
		Provider:   p.Name(),
		TokensUsed: tokens,
		Duration:   elapsed,
		DurationMS: elapsed.Milliseconds(),
	}, nil
}

func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	if p.apiKey == "" {
		return apperrors.NewProvider(p.Name(), "API key is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
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

func (p *OpenAIProvider) Capabilities() *Capabilities {
	return &Capabilities{
		SupportedModels:   []string{"gpt-3.5-turbo", "gpt-4", "gpt-4-turbo"},
		SupportsStreaming: true,
		MaxTokens:         p.cfg.MaxTokens,
	}
}
