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

// OllamaProvider talks to a local Ollama daemon.
type OllamaProvider struct {
	baseURL    string
	model      string
	cfg        config.OllamaConfig
	httpClient *http.Client
	retry      RetryConfig
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model     string `json:"model"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	EvalCount int    `json:"eval_count"`
}

// NewOllamaProvider creates the adapter from configuration.
func NewOllamaProvider(cfg config.OllamaConfig) *OllamaProvider {
	return &OllamaProvider{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		cfg:     cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retry: DefaultRetryConfig(),
	}
}

func (p *OllamaProvider) Name() string { return string(config.ProviderOllama) }

func (p *OllamaProvider) Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
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

	body, err := json.Marshal(ollamaRequest{
		Model:  model,
		Prompt: req.Prompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: temperature,
			NumPredict:  maxTokens,
		},
	})
	if err != nil {
		return nil, apperrors.NewProvider(p.Name(), "failed to encode request").WithCause(err)
	}

	start := time.Now()
	resp, err := doWithRetry(ctx, p.retry, func() (*http.Response, error) {
		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost,
			p.baseURL+"/api/generate", bytes.NewReader(body))
		if reqErr != nil {
			return nil, reqErr
		}
		httpReq.Header.Set("Content-Type", "application/json")
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

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.NewProvider(p.Name(), "failed to decode response").WithCause(err)
	}

	tokens := out.EvalCount
	if tokens == 0 {
		tokens = approxTokens(out.Response)
	}

	elapsed := time.Since(start)
	return &GenerationResult{
		Text:       out.Response,
		Model:      out.Model,
		Provider:   p.Name(),
		TokensUsed: tokens,
		Duration:   elapsed,
		DurationMS: elapsed.Milliseconds(),
	}, nil
}

func (p *OllamaProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return err
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

func (p *OllamaProvider) Capabilities() *Capabilities {
	return &Capabilities{
		SupportedModels:   []string{p.model},
		SupportsStreaming: true,
		MaxTokens:         p.cfg.MaxTokens,
		Local:             true,
	}
}
