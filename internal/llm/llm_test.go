package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital.vasic.promptforge/internal/config"
	apperrors "digital.vasic.promptforge/internal/errors"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func ollamaConfig(baseURL string) config.OllamaConfig {
	return config.OllamaConfig{
		Enabled:     true,
		BaseURL:     baseURL,
		Model:       "llama3.1:latest",
		Temperature: 0.7,
		MaxTokens:   2048,
		Timeout:     5 * time.Second,
	}
}

func TestOllamaGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.1:latest", req.Model)
		assert.Equal(t, "Say hello", req.Prompt)
		assert.False(t, req.Stream)

		json.NewEncoder(w).Encode(ollamaResponse{
			Model:     req.Model,
			Response:  "Hello there!",
			Done:      true,
			EvalCount: 12,
		})
	}))
	defer server.Close()

	p := NewOllamaProvider(ollamaConfig(server.URL))
	result, err := p.Generate(context.Background(), &GenerationRequest{Prompt: "Say hello"})

	require.NoError(t, err)
	assert.Equal(t, "Hello there!", result.Text)
	assert.Equal(t, "ollama", result.Provider)
	assert.Equal(t, 12, result.TokensUsed)
}

func TestOllamaGenerateRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(ollamaResponse{Model: "m", Response: "ok", Done: true, EvalCount: 1})
	}))
	defer server.Close()

	p := NewOllamaProvider(ollamaConfig(server.URL))
	p.retry = RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	result, err := p.Generate(context.Background(), &GenerationRequest{Prompt: "x"})

	require.NoError(t, err)
	assert.Equal(t, "ok", result.Text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetryStopsOnWrappedContextError(t *testing.T) {
	// http.Client reports context expiry wrapped in *url.Error; the retry
	// loop must not burn attempts on it.
	var calls int
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	_, err := doWithRetry(context.Background(), cfg, func() (*http.Response, error) {
		calls++
		return nil, &url.Error{Op: "Post", URL: "http://upstream", Err: context.DeadlineExceeded}
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 1, calls)
}

func TestOllamaGenerateUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	p := NewOllamaProvider(ollamaConfig(server.URL))
	_, err := p.Generate(context.Background(), &GenerationRequest{Prompt: "x"})

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeLLMProvider))
}

func TestOllamaHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := NewOllamaProvider(ollamaConfig(server.URL))
	assert.NoError(t, p.HealthCheck(context.Background()))
}

func TestOpenAIGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"model": req.Model,
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "response text"}},
			},
			"usage": map[string]int{"total_tokens": 42},
		})
	}))
	defer server.Close()

	p := NewOpenAIProvider(config.OpenAIConfig{
		Enabled: true, APIKey: "test-key", Model: "gpt-3.5-turbo",
		Temperature: 0.7, MaxTokens: 2048, Timeout: 5 * time.Second,
	})
	p.baseURL = server.URL

	result, err := p.Generate(context.Background(), &GenerationRequest{Prompt: "hello"})

	require.NoError(t, err)
	assert.Equal(t, "response text", result.Text)
	assert.Equal(t, 42, result.TokensUsed)
	assert.Equal(t, "openai", result.Provider)
}

func TestOpenAIGenerateWithoutKey(t *testing.T) {
	p := NewOpenAIProvider(config.OpenAIConfig{Enabled: true, Timeout: time.Second})

	_, err := p.Generate(context.Background(), &GenerationRequest{Prompt: "hello"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeLLMProvider))
}

func TestAnthropicGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "claude-3-sonnet",
			"content": []map[string]string{
				{"type": "text", "text": "claude says hi"},
			},
			"usage": map[string]int{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	defer server.Close()

	p := NewAnthropicProvider(config.AnthropicConfig{
		Enabled: true, APIKey: "test-key", Model: "claude-3-sonnet",
		Temperature: 0.7, MaxTokens: 2048, Timeout: 5 * time.Second,
	})
	p.baseURL = server.URL

	result, err := p.Generate(context.Background(), &GenerationRequest{Prompt: "hello"})

	require.NoError(t, err)
	assert.Equal(t, "claude says hi", result.Text)
	assert.Equal(t, 15, result.TokensUsed)
}

func TestBedrockRequiresGateway(t *testing.T) {
	p := NewBedrockProvider(config.BedrockConfig{Enabled: true, Timeout: time.Second})

	_, err := p.Generate(context.Background(), &GenerationRequest{Prompt: "hello"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeLLMProvider))

	assert.Error(t, p.HealthCheck(context.Background()))
}

func facadeConfig(ollamaURL string) config.LLMConfig {
	return config.LLMConfig{
		DefaultProvider: config.ProviderOllama,
		Ollama:          ollamaConfig(ollamaURL),
	}
}

func TestFacadeGenerateUsesDefault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaResponse{Model: "m", Response: "default answer", Done: true, EvalCount: 3})
	}))
	defer server.Close()

	f := NewFacade(facadeConfig(server.URL), testLogger())

	result, err := f.Generate(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "default answer", result.Text)
}

func TestFacadeFallsBackForUnknownHint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaResponse{Model: "m", Response: "fallback", Done: true, EvalCount: 3})
	}))
	defer server.Close()

	f := NewFacade(facadeConfig(server.URL), testLogger())

	result, err := f.Generate(context.Background(), "hi", config.ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "fallback", result.Text)
	assert.Equal(t, "ollama", result.Provider)
}

func TestFacadeErrorsWhenDefaultMissing(t *testing.T) {
	f := NewFacade(config.LLMConfig{DefaultProvider: config.ProviderOpenAI}, testLogger())

	_, err := f.Generate(context.Background(), "hi", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeLLMProvider))
}

func TestFacadeProbeAndStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := NewFacade(facadeConfig(server.URL), testLogger())
	f.Probe(context.Background())

	statuses := f.Status()
	require.Len(t, statuses, 1)
	assert.Equal(t, "ollama", statuses[0].Name)
	assert.True(t, statuses[0].Available)
	assert.True(t, statuses[0].Default)
	assert.Empty(t, statuses[0].Error)
}

func TestFacadeProbeMarksUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	cfg := facadeConfig(server.URL)
	server.Close()

	f := NewFacade(cfg, testLogger())
	f.Probe(context.Background())

	statuses := f.Status()
	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].Available)
	assert.NotEmpty(t, statuses[0].Error)
}

func TestFacadeCapabilities(t *testing.T) {
	f := NewFacade(facadeConfig("http://localhost:11434"), testLogger())

	caps, err := f.Capabilities(config.ProviderOllama)
	require.NoError(t, err)
	assert.True(t, caps.Local)

	_, err = f.Capabilities(config.ProviderAnthropic)
	assert.Error(t, err)
}
