package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"digital.vasic.promptforge/internal/config"
	apperrors "digital.vasic.promptforge/internal/errors"
	"digital.vasic.promptforge/internal/llm"
	"digital.vasic.promptforge/internal/metrics"
	"digital.vasic.promptforge/internal/middleware"
)

// maxBatchPrompts bounds one batch-generate call.
const maxBatchPrompts = 10

// LLMHandler serves direct access to the configured LLM providers.
type LLMHandler struct {
	facade  *llm.Facade
	metrics *metrics.Metrics
	log     *logrus.Logger
}

// NewLLMHandler creates the handler.
func NewLLMHandler(facade *llm.Facade, m *metrics.Metrics, log *logrus.Logger) *LLMHandler {
	return &LLMHandler{facade: facade, metrics: m, log: log}
}

// Providers godoc
// @Summary List LLM providers
// @Description Return every configured provider with availability and default flag
// @Tags llm
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/llm/providers [get]
func (h *LLMHandler) Providers(c *gin.Context) {
	status := h.facade.Status()
	c.JSON(http.StatusOK, gin.H{
		"providers": status,
		"default":   string(h.facade.DefaultProvider()),
		"count":     len(status),
	})
}

// GenerateRequest is a single generation call.
type GenerateRequest struct {
	Prompt      string  `json:"prompt" binding:"required"`
	Provider    string  `json:"provider,omitempty"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Generate godoc
// @Summary Generate text
// @Description Run one generation on the hinted provider, falling back to the default
// @Tags llm
// @Accept json
// @Produce json
// @Param request body GenerateRequest true "Generation request"
// @Success 200 {object} llm.GenerationResult
// @Failure 422 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/v1/llm/generate [post]
func (h *LLMHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindError(c, err)
		return
	}

	result, err := h.generate(c, &req)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *LLMHandler) generate(c *gin.Context, req *GenerateRequest) (*llm.GenerationResult, error) {
	start := time.Now()
	result, err := h.facade.GenerateRequest(c.Request.Context(), &llm.GenerationRequest{
		Prompt:      req.Prompt,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}, config.Provider(req.Provider))

	provider := req.Provider
	if result != nil {
		provider = result.Provider
	}
	h.metrics.ObserveLLM(provider, time.Since(start), err)
	return result, err
}

// BatchGenerateRequest runs the same settings over several prompts.
type BatchGenerateRequest struct {
	Prompts     []string `json:"prompts" binding:"required"`
	Provider    string   `json:"provider,omitempty"`
	Model       string   `json:"model,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
}

// BatchItem is one prompt's outcome within a batch.
type BatchItem struct {
	Prompt string                `json:"prompt"`
	Result *llm.GenerationResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

// BatchGenerateResponse summarizes a batch run.
type BatchGenerateResponse struct {
	Results   []BatchItem `json:"results"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// BatchGenerate godoc
// @Summary Generate text for several prompts
// @Description Run up to 10 prompts sequentially; per-prompt failures do not fail the batch
// @Tags llm
// @Accept json
// @Produce json
// @Param request body BatchGenerateRequest true "Batch request"
// @Success 200 {object} BatchGenerateResponse
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/llm/batch-generate [post]
func (h *LLMHandler) BatchGenerate(c *gin.Context) {
	var req BatchGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindError(c, err)
		return
	}
	if len(req.Prompts) == 0 {
		middleware.RenderError(c, apperrors.NewValidation("prompts must not be empty", "prompts"))
		return
	}
	if len(req.Prompts) > maxBatchPrompts {
		middleware.RenderError(c, apperrors.New(apperrors.CodeValidation,
			"batch is limited to 10 prompts", http.StatusBadRequest).
			WithDetail("field", "prompts"))
		return
	}

	resp := BatchGenerateResponse{Results: make([]BatchItem, 0, len(req.Prompts))}
	for _, prompt := range req.Prompts {
		item := BatchItem{Prompt: prompt}
		result, err := h.generate(c, &GenerateRequest{
			Prompt:      prompt,
			Provider:    req.Provider,
			Model:       req.Model,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		})
		if err != nil {
			item.Error = err.Error()
			resp.Failed++
		} else {
			item.Result = result
			resp.Succeeded++
		}
		resp.Results = append(resp.Results, item)
	}

	c.JSON(http.StatusOK, resp)
}

// TestPromptRequest compares one prompt across providers.
type TestPromptRequest struct {
	Prompt    string   `json:"prompt" binding:"required"`
	Providers []string `json:"providers,omitempty"`
}

// TestPrompt godoc
// @Summary Test a prompt across providers
// @Description Run the prompt on each named provider and return every result side by side
// @Tags llm
// @Accept json
// @Produce json
// @Param request body TestPromptRequest true "Prompt and provider list"
// @Success 200 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/llm/test-prompt [post]
func (h *LLMHandler) TestPrompt(c *gin.Context) {
	var req TestPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindError(c, err)
		return
	}

	providers := req.Providers
	if len(providers) == 0 {
		for _, s := range h.facade.Status() {
			if s.Available {
				providers = append(providers, s.Name)
			}
		}
	}

	results := map[string]interface{}{}
	for _, name := range providers {
		result, err := h.generate(c, &GenerateRequest{Prompt: req.Prompt, Provider: name})
		if err != nil {
			results[name] = gin.H{"error": err.Error()}
			continue
		}
		results[name] = result
	}

	c.JSON(http.StatusOK, gin.H{
		"prompt":  req.Prompt,
		"results": results,
	})
}

// ProviderHealthStatus is one provider's entry in the health report.
type ProviderHealthStatus struct {
	Status    string `json:"status"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// HealthResponse aggregates per-provider health checks.
type HealthResponse struct {
	OverallHealth string                          `json:"overall_health"`
	Providers     map[string]ProviderHealthStatus `json:"providers"`
	HealthyCount  int                             `json:"healthy_count"`
	TotalCount    int                             `json:"total_count"`
}

// Health godoc
// @Summary Check every provider's health
// @Description Probe each configured provider and aggregate an overall verdict
// @Tags llm
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /api/v1/llm/health [get]
func (h *LLMHandler) Health(c *gin.Context) {
	statuses := h.facade.Status()
	resp := HealthResponse{
		Providers:  make(map[string]ProviderHealthStatus, len(statuses)),
		TotalCount: len(statuses),
	}

	for _, s := range statuses {
		entry := ProviderHealthStatus{Status: "unhealthy"}
		if err := h.facade.HealthCheck(c.Request.Context(), config.Provider(s.Name)); err != nil {
			entry.Error = err.Error()
		} else {
			entry.Status = "healthy"
			entry.Available = true
			resp.HealthyCount++
		}
		resp.Providers[s.Name] = entry
	}

	switch {
	case resp.TotalCount > 0 && resp.HealthyCount == resp.TotalCount:
		resp.OverallHealth = "healthy"
	case resp.HealthyCount > 0:
		resp.OverallHealth = "degraded"
	default:
		resp.OverallHealth = "unhealthy"
	}

	c.JSON(http.StatusOK, resp)
}

// ProviderHealth godoc
// @Summary Check one provider's health
// @Tags llm
// @Produce json
// @Param provider path string true "Provider name"
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/v1/llm/health/{provider} [get]
func (h *LLMHandler) ProviderHealth(c *gin.Context) {
	name := config.Provider(c.Param("provider"))
	if err := h.facade.HealthCheck(c.Request.Context(), name); err != nil {
		middleware.RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"provider": string(name),
		"healthy":  true,
	})
}

// Capabilities godoc
// @Summary Get provider capabilities
// @Tags llm
// @Produce json
// @Param provider path string true "Provider name"
// @Success 200 {object} llm.Capabilities
// @Failure 503 {object} map[string]interface{}
// @Router /api/v1/llm/capabilities/{provider} [get]
func (h *LLMHandler) Capabilities(c *gin.Context) {
	caps, err := h.facade.Capabilities(config.Provider(c.Param("provider")))
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, caps)
}

// RegisterLLMRoutes registers the LLM access routes.
func RegisterLLMRoutes(r *gin.RouterGroup, h *LLMHandler) {
	l := r.Group("/llm")
	{
		l.GET("/providers", h.Providers)
		l.POST("/generate", h.Generate)
		l.POST("/batch-generate", h.BatchGenerate)
		l.POST("/test-prompt", h.TestPrompt)
		l.GET("/health", h.Health)
		l.GET("/health/:provider", h.ProviderHealth)
		l.GET("/capabilities/:provider", h.Capabilities)
	}
}
