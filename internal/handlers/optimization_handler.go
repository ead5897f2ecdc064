package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"digital.vasic.promptforge/internal/analyzer"
	"digital.vasic.promptforge/internal/cache"
	"digital.vasic.promptforge/internal/config"
	"digital.vasic.promptforge/internal/cost"
	"digital.vasic.promptforge/internal/metrics"
	"digital.vasic.promptforge/internal/middleware"
	"digital.vasic.promptforge/internal/optimizer"
)

// defaultMonthlyRequests is the volume assumption when a cost request does
// not name one.
const defaultMonthlyRequests = 1000

// OptimizationHandler serves the optimization job lifecycle plus the
// synchronous analysis, evaluation, and costing endpoints.
type OptimizationHandler struct {
	service    *optimizer.Service
	evaluator  *optimizer.Evaluator
	analyzer   *analyzer.Analyzer
	calculator *cost.Calculator
	cache      *cache.Service
	metrics    *metrics.Metrics
	log        *logrus.Logger
}

// NewOptimizationHandler creates the handler.
func NewOptimizationHandler(
	service *optimizer.Service,
	evaluator *optimizer.Evaluator,
	an *analyzer.Analyzer,
	calc *cost.Calculator,
	cacheSvc *cache.Service,
	m *metrics.Metrics,
	log *logrus.Logger,
) *OptimizationHandler {
	return &OptimizationHandler{
		service:    service,
		evaluator:  evaluator,
		analyzer:   an,
		calculator: calc,
		cache:      cacheSvc,
		metrics:    m,
		log:        log,
	}
}

// SubmitResponse acknowledges an accepted optimization job.
type SubmitResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Submit godoc
// @Summary Submit a prompt for optimization
// @Description Validate the prompt, persist a job, and start optimizing in the background
// @Tags optimization
// @Accept json
// @Produce json
// @Param request body optimizer.Request true "Optimization request"
// @Success 202 {object} SubmitResponse
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/optimization/optimize [post]
func (h *OptimizationHandler) Submit(c *gin.Context) {
	var req optimizer.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindError(c, err)
		return
	}

	jobID, err := h.service.Optimize(c.Request.Context(), &req)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	h.metrics.OptimizationJobs.WithLabelValues("submitted").Inc()

	c.JSON(http.StatusAccepted, SubmitResponse{
		JobID:   jobID,
		Status:  "started",
		Message: "Optimization job started. Use the job ID to check progress.",
	})
}

// GetJob godoc
// @Summary Get an optimization job
// @Description Return the job with its current status and results when finished
// @Tags optimization
// @Produce json
// @Param job_id path string true "Job ID"
// @Success 200 {object} optimizer.Job
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/optimization/jobs/{job_id} [get]
func (h *OptimizationHandler) GetJob(c *gin.Context) {
	job, err := h.service.GetJob(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListJobsResponse pages the job history.
type ListJobsResponse struct {
	Jobs   []*optimizer.Job `json:"jobs"`
	Count  int              `json:"count"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// ListJobs godoc
// @Summary List optimization jobs
// @Description Return jobs newest first with limit/offset paging
// @Tags optimization
// @Produce json
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Page offset" default(0)
// @Success 200 {object} ListJobsResponse
// @Router /api/v1/optimization/jobs [get]
func (h *OptimizationHandler) ListJobs(c *gin.Context) {
	limit := intQuery(c, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := intQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	jobs, err := h.service.ListJobs(c.Request.Context(), limit, offset)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListJobsResponse{
		Jobs:   jobs,
		Count:  len(jobs),
		Limit:  limit,
		Offset: offset,
	})
}

// CancelJob godoc
// @Summary Cancel an optimization job
// @Description Stop a pending or running job; terminal jobs cannot be cancelled
// @Tags optimization
// @Produce json
// @Param job_id path string true "Job ID"
// @Success 200 {object} optimizer.Job
// @Failure 404 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/optimization/jobs/{job_id} [delete]
func (h *OptimizationHandler) CancelJob(c *gin.Context) {
	job, err := h.service.CancelJob(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// AnalyzeResponse pairs the metric sheet with actionable recommendations.
type AnalyzeResponse struct {
	Prompt          string            `json:"prompt"`
	Analysis        analyzer.Analysis `json:"analysis"`
	Recommendations []string          `json:"recommendations"`
}

// Analyze godoc
// @Summary Analyze a prompt
// @Description Compute structural quality metrics and improvement recommendations
// @Tags optimization
// @Accept json
// @Produce json
// @Param request body PromptRequest true "Prompt to analyze"
// @Success 200 {object} AnalyzeResponse
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/optimization/analyze [post]
func (h *OptimizationHandler) Analyze(c *gin.Context) {
	var req PromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindError(c, err)
		return
	}

	var resp AnalyzeResponse
	if h.cache.GetAnalysis(c.Request.Context(), req.Prompt, &resp) {
		c.JSON(http.StatusOK, resp)
		return
	}

	analysis := h.analyzer.Analyze(req.Prompt)
	resp = AnalyzeResponse{
		Prompt:          req.Prompt,
		Analysis:        analysis,
		Recommendations: analysisRecommendations(analysis),
	}
	h.cache.SetAnalysis(c.Request.Context(), req.Prompt, resp)

	c.JSON(http.StatusOK, resp)
}

func analysisRecommendations(a analyzer.Analysis) []string {
	recs := []string{}
	if a.ClarityScore < 0.7 {
		recs = append(recs, "Improve clarity by using more specific action words and clearer structure")
	}
	if a.QualityScore < 0.7 {
		recs = append(recs, "Add more context, examples, or constraints to improve prompt quality")
	}
	if a.TokenCount > 1000 {
		recs = append(recs, "Consider shortening the prompt to reduce costs")
	}
	if !a.HasExamples {
		recs = append(recs, "Add examples to guide the model's response format")
	}
	if !a.HasConstraints {
		recs = append(recs, "Add constraints to control response length and format")
	}
	if a.InstructionCount == 0 {
		recs = append(recs, "Make instructions more explicit with action verbs")
	}
	if a.ComplexityLevel == "complex" {
		recs = append(recs, "Consider breaking complex prompts into simpler steps")
	}
	for _, issue := range a.PotentialIssues {
		recs = append(recs, "Fix issue: "+issue)
	}
	if len(recs) == 0 {
		recs = append(recs, "Prompt looks good! Consider testing with different inputs.")
	}
	return recs
}

// EvaluateRequest scores one prompt against optional test cases.
type EvaluateRequest struct {
	Prompt    string               `json:"prompt" binding:"required"`
	TestCases []optimizer.TestCase `json:"test_cases,omitempty"`
}

// Evaluate godoc
// @Summary Evaluate a prompt's fitness
// @Description Score the prompt across cost, performance, quality, safety, and guardrail axes
// @Tags optimization
// @Accept json
// @Produce json
// @Param request body EvaluateRequest true "Prompt and test cases"
// @Success 200 {object} optimizer.Evaluation
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/optimization/evaluate [post]
func (h *OptimizationHandler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindError(c, err)
		return
	}

	evaluation := h.evaluator.Evaluate(c.Request.Context(), req.Prompt, req.TestCases)
	c.JSON(http.StatusOK, evaluation)
}

// CostEstimateRequest adds a monthly volume assumption to the prompt.
type CostEstimateRequest struct {
	Prompt          string `json:"prompt" binding:"required"`
	MonthlyRequests int    `json:"monthly_requests,omitempty"`
}

// ProviderCost is one provider's projected spend.
type ProviderCost struct {
	CostPerRequest float64 `json:"cost_per_request"`
	MonthlyCost    float64 `json:"monthly_cost"`
	YearlyCost     float64 `json:"yearly_cost"`
}

// CostEstimateResponse compares projected spend across providers.
type CostEstimateResponse struct {
	Prompt                string                  `json:"prompt"`
	TokenCount            int                     `json:"token_count"`
	MonthlyRequests       int                     `json:"monthly_requests"`
	CostEstimates         map[string]ProviderCost `json:"cost_estimates"`
	CheapestProvider      string                  `json:"cheapest_provider"`
	MostExpensiveProvider string                  `json:"most_expensive_provider"`
}

// CostEstimate godoc
// @Summary Estimate prompt cost per provider
// @Description Project per-request, monthly, and yearly cost for every supported provider
// @Tags optimization
// @Accept json
// @Produce json
// @Param request body CostEstimateRequest true "Prompt and monthly volume"
// @Success 200 {object} CostEstimateResponse
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/optimization/cost-estimate [post]
func (h *OptimizationHandler) CostEstimate(c *gin.Context) {
	var req CostEstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindError(c, err)
		return
	}
	if req.MonthlyRequests <= 0 {
		req.MonthlyRequests = defaultMonthlyRequests
	}

	cacheKey := fmt.Sprintf("%s|%d", req.Prompt, req.MonthlyRequests)
	var resp CostEstimateResponse
	if h.cache.GetCostEstimate(c.Request.Context(), cacheKey, &resp) {
		c.JSON(http.StatusOK, resp)
		return
	}

	tokenCount := h.analyzer.Analyze(req.Prompt).TokenCount
	perRequestCosts := h.calculator.CompareProviders(tokenCount)

	estimates := map[string]ProviderCost{}
	var cheapest, mostExpensive string
	var minCost, maxCost float64
	for i, p := range h.calculator.Providers() {
		perRequest := perRequestCosts[string(p)]
		monthly := perRequest * float64(req.MonthlyRequests)
		estimates[string(p)] = ProviderCost{
			CostPerRequest: perRequest,
			MonthlyCost:    monthly,
			YearlyCost:     monthly * 12,
		}
		if i == 0 || perRequest < minCost {
			minCost, cheapest = perRequest, string(p)
		}
		if i == 0 || perRequest > maxCost {
			maxCost, mostExpensive = perRequest, string(p)
		}
	}

	resp = CostEstimateResponse{
		Prompt:                req.Prompt,
		TokenCount:            tokenCount,
		MonthlyRequests:       req.MonthlyRequests,
		CostEstimates:         estimates,
		CheapestProvider:      cheapest,
		MostExpensiveProvider: mostExpensive,
	}
	h.cache.SetCostEstimate(c.Request.Context(), cacheKey, resp)

	c.JSON(http.StatusOK, resp)
}

// CompareOptimizationRequest prices an original prompt against its optimized
// form on one provider.
type CompareOptimizationRequest struct {
	OriginalPrompt  string `json:"original_prompt" binding:"required"`
	OptimizedPrompt string `json:"optimized_prompt" binding:"required"`
	MonthlyRequests int    `json:"monthly_requests,omitempty"`
	Provider        string `json:"provider,omitempty"`
}

// PromptSummary pairs a prompt text with its analysis.
type PromptSummary struct {
	Text     string            `json:"text"`
	Analysis analyzer.Analysis `json:"analysis"`
}

// ImprovementSummary condenses the savings projection into headline figures.
type ImprovementSummary struct {
	TokenReduction        int     `json:"token_reduction"`
	CostSavingsMonthly    float64 `json:"cost_savings_monthly"`
	CostSavingsYearly     float64 `json:"cost_savings_yearly"`
	PercentageImprovement float64 `json:"percentage_improvement"`
}

// CompareOptimizationResponse is the side-by-side comparison payload.
type CompareOptimizationResponse struct {
	OriginalPrompt     PromptSummary      `json:"original_prompt"`
	OptimizedPrompt    PromptSummary      `json:"optimized_prompt"`
	Savings            cost.Savings       `json:"savings"`
	ImprovementSummary ImprovementSummary `json:"improvement_summary"`
}

// CompareOptimization godoc
// @Summary Compare an original and optimized prompt
// @Description Analyze both prompts and project the cost savings at a monthly volume
// @Tags optimization
// @Accept json
// @Produce json
// @Param request body CompareOptimizationRequest true "Prompt pair and volume"
// @Success 200 {object} CompareOptimizationResponse
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/optimization/compare-optimization [post]
func (h *OptimizationHandler) CompareOptimization(c *gin.Context) {
	var req CompareOptimizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindError(c, err)
		return
	}
	if req.MonthlyRequests <= 0 {
		req.MonthlyRequests = defaultMonthlyRequests
	}
	provider := config.Provider(req.Provider)
	if provider == "" {
		provider = config.ProviderOpenAI
	}

	original := h.analyzer.Analyze(req.OriginalPrompt)
	optimized := h.analyzer.Analyze(req.OptimizedPrompt)

	savings := h.calculator.OptimizationSavings(
		original.TokenCount, optimized.TokenCount, provider, req.MonthlyRequests, "")

	c.JSON(http.StatusOK, CompareOptimizationResponse{
		OriginalPrompt:  PromptSummary{Text: req.OriginalPrompt, Analysis: original},
		OptimizedPrompt: PromptSummary{Text: req.OptimizedPrompt, Analysis: optimized},
		Savings:         savings,
		ImprovementSummary: ImprovementSummary{
			TokenReduction:        savings.TokenReduction,
			CostSavingsMonthly:    savings.MonthlySavings,
			CostSavingsYearly:     savings.YearlySavings,
			PercentageImprovement: savings.PercentageSavings,
		},
	})
}

// RegisterOptimizationRoutes registers the optimization routes.
func RegisterOptimizationRoutes(r *gin.RouterGroup, h *OptimizationHandler) {
	opt := r.Group("/optimization")
	{
		opt.POST("/optimize", h.Submit)
		opt.GET("/jobs", h.ListJobs)
		opt.GET("/jobs/:job_id", h.GetJob)
		opt.DELETE("/jobs/:job_id", h.CancelJob)
		opt.POST("/analyze", h.Analyze)
		opt.POST("/evaluate", h.Evaluate)
		opt.POST("/cost-estimate", h.CostEstimate)
		opt.POST("/compare-optimization", h.CompareOptimization)
	}
}
