package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"digital.vasic.promptforge/internal/cache"
	"digital.vasic.promptforge/internal/metrics"
	"digital.vasic.promptforge/internal/security"
)

// SecurityHandler serves injection detection, prompt validation, and the
// security scan surface. These routes accept hostile prompts on purpose and
// are never behind the injection screen.
type SecurityHandler struct {
	detector *security.Detector
	engine   *security.Engine
	cache    *cache.Service
	metrics  *metrics.Metrics
	log      *logrus.Logger
}

// NewSecurityHandler creates the handler.
func NewSecurityHandler(
	detector *security.Detector,
	engine *security.Engine,
	cacheSvc *cache.Service,
	m *metrics.Metrics,
	log *logrus.Logger,
) *SecurityHandler {
	return &SecurityHandler{
		detector: detector,
		engine:   engine,
		cache:    cacheSvc,
		metrics:  m,
		log:      log,
	}
}

// PromptRequest is the shared prompt-bearing request body.
type PromptRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// DetectInjectionResponse pairs the prompt with its detection verdict.
type DetectInjectionResponse struct {
	Prompt          string                   `json:"prompt"`
	DetectionResult security.DetectionResult `json:"detection_result"`
}

// DetectInjection godoc
// @Summary Detect prompt injection attacks
// @Description Run the injection detector and return the full detection verdict
// @Tags security
// @Accept json
// @Produce json
// @Param request body PromptRequest true "Prompt to inspect"
// @Success 200 {object} DetectInjectionResponse
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/security/detect-injection [post]
func (h *SecurityHandler) DetectInjection(c *gin.Context) {
	var req PromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindError(c, err)
		return
	}

	result := h.detector.Detect(req.Prompt)
	if result.IsInjection {
		h.metrics.InjectionDetections.Inc()
	}

	c.JSON(http.StatusOK, DetectInjectionResponse{
		Prompt:          req.Prompt,
		DetectionResult: result,
	})
}

// ValidatePromptRequest allows callers to opt into strict validation.
type ValidatePromptRequest struct {
	Prompt     string `json:"prompt" binding:"required"`
	StrictMode bool   `json:"strict_mode,omitempty"`
}

// ValidatePromptResponse reports whether a prompt passes injection
// validation. IsValid follows the strict-mode rules; IsSafe means no
// detection fired at all.
type ValidatePromptResponse struct {
	Prompt          string                   `json:"prompt"`
	IsValid         bool                     `json:"is_valid"`
	IsSafe          bool                     `json:"is_safe"`
	DetectionResult security.DetectionResult `json:"detection_result"`
	Message         string                   `json:"message"`
}

// ValidatePrompt godoc
// @Summary Validate a prompt for injection attacks
// @Description Run the injection detector and apply the strict or lenient acceptance rule
// @Tags security
// @Accept json
// @Produce json
// @Param request body ValidatePromptRequest true "Prompt and strictness"
// @Success 200 {object} ValidatePromptResponse
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/security/validate-prompt [post]
func (h *SecurityHandler) ValidatePrompt(c *gin.Context) {
	var req ValidatePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindError(c, err)
		return
	}

	result := h.detector.Detect(req.Prompt)
	if result.IsInjection {
		h.metrics.InjectionDetections.Inc()
	}

	isValid := !result.IsInjection ||
		(!req.StrictMode &&
			result.ThreatLevel != security.ThreatHigh &&
			result.ThreatLevel != security.ThreatCritical)

	message := "Prompt passed security validation"
	if !isValid {
		message = "Prompt failed security validation"
	} else if result.IsInjection {
		message = "Prompt accepted with low-risk detections"
	}

	c.JSON(http.StatusOK, ValidatePromptResponse{
		Prompt:          req.Prompt,
		IsValid:         isValid,
		IsSafe:          !result.IsInjection,
		DetectionResult: result,
		Message:         message,
	})
}

// SecurityScanRequest optionally suppresses the recommendation list.
type SecurityScanRequest struct {
	Prompt                 string `json:"prompt" binding:"required"`
	IncludeRecommendations *bool  `json:"include_recommendations,omitempty"`
}

// SecurityMetrics summarizes the structural risk signals of a prompt.
type SecurityMetrics struct {
	PromptLength       int     `json:"prompt_length"`
	WordCount          int     `json:"word_count"`
	ContainsURLs       bool    `json:"contains_urls"`
	ContainsEmails     bool    `json:"contains_emails"`
	ContainsCode       bool    `json:"contains_code"`
	SuspiciousPatterns int     `json:"suspicious_patterns"`
	OverallRiskScore   float64 `json:"overall_risk_score"`
}

// RiskAssessment grades a detection result for API consumers.
type RiskAssessment struct {
	RiskLevel  string  `json:"risk_level"`
	IsSafe     bool    `json:"is_safe"`
	Confidence float64 `json:"confidence"`
}

// SecurityScanResponse is the full scan payload.
type SecurityScanResponse struct {
	Prompt          string                   `json:"prompt"`
	SecurityMetrics SecurityMetrics          `json:"security_metrics"`
	DetectionResult security.DetectionResult `json:"detection_result"`
	RiskAssessment  RiskAssessment           `json:"risk_assessment"`
	Recommendations []string                 `json:"recommendations,omitempty"`
}

// SecurityScan godoc
// @Summary Run a comprehensive security scan
// @Description Combine structural metrics, injection detection, and a graded risk assessment
// @Tags security
// @Accept json
// @Produce json
// @Param request body SecurityScanRequest true "Prompt to scan"
// @Success 200 {object} SecurityScanResponse
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/security/security-scan [post]
func (h *SecurityHandler) SecurityScan(c *gin.Context) {
	var req SecurityScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindError(c, err)
		return
	}
	includeRecs := req.IncludeRecommendations == nil || *req.IncludeRecommendations

	cacheKey := fmt.Sprintf("%s|%t", req.Prompt, includeRecs)
	var resp SecurityScanResponse
	if h.cache.GetSecurityScan(c.Request.Context(), cacheKey, &resp) {
		c.JSON(http.StatusOK, resp)
		return
	}

	result := h.detector.Detect(req.Prompt)
	if result.IsInjection {
		h.metrics.InjectionDetections.Inc()
	}

	resp = SecurityScanResponse{
		Prompt:          req.Prompt,
		SecurityMetrics: scanMetrics(req.Prompt, result),
		DetectionResult: result,
		RiskAssessment:  assessRisk(result.RiskScore),
	}
	if includeRecs {
		resp.Recommendations = result.Recommendations
	}
	h.cache.SetSecurityScan(c.Request.Context(), cacheKey, resp)

	c.JSON(http.StatusOK, resp)
}

var (
	urlPattern   = regexp.MustCompile(`(?i)https?://\S+|www\.\S+`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	codePattern  = regexp.MustCompile("(?i)```|<script|\\beval\\s*\\(|\\bexec\\s*\\(|\\bimport\\s+\\w|\\bdef\\s+\\w|\\bfunction\\s+\\w")
)

func scanMetrics(prompt string, result security.DetectionResult) SecurityMetrics {
	return SecurityMetrics{
		PromptLength:       len(prompt),
		WordCount:          len(strings.Fields(prompt)),
		ContainsURLs:       urlPattern.MatchString(prompt),
		ContainsEmails:     emailPattern.MatchString(prompt),
		ContainsCode:       codePattern.MatchString(prompt),
		SuspiciousPatterns: len(result.Detections),
		OverallRiskScore:   result.RiskScore,
	}
}

func assessRisk(riskScore float64) RiskAssessment {
	level := "low"
	switch {
	case riskScore > 0.7:
		level = "critical"
	case riskScore > 0.5:
		level = "high"
	case riskScore > 0.3:
		level = "medium"
	}
	return RiskAssessment{
		RiskLevel:  level,
		IsSafe:     riskScore < 0.3,
		Confidence: 1 - riskScore,
	}
}

// ValidateGuardrails godoc
// @Summary Validate a prompt against the guardrail rules
// @Description Run the guardrail engine and return the verdict with violations
// @Tags security
// @Accept json
// @Produce json
// @Param request body ValidatePromptRequest true "Prompt to validate"
// @Success 200 {object} security.Verdict
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/security/validate-guardrails [post]
func (h *SecurityHandler) ValidateGuardrails(c *gin.Context) {
	var req ValidatePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindError(c, err)
		return
	}

	verdict := h.engine.ValidatePrompt(req.Prompt, req.StrictMode)
	if len(verdict.Violations) > 0 {
		h.metrics.GuardrailViolations.Add(float64(len(verdict.Violations)))
	}

	c.JSON(http.StatusOK, verdict)
}

// ThreatLevelInfo describes one rung of the threat ladder.
type ThreatLevelInfo struct {
	Level       string  `json:"level"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

// SecurityRulesResponse documents the detection categories, threat ladder,
// guardrail rule inventory, and hardening practices.
type SecurityRulesResponse struct {
	InjectionTypes []security.CategoryInfo `json:"injection_types"`
	ThreatLevels   []ThreatLevelInfo       `json:"threat_levels"`
	GuardrailRules []security.Rule         `json:"guardrail_rules"`
	GuardrailStats security.EngineStats    `json:"guardrail_stats"`
	BestPractices  []string                `json:"best_practices"`
}

// SecurityRules godoc
// @Summary List the security rule inventory
// @Description Return detection categories, threat levels, guardrail rules, and best practices
// @Tags security
// @Produce json
// @Success 200 {object} SecurityRulesResponse
// @Router /api/v1/security/security-rules [get]
func (h *SecurityHandler) SecurityRules(c *gin.Context) {
	c.JSON(http.StatusOK, SecurityRulesResponse{
		InjectionTypes: h.detector.Categories(),
		ThreatLevels: []ThreatLevelInfo{
			{string(security.ThreatLow), security.ThreatLow.Weight(), "Minimal risk, informational detections only"},
			{string(security.ThreatMedium), security.ThreatMedium.Weight(), "Moderate risk, review before processing"},
			{string(security.ThreatHigh), security.ThreatHigh.Weight(), "High risk, likely attack attempt"},
			{string(security.ThreatCritical), security.ThreatCritical.Weight(), "Critical risk, block immediately"},
		},
		GuardrailRules: h.engine.Rules(),
		GuardrailStats: h.engine.Stats(),
		BestPractices: []string{
			"Validate all user inputs before processing",
			"Use strict mode for untrusted input sources",
			"Monitor detection logs for recurring attack patterns",
			"Keep system prompts separate from user content",
			"Apply least-privilege access to downstream tools",
			"Rate limit prompt-bearing endpoints",
		},
	})
}

// RegisterSecurityRoutes registers the security routes.
func RegisterSecurityRoutes(r *gin.RouterGroup, h *SecurityHandler) {
	sec := r.Group("/security")
	{
		sec.POST("/detect-injection", h.DetectInjection)
		sec.POST("/validate-prompt", h.ValidatePrompt)
		sec.POST("/security-scan", h.SecurityScan)
		sec.POST("/validate-guardrails", h.ValidateGuardrails)
		sec.GET("/security-rules", h.SecurityRules)
	}
}
