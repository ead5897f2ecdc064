package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"digital.vasic.promptforge/internal/analytics"
	"digital.vasic.promptforge/internal/middleware"
)

// AnalyticsHandler serves the aggregate reports.
type AnalyticsHandler struct {
	service *analytics.Service
	log     *logrus.Logger
}

// NewAnalyticsHandler creates the handler.
func NewAnalyticsHandler(service *analytics.Service, log *logrus.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{service: service, log: log}
}

// Dashboard godoc
// @Summary Combined activity dashboard
// @Description Template catalog totals and rankings plus optimization job outcomes
// @Tags analytics
// @Produce json
// @Success 200 {object} analytics.Dashboard
// @Router /api/v1/analytics/dashboard [get]
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.service.Dashboard(c.Request.Context())
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// TemplateStats godoc
// @Summary Template catalog statistics
// @Description Catalog activity for the trailing period
// @Tags analytics
// @Produce json
// @Param days query int false "Trailing period in days (1-365)" default(30)
// @Success 200 {object} analytics.TemplateStats
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/analytics/templates/stats [get]
func (h *AnalyticsHandler) TemplateStats(c *gin.Context) {
	stats, err := h.service.TemplateStats(c.Request.Context(), intQuery(c, "days", 30))
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// OptimizationStats godoc
// @Summary Optimization job statistics
// @Description Job status distribution and savings for the trailing period
// @Tags analytics
// @Produce json
// @Param days query int false "Trailing period in days (1-365)" default(30)
// @Success 200 {object} analytics.OptimizationStats
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/analytics/optimization/stats [get]
func (h *AnalyticsHandler) OptimizationStats(c *gin.Context) {
	stats, err := h.service.OptimizationStats(c.Request.Context(), intQuery(c, "days", 30))
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// RegisterAnalyticsRoutes registers the analytics routes.
func RegisterAnalyticsRoutes(r *gin.RouterGroup, h *AnalyticsHandler) {
	a := r.Group("/analytics")
	{
		a.GET("/dashboard", h.Dashboard)
		a.GET("/templates/stats", h.TemplateStats)
		a.GET("/optimization/stats", h.OptimizationStats)
	}
}
