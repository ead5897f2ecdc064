package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"digital.vasic.promptforge/internal/metrics"
	"digital.vasic.promptforge/internal/middleware"
	"digital.vasic.promptforge/internal/templates"
)

// TemplateHandler serves the template catalog.
type TemplateHandler struct {
	service *templates.Service
	metrics *metrics.Metrics
	log     *logrus.Logger
}

// NewTemplateHandler creates the handler.
func NewTemplateHandler(service *templates.Service, m *metrics.Metrics, log *logrus.Logger) *TemplateHandler {
	return &TemplateHandler{service: service, metrics: m, log: log}
}

// Create godoc
// @Summary Create a template
// @Description Validate and persist a new prompt template
// @Tags templates
// @Accept json
// @Produce json
// @Param request body templates.CreateRequest true "Template definition"
// @Success 201 {object} templates.Template
// @Failure 400 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/templates [post]
func (h *TemplateHandler) Create(c *gin.Context) {
	var req templates.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindError(c, err)
		return
	}

	created, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Get godoc
// @Summary Get a template
// @Tags templates
// @Produce json
// @Param template_id path string true "Template ID"
// @Success 200 {object} templates.Template
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/templates/{template_id} [get]
func (h *TemplateHandler) Get(c *gin.Context) {
	t, err := h.service.Get(c.Request.Context(), c.Param("template_id"))
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// Update godoc
// @Summary Update a template
// @Description Apply a partial update; omitted fields stay unchanged
// @Tags templates
// @Accept json
// @Produce json
// @Param template_id path string true "Template ID"
// @Param request body templates.UpdateRequest true "Fields to update"
// @Success 200 {object} templates.Template
// @Failure 404 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/templates/{template_id} [put]
func (h *TemplateHandler) Update(c *gin.Context) {
	var req templates.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindError(c, err)
		return
	}

	updated, err := h.service.Update(c.Request.Context(), c.Param("template_id"), &req)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete godoc
// @Summary Delete a template
// @Tags templates
// @Produce json
// @Param template_id path string true "Template ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/templates/{template_id} [delete]
func (h *TemplateHandler) Delete(c *gin.Context) {
	id := c.Param("template_id")
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		middleware.RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Template deleted",
		"template_id": id,
	})
}

// SearchResponse pages the catalog.
type SearchResponse struct {
	Templates []*templates.Template `json:"templates"`
	Count     int                   `json:"count"`
}

// Search godoc
// @Summary Search templates
// @Description Filter the catalog by query, category, tags, author, visibility, and rating
// @Tags templates
// @Produce json
// @Param query query string false "Text search over name, description, and body"
// @Param category query string false "Category filter"
// @Param author query string false "Author filter"
// @Param min_rating query number false "Minimum rating"
// @Param sort_by query string false "Sort column" default(created_at)
// @Param sort_order query string false "asc or desc" default(desc)
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Page offset" default(0)
// @Success 200 {object} SearchResponse
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/templates [get]
func (h *TemplateHandler) Search(c *gin.Context) {
	var req templates.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		renderBindError(c, err)
		return
	}

	results, err := h.service.Search(c.Request.Context(), &req)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, SearchResponse{Templates: results, Count: len(results)})
}

// RenderRequest carries the variable values for a render.
type RenderRequest struct {
	Variables map[string]interface{} `json:"variables"`
}

// RenderResponse pairs the rendered prompt with its template.
type RenderResponse struct {
	Rendered string              `json:"rendered_prompt"`
	Template *templates.Template `json:"template"`
}

// Render godoc
// @Summary Render a template
// @Description Substitute variables into the template body and count the use
// @Tags templates
// @Accept json
// @Produce json
// @Param template_id path string true "Template ID"
// @Param request body RenderRequest true "Variable values"
// @Success 200 {object} RenderResponse
// @Failure 404 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/templates/{template_id}/render [post]
func (h *TemplateHandler) Render(c *gin.Context) {
	var req RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindError(c, err)
		return
	}

	rendered, t, err := h.service.Render(c.Request.Context(), c.Param("template_id"), req.Variables)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	h.metrics.TemplateRenders.Inc()

	c.JSON(http.StatusOK, RenderResponse{Rendered: rendered, Template: t})
}

// RateRequest carries one rating.
type RateRequest struct {
	Rating float64 `json:"rating" binding:"required"`
}

// Rate godoc
// @Summary Rate a template
// @Description Record a 1-5 rating and return the updated running average
// @Tags templates
// @Accept json
// @Produce json
// @Param template_id path string true "Template ID"
// @Param request body RateRequest true "Rating between 1 and 5"
// @Success 200 {object} templates.Template
// @Failure 404 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/templates/{template_id}/rate [post]
func (h *TemplateHandler) Rate(c *gin.Context) {
	var req RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindError(c, err)
		return
	}

	rated, err := h.service.Rate(c.Request.Context(), c.Param("template_id"), req.Rating)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, rated)
}

// Categories godoc
// @Summary List template categories
// @Tags templates
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/templates/categories [get]
func (h *TemplateHandler) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": templates.Categories()})
}

// RegisterTemplateRoutes registers the template catalog routes.
func RegisterTemplateRoutes(r *gin.RouterGroup, h *TemplateHandler) {
	t := r.Group("/templates")
	{
		t.GET("", h.Search)
		t.POST("", h.Create)
		t.GET("/categories", h.Categories)
		t.GET("/:template_id", h.Get)
		t.PUT("/:template_id", h.Update)
		t.DELETE("/:template_id", h.Delete)
		t.POST("/:template_id/render", h.Render)
		t.POST("/:template_id/rate", h.Rate)
	}
}
