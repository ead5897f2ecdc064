package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"digital.vasic.promptforge/internal/cache"
	"digital.vasic.promptforge/internal/llm"
)

// HealthHandler reports service, database, cache, and provider health.
type HealthHandler struct {
	pool    *pgxpool.Pool
	cache   *cache.Service
	facade  *llm.Facade
	version string
	started time.Time
	log     *logrus.Logger
}

// NewHealthHandler creates the handler.
func NewHealthHandler(pool *pgxpool.Pool, cacheSvc *cache.Service, facade *llm.Facade, version string, log *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		pool:    pool,
		cache:   cacheSvc,
		facade:  facade,
		version: version,
		started: time.Now().UTC(),
		log:     log,
	}
}

// ServiceHealthResponse is the liveness payload.
type ServiceHealthResponse struct {
	Status        string                 `json:"status"`
	Version       string                 `json:"version"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	Database      string                 `json:"database"`
	Cache         map[string]interface{} `json:"cache"`
	Providers     []llm.ProviderStatus   `json:"providers"`
}

// Health godoc
// @Summary Service health
// @Description Report database, cache, and LLM provider health in one payload
// @Tags health
// @Produce json
// @Success 200 {object} ServiceHealthResponse
// @Failure 503 {object} ServiceHealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	resp := ServiceHealthResponse{
		Status:        "healthy",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Database:      "connected",
		Cache:         h.cache.Stats(),
		Providers:     h.facade.Status(),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.pool.Ping(ctx); err != nil {
		h.log.WithError(err).Error("Database health check failed")
		resp.Status = "degraded"
		resp.Database = "unreachable"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Ready godoc
// @Summary Readiness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// RegisterHealthRoutes registers the probes on the router root.
func RegisterHealthRoutes(r *gin.Engine, h *HealthHandler) {
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
}
