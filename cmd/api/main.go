// PromptForge API server.
//
// Wires the prompt analysis, security, optimization, template, and LLM
// access services behind a gin HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"digital.vasic.promptforge/internal/analytics"
	"digital.vasic.promptforge/internal/analyzer"
	"digital.vasic.promptforge/internal/background"
	"digital.vasic.promptforge/internal/cache"
	"digital.vasic.promptforge/internal/config"
	"digital.vasic.promptforge/internal/cost"
	"digital.vasic.promptforge/internal/database"
	"digital.vasic.promptforge/internal/handlers"
	"digital.vasic.promptforge/internal/llm"
	"digital.vasic.promptforge/internal/metrics"
	"digital.vasic.promptforge/internal/middleware"
	"digital.vasic.promptforge/internal/optimizer"
	"digital.vasic.promptforge/internal/security"
	"digital.vasic.promptforge/internal/templates"
)

const version = "1.0.0"

// maxBodyBytes caps request bodies; prompts top out at 10k characters so
// 1 MiB leaves generous headroom for batch payloads.
const maxBodyBytes = 1 << 20

func main() {
	cfg := config.Load()
	log := newLogger(cfg.App)

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("Server exited with error")
	}
}

func newLogger(cfg config.AppConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, log); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	cacheSvc := cache.NewService(cfg.Redis, cfg.Cache, log)
	defer cacheSvc.Close()

	detector := security.NewDetector(log)
	engine := security.NewEngine(detector, log)
	enhanced := security.NewEnhancedEngine(engine, nil, log)

	promptAnalyzer := analyzer.New(log)
	calculator := cost.NewCalculator(log)

	facade := llm.NewFacade(cfg.LLM, log)
	facade.Probe(ctx)

	jobs := database.NewJobRepository(pool, log)
	templateStore := database.NewTemplateRepository(pool, log)

	reaper := background.NewReaper(pool, background.DefaultReaperConfig(), log)
	if _, err := reaper.FailInterrupted(ctx); err != nil {
		return fmt.Errorf("fail over interrupted jobs: %w", err)
	}
	reaper.Start()
	defer reaper.Stop()

	evaluator := optimizer.NewEvaluator(
		promptAnalyzer, calculator, engine, facade, cfg.LLM.DefaultProvider, log)
	optimizerSvc := optimizer.NewService(
		jobs, evaluator, enhanced, cfg.Optimization.MaxConcurrentJobs, log)

	templateSvc := templates.NewService(
		templateStore, detector, cfg.Security.StrictValidation, log)
	if err := templateSvc.EnsureBuiltins(ctx); err != nil {
		return fmt.Errorf("seed builtin templates: %w", err)
	}

	analyticsSvc := analytics.NewService(pool, log)
	m := metrics.New()
	optimizerSvc.SetOnFinish(func(status optimizer.Status, duration time.Duration) {
		m.OptimizationJobs.WithLabelValues(string(status)).Inc()
		m.OptimizationSeconds.Observe(duration.Seconds())
	})

	router := newRouter(cfg, log, m)

	// Security routes take hostile prompts on purpose, so the injection
	// screen only guards routes that store or execute prompts.
	api := router.Group("/api/v1")
	handlers.RegisterSecurityRoutes(api, handlers.NewSecurityHandler(
		detector, engine, cacheSvc, m, log))
	handlers.RegisterAnalyticsRoutes(api, handlers.NewAnalyticsHandler(analyticsSvc, log))

	screened := router.Group("/api/v1")
	screened.Use(middleware.InjectionScreen(detector, middleware.ScreenConfig{
		Enabled: cfg.Security.EnableInjectionDetection,
		Strict:  cfg.Security.StrictValidation,
	}))
	handlers.RegisterOptimizationRoutes(screened, handlers.NewOptimizationHandler(
		optimizerSvc, evaluator, promptAnalyzer, calculator, cacheSvc, m, log))
	handlers.RegisterTemplateRoutes(screened, handlers.NewTemplateHandler(templateSvc, m, log))
	handlers.RegisterLLMRoutes(screened, handlers.NewLLMHandler(facade, m, log))

	handlers.RegisterHealthRoutes(router, handlers.NewHealthHandler(
		pool, cacheSvc, facade, version, log))
	router.GET("/metrics", m.Handler())

	return serve(ctx, cfg.App, router, log)
}

func newRouter(cfg *config.Config, log *logrus.Logger, m *metrics.Metrics) *gin.Engine {
	if cfg.App.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(m.Middleware())
	router.Use(middleware.NewRateLimiter(middleware.DefaultRateLimit()).Middleware())
	router.Use(middleware.BodySizeLimit(maxBodyBytes))
	router.Use(middleware.RequireJSON())
	return router
}

func serve(ctx context.Context, cfg config.AppConfig, router *gin.Engine, log *logrus.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":    srv.Addr,
			"version": version,
		}).Info("PromptForge API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutdown signal received, draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("Server stopped")
	return nil
}
