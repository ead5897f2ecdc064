// Package database owns the PostgreSQL pool, the schema migrations, and the
// repositories for optimization jobs and prompt templates.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"digital.vasic.promptforge/internal/config"
)

// NewPool connects to PostgreSQL with sizing from configuration and verifies
// the connection.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, log *logrus.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "promptforge"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.WithFields(logrus.Fields{
		"database":  cfg.Name,
		"max_conns": cfg.MaxConns,
	}).Info("Connected to PostgreSQL")
	return pool, nil
}

// Migrate applies the schema. Statements are idempotent so restarts are
// safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool, log *logrus.Logger) error {
	for i, migration := range migrations {
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	log.WithField("statements", len(migrations)).Info("Database migrations applied")
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS optimization_jobs (
		id UUID PRIMARY KEY,
		original_prompt TEXT NOT NULL,
		optimized_prompt TEXT,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		target_metrics JSONB NOT NULL DEFAULT '[]',
		optimization_config JSONB NOT NULL DEFAULT '{}',
		results JSONB,
		iterations INTEGER NOT NULL DEFAULT 0,
		max_iterations INTEGER NOT NULL DEFAULT 5,
		cost_original DOUBLE PRECISION,
		cost_optimized DOUBLE PRECISION,
		performance_original DOUBLE PRECISION,
		performance_optimized DOUBLE PRECISION,
		error_message TEXT,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMP WITH TIME ZONE
	)`,

	`CREATE TABLE IF NOT EXISTS prompt_templates (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category VARCHAR(50) NOT NULL,
		template TEXT NOT NULL,
		variables JSONB NOT NULL DEFAULT '[]',
		tags JSONB NOT NULL DEFAULT '[]',
		version VARCHAR(20) NOT NULL DEFAULT '1.0.0',
		author VARCHAR(255) NOT NULL DEFAULT '',
		is_public BOOLEAN NOT NULL DEFAULT TRUE,
		usage_count INTEGER NOT NULL DEFAULT 0,
		rating DOUBLE PRECISION NOT NULL DEFAULT 0,
		rating_count INTEGER NOT NULL DEFAULT 0,
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_optimization_jobs_status ON optimization_jobs(status)`,
	`CREATE INDEX IF NOT EXISTS idx_optimization_jobs_created_at ON optimization_jobs(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_prompt_templates_category ON prompt_templates(category)`,
	`CREATE INDEX IF NOT EXISTS idx_prompt_templates_author ON prompt_templates(author)`,
	`CREATE INDEX IF NOT EXISTS idx_prompt_templates_is_public ON prompt_templates(is_public)`,
	`CREATE INDEX IF NOT EXISTS idx_prompt_templates_usage_count ON prompt_templates(usage_count)`,
	`CREATE INDEX IF NOT EXISTS idx_prompt_templates_rating ON prompt_templates(rating)`,
}
