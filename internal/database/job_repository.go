package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"digital.vasic.promptforge/internal/optimizer"
)

// JobRepository persists optimization jobs. It implements
// optimizer.JobStore.
type JobRepository struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewJobRepository creates the repository.
func NewJobRepository(pool *pgxpool.Pool, log *logrus.Logger) *JobRepository {
	return &JobRepository{pool: pool, log: log}
}

const jobColumns = `id, original_prompt, optimized_prompt, status, target_metrics,
	optimization_config, results, iterations, max_iterations,
	cost_original, cost_optimized, performance_original, performance_optimized,
	error_message, created_at, updated_at, completed_at`

// CreateJob inserts a new job row.
func (r *JobRepository) CreateJob(ctx context.Context, job *optimizer.Job) error {
	query := `
		INSERT INTO optimization_jobs (
			id, original_prompt, status, target_metrics, optimization_config,
			iterations, max_iterations, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	metricsJSON, err := json.Marshal(job.TargetMetrics)
	if err != nil {
		return fmt.Errorf("failed to marshal target metrics: %w", err)
	}
	configJSON, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal optimization config: %w", err)
	}

	_, err = r.pool.Exec(ctx, query,
		job.ID, job.OriginalPrompt, job.Status, metricsJSON, configJSON,
		job.Iterations, job.MaxIterations, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create optimization job: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"job_id": job.ID,
		"status": string(job.Status),
	}).Debug("Created optimization job")
	return nil
}

// GetJob returns a job by id, or nil when absent.
func (r *JobRepository) GetJob(ctx context.Context, id string) (*optimizer.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM optimization_jobs WHERE id = $1`

	job, err := r.scanJob(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get optimization job: %w", err)
	}
	return job, nil
}

// UpdateJob writes back every mutable column. The write is compare-and-set
// on the status column: a row that already reached a terminal state is left
// untouched and the call returns optimizer.ErrJobFinalized, so concurrent
// finishers (driver, cancel, reaper) cannot overwrite each other.
func (r *JobRepository) UpdateJob(ctx context.Context, job *optimizer.Job) error {
	query := `
		UPDATE optimization_jobs
		SET optimized_prompt = $2, status = $3, results = $4, iterations = $5,
			cost_original = $6, cost_optimized = $7,
			performance_original = $8, performance_optimized = $9,
			error_message = $10, updated_at = $11, completed_at = $12
		WHERE id = $1 AND status NOT IN ('completed', 'failed', 'cancelled')
	`

	var resultsJSON []byte
	if job.Results != nil {
		var err error
		resultsJSON, err = json.Marshal(job.Results)
		if err != nil {
			return fmt.Errorf("failed to marshal job results: %w", err)
		}
	}

	tag, err := r.pool.Exec(ctx, query,
		job.ID, job.OptimizedPrompt, job.Status, resultsJSON, job.Iterations,
		job.CostOriginal, job.CostOptimized,
		job.PerformanceOriginal, job.PerformanceOptimize,
		job.ErrorMessage, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update optimization job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return optimizer.ErrJobFinalized
	}
	return nil
}

// TouchJob refreshes updated_at on a running job so the stale-job sweep does
// not fail over a run that is still making progress.
func (r *JobRepository) TouchJob(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE optimization_jobs
		SET updated_at = $2
		WHERE id = $1 AND status = 'running'
	`, id, at)
	if err != nil {
		return fmt.Errorf("failed to touch optimization job: %w", err)
	}
	return nil
}

// ListJobs returns a page of jobs, newest first.
func (r *JobRepository) ListJobs(ctx context.Context, limit, offset int) ([]*optimizer.Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM optimization_jobs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list optimization jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*optimizer.Job{}
	for rows.Next() {
		job, err := r.scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan optimization job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *JobRepository) scanJob(row rowScanner) (*optimizer.Job, error) {
	job := &optimizer.Job{}
	var metricsJSON, configJSON, resultsJSON []byte

	err := row.Scan(
		&job.ID, &job.OriginalPrompt, &job.OptimizedPrompt, &job.Status, &metricsJSON,
		&configJSON, &resultsJSON, &job.Iterations, &job.MaxIterations,
		&job.CostOriginal, &job.CostOptimized, &job.PerformanceOriginal, &job.PerformanceOptimize,
		&job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metricsJSON) > 0 {
		if err := json.Unmarshal(metricsJSON, &job.TargetMetrics); err != nil {
			r.log.WithError(err).Warn("Failed to unmarshal target metrics")
		}
	}
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &job.Config); err != nil {
			r.log.WithError(err).Warn("Failed to unmarshal optimization config")
		}
	}
	if len(resultsJSON) > 0 {
		if err := json.Unmarshal(resultsJSON, &job.Results); err != nil {
			r.log.WithError(err).Warn("Failed to unmarshal job results")
		}
	}
	return job, nil
}
