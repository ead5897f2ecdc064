// Package background runs the job housekeeping loop. Optimization runs live
// in process goroutines, so rows left in pending or running after a restart
// belong to a process that no longer exists.
package background

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// ReaperConfig tunes the housekeeping loop.
type ReaperConfig struct {
	// SweepInterval is how often running jobs are checked for staleness.
	SweepInterval time.Duration
	// StaleAfter is how long a running job may go without an update before
	// it is considered orphaned.
	StaleAfter time.Duration
}

// DefaultReaperConfig returns the standard sweep cadence.
func DefaultReaperConfig() ReaperConfig {
	return ReaperConfig{
		SweepInterval: time.Minute,
		StaleAfter:    15 * time.Minute,
	}
}

// Reaper fails over orphaned optimization jobs.
type Reaper struct {
	pool   *pgxpool.Pool
	cfg    ReaperConfig
	log    *logrus.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReaper creates the reaper.
func NewReaper(pool *pgxpool.Pool, cfg ReaperConfig, log *logrus.Logger) *Reaper {
	if cfg.SweepInterval <= 0 {
		cfg = DefaultReaperConfig()
	}
	return &Reaper{pool: pool, cfg: cfg, log: log}
}

// FailInterrupted marks every pending or running job as failed. Called once
// at startup, before new jobs are accepted.
func (r *Reaper) FailInterrupted(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE optimization_jobs
		SET status = 'failed',
			error_message = 'interrupted by service restart',
			updated_at = NOW(),
			completed_at = NOW()
		WHERE status IN ('pending', 'running')
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to reap interrupted jobs: %w", err)
	}

	if tag.RowsAffected() > 0 {
		r.log.WithField("count", tag.RowsAffected()).Warn("Failed over interrupted optimization jobs")
	}
	return tag.RowsAffected(), nil
}

// Start launches the periodic stale-job sweep.
func (r *Reaper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.wg.Add(1)
	go r.sweepLoop(ctx)

	r.log.WithFields(logrus.Fields{
		"sweep_interval": r.cfg.SweepInterval.String(),
		"stale_after":    r.cfg.StaleAfter.String(),
	}).Info("Job reaper started")
}

// Stop terminates the sweep loop and waits for it to exit.
func (r *Reaper) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.wg.Wait()
	r.log.Info("Job reaper stopped")
}

func (r *Reaper) sweepLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.sweep(ctx); err != nil && ctx.Err() == nil {
				r.log.WithError(err).Warn("Stale job sweep failed")
			}
		}
	}
}

// sweep fails running jobs whose last update is older than StaleAfter.
func (r *Reaper) sweep(ctx context.Context) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE optimization_jobs
		SET status = 'failed',
			error_message = 'job went stale without progress',
			updated_at = NOW(),
			completed_at = NOW()
		WHERE status = 'running' AND updated_at < NOW() - make_interval(secs => $1)
	`, r.cfg.StaleAfter.Seconds())
	if err != nil {
		return fmt.Errorf("failed to sweep stale jobs: %w", err)
	}

	if tag.RowsAffected() > 0 {
		r.log.WithField("count", tag.RowsAffected()).Warn("Failed over stale optimization jobs")
	}
	return nil
}
