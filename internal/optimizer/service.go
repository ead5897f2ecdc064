package optimizer

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	apperrors "digital.vasic.promptforge/internal/errors"
	"digital.vasic.promptforge/internal/security"
)

// ErrJobFinalized reports a write refused because the job row already
// reached a terminal state. Terminal states are never revisited.
var ErrJobFinalized = errors.New("job already in a terminal state")

// JobStore persists optimization jobs. UpdateJob must refuse to overwrite a
// terminal row and return ErrJobFinalized instead; TouchJob advances
// updated_at on a running row so housekeeping can tell live jobs from dead
// ones.
type JobStore interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	UpdateJob(ctx context.Context, job *Job) error
	TouchJob(ctx context.Context, id string, at time.Time) error
	ListJobs(ctx context.Context, limit, offset int) ([]*Job, error)
}

// heartbeatInterval is how often a running job refreshes updated_at during
// evaluation.
const heartbeatInterval = 30 * time.Second

// Service owns the job lifecycle. Submissions are validated, persisted as
// pending, and run on background goroutines bounded by a semaphore.
type Service struct {
	store     JobStore
	evaluator *Evaluator
	enhanced  *security.EnhancedEngine
	sem       *semaphore.Weighted
	log       *logrus.Logger

	// onFinish is invoked once per job reaching a terminal state.
	onFinish func(status Status, duration time.Duration)

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewService wires the optimization service. maxConcurrent bounds the number
// of jobs evaluated at once.
func NewService(
	store JobStore,
	evaluator *Evaluator,
	enhanced *security.EnhancedEngine,
	maxConcurrent int64,
	log *logrus.Logger,
) *Service {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Service{
		store:     store,
		evaluator: evaluator,
		enhanced:  enhanced,
		sem:       semaphore.NewWeighted(maxConcurrent),
		log:       log,
		cancels:   map[string]context.CancelFunc{},
	}
}

// SetOnFinish registers a callback fired when a job reaches a terminal
// state, with the job's total wall-clock duration.
func (s *Service) SetOnFinish(fn func(status Status, duration time.Duration)) {
	s.onFinish = fn
}

func (s *Service) reportFinish(job *Job) {
	if s.onFinish == nil || job.CompletedAt == nil {
		return
	}
	s.onFinish(job.Status, job.CompletedAt.Sub(job.CreatedAt))
}

// Optimize validates and persists a job, then starts it in the background.
// Returns the job id.
func (s *Service) Optimize(ctx context.Context, req *Request) (string, error) {
	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		return "", err
	}

	enhanced := s.enhanced.ValidatePrompt(ctx, req.Prompt)
	if !enhanced.IsSafe {
		critical := 0
		for _, v := range enhanced.Violations {
			if v.Severity == security.SeverityCritical || v.Severity == security.SeverityError {
				critical++
			}
		}
		if critical > 0 {
			return "", apperrors.NewOptimization(
				"Prompt failed guardrail validation before optimization").
				WithDetail("critical_violations", critical).
				WithDetail("recommendations", enhanced.Recommendations)
		}
	}

	now := time.Now().UTC()
	job := &Job{
		ID:             uuid.NewString(),
		OriginalPrompt: req.Prompt,
		Status:         StatusPending,
		TargetMetrics:  req.TargetMetrics,
		Config:         req,
		MaxIterations:  req.MaxIterations,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return "", err
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[job.ID] = cancel
	s.mu.Unlock()

	go s.runJob(jobCtx, job.ID, req)

	s.log.WithFields(logrus.Fields{
		"job_id":    job.ID,
		"technique": string(req.Technique()),
	}).Info("Optimization job submitted")

	return job.ID, nil
}

// GetJob returns a job by id.
func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, apperrors.NewJobNotFound(id)
	}
	return job, nil
}

// ListJobs returns a page of jobs, newest first.
func (s *Service) ListJobs(ctx context.Context, limit, offset int) ([]*Job, error) {
	return s.store.ListJobs(ctx, limit, offset)
}

// CancelJob stops a pending or running job. Terminal jobs cannot be
// cancelled.
func (s *Service) CancelJob(ctx context.Context, id string) (*Job, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return nil, apperrors.NewOptimization("job is already in a terminal state").
			WithDetail("status", string(job.Status))
	}

	s.mu.Lock()
	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
	s.mu.Unlock()

	now := time.Now().UTC()
	job.Status = StatusCancelled
	job.UpdatedAt = now
	job.CompletedAt = &now
	if err := s.store.UpdateJob(ctx, job); err != nil {
		if errors.Is(err, ErrJobFinalized) {
			// The driver finished between our read and this write.
			return nil, apperrors.NewOptimization("job is already in a terminal state")
		}
		return nil, err
	}
	s.reportFinish(job)

	s.log.WithField("job_id", id).Info("Optimization job cancelled")
	return job, nil
}

// runJob drives one job to a terminal state. It never returns an error; all
// failures land on the job row.
func (s *Service) runJob(ctx context.Context, jobID string, req *Request) {
	defer func() {
		s.mu.Lock()
		delete(s.cancels, jobID)
		s.mu.Unlock()
	}()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.finishCancelled(jobID)
		return
	}
	defer s.sem.Release(1)

	log := s.log.WithField("job_id", jobID)

	job, err := s.store.GetJob(context.Background(), jobID)
	if err != nil || job == nil {
		log.WithError(err).Error("Failed to load job for execution")
		return
	}
	if job.Status.Terminal() {
		return
	}

	job.Status = StatusRunning
	job.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateJob(context.Background(), job); err != nil {
		log.WithError(err).Error("Failed to mark job running")
		return
	}
	log.Info("Starting optimization")

	originalEval := s.evaluator.Evaluate(ctx, req.Prompt, req.TestCases)
	job.CostOriginal = &originalEval.EstimatedCost
	job.PerformanceOriginal = &originalEval.OverallScore

	rng := newRNG(req.Seed)
	var lastBeat time.Time
	eval := func(ctx context.Context, prompt string) *Evaluation {
		// Heartbeat so the stale-job sweep can tell a slow run from a
		// dead one.
		if time.Since(lastBeat) >= heartbeatInterval {
			lastBeat = time.Now()
			if err := s.store.TouchJob(ctx, jobID, time.Now().UTC()); err != nil {
				log.WithError(err).Debug("Job heartbeat failed")
			}
		}
		return s.evaluator.Evaluate(ctx, prompt, req.TestCases)
	}

	var outcome *searchOutcome
	if req.Technique() == TechniqueGeneticAlgorithm {
		outcome, err = geneticSearch(ctx, rng, req.Prompt, originalEval, req, eval, log)
	} else {
		outcome, err = hillClimb(ctx, rng, req.Prompt, originalEval, req, eval, log)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.finishCancelled(jobID)
		} else {
			s.finishFailed(jobID, err)
		}
		return
	}

	check := s.enhanced.ValidateOptimizationRequest(ctx, req.Prompt, outcome.BestPrompt)

	var costReduction float64
	if originalEval.EstimatedCost > 0 {
		costReduction = (originalEval.EstimatedCost - outcome.BestEvaluation.EstimatedCost) /
			originalEval.EstimatedCost
	}

	now := time.Now().UTC()
	job.OptimizedPrompt = &outcome.BestPrompt
	job.CostOptimized = &outcome.BestEvaluation.EstimatedCost
	job.PerformanceOptimize = &outcome.BestEvaluation.OverallScore
	job.Iterations = outcome.Iterations
	job.Status = StatusCompleted
	job.UpdatedAt = now
	job.CompletedAt = &now
	job.Results = &Results{
		CostReduction:      costReduction,
		PerformanceChange:  outcome.BestEvaluation.OverallScore - originalEval.OverallScore,
		OriginalEvaluation: originalEval,
		FinalEvaluation:    outcome.BestEvaluation,
		Technique:          req.Technique(),
		GuardrailValidation: GuardrailValidation{
			SafetyMaintained: check.SafetyMaintained,
			QualityImproved:  check.QualityImproved,
			OptimizationSafe: check.OptimizationSafe,
			Recommendations:  check.Recommendations,
		},
	}

	if err := s.store.UpdateJob(context.Background(), job); err != nil {
		if errors.Is(err, ErrJobFinalized) {
			log.Info("Job was finalized elsewhere, dropping results")
		} else {
			log.WithError(err).Error("Failed to persist job results")
		}
		return
	}
	s.reportFinish(job)

	log.WithFields(logrus.Fields{
		"cost_reduction":     costReduction,
		"performance_change": job.Results.PerformanceChange,
		"iterations":         job.Iterations,
	}).Info("Optimization completed")
}

func (s *Service) finishCancelled(jobID string) {
	job, err := s.store.GetJob(context.Background(), jobID)
	if err != nil || job == nil || job.Status.Terminal() {
		return
	}
	now := time.Now().UTC()
	job.Status = StatusCancelled
	job.UpdatedAt = now
	job.CompletedAt = &now
	if err := s.store.UpdateJob(context.Background(), job); err != nil {
		if !errors.Is(err, ErrJobFinalized) {
			s.log.WithError(err).WithField("job_id", jobID).Error("Failed to mark job cancelled")
		}
		return
	}
	s.reportFinish(job)
}

func (s *Service) finishFailed(jobID string, cause error) {
	job, err := s.store.GetJob(context.Background(), jobID)
	if err != nil || job == nil || job.Status.Terminal() {
		return
	}
	now := time.Now().UTC()
	msg := cause.Error()
	job.Status = StatusFailed
	job.ErrorMessage = &msg
	job.UpdatedAt = now
	job.CompletedAt = &now
	if err := s.store.UpdateJob(context.Background(), job); err != nil {
		if !errors.Is(err, ErrJobFinalized) {
			s.log.WithError(err).WithField("job_id", jobID).Error("Failed to mark job failed")
		}
		return
	}
	s.reportFinish(job)
	s.log.WithError(cause).WithField("job_id", jobID).Error("Optimization failed")
}

func newRNG(seed *int64) *rand.Rand {
	if seed != nil {
		return rand.New(rand.NewSource(*seed)) // #nosec G404 - reproducible search
	}
	return rand.New(rand.NewSource(time.Now().UnixNano())) // #nosec G404 - search randomness
}
