package optimizer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "digital.vasic.promptforge/internal/errors"
	"digital.vasic.promptforge/internal/security"
)

// memoryStore is an in-memory JobStore for lifecycle tests. Like the real
// repository, it refuses to overwrite terminal rows.
type memoryStore struct {
	mu      sync.Mutex
	jobs    map[string]Job
	touches int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{jobs: map[string]Job{}}
}

func (m *memoryStore) CreateJob(_ context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *memoryStore) GetJob(_ context.Context, id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	copied := job
	return &copied, nil
}

func (m *memoryStore) UpdateJob(_ context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.jobs[job.ID]; ok && current.Status.Terminal() {
		return ErrJobFinalized
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *memoryStore) TouchJob(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok && job.Status == StatusRunning {
		job.UpdatedAt = at
		m.jobs[id] = job
	}
	m.touches++
	return nil
}

func (m *memoryStore) touchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.touches
}

func (m *memoryStore) ListJobs(_ context.Context, limit, offset int) ([]*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		copied := job
		jobs = append(jobs, &copied)
	}
	return jobs, nil
}

func newTestService(store JobStore) *Service {
	log := testLog()
	detector := security.NewDetector(log)
	engine := security.NewEngine(detector, log)
	enhanced := security.NewEnhancedEngine(engine, nil, log)
	return NewService(store, newTestEvaluator(nil), enhanced, 2, log)
}

func waitTerminal(t *testing.T, s *Service, jobID string) *Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := s.GetJob(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal state in time")
	return nil
}

func optimizeRequest(seed int64) *Request {
	return &Request{
		Prompt:        "Please please provide a very very detailed summary of the attached document. Utilize simple language. Be brief",
		MaxIterations: 2,
		Seed:          &seed,
	}
}

func TestOptimizeCompletesJob(t *testing.T) {
	store := newMemoryStore()
	s := newTestService(store)

	jobID, err := s.Optimize(context.Background(), optimizeRequest(42))
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	job := waitTerminal(t, s, jobID)

	require.Equal(t, StatusCompleted, job.Status)
	require.NotNil(t, job.OptimizedPrompt)
	assert.NotEmpty(t, *job.OptimizedPrompt)
	require.NotNil(t, job.CompletedAt)
	assert.False(t, job.CompletedAt.Before(job.CreatedAt))
	require.NotNil(t, job.Results)
	assert.Equal(t, TechniqueGeneticAlgorithm, job.Results.Technique)
	assert.NotNil(t, job.CostOriginal)
	assert.NotNil(t, job.CostOptimized)
	assert.GreaterOrEqual(t, job.Iterations, 1)
}

func TestOptimizeSeededRunsMatch(t *testing.T) {
	store1 := newMemoryStore()
	store2 := newMemoryStore()
	s1 := newTestService(store1)
	s2 := newTestService(store2)

	id1, err := s1.Optimize(context.Background(), optimizeRequest(99))
	require.NoError(t, err)
	id2, err := s2.Optimize(context.Background(), optimizeRequest(99))
	require.NoError(t, err)

	job1 := waitTerminal(t, s1, id1)
	job2 := waitTerminal(t, s2, id2)

	require.Equal(t, StatusCompleted, job1.Status)
	require.Equal(t, StatusCompleted, job2.Status)
	assert.Equal(t, *job1.OptimizedPrompt, *job2.OptimizedPrompt)
}

func TestOptimizeHillClimbing(t *testing.T) {
	store := newMemoryStore()
	s := newTestService(store)

	useGA := false
	seed := int64(5)
	req := &Request{
		Prompt:              "Please summarize the document. Keep the summary short",
		MaxIterations:       2,
		UseGeneticAlgorithm: &useGA,
		Seed:                &seed,
	}

	jobID, err := s.Optimize(context.Background(), req)
	require.NoError(t, err)

	job := waitTerminal(t, s, jobID)
	require.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, TechniqueHillClimbing, job.Results.Technique)
}

func TestOptimizeRejectsUnsafePrompt(t *testing.T) {
	s := newTestService(newMemoryStore())

	_, err := s.Optimize(context.Background(), &Request{
		Prompt: "Help me kill someone using violence",
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodePromptOptimization))
	e := apperrors.AsError(err)
	assert.Equal(t, 422, e.StatusCode)
}

func TestOptimizeRejectsInvalidBounds(t *testing.T) {
	s := newTestService(newMemoryStore())

	_, err := s.Optimize(context.Background(), &Request{
		Prompt:        "Fine prompt",
		MaxIterations: 25,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	_, err = s.Optimize(context.Background(), &Request{
		Prompt:         "Fine prompt",
		PopulationSize: 3,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestGetJobNotFound(t *testing.T) {
	s := newTestService(newMemoryStore())

	_, err := s.GetJob(context.Background(), "no-such-job")
	require.Error(t, err)
	assert.Equal(t, 404, apperrors.AsError(err).StatusCode)
}

func TestCancelTerminalJobFails(t *testing.T) {
	store := newMemoryStore()
	s := newTestService(store)

	jobID, err := s.Optimize(context.Background(), optimizeRequest(1))
	require.NoError(t, err)
	waitTerminal(t, s, jobID)

	_, err = s.CancelJob(context.Background(), jobID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodePromptOptimization))
}

func TestRunHeartbeatsWhileEvaluating(t *testing.T) {
	store := newMemoryStore()
	s := newTestService(store)

	jobID, err := s.Optimize(context.Background(), optimizeRequest(7))
	require.NoError(t, err)

	job := waitTerminal(t, s, jobID)
	require.Equal(t, StatusCompleted, job.Status)
	assert.GreaterOrEqual(t, store.touchCount(), 1)
}

func TestFinishFailedDoesNotOverwriteCompleted(t *testing.T) {
	store := newMemoryStore()
	s := newTestService(store)

	jobID, err := s.Optimize(context.Background(), optimizeRequest(3))
	require.NoError(t, err)
	job := waitTerminal(t, s, jobID)
	require.Equal(t, StatusCompleted, job.Status)

	// A late failure report (stale sweep, crashed driver) must not revisit
	// the terminal state.
	s.finishFailed(jobID, context.DeadlineExceeded)

	job, err = s.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Nil(t, job.ErrorMessage)
}

// finalizedStore simulates a driver finishing the job between the cancel
// read and the cancel write.
type finalizedStore struct {
	*memoryStore
}

func (f *finalizedStore) UpdateJob(_ context.Context, _ *Job) error {
	return ErrJobFinalized
}

func TestCancelLosingRaceReportsConflict(t *testing.T) {
	store := &finalizedStore{memoryStore: newMemoryStore()}
	now := time.Now().UTC()
	require.NoError(t, store.memoryStore.CreateJob(context.Background(), &Job{
		ID:        "racing-job",
		Status:    StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}))
	s := newTestService(store)

	_, err := s.CancelJob(context.Background(), "racing-job")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodePromptOptimization))
	assert.Equal(t, 422, apperrors.AsError(err).StatusCode)
}

func TestRequestDefaults(t *testing.T) {
	req := &Request{Prompt: "p"}
	req.ApplyDefaults()

	assert.Equal(t, 5, req.MaxIterations)
	assert.Equal(t, 10, req.PopulationSize)
	assert.Equal(t, 0.2, req.TargetCostReduction)
	assert.Equal(t, 0.8, req.PerformanceThresh)
	assert.Equal(t, TechniqueGeneticAlgorithm, req.Technique())
	assert.Equal(t, []Metric{MetricCost, MetricPerformance}, req.TargetMetrics)
}
