// Package optimizer searches for cheaper prompt phrasings that preserve
// quality. Jobs run in the background against a persisted lifecycle; the
// search itself is a genetic algorithm or hill climbing over text mutations.
package optimizer

import (
	"time"

	apperrors "digital.vasic.promptforge/internal/errors"
)

// Status is the lifecycle state of an optimization job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Metric names a dimension a job may target.
type Metric string

const (
	MetricCost        Metric = "cost"
	MetricPerformance Metric = "performance"
	MetricLatency     Metric = "latency"
	MetricQuality     Metric = "quality"
	MetricSafety      Metric = "safety"
)

// Technique names the search strategy used by a job.
type Technique string

const (
	TechniqueGeneticAlgorithm Technique = "genetic_algorithm"
	TechniqueHillClimbing     Technique = "hill_climbing"
)

// TestCase carries variables rendered into the prompt before a trial call.
type TestCase struct {
	Variables map[string]interface{} `json:"variables"`
}

// TestResult is the outcome of one trial call. Trial failures degrade the
// result, never the evaluation.
type TestResult struct {
	Input   TestCase `json:"input"`
	Output  string   `json:"output,omitempty"`
	Error   string   `json:"error,omitempty"`
	Success bool     `json:"success"`
}

// Request is an optimization submission.
type Request struct {
	Prompt              string     `json:"prompt" binding:"required"`
	TargetMetrics       []Metric   `json:"target_metrics,omitempty"`
	MaxIterations       int        `json:"max_iterations,omitempty"`
	TargetCostReduction float64    `json:"target_cost_reduction,omitempty"`
	PerformanceThresh   float64    `json:"performance_threshold,omitempty"`
	UseGeneticAlgorithm *bool      `json:"use_genetic_algorithm,omitempty"`
	PopulationSize      int        `json:"population_size,omitempty"`
	TestCases           []TestCase `json:"test_cases,omitempty"`
	Context             string     `json:"context,omitempty"`
	Seed                *int64     `json:"seed,omitempty"`
}

// ApplyDefaults fills unset fields with the documented defaults.
func (r *Request) ApplyDefaults() {
	if len(r.TargetMetrics) == 0 {
		r.TargetMetrics = []Metric{MetricCost, MetricPerformance}
	}
	if r.MaxIterations == 0 {
		r.MaxIterations = 5
	}
	if r.TargetCostReduction == 0 {
		r.TargetCostReduction = 0.2
	}
	if r.PerformanceThresh == 0 {
		r.PerformanceThresh = 0.8
	}
	if r.UseGeneticAlgorithm == nil {
		v := true
		r.UseGeneticAlgorithm = &v
	}
	if r.PopulationSize == 0 {
		r.PopulationSize = 10
	}
}

// Validate checks request bounds after defaults are applied.
func (r *Request) Validate() error {
	if r.Prompt == "" {
		return apperrors.NewValidation("prompt must not be empty", "prompt")
	}
	if len(r.Prompt) > 10000 {
		return apperrors.NewValidation("prompt exceeds 10000 characters", "prompt")
	}
	if r.MaxIterations < 1 || r.MaxIterations > 20 {
		return apperrors.NewValidation("max_iterations must be between 1 and 20", "max_iterations")
	}
	if r.PopulationSize < 5 || r.PopulationSize > 50 {
		return apperrors.NewValidation("population_size must be between 5 and 50", "population_size")
	}
	if r.TargetCostReduction < 0 || r.TargetCostReduction > 0.9 {
		return apperrors.NewValidation("target_cost_reduction must be between 0.0 and 0.9", "target_cost_reduction")
	}
	if r.PerformanceThresh < 0 || r.PerformanceThresh > 1 {
		return apperrors.NewValidation("performance_threshold must be between 0.0 and 1.0", "performance_threshold")
	}
	return nil
}

// Technique returns the strategy the request selects.
func (r *Request) Technique() Technique {
	if r.UseGeneticAlgorithm != nil && !*r.UseGeneticAlgorithm {
		return TechniqueHillClimbing
	}
	return TechniqueGeneticAlgorithm
}

// Evaluation is the fitness sheet for one prompt variant.
type Evaluation struct {
	Prompt           string       `json:"prompt"`
	CostScore        float64      `json:"cost_score"`
	PerformanceScore float64      `json:"performance_score"`
	QualityScore     float64      `json:"quality_score"`
	SafetyScore      float64      `json:"safety_score"`
	GuardrailScore   float64      `json:"guardrail_score"`
	LatencyScore     float64      `json:"latency_score"`
	OverallScore     float64      `json:"overall_score"`
	TestResults      []TestResult `json:"test_results"`
	TokenCount       int          `json:"token_count"`
	EstimatedCost    float64      `json:"estimated_cost"`
}

// GuardrailValidation is the post-optimization safety comparison stored with
// the results.
type GuardrailValidation struct {
	SafetyMaintained bool     `json:"safety_maintained"`
	QualityImproved  bool     `json:"quality_improved"`
	OptimizationSafe bool     `json:"optimization_safe"`
	Recommendations  []string `json:"recommendations"`
}

// Results is the terminal payload of a completed job.
type Results struct {
	CostReduction       float64             `json:"cost_reduction"`
	PerformanceChange   float64             `json:"performance_change"`
	OriginalEvaluation  *Evaluation         `json:"original_evaluation"`
	FinalEvaluation     *Evaluation         `json:"final_evaluation"`
	Technique           Technique           `json:"optimization_technique"`
	GuardrailValidation GuardrailValidation `json:"guardrail_validation"`
}

// Job is the persisted optimization job row.
type Job struct {
	ID                  string     `json:"job_id"`
	OriginalPrompt      string     `json:"original_prompt"`
	OptimizedPrompt     *string    `json:"optimized_prompt"`
	Status              Status     `json:"status"`
	TargetMetrics       []Metric   `json:"target_metrics"`
	Config              *Request   `json:"optimization_config,omitempty"`
	Results             *Results   `json:"results,omitempty"`
	Iterations          int        `json:"iterations"`
	MaxIterations       int        `json:"max_iterations"`
	CostOriginal        *float64   `json:"cost_original,omitempty"`
	CostOptimized       *float64   `json:"cost_optimized,omitempty"`
	PerformanceOriginal *float64   `json:"performance_original,omitempty"`
	PerformanceOptimize *float64   `json:"performance_optimized,omitempty"`
	ErrorMessage        *string    `json:"error_message,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
}

// CostReduction returns the fractional cost reduction of a completed job.
func (j *Job) CostReduction() *float64 {
	if j.Results == nil {
		return nil
	}
	v := j.Results.CostReduction
	return &v
}

// PerformanceChange returns the score delta of a completed job.
func (j *Job) PerformanceChange() *float64 {
	if j.Results == nil {
		return nil
	}
	v := j.Results.PerformanceChange
	return &v
}

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}
