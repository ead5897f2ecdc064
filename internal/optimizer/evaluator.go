package optimizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"digital.vasic.promptforge/internal/analyzer"
	"digital.vasic.promptforge/internal/config"
	"digital.vasic.promptforge/internal/cost"
	"digital.vasic.promptforge/internal/llm"
	"digital.vasic.promptforge/internal/security"
)

// Fitness weights. They sum to 1.
const (
	weightCost        = 0.25
	weightPerformance = 0.25
	weightQuality     = 0.15
	weightSafety      = 0.10
	weightGuardrail   = 0.15
	weightLatency     = 0.10
)

// Generator is the slice of the LLM facade the evaluator needs for trial
// calls.
type Generator interface {
	Generate(ctx context.Context, prompt string, hint config.Provider) (*llm.GenerationResult, error)
}

// Evaluator scores prompt variants.
type Evaluator struct {
	analyzer   *analyzer.Analyzer
	calculator *cost.Calculator
	guardrails *security.Engine
	generator  Generator
	provider   config.Provider
	log        *logrus.Logger
}

// NewEvaluator wires the evaluator. generator may be nil when no backend is
// available; test cases then report failures instead of outputs.
func NewEvaluator(
	a *analyzer.Analyzer,
	calc *cost.Calculator,
	guardrails *security.Engine,
	generator Generator,
	provider config.Provider,
	log *logrus.Logger,
) *Evaluator {
	return &Evaluator{
		analyzer:   a,
		calculator: calc,
		guardrails: guardrails,
		generator:  generator,
		provider:   provider,
		log:        log,
	}
}

// Evaluate computes the fitness sheet for one prompt. At most five test
// cases run; each is display-only and cannot fail the evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, prompt string, testCases []TestCase) *Evaluation {
	verdict := e.guardrails.ValidatePrompt(prompt, false)
	guardrailScore := 0.0
	if verdict.IsSafe {
		guardrailScore = 1.0
	}

	analysis := e.analyzer.Analyze(prompt)
	estimatedCost := e.calculator.Calculate(analysis.TokenCount, e.provider, "")

	testResults := e.runTestCases(ctx, prompt, testCases)

	costScore := 1 - estimatedCost/0.01
	if costScore < 0 {
		costScore = 0
	}
	latencyScore := 1 - float64(analysis.TokenCount)/2000
	if latencyScore < 0 {
		latencyScore = 0
	}

	overall := costScore*weightCost +
		analysis.ClarityScore*weightPerformance +
		analysis.QualityScore*weightQuality +
		analysis.SafetyScore*weightSafety +
		guardrailScore*weightGuardrail +
		latencyScore*weightLatency

	return &Evaluation{
		Prompt:           prompt,
		CostScore:        costScore,
		PerformanceScore: analysis.ClarityScore,
		QualityScore:     analysis.QualityScore,
		SafetyScore:      analysis.SafetyScore,
		GuardrailScore:   guardrailScore,
		LatencyScore:     latencyScore,
		OverallScore:     overall,
		TestResults:      testResults,
		TokenCount:       analysis.TokenCount,
		EstimatedCost:    estimatedCost,
	}
}

func (e *Evaluator) runTestCases(ctx context.Context, prompt string, testCases []TestCase) []TestResult {
	results := []TestResult{}
	if len(testCases) == 0 {
		return results
	}

	limit := len(testCases)
	if limit > 5 {
		limit = 5
	}

	for _, tc := range testCases[:limit] {
		rendered := renderVariables(prompt, tc.Variables)

		if e.generator == nil {
			results = append(results, TestResult{
				Input:   tc,
				Error:   "no LLM provider available",
				Success: false,
			})
			continue
		}

		result, err := e.generator.Generate(ctx, rendered, e.provider)
		if err != nil {
			e.log.WithError(err).Debug("Test case generation failed")
			results = append(results, TestResult{
				Input:   tc,
				Error:   err.Error(),
				Success: false,
			})
			continue
		}

		results = append(results, TestResult{
			Input:   tc,
			Output:  result.Text,
			Success: true,
		})
	}

	return results
}

// renderVariables substitutes {name} placeholders. Unknown placeholders stay
// as written; trial rendering is best effort.
func renderVariables(prompt string, variables map[string]interface{}) string {
	rendered := prompt
	for name, value := range variables {
		rendered = strings.ReplaceAll(rendered, "{"+name+"}", fmt.Sprint(value))
	}
	return rendered
}
