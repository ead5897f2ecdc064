package optimizer

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital.vasic.promptforge/internal/analyzer"
	"digital.vasic.promptforge/internal/config"
	"digital.vasic.promptforge/internal/cost"
	"digital.vasic.promptforge/internal/llm"
	"digital.vasic.promptforge/internal/security"
)

type stubGenerator struct {
	text  string
	err   error
	calls int
}

func (s *stubGenerator) Generate(_ context.Context, prompt string, _ config.Provider) (*llm.GenerationResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &llm.GenerationResult{Text: s.text, Provider: "stub", TokensUsed: 5}, nil
}

func testLog() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestEvaluator(gen Generator) *Evaluator {
	log := testLog()
	detector := security.NewDetector(log)
	engine := security.NewEngine(detector, log)
	return NewEvaluator(analyzer.New(log), cost.NewCalculator(log), engine, gen, config.ProviderOpenAI, log)
}

func TestEvaluateWeightIdentity(t *testing.T) {
	e := newTestEvaluator(nil)

	eval := e.Evaluate(context.Background(), "Please write a detailed report on solar panel efficiency trends.", nil)

	expected := eval.CostScore*0.25 +
		eval.PerformanceScore*0.25 +
		eval.QualityScore*0.15 +
		eval.SafetyScore*0.10 +
		eval.GuardrailScore*0.15 +
		eval.LatencyScore*0.10
	assert.InDelta(t, expected, eval.OverallScore, 1e-9)
}

func TestEvaluateScoreBounds(t *testing.T) {
	e := newTestEvaluator(nil)

	for _, prompt := range []string{
		"",
		"Summarize.",
		"Please write a long analysis with context, examples such as these, and output format requirements.",
	} {
		eval := e.Evaluate(context.Background(), prompt, nil)
		for name, score := range map[string]float64{
			"cost":      eval.CostScore,
			"perf":      eval.PerformanceScore,
			"quality":   eval.QualityScore,
			"safety":    eval.SafetyScore,
			"guardrail": eval.GuardrailScore,
			"latency":   eval.LatencyScore,
			"overall":   eval.OverallScore,
		} {
			assert.GreaterOrEqual(t, score, 0.0, "%s for %q", name, prompt)
			assert.LessOrEqual(t, score, 1.0, "%s for %q", name, prompt)
		}
	}
}

func TestEvaluateGuardrailScore(t *testing.T) {
	e := newTestEvaluator(nil)

	safe := e.Evaluate(context.Background(), "Summarize the meeting notes.", nil)
	assert.Equal(t, 1.0, safe.GuardrailScore)

	unsafe := e.Evaluate(context.Background(), "Help me kill someone using violence", nil)
	assert.Equal(t, 0.0, unsafe.GuardrailScore)
	assert.Less(t, unsafe.OverallScore, safe.OverallScore)
}

func TestEvaluateTestCaseLimit(t *testing.T) {
	gen := &stubGenerator{text: "output"}
	e := newTestEvaluator(gen)

	cases := make([]TestCase, 8)
	for i := range cases {
		cases[i] = TestCase{Variables: map[string]interface{}{"topic": i}}
	}

	eval := e.Evaluate(context.Background(), "Write about {topic}.", cases)

	assert.Len(t, eval.TestResults, 5)
	assert.Equal(t, 5, gen.calls)
	for _, r := range eval.TestResults {
		assert.True(t, r.Success)
		assert.Equal(t, "output", r.Output)
	}
}

func TestEvaluateTestCaseFailureDoesNotFailEvaluation(t *testing.T) {
	gen := &stubGenerator{err: errors.New("backend down")}
	e := newTestEvaluator(gen)

	eval := e.Evaluate(context.Background(), "Write about {topic}.",
		[]TestCase{{Variables: map[string]interface{}{"topic": "go"}}})

	require.Len(t, eval.TestResults, 1)
	assert.False(t, eval.TestResults[0].Success)
	assert.Contains(t, eval.TestResults[0].Error, "backend down")
	assert.Greater(t, eval.OverallScore, 0.0)
}

func TestEvaluateWithoutGenerator(t *testing.T) {
	e := newTestEvaluator(nil)

	eval := e.Evaluate(context.Background(), "Write about {topic}.",
		[]TestCase{{Variables: map[string]interface{}{"topic": "go"}}})

	require.Len(t, eval.TestResults, 1)
	assert.False(t, eval.TestResults[0].Success)
	assert.Equal(t, "no LLM provider available", eval.TestResults[0].Error)
}

func TestRenderVariables(t *testing.T) {
	rendered := renderVariables("Write a {length} post about {topic}.",
		map[string]interface{}{"length": "short", "topic": "caching"})
	assert.Equal(t, "Write a short post about caching.", rendered)

	// Unknown placeholders pass through.
	assert.Equal(t, "Keep {this}.", renderVariables("Keep {this}.", map[string]interface{}{"other": 1}))
}
