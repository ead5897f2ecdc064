package optimizer

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// lengthFitness prefers shorter prompts, a stand-in for cost pressure.
func lengthFitness(_ context.Context, prompt string) *Evaluation {
	score := 1.0 - float64(len(prompt))/1000
	if score < 0 {
		score = 0
	}
	return &Evaluation{Prompt: prompt, OverallScore: score, EstimatedCost: float64(len(prompt))}
}

func gaRequest(seed int64) *Request {
	useGA := true
	return &Request{
		Prompt:              "Please please summarize this very very long document. Utilize simple words. Be brief",
		MaxIterations:       3,
		PopulationSize:      6,
		UseGeneticAlgorithm: &useGA,
		Seed:                &seed,
	}
}

func TestGeneticSearchNeverRegresses(t *testing.T) {
	req := gaRequest(42)
	original := req.Prompt
	originalEval := lengthFitness(context.Background(), original)

	outcome, err := geneticSearch(context.Background(), newRand(42), original, originalEval, req, lengthFitness, testEntry())

	require.NoError(t, err)
	assert.GreaterOrEqual(t, outcome.BestEvaluation.OverallScore, originalEval.OverallScore)
	assert.Equal(t, req.MaxIterations, outcome.Iterations)
	assert.NotEmpty(t, outcome.BestPrompt)
}

func TestGeneticSearchDeterministicWithSeed(t *testing.T) {
	req := gaRequest(7)
	originalEval := lengthFitness(context.Background(), req.Prompt)

	first, err := geneticSearch(context.Background(), newRand(7), req.Prompt, originalEval, req, lengthFitness, testEntry())
	require.NoError(t, err)
	second, err := geneticSearch(context.Background(), newRand(7), req.Prompt, originalEval, req, lengthFitness, testEntry())
	require.NoError(t, err)

	assert.Equal(t, first.BestPrompt, second.BestPrompt)
	assert.Equal(t, first.BestEvaluation.OverallScore, second.BestEvaluation.OverallScore)
}

func TestGeneticSearchHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := gaRequest(1)
	originalEval := lengthFitness(context.Background(), req.Prompt)

	_, err := geneticSearch(ctx, newRand(1), req.Prompt, originalEval, req, lengthFitness, testEntry())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHillClimbMovesOnImprovement(t *testing.T) {
	// Every evaluation scores higher than the last, so each iteration finds
	// a better neighbor and the climb runs to the iteration cap.
	calls := 0
	rising := func(_ context.Context, prompt string) *Evaluation {
		calls++
		return &Evaluation{Prompt: prompt, OverallScore: float64(calls) * 0.01}
	}

	req := &Request{
		Prompt:        "Summarize the quarterly report. Focus on revenue",
		MaxIterations: 3,
	}
	originalEval := &Evaluation{Prompt: req.Prompt, OverallScore: 0}

	outcome, err := hillClimb(context.Background(), newRand(3), req.Prompt, originalEval, req, rising, testEntry())

	require.NoError(t, err)
	assert.Equal(t, req.MaxIterations, outcome.Iterations)
	assert.Greater(t, outcome.BestEvaluation.OverallScore, originalEval.OverallScore)
	// Five neighbors per iteration.
	assert.Equal(t, 15, calls)
}

func TestHillClimbStopsWithoutImprovement(t *testing.T) {
	flat := func(_ context.Context, prompt string) *Evaluation {
		return &Evaluation{Prompt: prompt, OverallScore: 0.5}
	}

	req := &Request{Prompt: "Anything at all. Truly anything", MaxIterations: 10}
	originalEval := flat(context.Background(), req.Prompt)

	outcome, err := hillClimb(context.Background(), newRand(1), req.Prompt, originalEval, req, flat, testEntry())

	require.NoError(t, err)
	assert.Equal(t, req.Prompt, outcome.BestPrompt)
	assert.Zero(t, outcome.Iterations)
}

func TestInitialPopulation(t *testing.T) {
	population := initialPopulation(newRand(1), "Original prompt. With two sentences", 6)

	require.Len(t, population, 6)
	assert.Equal(t, "Original prompt. With two sentences", population[0])
	for _, p := range population {
		assert.NotEmpty(t, p)
	}
}

func TestEvolvePreservesPopulationSize(t *testing.T) {
	population := []string{
		"A one. A two. A three",
		"B one. B two. B three",
		"C one. C two. C three",
		"D one. D two. D three",
		"E one. E two. E three",
	}
	evaluations := make([]*Evaluation, len(population))
	for i := range population {
		evaluations[i] = &Evaluation{OverallScore: float64(i) / 10}
	}

	next := evolve(newRand(9), population, evaluations)
	assert.Len(t, next, len(population))
}

func TestTournamentPicksFittestOfSample(t *testing.T) {
	population := []string{"worst", "middle", "best"}
	evaluations := []*Evaluation{
		{OverallScore: 0.1},
		{OverallScore: 0.5},
		{OverallScore: 0.9},
	}

	// Tournament size equals the population, so the winner is always the
	// global best.
	winner := tournament(newRand(4), population, evaluations, 3)
	assert.Equal(t, "best", winner)
}
