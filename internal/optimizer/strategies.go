package optimizer

import (
	"context"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// evalFunc scores one variant. Strategies are written against this so tests
// can drive them with synthetic fitness landscapes.
type evalFunc func(ctx context.Context, prompt string) *Evaluation

// searchOutcome is what a strategy hands back to the job runner.
type searchOutcome struct {
	BestPrompt     string
	BestEvaluation *Evaluation
	Iterations     int
}

// geneticSearch evolves a population seeded with the original prompt. The
// best variant ever seen is tracked across generations; there is no early
// stop. Cancellation is honored at generation boundaries.
func geneticSearch(
	ctx context.Context,
	rng *rand.Rand,
	original string,
	originalEval *Evaluation,
	req *Request,
	eval evalFunc,
	log *logrus.Entry,
) (*searchOutcome, error) {
	population := initialPopulation(rng, original, req.PopulationSize)

	bestPrompt := original
	bestEval := originalEval
	iterations := 0

	for generation := 0; generation < req.MaxIterations; generation++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		evaluations := make([]*Evaluation, len(population))
		for i, prompt := range population {
			evaluations[i] = eval(ctx, prompt)
		}

		// Earliest index wins ties.
		bestIdx := 0
		for i, e := range evaluations {
			if e.OverallScore > evaluations[bestIdx].OverallScore {
				bestIdx = i
			}
		}
		if evaluations[bestIdx].OverallScore > bestEval.OverallScore {
			bestPrompt = population[bestIdx]
			bestEval = evaluations[bestIdx]
		}

		population = evolve(rng, population, evaluations)
		iterations = generation + 1

		log.WithFields(logrus.Fields{
			"generation": generation,
			"best_score": bestEval.OverallScore,
		}).Debug("Generation completed")
	}

	return &searchOutcome{BestPrompt: bestPrompt, BestEvaluation: bestEval, Iterations: iterations}, nil
}

// hillClimb evaluates five neighbors per iteration and moves only on strict
// improvement, stopping otherwise.
func hillClimb(
	ctx context.Context,
	rng *rand.Rand,
	original string,
	originalEval *Evaluation,
	req *Request,
	eval evalFunc,
	log *logrus.Entry,
) (*searchOutcome, error) {
	currentPrompt := original
	currentEval := originalEval
	iterations := 0

	for iteration := 0; iteration < req.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bestNeighbor := currentPrompt
		bestNeighborEval := currentEval
		for _, neighbor := range Neighbors(rng, currentPrompt, 5) {
			evaluation := eval(ctx, neighbor)
			if evaluation.OverallScore > bestNeighborEval.OverallScore {
				bestNeighbor = neighbor
				bestNeighborEval = evaluation
			}
		}

		if bestNeighborEval.OverallScore <= currentEval.OverallScore {
			break
		}

		currentPrompt = bestNeighbor
		currentEval = bestNeighborEval
		iterations = iteration + 1

		log.WithFields(logrus.Fields{
			"iteration": iteration,
			"score":     currentEval.OverallScore,
		}).Debug("Hill climbing iteration")
	}

	return &searchOutcome{BestPrompt: currentPrompt, BestEvaluation: currentEval, Iterations: iterations}, nil
}

// initialPopulation is the original prompt plus size-1 mutants.
func initialPopulation(rng *rand.Rand, original string, size int) []string {
	population := make([]string, 0, size)
	population = append(population, original)
	for i := 1; i < size; i++ {
		population = append(population, Mutate(rng, original))
	}
	return population
}

// evolve produces the next generation via tournament selection, sentence
// crossover, and low-probability mutation.
func evolve(rng *rand.Rand, population []string, evaluations []*Evaluation) []string {
	selected := make([]string, 0, len(population))
	for range population {
		selected = append(selected, tournament(rng, population, evaluations, 3))
	}

	next := make([]string, 0, len(population))
	for i := 0; i < len(selected); i += 2 {
		parent1 := selected[i]
		parent2 := selected[0]
		if i+1 < len(selected) {
			parent2 = selected[i+1]
		}

		child1, child2 := parent1, parent2
		if rng.Float64() < 0.8 {
			child1, child2 = Crossover(rng, parent1, parent2)
		}
		if rng.Float64() < 0.1 {
			child1 = Mutate(rng, child1)
		}
		if rng.Float64() < 0.1 {
			child2 = Mutate(rng, child2)
		}

		next = append(next, child1, child2)
	}

	return next[:len(population)]
}

// tournament samples size distinct candidates and returns the fittest.
func tournament(rng *rand.Rand, population []string, evaluations []*Evaluation, size int) string {
	if size > len(population) {
		size = len(population)
	}

	indices := rng.Perm(len(population))[:size]
	winner := indices[0]
	for _, idx := range indices[1:] {
		if evaluations[idx].OverallScore > evaluations[winner].OverallScore {
			winner = idx
		}
	}
	return population[winner]
}
