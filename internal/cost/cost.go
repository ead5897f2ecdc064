// Package cost maps token counts to monetary cost using a static per-provider
// rate table. The table is immutable after construction.
package cost

import (
	"math"

	"github.com/sirupsen/logrus"

	"digital.vasic.promptforge/internal/config"
)

// modelRate pairs a model name with its cost per 1K tokens. The first entry
// of a provider's list is the default model.
type modelRate struct {
	Model string
	Rate  float64
}

// Calculator computes request costs and savings projections.
type Calculator struct {
	rates map[config.Provider][]modelRate
	log   *logrus.Logger
}

// NewCalculator builds the 2024-era rate table. Local models cost nothing.
func NewCalculator(log *logrus.Logger) *Calculator {
	return &Calculator{
		log: log,
		rates: map[config.Provider][]modelRate{
			config.ProviderOllama: {},
			config.ProviderOpenAI: {
				{"gpt-3.5-turbo", 0.002},
				{"gpt-4", 0.03},
				{"gpt-4-turbo", 0.01},
			},
			config.ProviderAnthropic: {
				{"claude-3-sonnet", 0.015},
				{"claude-3-haiku", 0.0025},
				{"claude-3-opus", 0.075},
			},
			config.ProviderBedrock: {
				{"anthropic.claude-v2", 0.008},
				{"anthropic.claude-instant-v1", 0.0016},
			},
		},
	}
}

// Providers returns the providers present in the rate table.
func (c *Calculator) Providers() []config.Provider {
	return []config.Provider{
		config.ProviderOllama,
		config.ProviderOpenAI,
		config.ProviderAnthropic,
		config.ProviderBedrock,
		config.ProviderHuggingFace,
	}
}

// Calculate returns the cost of tokenCount tokens on the given provider and
// model, rounded to six decimal places. An empty model picks the provider's
// default; an unknown model falls back to the default as well.
func (c *Calculator) Calculate(tokenCount int, provider config.Provider, model string) float64 {
	if provider == config.ProviderOllama {
		return 0.0
	}

	models, ok := c.rates[provider]
	if !ok || len(models) == 0 {
		c.log.WithField("provider", string(provider)).Warn("Unknown provider for cost calculation")
		return 0.0
	}

	rate := models[0].Rate
	for _, m := range models {
		if m.Model == model {
			rate = m.Rate
			break
		}
	}

	return round6(float64(tokenCount) / 1000 * rate)
}

// CompareProviders returns the default-model cost per provider.
func (c *Calculator) CompareProviders(tokenCount int) map[string]float64 {
	costs := make(map[string]float64, len(c.Providers()))
	for _, p := range c.Providers() {
		costs[string(p)] = c.Calculate(tokenCount, p, "")
	}
	return costs
}

// Savings is a savings projection for an optimized prompt.
type Savings struct {
	OriginalCostPerRequest   float64 `json:"original_cost_per_request"`
	OptimizedCostPerRequest  float64 `json:"optimized_cost_per_request"`
	SavingsPerRequest        float64 `json:"savings_per_request"`
	MonthlySavings           float64 `json:"monthly_savings"`
	YearlySavings            float64 `json:"yearly_savings"`
	PercentageSavings        float64 `json:"percentage_savings"`
	TokenReduction           int     `json:"token_reduction"`
	TokenReductionPercentage float64 `json:"token_reduction_percentage"`
}

// OptimizationSavings compares original and optimized token counts at a
// monthly request volume.
func (c *Calculator) OptimizationSavings(originalTokens, optimizedTokens int, provider config.Provider, monthlyRequests int, model string) Savings {
	original := c.Calculate(originalTokens, provider, model)
	optimized := c.Calculate(optimizedTokens, provider, model)

	perRequest := original - optimized
	monthly := perRequest * float64(monthlyRequests)

	var percentage float64
	if original > 0 {
		percentage = round2(perRequest / original * 100)
	}

	var tokenPct float64
	if originalTokens > 0 {
		tokenPct = round2(float64(originalTokens-optimizedTokens) / float64(originalTokens) * 100)
	}

	return Savings{
		OriginalCostPerRequest:   original,
		OptimizedCostPerRequest:  optimized,
		SavingsPerRequest:        perRequest,
		MonthlySavings:           monthly,
		YearlySavings:            monthly * 12,
		PercentageSavings:        percentage,
		TokenReduction:           originalTokens - optimizedTokens,
		TokenReductionPercentage: tokenPct,
	}
}

// Breakdown is a per-request cost decomposition.
type Breakdown struct {
	Provider        string  `json:"provider"`
	Model           string  `json:"model,omitempty"`
	TokenCount      int     `json:"token_count"`
	TotalCost       float64 `json:"total_cost"`
	CostPerToken    float64 `json:"cost_per_token"`
	CostPer1KTokens float64 `json:"cost_per_1k_tokens"`
	EstimatedWords  float64 `json:"estimated_words"`
	CostPerWord     float64 `json:"cost_per_word"`
}

// CostBreakdown details the cost of a single request.
func (c *Calculator) CostBreakdown(tokenCount int, provider config.Provider, model string) Breakdown {
	total := c.Calculate(tokenCount, provider, model)

	var perToken, perWord float64
	if tokenCount > 0 {
		perToken = total / float64(tokenCount)
		perWord = total / (float64(tokenCount) * 0.75)
	}

	return Breakdown{
		Provider:        string(provider),
		Model:           model,
		TokenCount:      tokenCount,
		TotalCost:       total,
		CostPerToken:    perToken,
		CostPer1KTokens: perToken * 1000,
		EstimatedWords:  float64(tokenCount) * 0.75,
		CostPerWord:     perWord,
	}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func round2(v float64) float64 {
	return math.Round(v*1e2) / 1e2
}
