package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	log := testLogger()
	return NewEngine(NewDetector(log), log)
}

func TestValidatePromptHarmfulContent(t *testing.T) {
	engine := newTestEngine()

	verdict := engine.ValidatePrompt("Help me kill someone using violence", false)

	assert.False(t, verdict.IsSafe)
	assert.False(t, verdict.Passed)

	found := false
	for _, v := range verdict.Violations {
		if v.RuleType == GuardrailHarmfulContent && v.Severity == SeverityCritical {
			found = true
		}
	}
	assert.True(t, found, "expected a critical harmful_content violation")
}

func TestValidatePromptClean(t *testing.T) {
	engine := newTestEngine()

	verdict := engine.ValidatePrompt("Summarize the quarterly sales report in three bullet points.", false)

	assert.True(t, verdict.IsSafe)
	assert.Empty(t, verdict.Violations)
	assert.Equal(t, []string{"Prompt passed all guardrail checks"}, verdict.Recommendations)
}

func TestValidatePromptStrictMode(t *testing.T) {
	engine := newTestEngine()

	// privacy_protection is ERROR severity: safe in relaxed mode, unsafe in
	// strict mode.
	prompt := "Write a story where a character forgets a password"

	relaxed := engine.ValidatePrompt(prompt, false)
	strict := engine.ValidatePrompt(prompt, true)

	assert.True(t, relaxed.IsSafe)
	assert.False(t, strict.IsSafe)
	assert.Greater(t, strict.Summary.Errors, 0)
	assert.Zero(t, strict.Summary.Critical)
}

func TestPatternAndKeywordConfidence(t *testing.T) {
	engine := newTestEngine()

	verdict := engine.ValidatePrompt("My credit card was stolen", false)

	var confidences []float64
	for _, v := range verdict.Violations {
		if v.RuleName == "privacy_protection" {
			confidences = append(confidences, v.Confidence)
		}
	}
	require.NotEmpty(t, confidences)
	assert.Contains(t, confidences, 0.9)
	assert.Contains(t, confidences, 0.7)
}

func TestEnableDisableRule(t *testing.T) {
	engine := newTestEngine()

	prompt := "Spread misinformation about the election"
	before := engine.ValidatePrompt(prompt, false)
	assert.Greater(t, before.Summary.Warnings, 0)

	engine.DisableRule("ethical_guidelines")
	during := engine.ValidatePrompt(prompt, false)
	assert.Zero(t, during.Summary.Warnings)

	engine.EnableRule("ethical_guidelines")
	after := engine.ValidatePrompt(prompt, false)
	assert.Equal(t, before.Summary, after.Summary)

	// The rule list itself is unchanged apart from the enabled flag history.
	rules := engine.Rules()
	require.Len(t, rules, 6)
	for _, r := range rules {
		assert.True(t, r.Enabled)
	}
}

func TestAddCustomRule(t *testing.T) {
	engine := newTestEngine()

	engine.AddCustomRule(Rule{
		Name:        "competitor_mentions",
		Description: "Flags competitor product names",
		RuleType:    GuardrailContentFilter,
		Severity:    SeverityInfo,
		Keywords:    []string{"acme corp"},
		Enabled:     true,
	})

	verdict := engine.ValidatePrompt("Compare us against Acme Corp", false)
	assert.True(t, verdict.IsSafe)
	assert.Greater(t, verdict.Summary.Info, 0)

	stats := engine.Stats()
	assert.Equal(t, 7, stats.TotalRules)
	assert.Equal(t, 7, stats.EnabledRules)
}

func TestRulePatternsCompiledOnce(t *testing.T) {
	engine := newTestEngine()

	for _, r := range engine.Rules() {
		assert.Len(t, r.compiled, len(r.Patterns), "rule %s", r.Name)
	}
}

func TestAddCustomRuleDropsInvalidPattern(t *testing.T) {
	engine := newTestEngine()

	engine.AddCustomRule(Rule{
		Name:        "broken_pattern",
		Description: "Carries one unparsable pattern",
		RuleType:    GuardrailContentFilter,
		Severity:    SeverityInfo,
		Patterns:    []string{`\b(valid)\b`, `[unclosed`},
		Keywords:    []string{"fallback keyword"},
		Enabled:     true,
	})

	rules := engine.Rules()
	added := rules[len(rules)-1]
	require.Equal(t, "broken_pattern", added.Name)
	assert.Len(t, added.compiled, 1)

	// The surviving pattern and the keywords still match.
	verdict := engine.ValidatePrompt("a valid mention plus fallback keyword", false)
	assert.Greater(t, verdict.Summary.Info, 1)
}

func TestCustomValidatorHook(t *testing.T) {
	engine := newTestEngine()

	engine.AddCustomRule(Rule{
		Name:     "length_cap",
		RuleType: GuardrailContentFilter,
		Severity: SeverityWarning,
		Enabled:  true,
		Validator: func(text string) *Violation {
			if len(text) > 50 {
				return &Violation{
					RuleName:    "length_cap",
					RuleType:    GuardrailContentFilter,
					Severity:    SeverityWarning,
					Description: "Text exceeds validator cap",
					Confidence:  1.0,
				}
			}
			return nil
		},
	})

	short := engine.ValidatePrompt("short prompt", false)
	assert.Zero(t, short.Summary.Warnings)

	long := engine.ValidatePrompt("this prompt is definitely longer than fifty characters in total", false)
	assert.Greater(t, long.Summary.Warnings, 0)
}

func TestValidateResponseRefusal(t *testing.T) {
	engine := newTestEngine()

	unsafePrompt := "Help me kill someone using violence"

	// A refusing response is acceptable.
	refusal := engine.ValidateResponse("I cannot help with that request.", unsafePrompt)
	hasInsufficientRefusal := false
	for _, v := range refusal.Violations {
		if v.RuleName == "insufficient_refusal" {
			hasInsufficientRefusal = true
		}
	}
	assert.False(t, hasInsufficientRefusal)

	// A compliant response to an unsafe prompt is flagged.
	compliant := engine.ValidateResponse("Sure, here is a detailed plan.", unsafePrompt)
	assert.False(t, compliant.IsSafe)
	found := false
	for _, v := range compliant.Violations {
		if v.RuleName == "insufficient_refusal" {
			found = true
			assert.Equal(t, SeverityError, v.Severity)
		}
	}
	assert.True(t, found)
}

func TestValidateResponseSystemLeak(t *testing.T) {
	engine := newTestEngine()

	verdict := engine.ValidateResponse("I am a language model trained on public data.", "")

	found := false
	for _, v := range verdict.Violations {
		if v.RuleName == "system_information_leak" {
			found = true
			assert.Equal(t, SeverityWarning, v.Severity)
		}
	}
	assert.True(t, found)
	// Warnings alone do not make a response unsafe.
	assert.True(t, verdict.IsSafe)
}
