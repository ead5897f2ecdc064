package security

import (
	"context"

	"github.com/sirupsen/logrus"
)

// ExternalValidator is an optional extra validation layer probed at startup.
// Implementations wrap third-party content validation services; absence of a
// validator degrades the enhanced engine to custom rules only.
type ExternalValidator interface {
	Name() string
	Validate(ctx context.Context, text string) (passed bool, detail string, err error)
}

// EnhancedResult combines custom-rule and external validation outcomes.
type EnhancedResult struct {
	IsSafe          bool             `json:"is_safe"`
	Passed          bool             `json:"passed"`
	Violations      []Violation      `json:"violations"`
	CustomResult    *Verdict         `json:"custom_result,omitempty"`
	ExternalPassed  *bool            `json:"external_passed,omitempty"`
	Recommendations []string         `json:"recommendations"`
	Summary         map[string]int   `json:"summary"`
}

// EnhancedEngine layers an optional external validator on top of the
// rule engine. The combined verdict is safe only when both layers pass.
type EnhancedEngine struct {
	engine    *Engine
	external  ExternalValidator
	logger    *logrus.Logger
}

// NewEnhancedEngine wires the engine with an optional external validator.
// Pass nil when no validator is configured.
func NewEnhancedEngine(engine *Engine, external ExternalValidator, logger *logrus.Logger) *EnhancedEngine {
	e := &EnhancedEngine{engine: engine, external: external, logger: logger}
	if external == nil {
		logger.Warn("External validator not available, using custom rules only")
	} else {
		logger.WithField("validator", external.Name()).Info("External validator enabled")
	}
	return e
}

// Engine exposes the underlying rule engine for rule management endpoints.
func (e *EnhancedEngine) Engine() *Engine {
	return e.engine
}

// ValidatePrompt runs custom validation and, when available, the external
// validator. A failed external check appends one synthetic ERROR violation.
func (e *EnhancedEngine) ValidatePrompt(ctx context.Context, prompt string) EnhancedResult {
	custom := e.engine.ValidatePrompt(prompt, false)
	return e.combine(ctx, prompt, custom)
}

// ValidateResponse runs response validation through both layers.
func (e *EnhancedEngine) ValidateResponse(ctx context.Context, response, originalPrompt string) EnhancedResult {
	custom := e.engine.ValidateResponse(response, originalPrompt)
	return e.combine(ctx, response, custom)
}

var dangerousCodePatterns = []string{
	`import\s+os.*system`,
	`subprocess\.(call|run|Popen)`,
	`eval\s*\(`,
	`exec\s*\(`,
	`__import__`,
	`open\s*\([^)]*["']w["']`,
	`rm\s+-rf`,
	`del\s+.*\*`,
}

var dangerousCodeRegexps = compileAll(dangerousCodePatterns)

// ValidateCodeGeneration validates a code-generation prompt plus its output.
// Any dangerous pattern in the code produces an ERROR violation of category
// code_safety; the combined result is safe only when the prompt passed and no
// code violation was found.
func (e *EnhancedEngine) ValidateCodeGeneration(ctx context.Context, prompt, generatedCode, language string) EnhancedResult {
	promptResult := e.ValidatePrompt(ctx, prompt)

	var codeViolations []Violation
	for i, re := range dangerousCodeRegexps {
		if re.MatchString(generatedCode) {
			codeViolations = append(codeViolations, Violation{
				RuleName:       "dangerous_code_pattern",
				RuleType:       GuardrailCodeSafety,
				Severity:       SeverityError,
				Description:    "Potentially dangerous code pattern detected: " + dangerousCodePatterns[i],
				MatchedText:    dangerousCodePatterns[i],
				Confidence:     0.9,
				Recommendation: "Review and sanitize the generated code",
			})
		}
	}

	all := append(append([]Violation{}, promptResult.Violations...), codeViolations...)
	isSafe := promptResult.IsSafe && len(codeViolations) == 0

	return EnhancedResult{
		IsSafe:          isSafe,
		Passed:          isSafe,
		Violations:      all,
		Recommendations: append(append([]string{}, promptResult.Recommendations...), "Review generated code for security issues"),
		Summary: map[string]int{
			"total_violations":  len(all),
			"prompt_violations": len(promptResult.Violations),
			"code_violations":   len(codeViolations),
		},
	}
}

// ValidateOptimizationRequest compares an original prompt with its optimized
// form. Quality improvement is judged by raw violation counts.
func (e *EnhancedEngine) ValidateOptimizationRequest(ctx context.Context, original, optimized string) OptimizationCheck {
	originalResult := e.ValidatePrompt(ctx, original)
	optimizedResult := e.ValidatePrompt(ctx, optimized)

	safetyMaintained := optimizedResult.IsSafe || !originalResult.IsSafe
	qualityImproved := len(optimizedResult.Violations) <= len(originalResult.Violations)

	recommendations := append([]string{}, optimizedResult.Recommendations...)
	if !safetyMaintained {
		recommendations = append(recommendations,
			"Optimization introduced new safety violations; revert to the original prompt")
	}

	return OptimizationCheck{
		OriginalSafe:     originalResult.IsSafe,
		OptimizedSafe:    optimizedResult.IsSafe,
		SafetyMaintained: safetyMaintained,
		QualityImproved:  qualityImproved,
		OptimizationSafe: safetyMaintained && optimizedResult.IsSafe,
		Original:         enhancedToVerdict(originalResult),
		Optimized:        enhancedToVerdict(optimizedResult),
		Recommendations:  recommendations,
	}
}

// Capabilities reports which layers are active.
func (e *EnhancedEngine) Capabilities() Capabilities {
	ext := e.external != nil
	return Capabilities{
		InjectionDetection: true,
		CustomRules:        true,
		ExternalValidation: ext,
		ToxicityDetection:  ext,
		CodeValidation:     true,
	}
}

func (e *EnhancedEngine) combine(ctx context.Context, text string, custom Verdict) EnhancedResult {
	violations := append([]Violation{}, custom.Violations...)
	recommendations := append([]string{}, custom.Recommendations...)

	externalSafe := true
	var externalPassed *bool

	if e.external != nil {
		passed, detail, err := e.external.Validate(ctx, text)
		if err != nil {
			e.logger.WithError(err).Error("External validation failed")
			passed = false
			detail = err.Error()
		}
		externalPassed = &passed
		externalSafe = passed
		if !passed {
			violations = append(violations, Violation{
				RuleName:       "external_validation",
				RuleType:       GuardrailExternalValidation,
				Severity:       SeverityError,
				Description:    "External validation failed",
				MatchedText:    detail,
				Confidence:     0.9,
				Recommendation: "Review content for policy violations",
			})
			recommendations = append(recommendations, "Content failed external validation checks")
		}
	}

	overallSafe := custom.IsSafe && externalSafe
	externalViolations := 0
	if !externalSafe {
		externalViolations = 1
	}

	return EnhancedResult{
		IsSafe:          overallSafe,
		Passed:          overallSafe,
		Violations:      violations,
		CustomResult:    &custom,
		ExternalPassed:  externalPassed,
		Recommendations: recommendations,
		Summary: map[string]int{
			"total_violations":    len(violations),
			"custom_violations":   len(custom.Violations),
			"external_violations": externalViolations,
		},
	}
}

func enhancedToVerdict(r EnhancedResult) Verdict {
	return Verdict{
		IsSafe:          r.IsSafe,
		Passed:          r.Passed,
		Violations:      nonNil(r.Violations),
		Summary:         summarize(r.Violations),
		Recommendations: r.Recommendations,
	}
}
