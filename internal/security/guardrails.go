package security

import (
	"regexp"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Engine validates prompts and responses against an enable-able set of
// content guardrail rules. The rule list is process-global; mutation methods
// take the write lock so validation can run under concurrent readers.
type Engine struct {
	detector *Detector
	logger   *logrus.Logger

	mu      sync.RWMutex
	rules   []Rule
	enabled bool
}

// NewEngine creates an engine with the default six rules.
func NewEngine(detector *Detector, logger *logrus.Logger) *Engine {
	e := &Engine{
		detector: detector,
		logger:   logger,
		rules:    defaultRules(),
		enabled:  true,
	}
	for i := range e.rules {
		e.compileRule(&e.rules[i])
	}
	return e
}

// compileRule builds the case-insensitive matchers for a rule's patterns.
// Invalid patterns are logged and dropped so they cannot fail at match time.
func (e *Engine) compileRule(rule *Rule) {
	rule.compiled = rule.compiled[:0]
	for _, pattern := range rule.Patterns {
		re, err := regexp.Compile(`(?i)` + pattern)
		if err != nil {
			e.logger.WithError(err).WithField("rule_name", rule.Name).Error("Invalid guardrail pattern")
			continue
		}
		rule.compiled = append(rule.compiled, re)
	}
}

func defaultRules() []Rule {
	return []Rule{
		{
			Name:        "harmful_content_filter",
			Description: "Detects harmful, violent, or dangerous content",
			RuleType:    GuardrailHarmfulContent,
			Severity:    SeverityCritical,
			Patterns: []string{
				`\b(kill|murder|suicide|self-?harm|violence|weapon|bomb|explosive)\b`,
				`\b(hate|racism|discrimination|harassment|bullying)\b`,
				`\b(illegal|criminal|fraud|scam|theft|piracy)\b`,
			},
			Keywords: []string{
				"violence", "weapon", "bomb", "kill", "murder", "suicide", "self-harm",
				"hate", "racism", "discrimination", "harassment", "illegal", "criminal",
			},
			Enabled: true,
		},
		{
			Name:        "privacy_protection",
			Description: "Detects requests for personal information or privacy violations",
			RuleType:    GuardrailPrivacyViolation,
			Severity:    SeverityError,
			Patterns: []string{
				`\b(ssn|social security|credit card|password|api key|token)\b`,
				`\b(personal information|private data|confidential)\b`,
				`\b\d{3}-\d{2}-\d{4}\b`,
				`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`,
			},
			Keywords: []string{
				"personal information", "private data", "confidential", "password",
				"credit card", "ssn", "social security", "api key", "token",
			},
			Enabled: true,
		},
		{
			Name:        "ethical_guidelines",
			Description: "Enforces ethical AI usage guidelines",
			RuleType:    GuardrailEthicalViolation,
			Severity:    SeverityWarning,
			Patterns: []string{
				`\b(manipulate|deceive|trick|fool|mislead)\b`,
				`\b(fake news|misinformation|propaganda|conspiracy)\b`,
				`\b(cheat|plagiarize|academic dishonesty)\b`,
			},
			Keywords: []string{
				"manipulate", "deceive", "trick", "mislead", "fake news",
				"misinformation", "cheat", "plagiarize", "academic dishonesty",
			},
			Enabled: true,
		},
		{
			Name:        "bias_detection",
			Description: "Detects potential bias in prompts",
			RuleType:    GuardrailBiasDetection,
			Severity:    SeverityWarning,
			Patterns: []string{
				`\b(all (men|women|blacks|whites|asians|muslims|christians|jews))\b`,
				`\b(typical (male|female|gay|straight))\b`,
				`\b(obviously (inferior|superior))\b`,
			},
			Keywords: []string{
				"stereotype", "generalization", "all men", "all women", "typical",
			},
			Enabled: true,
		},
		{
			Name:        "inappropriate_requests",
			Description: "Detects inappropriate or adult content requests",
			RuleType:    GuardrailInappropriateRequest,
			Severity:    SeverityError,
			Patterns: []string{
				`\b(sexual|explicit|adult|nsfw|pornographic)\b`,
				`\b(drug|narcotic|substance abuse|addiction)\b`,
				`\b(gambling|betting|casino)\b`,
			},
			Keywords: []string{
				"sexual", "explicit", "adult", "nsfw", "pornographic",
				"drug", "narcotic", "gambling", "betting",
			},
			Enabled: true,
		},
		{
			Name:        "safety_constraints",
			Description: "Enforces safety constraints for AI interactions",
			RuleType:    GuardrailSafetyConstraint,
			Severity:    SeverityError,
			Patterns: []string{
				`\b(bypass|circumvent|override|disable) (safety|security|protection)\b`,
				`\b(unlimited|unrestricted|no limits|no boundaries)\b`,
				`\b(pretend|act as|roleplay as) (evil|malicious|harmful)\b`,
			},
			Keywords: []string{
				"bypass safety", "override security", "unlimited access",
				"no restrictions", "act as evil", "pretend to be harmful",
			},
			Enabled: true,
		},
	}
}

// AddCustomRule appends a rule to the active set.
func (e *Engine) AddCustomRule(rule Rule) {
	e.compileRule(&rule)
	e.mu.Lock()
	e.rules = append(e.rules, rule)
	e.mu.Unlock()
	e.logger.WithField("rule_name", rule.Name).Info("Custom guardrail rule added")
}

// DisableRule disables the named rule. Unknown names are logged and ignored.
func (e *Engine) DisableRule(name string) {
	e.setRuleEnabled(name, false)
}

// EnableRule enables the named rule. Unknown names are logged and ignored.
func (e *Engine) EnableRule(name string) {
	e.setRuleEnabled(name, true)
}

func (e *Engine) setRuleEnabled(name string, enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rules {
		if e.rules[i].Name == name {
			e.rules[i].Enabled = enabled
			e.logger.WithFields(logrus.Fields{
				"rule_name": name,
				"enabled":   enabled,
			}).Info("Guardrail rule toggled")
			return
		}
	}
	e.logger.WithField("rule_name", name).Warn("Guardrail rule not found")
}

// Rules returns a copy of the current rule list.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// ValidatePrompt checks the prompt against the injection detector and every
// enabled rule. is_safe holds when no CRITICAL violation exists and, in
// strict mode, no ERROR violation either.
func (e *Engine) ValidatePrompt(prompt string, strict bool) Verdict {
	e.mu.RLock()
	enabled := e.enabled
	rules := e.rules
	e.mu.RUnlock()

	if !enabled {
		return Verdict{IsSafe: true, Passed: true, Violations: []Violation{}}
	}

	var violations []Violation

	injection := e.detector.Detect(prompt)
	if injection.IsInjection {
		violations = append(violations, Violation{
			RuleName:       "injection_detection",
			RuleType:       GuardrailSafetyConstraint,
			Severity:       SeverityCritical,
			Description:    "Prompt injection attack detected",
			MatchedText:    truncate(prompt, 100),
			Position:       Span{Start: 0, End: len(prompt)},
			Confidence:     injection.RiskScore,
			Recommendation: "Rewrite prompt without injection patterns",
		})
	}

	for i := range rules {
		if !rules[i].Enabled {
			continue
		}
		violations = append(violations, e.checkRule(prompt, &rules[i])...)
	}

	verdict := buildVerdict(violations, strict)
	verdict.Recommendations = overallRecommendations(violations)

	if len(violations) > 0 {
		e.logger.WithFields(logrus.Fields{
			"violation_count": len(violations),
			"critical_count":  verdict.Summary.Critical,
			"error_count":     verdict.Summary.Errors,
		}).Warn("Guardrail violations detected")
	}

	return verdict
}

// ValidateResponse checks a model response. Safety-constraint rules are
// skipped for responses; leak and refusal checks apply instead. The prompt
// re-validation inside the refusal check does not recurse further.
func (e *Engine) ValidateResponse(response, originalPrompt string) Verdict {
	e.mu.RLock()
	enabled := e.enabled
	rules := e.rules
	e.mu.RUnlock()

	if !enabled {
		return Verdict{IsSafe: true, Passed: true, Violations: []Violation{}}
	}

	var violations []Violation

	for i := range rules {
		if !rules[i].Enabled || rules[i].RuleType == GuardrailSafetyConstraint {
			continue
		}
		violations = append(violations, e.checkRule(response, &rules[i])...)
	}

	violations = append(violations, e.checkResponseRules(response, originalPrompt)...)

	isSafe := true
	for _, v := range violations {
		if v.Severity == SeverityCritical || v.Severity == SeverityError {
			isSafe = false
			break
		}
	}

	return Verdict{
		IsSafe:     isSafe,
		Passed:     isSafe,
		Violations: nonNil(violations),
		Summary:    summarize(violations),
	}
}

func (e *Engine) checkRule(text string, rule *Rule) []Violation {
	var violations []Violation

	for _, re := range rule.compiled {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			violations = append(violations, Violation{
				RuleName:       rule.Name,
				RuleType:       rule.RuleType,
				Severity:       rule.Severity,
				Description:    rule.Description,
				MatchedText:    text[loc[0]:loc[1]],
				Position:       Span{Start: loc[0], End: loc[1]},
				Confidence:     0.9,
				Recommendation: ruleRecommendation(rule.RuleType),
			})
		}
	}

	lower := strings.ToLower(text)
	for _, keyword := range rule.Keywords {
		if idx := strings.Index(lower, strings.ToLower(keyword)); idx >= 0 {
			violations = append(violations, Violation{
				RuleName:       rule.Name,
				RuleType:       rule.RuleType,
				Severity:       rule.Severity,
				Description:    rule.Description,
				MatchedText:    keyword,
				Position:       Span{Start: idx, End: idx + len(keyword)},
				Confidence:     0.7,
				Recommendation: ruleRecommendation(rule.RuleType),
			})
		}
	}

	if rule.Validator != nil {
		if v := rule.Validator(text); v != nil {
			violations = append(violations, *v)
		}
	}

	return violations
}

var responseLeakPatterns = compileAll([]string{
	`system prompt|internal instructions|configuration`,
	`i am an ai|i am a language model|i am chatgpt`,
	`my training data|my knowledge cutoff|my parameters`,
})

var refusalPatterns = compileAll([]string{
	`i cannot|i will not|i should not|i must not`,
	`against my programming|violates my guidelines`,
	`inappropriate|harmful|dangerous`,
})

func (e *Engine) checkResponseRules(response, originalPrompt string) []Violation {
	var violations []Violation

	for i, re := range responseLeakPatterns {
		if re.MatchString(response) {
			violations = append(violations, Violation{
				RuleName:       "system_information_leak",
				RuleType:       GuardrailOutputValidation,
				Severity:       SeverityWarning,
				Description:    "Response may contain system information",
				MatchedText:    responseLeakPatternSources[i],
				Position:       Span{Start: 0, End: len(response)},
				Confidence:     0.8,
				Recommendation: "Review response for system information leakage",
			})
		}
	}

	hasRefusal := false
	for _, re := range refusalPatterns {
		if re.MatchString(response) {
			hasRefusal = true
			break
		}
	}

	if originalPrompt != "" {
		promptVerdict := e.ValidatePrompt(originalPrompt, false)
		if !promptVerdict.IsSafe && !hasRefusal {
			violations = append(violations, Violation{
				RuleName:       "insufficient_refusal",
				RuleType:       GuardrailOutputValidation,
				Severity:       SeverityError,
				Description:    "Response to unsafe prompt lacks appropriate refusal",
				MatchedText:    truncate(response, 100),
				Position:       Span{Start: 0, End: len(response)},
				Confidence:     0.9,
				Recommendation: "Response should refuse unsafe requests",
			})
		}
	}

	return violations
}

var responseLeakPatternSources = []string{
	`system prompt|internal instructions|configuration`,
	`i am an ai|i am a language model|i am chatgpt`,
	`my training data|my knowledge cutoff|my parameters`,
}

// Stats reports the rule inventory.
func (e *Engine) Stats() EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := EngineStats{
		TotalRules:    len(e.rules),
		RuleTypes:     map[string]int{},
		EngineEnabled: e.enabled,
	}
	for _, r := range e.rules {
		if r.Enabled {
			stats.EnabledRules++
			stats.RuleTypes[string(r.RuleType)]++
		} else {
			stats.DisabledRules++
		}
	}
	return stats
}

func buildVerdict(violations []Violation, strict bool) Verdict {
	summary := summarize(violations)
	isSafe := summary.Critical == 0 && (!strict || summary.Errors == 0)
	return Verdict{
		IsSafe:     isSafe,
		Passed:     isSafe,
		Violations: nonNil(violations),
		Summary:    summary,
	}
}

func summarize(violations []Violation) ViolationSummary {
	s := ViolationSummary{TotalViolations: len(violations)}
	for _, v := range violations {
		switch v.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityError:
			s.Errors++
		case SeverityWarning:
			s.Warnings++
		case SeverityInfo:
			s.Info++
		}
	}
	return s
}

func ruleRecommendation(t GuardrailType) string {
	switch t {
	case GuardrailHarmfulContent:
		return "Remove harmful, violent, or dangerous content from your prompt"
	case GuardrailPrivacyViolation:
		return "Remove requests for personal or confidential information"
	case GuardrailEthicalViolation:
		return "Ensure your prompt follows ethical AI usage guidelines"
	case GuardrailBiasDetection:
		return "Rephrase to avoid stereotypes and biased language"
	case GuardrailInappropriateRequest:
		return "Remove inappropriate or adult content from your request"
	case GuardrailSafetyConstraint:
		return "Modify prompt to comply with AI safety constraints"
	case GuardrailOutputValidation:
		return "Review and modify the generated content"
	}
	return "Review and modify your prompt"
}

func overallRecommendations(violations []Violation) []string {
	if len(violations) == 0 {
		return []string{"Prompt passed all guardrail checks"}
	}
	seen := map[GuardrailType]bool{}
	var recs []string
	for _, v := range violations {
		if seen[v.RuleType] {
			continue
		}
		seen[v.RuleType] = true
		switch v.RuleType {
		case GuardrailHarmfulContent:
			recs = append(recs, "Remove any harmful, violent, or dangerous content")
		case GuardrailPrivacyViolation:
			recs = append(recs, "Avoid requesting personal or confidential information")
		case GuardrailEthicalViolation:
			recs = append(recs, "Ensure ethical AI usage and avoid deceptive requests")
		case GuardrailBiasDetection:
			recs = append(recs, "Use inclusive language and avoid stereotypes")
		case GuardrailInappropriateRequest:
			recs = append(recs, "Keep content appropriate and professional")
		case GuardrailSafetyConstraint:
			recs = append(recs, "Respect AI safety guidelines and limitations")
		}
	}
	return recs
}

func nonNil(v []Violation) []Violation {
	if v == nil {
		return []Violation{}
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
