// Package security provides prompt-injection detection and content guardrails
// for text sent to and returned from LLM providers. Detection is purely
// pattern based and never blocks; verdicts are consumed by the HTTP surface
// and by the optimization engine as a fitness signal.
package security

import "regexp"

// InjectionType classifies a detected prompt-injection attack.
type InjectionType string

const (
	InjectionInstructionOverride InjectionType = "instruction_override"
	InjectionContextSwitching    InjectionType = "context_switching"
	InjectionRolePlaying         InjectionType = "role_playing"
	InjectionSystemPromptLeak    InjectionType = "system_prompt_leak"
	InjectionJailbreak           InjectionType = "jailbreak"
	InjectionDataExtraction      InjectionType = "data_extraction"
	InjectionMaliciousCode       InjectionType = "malicious_code"
)

// ThreatLevel is the ordered threat ladder for injection detections.
type ThreatLevel string

const (
	ThreatLow      ThreatLevel = "low"
	ThreatMedium   ThreatLevel = "medium"
	ThreatHigh     ThreatLevel = "high"
	ThreatCritical ThreatLevel = "critical"
)

// Rank returns the numeric position of the level so that max() is trivial.
func (t ThreatLevel) Rank() int {
	switch t {
	case ThreatMedium:
		return 1
	case ThreatHigh:
		return 2
	case ThreatCritical:
		return 3
	default:
		return 0
	}
}

// Weight returns the risk-score contribution of a detection at this level.
func (t ThreatLevel) Weight() float64 {
	switch t {
	case ThreatMedium:
		return 0.3
	case ThreatHigh:
		return 0.7
	case ThreatCritical:
		return 1.0
	default:
		return 0.1
	}
}

// MaxThreatLevel returns the higher of two levels.
func MaxThreatLevel(a, b ThreatLevel) ThreatLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// GuardrailType classifies a guardrail violation.
type GuardrailType string

const (
	GuardrailContentFilter        GuardrailType = "content_filter"
	GuardrailEthicalViolation     GuardrailType = "ethical_violation"
	GuardrailSafetyConstraint     GuardrailType = "safety_constraint"
	GuardrailOutputValidation     GuardrailType = "output_validation"
	GuardrailPrivacyViolation     GuardrailType = "privacy_violation"
	GuardrailBiasDetection        GuardrailType = "bias_detection"
	GuardrailHarmfulContent       GuardrailType = "harmful_content"
	GuardrailInappropriateRequest GuardrailType = "inappropriate_request"
	GuardrailExternalValidation   GuardrailType = "external_validation"
	GuardrailCodeSafety           GuardrailType = "code_safety"
)

// Severity is the ordered severity scale for guardrail violations.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Rank returns the numeric position of the severity.
func (s Severity) Rank() int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityError:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// Span is a half-open [start, end) byte range into the scanned text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Detection is a single injection-pattern hit.
type Detection struct {
	Type        InjectionType `json:"type"`
	ThreatLevel ThreatLevel   `json:"threat_level"`
	Pattern     string        `json:"pattern"`
	Match       string        `json:"match"`
	Position    *Span         `json:"position"`
	Description string        `json:"description"`
}

// DetectionResult is the aggregate verdict of the injection detector.
type DetectionResult struct {
	IsInjection     bool        `json:"is_injection"`
	ThreatLevel     ThreatLevel `json:"threat_level"`
	Detections      []Detection `json:"detections"`
	RiskScore       float64     `json:"risk_score"`
	Recommendations []string    `json:"recommendations"`
}

// Violation is a single guardrail rule hit.
type Violation struct {
	RuleName       string        `json:"rule_name"`
	RuleType       GuardrailType `json:"rule_type"`
	Severity       Severity      `json:"severity"`
	Description    string        `json:"description"`
	MatchedText    string        `json:"matched_text"`
	Position       Span          `json:"position"`
	Confidence     float64       `json:"confidence"`
	Recommendation string        `json:"recommendation"`
}

// ViolationSummary counts violations per severity.
type ViolationSummary struct {
	TotalViolations int `json:"total_violations"`
	Critical        int `json:"critical"`
	Errors          int `json:"errors"`
	Warnings        int `json:"warnings"`
	Info            int `json:"info"`
}

// Verdict is the outcome of guardrail validation for a text.
type Verdict struct {
	IsSafe          bool             `json:"is_safe"`
	Passed          bool             `json:"passed"`
	Violations      []Violation      `json:"violations"`
	Summary         ViolationSummary `json:"summary"`
	Recommendations []string         `json:"recommendations,omitempty"`
}

// CustomValidator lets callers attach a predicate to a rule. A nil return
// means no violation.
type CustomValidator func(text string) *Violation

// Rule is an enable-able guardrail rule. Pattern matches carry confidence
// 0.9, keyword matches 0.7.
type Rule struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	RuleType    GuardrailType   `json:"rule_type"`
	Severity    Severity        `json:"severity"`
	Patterns    []string        `json:"patterns"`
	Keywords    []string        `json:"keywords"`
	Enabled     bool            `json:"enabled"`
	Validator   CustomValidator `json:"-"`

	// compiled holds the case-insensitive form of Patterns, built once when
	// the rule enters an Engine. Invalid patterns are dropped at that point.
	compiled []*regexp.Regexp
}

// OptimizationCheck is the delta verdict for an (original, optimized) pair.
type OptimizationCheck struct {
	OriginalSafe     bool     `json:"original_safe"`
	OptimizedSafe    bool     `json:"optimized_safe"`
	SafetyMaintained bool     `json:"safety_maintained"`
	QualityImproved  bool     `json:"quality_improved"`
	OptimizationSafe bool     `json:"optimization_safe"`
	Original         Verdict  `json:"original"`
	Optimized        Verdict  `json:"optimized"`
	Recommendations  []string `json:"recommendations"`
}

// Capabilities reports which validation layers are active in the enhanced
// engine.
type Capabilities struct {
	InjectionDetection bool `json:"injection_detection"`
	CustomRules        bool `json:"custom_rules"`
	ExternalValidation bool `json:"external_validation"`
	ToxicityDetection  bool `json:"toxicity_detection"`
	CodeValidation     bool `json:"code_validation"`
}

// EngineStats describes the rule inventory of a guardrail engine.
type EngineStats struct {
	TotalRules    int            `json:"total_rules"`
	EnabledRules  int            `json:"enabled_rules"`
	DisabledRules int            `json:"disabled_rules"`
	RuleTypes     map[string]int `json:"rule_types"`
	EngineEnabled bool           `json:"engine_enabled"`
}
