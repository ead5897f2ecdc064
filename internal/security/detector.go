package security

import (
	"regexp"

	"github.com/sirupsen/logrus"

	"digital.vasic.promptforge/internal/errors"
)

type categoryRules struct {
	injectionType InjectionType
	threatLevel   ThreatLevel
	description   string
	patterns      []*regexp.Regexp
}

// Detector scans prompts for injection attacks using fixed per-category
// pattern lists. All patterns are compiled once at construction; Detect is
// safe for concurrent use.
type Detector struct {
	categories         []categoryRules
	suspiciousKeywords []string
	keywordPatterns    []*regexp.Regexp
	log                *logrus.Logger
}

var instructionOverridePatterns = []string{
	`ignore\s+(?:previous|all|the)\s+instructions?`,
	`forget\s+(?:everything|all|previous)`,
	`disregard\s+(?:previous|all|the)\s+instructions?`,
	`new\s+instructions?:`,
	`instead\s+of\s+(?:following|doing)`,
	`override\s+(?:previous|system)\s+instructions?`,
	`cancel\s+(?:previous|all)\s+instructions?`,
}

var contextSwitchingPatterns = []string{
	`now\s+(?:you\s+are|act\s+as|pretend\s+to\s+be)`,
	`from\s+now\s+on\s+you\s+(?:are|will)`,
	`switch\s+to\s+(?:a\s+)?(?:new\s+)?(?:role|mode|character)`,
	`change\s+your\s+(?:role|behavior|personality)`,
	`you\s+are\s+no\s+longer`,
	`stop\s+being\s+(?:an?\s+)?(?:assistant|ai|bot)`,
}

var rolePlayingPatterns = []string{
	`pretend\s+(?:to\s+be|you\s+are)`,
	`act\s+(?:as|like)\s+(?:an?\s+)?(?:evil|malicious|harmful)`,
	`roleplay\s+as`,
	`imagine\s+you\s+are\s+(?:an?\s+)?(?:evil|malicious|harmful)`,
	`you\s+are\s+(?:an?\s+)?(?:evil|malicious|harmful|dangerous)`,
	`simulate\s+(?:being\s+)?(?:an?\s+)?(?:evil|malicious|harmful)`,
}

var systemLeakPatterns = []string{
	`show\s+(?:me\s+)?(?:your\s+)?(?:system\s+)?(?:prompt|instructions)`,
	`what\s+(?:are\s+)?(?:your\s+)?(?:system\s+)?(?:prompt|instructions)`,
	`reveal\s+(?:your\s+)?(?:system\s+)?(?:prompt|instructions)`,
	`display\s+(?:your\s+)?(?:system\s+)?(?:prompt|instructions)`,
	`print\s+(?:your\s+)?(?:system\s+)?(?:prompt|instructions)`,
	`output\s+(?:your\s+)?(?:system\s+)?(?:prompt|instructions)`,
}

var jailbreakPatterns = []string{
	`jailbreak`,
	`dan\s+mode`,
	`developer\s+mode`,
	`unrestricted\s+mode`,
	`bypass\s+(?:safety|restrictions|guidelines)`,
	`remove\s+(?:safety|restrictions|limitations)`,
	`disable\s+(?:safety|restrictions|filters)`,
	`without\s+(?:restrictions|limitations|safety)`,
}

var dataExtractionPatterns = []string{
	`extract\s+(?:all\s+)?(?:data|information|content)`,
	`dump\s+(?:all\s+)?(?:data|database|memory)`,
	`show\s+(?:all\s+)?(?:data|files|content)`,
	`list\s+(?:all\s+)?(?:files|data|users)`,
	`access\s+(?:all\s+)?(?:data|files|database)`,
	`retrieve\s+(?:all\s+)?(?:data|information)`,
}

var maliciousCodePatterns = []string{
	`<script[^>]*>`,
	`javascript:`,
	`eval\s*\(`,
	`exec\s*\(`,
	`system\s*\(`,
	`shell_exec\s*\(`,
	`passthru\s*\(`,
	`file_get_contents\s*\(`,
	`curl\s+.*(?:http|ftp)`,
	`wget\s+.*(?:http|ftp)`,
}

var suspiciousKeywords = []string{
	"hack", "exploit", "vulnerability", "backdoor", "malware",
	"virus", "trojan", "phishing", "scam", "fraud",
	"illegal", "criminal", "terrorist", "bomb", "weapon",
	"drug", "suicide", "self-harm", "violence", "murder",
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// NewDetector creates a detector with the default rule set.
func NewDetector(log *logrus.Logger) *Detector {
	d := &Detector{
		categories: []categoryRules{
			{InjectionInstructionOverride, ThreatHigh, "Attempt to override system instructions", compileAll(instructionOverridePatterns)},
			{InjectionContextSwitching, ThreatMedium, "Attempt to switch AI context or role", compileAll(contextSwitchingPatterns)},
			{InjectionRolePlaying, ThreatHigh, "Attempt to make AI roleplay as malicious entity", compileAll(rolePlayingPatterns)},
			{InjectionSystemPromptLeak, ThreatMedium, "Attempt to extract system prompt or instructions", compileAll(systemLeakPatterns)},
			{InjectionJailbreak, ThreatCritical, "Attempt to bypass AI safety restrictions", compileAll(jailbreakPatterns)},
			{InjectionDataExtraction, ThreatHigh, "Attempt to extract sensitive data", compileAll(dataExtractionPatterns)},
			{InjectionMaliciousCode, ThreatCritical, "Potential malicious code injection", compileAll(maliciousCodePatterns)},
		},
		suspiciousKeywords: suspiciousKeywords,
		log:                log,
	}
	d.keywordPatterns = make([]*regexp.Regexp, len(suspiciousKeywords))
	for i, kw := range suspiciousKeywords {
		d.keywordPatterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
	}
	return d
}

// Detect scans the prompt against every category and returns the aggregate
// verdict. The risk score is min(1, sum of per-detection weights / count).
func (d *Detector) Detect(prompt string) DetectionResult {
	var detections []Detection

	for _, cat := range d.categories {
		for i, re := range cat.patterns {
			for _, loc := range re.FindAllStringIndex(prompt, -1) {
				detections = append(detections, Detection{
					Type:        cat.injectionType,
					ThreatLevel: cat.threatLevel,
					Pattern:     patternSource(cat.injectionType, i),
					Match:       prompt[loc[0]:loc[1]],
					Position:    &Span{Start: loc[0], End: loc[1]},
					Description: cat.description,
				})
			}
		}
	}

	// Suspicious keywords count once each, tagged as jailbreak at MEDIUM.
	for i, re := range d.keywordPatterns {
		if re.MatchString(prompt) {
			kw := d.suspiciousKeywords[i]
			detections = append(detections, Detection{
				Type:        InjectionJailbreak,
				ThreatLevel: ThreatMedium,
				Pattern:     kw,
				Match:       kw,
				Description: "Suspicious keyword detected: " + kw,
			})
		}
	}

	level := ThreatLow
	for _, det := range detections {
		level = MaxThreatLevel(level, det.ThreatLevel)
	}

	result := DetectionResult{
		IsInjection:     len(detections) > 0,
		ThreatLevel:     level,
		Detections:      detections,
		RiskScore:       riskScore(detections),
		Recommendations: recommendations(detections, level),
	}

	if len(detections) > 0 {
		d.log.WithFields(logrus.Fields{
			"threat_level":    string(level),
			"detection_count": len(detections),
		}).Warn("Prompt injection detected")
	}

	return result
}

// Validate fails with an injection error when a detection exists and either
// strict mode is on or the overall threat level is HIGH or CRITICAL.
func (d *Detector) Validate(prompt string, strict bool) error {
	result := d.Detect(prompt)
	if !result.IsInjection {
		return nil
	}
	if strict || result.ThreatLevel == ThreatHigh || result.ThreatLevel == ThreatCritical {
		return errors.NewInjectionDetected("Prompt injection attack detected").
			WithDetail("detection_result", result)
	}
	return nil
}

func riskScore(detections []Detection) float64 {
	if len(detections) == 0 {
		return 0.0
	}
	var total float64
	for _, d := range detections {
		total += d.ThreatLevel.Weight()
	}
	score := total / float64(len(detections))
	if score > 1.0 {
		return 1.0
	}
	return score
}

func recommendations(detections []Detection, level ThreatLevel) []string {
	if len(detections) == 0 {
		return []string{"No security issues detected"}
	}
	recs := []string{
		"Review and sanitize the input prompt",
		"Consider implementing additional input validation",
		"Monitor for similar patterns in future requests",
	}
	switch level {
	case ThreatCritical:
		recs = append(recs,
			"CRITICAL: Block this request immediately",
			"Investigate the source of this request",
			"Consider implementing stricter security measures")
	case ThreatHigh:
		recs = append(recs,
			"HIGH RISK: Carefully review before processing",
			"Consider requiring additional authentication")
	}
	return recs
}

// CategoryInfo describes one detection category for API consumers.
type CategoryInfo struct {
	Type            InjectionType `json:"type"`
	ThreatLevel     ThreatLevel   `json:"threat_level"`
	Description     string        `json:"description"`
	ExamplePatterns []string      `json:"example_patterns"`
}

// Categories returns the detection category table with a sample of each
// category's patterns.
func (d *Detector) Categories() []CategoryInfo {
	out := make([]CategoryInfo, 0, len(d.categories))
	for _, cat := range d.categories {
		examples := make([]string, 0, 3)
		for i := range cat.patterns {
			if i == 3 {
				break
			}
			examples = append(examples, patternSource(cat.injectionType, i))
		}
		out = append(out, CategoryInfo{
			Type:            cat.injectionType,
			ThreatLevel:     cat.threatLevel,
			Description:     cat.description,
			ExamplePatterns: examples,
		})
	}
	return out
}

// patternSource returns the original pattern text for a category index, used
// in detection records so callers can see which rule fired.
func patternSource(t InjectionType, i int) string {
	switch t {
	case InjectionInstructionOverride:
		return instructionOverridePatterns[i]
	case InjectionContextSwitching:
		return contextSwitchingPatterns[i]
	case InjectionRolePlaying:
		return rolePlayingPatterns[i]
	case InjectionSystemPromptLeak:
		return systemLeakPatterns[i]
	case InjectionJailbreak:
		return jailbreakPatterns[i]
	case InjectionDataExtraction:
		return dataExtractionPatterns[i]
	case InjectionMaliciousCode:
		return maliciousCodePatterns[i]
	}
	return ""
}
