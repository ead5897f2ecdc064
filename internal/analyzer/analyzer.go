// Package analyzer computes structural quality metrics for prompt text. All
// scoring is pure computation over the input string; nothing here blocks or
// performs I/O.
package analyzer

import (
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// Analysis is the metric set for a single prompt.
type Analysis struct {
	TokenCount       int      `json:"token_count"`
	WordCount        int      `json:"word_count"`
	CharacterCount   int      `json:"character_count"`
	SentenceCount    int      `json:"sentence_count"`
	ReadabilityScore float64  `json:"readability_score"`
	ClarityScore     float64  `json:"clarity_score"`
	QualityScore     float64  `json:"quality_score"`
	SafetyScore      float64  `json:"safety_score"`
	InstructionCount int      `json:"instruction_count"`
	QuestionCount    int      `json:"question_count"`
	HasExamples      bool     `json:"has_examples"`
	HasConstraints   bool     `json:"has_constraints"`
	ComplexityLevel  string   `json:"complexity_level"`
	PotentialIssues  []string `json:"potential_issues"`
}

// Analyzer scores prompts. Safe for concurrent use.
type Analyzer struct {
	log *logrus.Logger
}

// New creates an analyzer.
func New(log *logrus.Logger) *Analyzer {
	return &Analyzer{log: log}
}

var (
	instructionVerbRe  = regexp.MustCompile(`\b(please|write|generate|create|analyze|explain|describe|list|provide|give|tell|show)\b`)
	instructionPhrases = regexp.MustCompile(`\b(you should|you must|you need to|make sure to)\b`)
	issueVerbRe        = regexp.MustCompile(`\b(please|write|generate|create|analyze|explain|describe)\b`)
	sentenceSplitRe    = regexp.MustCompile(`[.!?]+`)

	safetyInjectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`ignore\s+previous\s+instructions`),
		regexp.MustCompile(`forget\s+everything`),
		regexp.MustCompile(`new\s+instructions`),
		regexp.MustCompile(`system\s+prompt`),
		regexp.MustCompile(`jailbreak`),
	}

	harmfulKeywords = []string{
		"hack", "exploit", "illegal", "harmful", "dangerous",
		"violence", "weapon", "drug", "suicide", "self-harm",
	}
)

// Analyze computes the full metric set. Token count uses the length/4
// approximation.
func (a *Analyzer) Analyze(prompt string) Analysis {
	words := strings.Fields(prompt)

	return Analysis{
		TokenCount:       len(prompt) / 4,
		WordCount:        len(words),
		CharacterCount:   len(prompt),
		SentenceCount:    countSentences(prompt),
		ReadabilityScore: readability(prompt),
		ClarityScore:     clarityScore(prompt, len(words)),
		QualityScore:     qualityScore(prompt, len(words)),
		SafetyScore:      safetyScore(prompt),
		InstructionCount: countInstructions(prompt),
		QuestionCount:    strings.Count(prompt, "?"),
		HasExamples:      hasExamples(prompt),
		HasConstraints:   hasConstraints(prompt),
		ComplexityLevel:  complexity(len(words), countInstructions(prompt)),
		PotentialIssues:  identifyIssues(prompt, len(words)),
	}
}

func countSentences(prompt string) int {
	count := 0
	for _, part := range sentenceSplitRe.Split(prompt, -1) {
		if strings.TrimSpace(part) != "" {
			count++
		}
	}
	return count
}

func clarityScore(prompt string, wordCount int) float64 {
	lower := strings.ToLower(prompt)
	score := 0.5

	if containsAny(lower, "please", "write", "generate", "create", "analyze", "explain", "describe") {
		score += 0.1
	}
	if containsAny(lower, "must include", "should contain", "requirements") {
		score += 0.1
	}
	if containsAny(lower, "example", "for instance", "such as") {
		score += 0.1
	}
	if containsAny(lower, "format", "structure", "organize") {
		score += 0.1
	}
	if wordCount > 200 {
		score -= 0.1
	}
	if containsAny(lower, "maybe", "perhaps", "might", "could possibly") {
		score -= 0.1
	}

	return clamp01(score)
}

func qualityScore(prompt string, wordCount int) float64 {
	lower := strings.ToLower(prompt)
	score := 0.5

	practices := [][]string{
		{"task", "goal", "objective"},
		{"context", "background", "given"},
		{"expect", "should", "must"},
		{"output", "result", "response"},
		{"example", "instance", "sample"},
	}
	for _, keywords := range practices {
		if containsAny(lower, keywords...) {
			score += 0.1
		}
	}

	if wordCount >= 20 {
		score += 0.1
	}
	if len(prompt) > 0 && isUpper(rune(prompt[0])) && endsWithAny(prompt, ".", "?", "!") {
		score += 0.05
	}

	return clamp01(score)
}

func safetyScore(prompt string) float64 {
	lower := strings.ToLower(prompt)
	score := 1.0

	for _, keyword := range harmfulKeywords {
		if strings.Contains(lower, keyword) {
			score -= 0.2
		}
	}
	for _, re := range safetyInjectionPatterns {
		if re.MatchString(lower) {
			score -= 0.3
		}
	}

	if score < 0 {
		return 0
	}
	return score
}

func countInstructions(prompt string) int {
	lower := strings.ToLower(prompt)
	return len(instructionVerbRe.FindAllString(lower, -1)) +
		len(instructionPhrases.FindAllString(lower, -1))
}

func hasExamples(prompt string) bool {
	return containsAny(strings.ToLower(prompt), "example", "for instance", "such as", "like this", "e.g.")
}

func hasConstraints(prompt string) bool {
	return containsAny(strings.ToLower(prompt), "must", "should", "required", "constraint", "limit", "maximum", "minimum")
}

func complexity(wordCount, instructionCount int) string {
	switch {
	case wordCount < 20 && instructionCount <= 1:
		return "simple"
	case wordCount < 100 && instructionCount <= 3:
		return "moderate"
	default:
		return "complex"
	}
}

func identifyIssues(prompt string, wordCount int) []string {
	issues := []string{}
	lower := strings.ToLower(prompt)

	if wordCount < 5 {
		issues = append(issues, "Prompt is too short")
	}
	if wordCount > 300 {
		issues = append(issues, "Prompt is too long")
	}
	if !strings.ContainsAny(prompt, ".!?") {
		issues = append(issues, "No clear sentence structure")
	}
	if strings.Count(prompt, "?") > 5 {
		issues = append(issues, "Too many questions")
	}
	if !issueVerbRe.MatchString(lower) {
		issues = append(issues, "No clear instruction verb")
	}
	if containsAny(lower, "thing", "stuff", "something", "anything", "maybe", "perhaps") {
		issues = append(issues, "Contains ambiguous language")
	}

	return issues
}

// readability is a Flesch reading-ease value normalized to [0,1].
func readability(text string) float64 {
	words := strings.Fields(text)
	sentences := countSentences(text)
	if len(words) == 0 || sentences == 0 {
		return 0.5
	}

	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}

	flesch := 206.835 -
		1.015*(float64(len(words))/float64(sentences)) -
		84.6*(float64(syllables)/float64(len(words)))

	return clamp01(flesch / 100)
}

// countSyllables approximates syllables by counting vowel groups, with the
// usual silent-e adjustment. Every word counts at least one.
func countSyllables(word string) int {
	word = strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
		return r < 'a' || r > 'z'
	}))
	if word == "" {
		return 1
	}

	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}
	if strings.HasSuffix(word, "e") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}

func containsAny(text string, substrings ...string) bool {
	for _, s := range substrings {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

func endsWithAny(text string, suffixes ...string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(text, s) {
			return true
		}
	}
	return false
}

func isUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
