package optimizer

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
)

// Text operators for the search strategies. All functions are pure given the
// rng; a seeded *rand.Rand reproduces a run exactly.

var clarityPhrases = []string{
	"Please be clear and specific in your response.",
	"Provide a detailed and well-structured answer.",
	"Explain your reasoning step by step.",
	"Be concise but comprehensive.",
	"Use clear and simple language.",
}

var contextPhrases = []string{
	"Consider the context carefully before responding.",
	"Take into account all relevant information provided.",
	"Base your answer on the given information.",
	"Consider multiple perspectives when appropriate.",
}

var formatInstructions = []string{
	"Format your response as a numbered list.",
	"Provide your answer in bullet points.",
	"Structure your response with clear headings.",
	"Present your answer in a step-by-step format.",
	"Organize your response into clear sections.",
}

// simplifications maps formal words to plain replacements, applied
// case-insensitively at word boundaries.
var simplifications = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)\butilize\b`), "use"},
	{regexp.MustCompile(`(?i)\bdemonstrate\b`), "show"},
	{regexp.MustCompile(`(?i)\bfacilitate\b`), "help"},
	{regexp.MustCompile(`(?i)\bimplement\b`), "do"},
	{regexp.MustCompile(`(?i)\bsubsequently\b`), "then"},
	{regexp.MustCompile(`(?i)\btherefore\b`), "so"},
	{regexp.MustCompile(`(?i)\bhowever\b`), "but"},
	{regexp.MustCompile(`(?i)\bfurthermore\b`), "also"},
}

var redundancyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bplease\s+please\b`),
	regexp.MustCompile(`(?i)\bvery\s+very\b`),
	regexp.MustCompile(`(?i)\breally\s+really\b`),
	regexp.MustCompile(`(?i)\bactually\s+actually\b`),
}

// mutation is one prompt rewrite operator.
type mutation func(rng *rand.Rand, prompt string) string

var mutations = []mutation{
	addClarityInstruction,
	simplifyLanguage,
	addContextInstruction,
	reorderInstructions,
	addOutputFormat,
	removeRedundancy,
}

// Mutate applies one randomly chosen operator.
func Mutate(rng *rand.Rand, prompt string) string {
	return mutations[rng.Intn(len(mutations))](rng, prompt)
}

// Neighbors produces count mutated variants of the prompt.
func Neighbors(rng *rand.Rand, prompt string, count int) []string {
	neighbors := make([]string, 0, count)
	for i := 0; i < count; i++ {
		neighbors = append(neighbors, Mutate(rng, prompt))
	}
	return neighbors
}

// Crossover splices two prompts at a sentence boundary and returns both
// children. Prompts with fewer than two sentences pass through unchanged.
func Crossover(rng *rand.Rand, parent1, parent2 string) (string, string) {
	sentences1 := strings.Split(parent1, ". ")
	sentences2 := strings.Split(parent2, ". ")

	shorter := len(sentences1)
	if len(sentences2) < shorter {
		shorter = len(sentences2)
	}
	if shorter < 2 {
		return parent1, parent2
	}

	point := 1 + rng.Intn(shorter-1)

	child1 := strings.Join(append(append([]string{}, sentences1[:point]...), sentences2[point:]...), ". ")
	child2 := strings.Join(append(append([]string{}, sentences2[:point]...), sentences1[point:]...), ". ")
	return child1, child2
}

func addClarityInstruction(rng *rand.Rand, prompt string) string {
	return fmt.Sprintf("%s\n\n%s", prompt, clarityPhrases[rng.Intn(len(clarityPhrases))])
}

func simplifyLanguage(_ *rand.Rand, prompt string) string {
	simplified := prompt
	for _, s := range simplifications {
		simplified = s.re.ReplaceAllString(simplified, s.replacement)
	}
	return simplified
}

func addContextInstruction(rng *rand.Rand, prompt string) string {
	return fmt.Sprintf("%s\n\n%s", contextPhrases[rng.Intn(len(contextPhrases))], prompt)
}

// reorderInstructions shuffles the middle sentences, keeping the first and
// last in place.
func reorderInstructions(rng *rand.Rand, prompt string) string {
	sentences := strings.Split(prompt, ". ")
	if len(sentences) <= 2 {
		return prompt
	}

	middle := make([]string, len(sentences)-2)
	copy(middle, sentences[1:len(sentences)-1])
	rng.Shuffle(len(middle), func(i, j int) {
		middle[i], middle[j] = middle[j], middle[i]
	})

	reordered := append([]string{sentences[0]}, middle...)
	reordered = append(reordered, sentences[len(sentences)-1])
	return strings.Join(reordered, ". ")
}

func addOutputFormat(rng *rand.Rand, prompt string) string {
	return fmt.Sprintf("%s\n\n%s", prompt, formatInstructions[rng.Intn(len(formatInstructions))])
}

// removeRedundancy collapses doubled filler words to a single occurrence,
// keeping the first word's casing.
func removeRedundancy(_ *rand.Rand, prompt string) string {
	cleaned := prompt
	for _, re := range redundancyPatterns {
		cleaned = re.ReplaceAllStringFunc(cleaned, func(match string) string {
			return strings.Fields(match)[0]
		})
	}
	return cleaned
}
