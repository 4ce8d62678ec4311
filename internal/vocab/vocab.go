package vocab

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Vocabulary is the topic-derived recognition context for a session
type Vocabulary struct {
	CourseName string
	Keywords   []string
}

// Generator turns a free-text lecture topic into domain keywords used to
// bias the transcription engine. The pipeline never depends on a
// generator being present; Fallback covers its absence.
type Generator interface {
	Generate(ctx context.Context, topic string) (Vocabulary, error)
}

// genericKeywords are used when no generator is available or the topic is
// empty. Broad academic terms still help the engine over no prompt at
// all.
var genericKeywords = []string{
	"definition", "theorem", "algorithm", "function",
	"variable", "equation", "analysis", "structure",
	"model", "system", "process", "method",
}

// Fallback returns the generic vocabulary for a topic
func Fallback(topic string) Vocabulary {
	courseName := strings.TrimSpace(topic)
	if courseName == "" {
		courseName = "Academic Lecture"
	}

	return Vocabulary{
		CourseName: courseName,
		Keywords:   genericKeywords,
	}
}

// BuildInitialPrompt builds the engine biasing prompt from a vocabulary.
// The prompt tells the engine what vocabulary to expect; the filter's
// leak patterns must cover its phrasing, since the engine sometimes
// echoes it back.
func BuildInitialPrompt(v Vocabulary) string {
	return fmt.Sprintf(
		"This is a %s lecture. Technical terms include: %s. "+
			"The professor may reference equations, diagrams, and code.",
		v.CourseName, strings.Join(v.Keywords, ", "),
	)
}

// BuildLeakPatterns compiles patterns that catch the engine leaking or
// rephrasing the initial prompt built from this vocabulary
func BuildLeakPatterns(v Vocabulary) []*regexp.Regexp {
	safeName := regexp.QuoteMeta(v.CourseName)

	raw := []string{
		// Direct prompt leaks
		fmt.Sprintf(`(?i)this is a %s lecture`, safeName),
		`(?i)^this is a .{0,30} lecture\b`,
		`(?i)technical terms include`,
		`(?i)the professor may reference`,
		`(?i)the speaker is discussing`,
		`(?i)this is a lecture transcription`,
		`(?i)this is a lecture on`,
		`(?i)^this is a lecture\b`,
		`(?i)lecture transcription\.\s*the speaker`,
		// Topic-specific rephrasings
		fmt.Sprintf(`(?i)we are discussing %s`, safeName),
		fmt.Sprintf(`(?i)today's lecture is on %s`, safeName),
		fmt.Sprintf(`(?i)this lecture covers %s`, safeName),
		fmt.Sprintf(`(?i)the topic is %s`, safeName),
	}

	compiled := make([]*regexp.Regexp, 0, len(raw))
	for _, pattern := range raw {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		compiled = append(compiled, re)
	}

	return compiled
}
