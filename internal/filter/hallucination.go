package filter

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// Static noise phrases the acoustic model emits during silence: video
// outros, music and applause markers, filler-only utterances, and
// transcripts of nothing in other languages.
var staticNoisePatterns = compilePatterns([]string{
	// Video/social media outros
	`(?i)thank you for watching`,
	`(?i)thanks for watching`,
	`(?i)please subscribe`,
	`(?i)like and subscribe`,
	`(?i)don't forget to subscribe`,
	`(?i)hit the bell`,
	`(?i)click the link`,
	`(?i)see you in the next`,
	`(?i)see you next time`,
	`(?i)bye[\s\-]*bye`,
	`(?i)goodbye`,
	// Music/sound markers
	`♪`,
	`🎵`,
	`(?i)\[music\]`,
	`(?i)\[applause\]`,
	`(?i)\[laughter\]`,
	`(?i)\[silence\]`,
	`(?i)\[inaudible\]`,
	// Foreign-language silence artifacts
	`字幕`,
	`ご視聴`,
	`視聴`,
	`الحمد`,
	`بسم الله`,
	`이 비디오`,
	`구독`,
	// Filler-only utterances
	`(?i)^(um+|uh+|ah+|oh+|hmm+)[\s\.]*$`,
	`(?i)^\.+$`,
	`(?i)^you$`,
	`(?i)^so,?\s*$`,
	`(?i)^and,?\s*$`,
	`(?i)^the\s*$`,
	`(?i)^it's\s*$`,
})

// GenericLeakPatterns returns the baseline prompt-leak patterns that are
// always active, regardless of whether a topic was configured. They catch
// the engine echoing or rephrasing the default biasing prompt.
func GenericLeakPatterns() []*regexp.Regexp {
	return compilePatterns([]string{
		`(?i)the speaker is discussing academic topics`,
		`(?i)the speaker is discussing`,
		`(?i)this is a lecture transcription`,
		`(?i)this is a lecture on academic`,
		`(?i)^this is a lecture\b`,
		`(?i)lecture transcription\.\s*the speaker`,
		`(?i)discussing academic topics`,
		`(?i)technical terms include`,
		`(?i)the professor may reference`,
		`(?i)^this is a .{0,30} lecture\b`,
	})
}

func compilePatterns(raw []string) []*regexp.Regexp {
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

// Config contains hallucination filter tuning parameters
type Config struct {
	MinTextChars      int
	WordDominance     float64
	DominanceMinWords int
	NgramMinRepeats   int
	MinStrippedChars  int
}

// Filter classifies transcribed text as real speech or engine artifact.
// Leak patterns may be swapped between sessions when the topic changes;
// everything else is immutable after construction.
type Filter struct {
	config Config
	logger *slog.Logger

	mu           sync.RWMutex
	leakPatterns []*regexp.Regexp
}

// New creates a filter with the baseline generic leak patterns active
func New(config Config, logger *slog.Logger) *Filter {
	return &Filter{
		config:       config,
		logger:       logger,
		leakPatterns: GenericLeakPatterns(),
	}
}

// SetLeakPatterns replaces the active prompt-leak patterns. Called when a
// topic is configured before a session; the generic set stays the
// fallback when patterns is empty.
func (f *Filter) SetLeakPatterns(patterns []*regexp.Regexp) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(patterns) == 0 {
		f.leakPatterns = GenericLeakPatterns()
		return
	}
	f.leakPatterns = patterns
}

// IsHallucination reports whether text is a known artifact rather than
// real speech: too short, matching a static noise or prompt-leak pattern,
// punctuation-only, or dominated by a single repeated word.
func (f *Filter) IsHallucination(text string) bool {
	trimmed := strings.TrimSpace(text)

	if len(trimmed) < f.config.MinTextChars {
		return true
	}

	for _, pattern := range staticNoisePatterns {
		if pattern.MatchString(trimmed) {
			f.logDrop("static_noise", trimmed)
			return true
		}
	}

	f.mu.RLock()
	leaks := f.leakPatterns
	f.mu.RUnlock()

	for _, pattern := range leaks {
		if pattern.MatchString(trimmed) {
			f.logDrop("prompt_leak", trimmed)
			return true
		}
	}

	if alphanumericCount(trimmed) < 2 {
		f.logDrop("punctuation_only", trimmed)
		return true
	}

	words := strings.Fields(strings.ToLower(trimmed))
	if len(words) >= f.config.DominanceMinWords {
		counts := make(map[string]int, len(words))
		maxCount := 0
		for _, w := range words {
			counts[w]++
			if counts[w] > maxCount {
				maxCount = counts[w]
			}
		}
		if float64(maxCount)/float64(len(words)) > f.config.WordDominance {
			f.logDrop("word_dominance", trimmed)
			return true
		}
	}

	return false
}

func (f *Filter) logDrop(reason, text string) {
	if f.logger == nil {
		return
	}
	f.logger.Debug("Filtered hallucination",
		slog.String("reason", reason),
		slog.String("text", truncate(text, 60)),
	)
}

func alphanumericCount(s string) int {
	count := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			count++
		}
	}
	return count
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
