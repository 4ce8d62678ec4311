package filter

import (
	"regexp"
	"testing"
)

func testConfig() Config {
	return Config{
		MinTextChars:      3,
		WordDominance:     0.7,
		DominanceMinWords: 4,
		NgramMinRepeats:   3,
		MinStrippedChars:  5,
	}
}

func TestIsHallucination(t *testing.T) {
	f := New(testConfig(), nil)

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"real sentence", "The gradient descent algorithm minimizes the loss function", false},
		{"short technical phrase", "eigenvalues and eigenvectors", false},

		{"empty text", "", true},
		{"too short", "ab", true},
		{"whitespace only", "   ", true},

		{"video outro", "Thank you for watching, please subscribe!", true},
		{"outro mid sentence", "and that concludes it, thanks for watching", true},
		{"music marker", "♪ ♪ ♪", true},
		{"bracketed music", "[Music]", true},
		{"bracketed applause", "[applause]", true},
		{"japanese silence artifact", "ご視聴ありがとうございました", true},
		{"filler only", "Um...", true},
		{"long filler", "Hmmmm.", true},

		{"generic prompt leak", "This is a lecture transcription. The speaker is discussing academic topics.", true},
		{"prompt phrase leak", "Technical terms include matrix, vector, tensor", true},
		{"lecture prefix leak", "This is a computer science lecture", true},

		{"punctuation only", "... - !", true},
		{"single letter", "a!!", true},

		{"dominant word", "data data data data data structures", true},
		{"dominant word exactly four", "yes yes yes yes", true},
		{"repeated but below threshold", "the model and the data and the loss", false},
		{"short repeat exempt from dominance", "no no yes", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.IsHallucination(tt.text); got != tt.want {
				t.Errorf("IsHallucination(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestTopicLeakPatterns(t *testing.T) {
	f := New(testConfig(), nil)

	f.SetLeakPatterns([]*regexp.Regexp{
		regexp.MustCompile(`(?i)this is a Linear Algebra lecture`),
		regexp.MustCompile(`(?i)technical terms include`),
	})

	if !f.IsHallucination("This is a Linear Algebra lecture.") {
		t.Error("Topic-specific leak should be caught")
	}
	if f.IsHallucination("Today we will study linear algebra and matrix decompositions") {
		t.Error("Real speech about the topic should pass")
	}
}

func TestSetLeakPatternsEmptyRestoresGenerics(t *testing.T) {
	f := New(testConfig(), nil)

	f.SetLeakPatterns([]*regexp.Regexp{regexp.MustCompile(`never matches anything useful`)})
	f.SetLeakPatterns(nil)

	if !f.IsHallucination("This is a lecture transcription. The speaker is discussing academic topics.") {
		t.Error("Generic leak patterns should be active again after clearing")
	}
}

func TestAlphanumericCount(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"abc", 3},
		{"a1!", 2},
		{"...", 0},
		{"", 0},
		{"héllo", 5},
	}

	for _, tt := range tests {
		if got := alphanumericCount(tt.text); got != tt.want {
			t.Errorf("alphanumericCount(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
