package filter

import "testing"

func TestStripRepetitionsArtifactRuns(t *testing.T) {
	f := New(testConfig(), nil)

	tests := []struct {
		name string
		text string
		want string
	}{
		{"underscore run stripped", "The answer is ___________ as shown", "The answer is as shown"},
		{"dash run stripped", "Consider the interval ---------- here", "Consider the interval here"},
		{"short dash run kept", "a well-known result", "a well-known result"},
		{"artifact only dropped", "___________", ""},
		{"artifact with tiny remainder dropped", "___ ok", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.StripRepetitions(tt.text); got != tt.want {
				t.Errorf("StripRepetitions(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestStripRepetitionsCollapsesRuns(t *testing.T) {
	f := New(testConfig(), nil)

	tests := []struct {
		name string
		text string
		want string
	}{
		{
			"single word run",
			"network network network network systems",
			"network systems",
		},
		{
			"bigram run",
			"the data the data the data is clean",
			"the data is clean",
		},
		{
			"trigram run",
			"we can see we can see we can see the result",
			"we can see the result",
		},
		{
			"run below threshold kept",
			"network network systems",
			"network network systems",
		},
		{
			"case insensitive run",
			"Okay okay OKAY okay then",
			"Okay then",
		},
		{
			"clean text unchanged",
			"The quick brown fox jumps over the lazy dog",
			"The quick brown fox jumps over the lazy dog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.StripRepetitions(tt.text); got != tt.want {
				t.Errorf("StripRepetitions(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestStripRepetitionsPreservesUntouchedText(t *testing.T) {
	f := New(testConfig(), nil)

	// Text with no artifacts must come back verbatim, including its
	// original spacing.
	text := "The  spacing   here is unusual but real"
	if got := f.StripRepetitions(text); got != text {
		t.Errorf("Expected verbatim return, got %q", got)
	}
}

func TestStripRepetitionsIdempotent(t *testing.T) {
	f := New(testConfig(), nil)

	inputs := []string{
		"network network network network systems",
		"the data the data the data is clean",
		"The answer is ___________ as shown",
		"A perfectly normal sentence about Fourier transforms",
	}

	for _, text := range inputs {
		once := f.StripRepetitions(text)
		twice := f.StripRepetitions(once)
		if once != twice {
			t.Errorf("StripRepetitions not idempotent for %q: %q then %q", text, once, twice)
		}
	}
}
