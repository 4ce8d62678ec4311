package filter

import (
	"regexp"
	"strings"
)

// Fill-in-the-blank and silence artifacts the engine emits as literal
// underscore or dash runs.
var (
	underscoreRun = regexp.MustCompile(`_{3,}`)
	dashRun       = regexp.MustCompile(`-{5,}`)
	spaceRun      = regexp.MustCompile(`\s{2,}`)
)

// StripRepetitions repairs salvageable text instead of rejecting it:
// underscore/dash runs are stripped, and a consecutively repeated n-gram
// (trigram, then bigram, then single word) is collapsed to one
// occurrence. Returns "" when nothing worth keeping remains. Text without
// artifacts is returned unchanged.
func (f *Filter) StripRepetitions(text string) string {
	cleaned := text

	if underscoreRun.MatchString(cleaned) || dashRun.MatchString(cleaned) {
		cleaned = underscoreRun.ReplaceAllString(cleaned, " ")
		cleaned = dashRun.ReplaceAllString(cleaned, " ")
		cleaned = strings.TrimSpace(spaceRun.ReplaceAllString(cleaned, " "))

		if len(cleaned) <= f.config.MinStrippedChars {
			f.logDrop("artifact_only", text)
			return ""
		}
	}

	words := strings.Fields(cleaned)
	collapsed := false
	for _, n := range []int{3, 2, 1} {
		words, collapsed = collapseRuns(words, n, f.config.NgramMinRepeats, collapsed)
	}

	if !collapsed && cleaned == text {
		return text
	}

	return strings.Join(words, " ")
}

// collapseRuns replaces any run of an n-gram repeated at least minRepeats
// times in a row with a single occurrence, preserving surrounding words
// in original order.
func collapseRuns(words []string, n, minRepeats int, already bool) ([]string, bool) {
	if len(words) < n*minRepeats {
		return words, already
	}

	out := make([]string, 0, len(words))
	collapsed := already

	i := 0
	for i < len(words) {
		if i+n > len(words) {
			out = append(out, words[i:]...)
			break
		}

		// Count consecutive repetitions of the n-gram starting at i
		repeats := 1
		for i+(repeats+1)*n <= len(words) && ngramEqual(words, i, i+repeats*n, n) {
			repeats++
		}

		if repeats >= minRepeats {
			out = append(out, words[i:i+n]...)
			i += repeats * n
			collapsed = true
			continue
		}

		out = append(out, words[i])
		i++
	}

	return out, collapsed
}

// ngramEqual compares the n words at positions a and b case-insensitively
func ngramEqual(words []string, a, b, n int) bool {
	for k := 0; k < n; k++ {
		if !strings.EqualFold(words[a+k], words[b+k]) {
			return false
		}
	}
	return true
}
