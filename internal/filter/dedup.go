package filter

import (
	"log/slog"
	"strings"
	"sync"
)

// RejectReason explains why the deduplicator dropped a candidate
type RejectReason string

const (
	RejectNone        RejectReason = ""
	RejectSameAsLast  RejectReason = "same_as_last"
	RejectAlreadySeen RejectReason = "already_seen"
	RejectSimilar     RejectReason = "similar_to_last"
	RejectEmptyTrim   RejectReason = "empty_after_trim"
)

// DedupConfig contains cross-chunk de-duplication parameters
type DedupConfig struct {
	SimilarityThreshold float64 // Jaccard cutoff against the last accepted text
	OverlapWindowWords  int     // how many trailing/leading words to compare for trimming
	MinTextChars        int     // candidates shorter than this after trimming are dropped
}

// Deduplicator removes the two duplication symptoms the overlap window
// causes: whole-chunk repeats of already-emitted text, and leading words
// re-transcribed from the previous chunk's tail. Its state is
// single-writer; results from parallel transcription workers must be
// serialized before reaching it.
type Deduplicator struct {
	config DedupConfig
	logger *slog.Logger

	mu           sync.Mutex
	lastAccepted string
	lastWords    []string // lowercase words of the last accepted text
	seen         map[string]struct{}

	accepted uint64
	rejected uint64
}

// DedupStats represents deduplicator statistics
type DedupStats struct {
	Accepted  uint64 `json:"accepted"`
	Rejected  uint64 `json:"rejected"`
	SeenTexts int    `json:"seen_texts"`
}

// NewDeduplicator creates a deduplicator with empty session state
func NewDeduplicator(config DedupConfig, logger *slog.Logger) *Deduplicator {
	return &Deduplicator{
		config: config,
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

// Process checks a candidate against the session's accepted history and
// trims overlap-duplicated leading words. It returns the text to emit and
// RejectNone on acceptance, or "" and the rejection reason.
func (d *Deduplicator) Process(text string) (string, RejectReason) {
	d.mu.Lock()
	defer d.mu.Unlock()

	normalized := normalizeText(text)

	if normalized == normalizeText(d.lastAccepted) && d.lastAccepted != "" {
		return d.reject(RejectSameAsLast, text)
	}

	if _, ok := d.seen[normalized]; ok {
		return d.reject(RejectAlreadySeen, text)
	}

	if d.lastAccepted != "" {
		if similarity(normalized, normalizeText(d.lastAccepted)) > d.config.SimilarityThreshold {
			return d.reject(RejectSimilar, text)
		}
	}

	trimmed := d.trimOverlap(text)
	if len(strings.TrimSpace(trimmed)) < d.config.MinTextChars {
		return d.reject(RejectEmptyTrim, text)
	}

	d.lastAccepted = trimmed
	d.lastWords = strings.Fields(strings.ToLower(trimmed))
	d.seen[normalizeText(trimmed)] = struct{}{}
	d.accepted++

	return trimmed, RejectNone
}

// trimOverlap removes leading candidate words that duplicate the tail of
// the last accepted text. The longest match wins, bounded by the overlap
// window.
func (d *Deduplicator) trimOverlap(text string) string {
	if len(d.lastWords) == 0 {
		return strings.TrimSpace(text)
	}

	words := strings.Fields(text)
	maxK := d.config.OverlapWindowWords
	if len(words) < maxK {
		maxK = len(words)
	}
	if len(d.lastWords) < maxK {
		maxK = len(d.lastWords)
	}

	for k := maxK; k >= 1; k-- {
		if tailMatchesHead(d.lastWords, words, k) {
			return strings.Join(words[k:], " ")
		}
	}

	return strings.TrimSpace(text)
}

// tailMatchesHead reports whether the last k words of tail equal the
// first k words of head, case-insensitively
func tailMatchesHead(tail, head []string, k int) bool {
	offset := len(tail) - k
	for i := 0; i < k; i++ {
		if !strings.EqualFold(tail[offset+i], head[i]) {
			return false
		}
	}
	return true
}

func (d *Deduplicator) reject(reason RejectReason, text string) (string, RejectReason) {
	d.rejected++
	if d.logger != nil {
		d.logger.Debug("Deduplicator rejected text",
			slog.String("reason", string(reason)),
			slog.String("text", truncate(text, 60)),
		)
	}
	return "", reason
}

// Reset clears all session state. Called on every recording start so text
// from a previous session is accepted again as new.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastAccepted = ""
	d.lastWords = nil
	d.seen = make(map[string]struct{})
	d.accepted = 0
	d.rejected = 0
}

// GetStats returns current deduplicator statistics
func (d *Deduplicator) GetStats() DedupStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return DedupStats{
		Accepted:  d.accepted,
		Rejected:  d.rejected,
		SeenTexts: len(d.seen),
	}
}

// normalizeText lowercases and collapses whitespace for comparison
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// similarity computes word-set Jaccard similarity between two normalized
// strings: |A∩B| / |A∪B|
func similarity(a, b string) float64 {
	wordsA := strings.Fields(a)
	wordsB := strings.Fields(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(wordsA))
	for _, w := range wordsA {
		setA[w] = struct{}{}
	}

	setB := make(map[string]struct{}, len(wordsB))
	for _, w := range wordsB {
		setB[w] = struct{}{}
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}
