// Package filter implements the anti-hallucination stages of the
// transcription pipeline: static pattern rejection, prompt-leak
// detection, repetition repair, and cross-chunk de-duplication.
package filter
