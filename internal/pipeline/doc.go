// Package pipeline orchestrates the live transcription session: audio
// capture, chunk assembly, parallel transcription, hallucination
// filtering and cross-chunk de-duplication.
package pipeline
