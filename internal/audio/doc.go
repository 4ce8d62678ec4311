// Package audio handles microphone capture, silence gating, and chunk
// assembly. It accumulates device callback buffers into fixed-duration
// overlapping chunks and encodes them to WAV for transcription.
package audio
