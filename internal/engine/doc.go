// Package engine defines the transcription engine contract and an HTTP
// client for whisper-style transcription servers.
package engine
