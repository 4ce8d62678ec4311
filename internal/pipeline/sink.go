package pipeline

import "time"

// Transcript is one accepted piece of transcript text
type Transcript struct {
	Text    string    `json:"text"`
	ChunkID string    `json:"chunk_id"`
	Seq     uint64    `json:"seq"`
	At      time.Time `json:"at"`
}

// Sink receives accepted transcript texts in order. Implementations are
// called from a single goroutine and must not block for long; slow sinks
// delay emission of later texts.
type Sink interface {
	OnTranscript(t Transcript)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(t Transcript)

// OnTranscript calls f(t)
func (f SinkFunc) OnTranscript(t Transcript) {
	f(t)
}
