package engine

import (
	"context"
	"errors"

	"github.com/lecturekit/transcriber/internal/audio"
)

// ErrEngineUnavailable indicates the transcription engine cannot be
// reached. Returned from readiness checks so recording can fail fast
// instead of producing a session with no output.
var ErrEngineUnavailable = errors.New("transcription engine unavailable")

// Segment is one engine-produced span of recognized text within a chunk
type Segment struct {
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Text         string  `json:"text"`
	NoSpeechProb float64 `json:"no_speech_prob"`
}

// Info carries chunk-level metadata reported by the engine
type Info struct {
	Language     string  `json:"language,omitempty"`
	LanguageProb float64 `json:"language_probability,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
}

// Options tunes a single transcription call. Temperature 0 and a fixed
// beam width keep repeated runs on identical input reproducible.
type Options struct {
	Language      string
	Model         string
	BeamSize      int
	Temperature   float64
	InitialPrompt string
	KeepContext   bool
	LogProbFloor  float64
	VADThreshold  float64
	MinSilenceMs  int
	SpeechPadMs   int
	HallucSilence float64
}

// Engine is the acoustic transcription capability: a normalized mono
// chunk in, ordered timed segments out. Implementations must be safe for
// concurrent use by multiple workers.
type Engine interface {
	Transcribe(ctx context.Context, chunk *audio.Chunk, opts Options) ([]Segment, Info, error)
	Ready(ctx context.Context) error
}
