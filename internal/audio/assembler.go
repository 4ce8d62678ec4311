package audio

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Volume normalization bounds: quiet chunks are boosted toward the target
// peak, capped so noise is not amplified into clipping.
const (
	normalizeBelow   = 0.5
	normalizeTarget  = 0.95
	normalizeMaxGain = 3.0
)

// Chunk represents one assembled window of audio ready for transcription
type Chunk struct {
	ID          string
	Seq         uint64
	Samples     []float32
	SampleRate  int
	Duration    time.Duration
	AssembledAt time.Time
}

// AssemblerConfig contains chunk assembly parameters
type AssemblerConfig struct {
	SampleRate     int
	OverlapSamples int
}

// Assembler accumulates capture buffers and emits fixed-duration chunks
// with an overlap tail carried from the previous emission. The capture
// side appends, the processing side drains; both go through one mutex so
// no buffer is lost or handed out twice.
type Assembler struct {
	config AssemblerConfig

	mu             sync.Mutex
	pending        [][]float32
	pendingSamples int
	overlapTail    []float32

	seq             uint64
	chunksAssembled uint64
}

// AssemblerStats represents assembler statistics
type AssemblerStats struct {
	PendingSamples  int    `json:"pending_samples"`
	ChunksAssembled uint64 `json:"chunks_assembled"`
	OverlapSamples  int    `json:"overlap_samples"`
}

// NewAssembler creates a new chunk assembler
func NewAssembler(config AssemblerConfig) *Assembler {
	return &Assembler{
		config: config,
	}
}

// Append adds a capture buffer to the pending queue. It copies the data
// so the device layer can reuse its buffer, and never blocks on
// processing.
func (a *Assembler) Append(block []float32) {
	if len(block) == 0 {
		return
	}

	buf := make([]float32, len(block))
	copy(buf, block)

	a.mu.Lock()
	a.pending = append(a.pending, buf)
	a.pendingSamples += len(buf)
	a.mu.Unlock()
}

// PendingSamples returns the number of samples waiting to be drained
func (a *Assembler) PendingSamples() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pendingSamples
}

// Drain concatenates all pending buffers into one chunk, prepends the
// overlap tail from the previous drain, stores the new tail, and
// normalizes volume. Returns nil when nothing is pending.
func (a *Assembler) Drain() *Chunk {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.pending) == 0 {
		return nil
	}

	total := a.pendingSamples + len(a.overlapTail)
	samples := make([]float32, 0, total)
	samples = append(samples, a.overlapTail...)
	for _, buf := range a.pending {
		samples = append(samples, buf...)
	}

	a.pending = a.pending[:0]
	a.pendingSamples = 0

	// Slice the new tail from the just-built chunk so the next chunk
	// starts with the samples this one ends with.
	if len(samples) > a.config.OverlapSamples {
		tail := make([]float32, a.config.OverlapSamples)
		copy(tail, samples[len(samples)-a.config.OverlapSamples:])
		a.overlapTail = tail
	}

	normalize(samples)

	a.seq++
	a.chunksAssembled++

	return &Chunk{
		ID:          uuid.NewString(),
		Seq:         a.seq,
		Samples:     samples,
		SampleRate:  a.config.SampleRate,
		Duration:    time.Duration(float64(len(samples)) / float64(a.config.SampleRate) * float64(time.Second)),
		AssembledAt: time.Now(),
	}
}

// Reset clears all pending audio and the overlap tail for a new session
func (a *Assembler) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pending = nil
	a.pendingSamples = 0
	a.overlapTail = nil
	a.seq = 0
}

// GetStats returns current assembler statistics
func (a *Assembler) GetStats() AssemblerStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return AssemblerStats{
		PendingSamples:  a.pendingSamples,
		ChunksAssembled: a.chunksAssembled,
		OverlapSamples:  len(a.overlapTail),
	}
}

// normalize boosts quiet audio toward the target peak in place. Audio
// already above the quiet threshold is left untouched.
func normalize(samples []float32) {
	var maxAbs float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > maxAbs {
			maxAbs = s
		}
	}

	if maxAbs <= 0 || maxAbs >= normalizeBelow {
		return
	}

	scale := normalizeTarget / maxAbs
	if scale > normalizeMaxGain {
		scale = normalizeMaxGain
	}

	for i := range samples {
		samples[i] *= scale
	}
}
