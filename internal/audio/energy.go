package audio

import "math"

// SkipReason explains why a chunk was not sent to the transcription engine
type SkipReason string

const (
	SkipNone     SkipReason = ""
	SkipTooShort SkipReason = "too_short"
	SkipTooQuiet SkipReason = "too_quiet"
)

// Energy calculates the RMS energy of an audio buffer
func Energy(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// EnergyGate classifies chunks as silence or signal so the pipeline can
// skip wasted transcription calls
type EnergyGate struct {
	minEnergy  float64
	minSamples int
}

// NewEnergyGate creates a gate with the given RMS threshold and minimum
// chunk length in samples
func NewEnergyGate(minEnergy float64, minSamples int) *EnergyGate {
	return &EnergyGate{
		minEnergy:  minEnergy,
		minSamples: minSamples,
	}
}

// Check returns SkipNone when the chunk is worth transcribing. Chunks
// below the minimum length are always skipped regardless of energy.
func (g *EnergyGate) Check(samples []float32) SkipReason {
	if len(samples) < g.minSamples {
		return SkipTooShort
	}

	if Energy(samples) < g.minEnergy {
		return SkipTooQuiet
	}

	return SkipNone
}
