package audio

import (
	"math"
	"testing"
)

func TestEnergyOfSilence(t *testing.T) {
	samples := make([]float32, 16000)
	if got := Energy(samples); got != 0 {
		t.Errorf("Expected zero energy for silence, got %f", got)
	}
}

func TestEnergyOfEmptyBuffer(t *testing.T) {
	if got := Energy(nil); got != 0 {
		t.Errorf("Expected zero energy for empty buffer, got %f", got)
	}
}

func TestEnergyOfConstantSignal(t *testing.T) {
	samples := make([]float32, 1000)
	for i := range samples {
		samples[i] = 0.5
	}

	got := Energy(samples)
	if math.Abs(got-0.5) > 1e-6 {
		t.Errorf("Expected RMS 0.5 for constant 0.5 signal, got %f", got)
	}
}

func TestEnergyOfSineWave(t *testing.T) {
	samples := make([]float32, 16000)
	for i := range samples {
		samples[i] = float32(0.8 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}

	// RMS of a sine wave is amplitude / sqrt(2)
	expected := 0.8 / math.Sqrt2
	got := Energy(samples)
	if math.Abs(got-expected) > 0.01 {
		t.Errorf("Expected RMS about %f, got %f", expected, got)
	}
}

func TestEnergyGate(t *testing.T) {
	gate := NewEnergyGate(0.0001, 24000)

	quiet := make([]float32, 32000)
	loud := make([]float32, 32000)
	for i := range loud {
		loud[i] = 0.1
	}
	short := make([]float32, 8000)
	for i := range short {
		short[i] = 0.1
	}

	tests := []struct {
		name    string
		samples []float32
		want    SkipReason
	}{
		{"loud long chunk passes", loud, SkipNone},
		{"silent chunk skipped", quiet, SkipTooQuiet},
		{"short chunk skipped", short, SkipTooShort},
		{"empty chunk skipped", nil, SkipTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gate.Check(tt.samples); got != tt.want {
				t.Errorf("Check() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnergyGateShortCheckBeforeEnergy(t *testing.T) {
	// A chunk that is both short and quiet reports too_short
	gate := NewEnergyGate(0.0001, 24000)
	quiet := make([]float32, 100)

	if got := gate.Check(quiet); got != SkipTooShort {
		t.Errorf("Expected too_short for short quiet chunk, got %q", got)
	}
}
