package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate, got: %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	content := `
audio:
  chunk_duration: 10.0
  overlap_duration: 2.0
engine:
  endpoint: "http://whisper.internal:9000/transcribe"
  workers: 5
logging:
  level: "debug"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Audio.ChunkDuration != 10.0 {
		t.Errorf("Expected chunk_duration 10.0, got %f", cfg.Audio.ChunkDuration)
	}
	if cfg.Audio.OverlapDuration != 2.0 {
		t.Errorf("Expected overlap_duration 2.0, got %f", cfg.Audio.OverlapDuration)
	}
	if cfg.Engine.Endpoint != "http://whisper.internal:9000/transcribe" {
		t.Errorf("Unexpected endpoint: %s", cfg.Engine.Endpoint)
	}
	if cfg.Engine.Workers != 5 {
		t.Errorf("Expected 5 workers, got %d", cfg.Engine.Workers)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug level, got %s", cfg.Logging.Level)
	}

	// Omitted sections keep defaults
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("Expected default sample rate 16000, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Filter.MinTextChars != 3 {
		t.Errorf("Expected default min_text_chars 3, got %d", cfg.Filter.MinTextChars)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"wrong sample rate", func(c *Config) { c.Audio.SampleRate = 44100 }},
		{"stereo input", func(c *Config) { c.Audio.Channels = 2 }},
		{"overlap exceeds chunk", func(c *Config) { c.Audio.OverlapDuration = 9.0 }},
		{"min chunk exceeds chunk", func(c *Config) { c.Audio.MinChunkDuration = 10.0 }},
		{"negative energy", func(c *Config) { c.Audio.MinEnergy = -1 }},
		{"empty endpoint", func(c *Config) { c.Engine.Endpoint = "" }},
		{"zero workers", func(c *Config) { c.Engine.Workers = 0 }},
		{"nonzero temperature", func(c *Config) { c.Engine.Temperature = 0.5 }},
		{"bad no_speech_prob", func(c *Config) { c.Engine.NoSpeechProb = 1.5 }},
		{"bad dominance", func(c *Config) { c.Filter.WordDominance = 1.5 }},
		{"ngram repeats too low", func(c *Config) { c.Filter.NgramMinRepeats = 1 }},
		{"bad similarity", func(c *Config) { c.Dedup.SimilarityThreshold = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad http port", func(c *Config) { c.HTTP.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()

	if got := cfg.Audio.GetChunkDuration(); got != 8*time.Second {
		t.Errorf("Expected 8s chunk duration, got %v", got)
	}
	if got := cfg.Audio.GetOverlapDuration(); got != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s overlap duration, got %v", got)
	}
	if got := cfg.Audio.BlockSamples(); got != 8000 {
		t.Errorf("Expected 8000 samples per block, got %d", got)
	}
	if got := cfg.Audio.OverlapSamples(); got != 24000 {
		t.Errorf("Expected 24000 overlap samples, got %d", got)
	}
	if got := cfg.Audio.MinChunkSamples(); got != 24000 {
		t.Errorf("Expected 24000 min chunk samples, got %d", got)
	}
	if got := cfg.Engine.GetTimeoutDuration(); got != 45*time.Second {
		t.Errorf("Expected 45s timeout, got %v", got)
	}
}
