package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Audio   AudioConfig   `yaml:"audio"`
	Engine  EngineConfig  `yaml:"engine"`
	Filter  FilterConfig  `yaml:"filter"`
	Dedup   DedupConfig   `yaml:"dedup"`
	Vocab   VocabConfig   `yaml:"vocab"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

// AudioConfig contains capture and chunk assembly parameters
type AudioConfig struct {
	SampleRate       int     `yaml:"sample_rate"`
	Channels         int     `yaml:"channels"`
	BlockDuration    float64 `yaml:"block_duration"`     // seconds per device callback buffer
	ChunkDuration    float64 `yaml:"chunk_duration"`     // seconds per transcription chunk
	OverlapDuration  float64 `yaml:"overlap_duration"`   // seconds carried into the next chunk
	MinChunkDuration float64 `yaml:"min_chunk_duration"` // chunks shorter than this are skipped
	MinEnergy        float64 `yaml:"min_energy"`         // RMS threshold below which a chunk is silence
	CaptureRetries   int     `yaml:"capture_retries"`    // transient device error retries
}

// EngineConfig contains transcription engine client configuration
type EngineConfig struct {
	Endpoint      string  `yaml:"endpoint"`
	APIKey        string  `yaml:"api_key"`
	Timeout       int     `yaml:"timeout"` // seconds
	MaxRetries    int     `yaml:"max_retries"`
	Workers       int     `yaml:"workers"` // parallel transcription workers
	Language      string  `yaml:"language"`
	Model         string  `yaml:"model"`
	BeamSize      int     `yaml:"beam_size"`
	Temperature   float64 `yaml:"temperature"`
	NoSpeechProb  float64 `yaml:"no_speech_prob"` // per-segment rejection threshold
	LogProbFloor  float64 `yaml:"log_prob_floor"` // engine log-probability threshold
	VADThreshold  float64 `yaml:"vad_threshold"`  // engine-side speech detection threshold
	MinSilenceMs  int     `yaml:"min_silence_ms"` // engine-side minimum silence gap
	SpeechPadMs   int     `yaml:"speech_pad_ms"`  // engine-side padding around speech
	KeepContext   bool    `yaml:"keep_context"`   // condition on previous text
	HallucSilence float64 `yaml:"halluc_silence"` // engine-side hallucination silence threshold, seconds
}

// FilterConfig contains hallucination filter tuning parameters.
// The thresholds are empirical; they are surfaced here so deployments can
// adjust them without a code change.
type FilterConfig struct {
	MinTextChars      int     `yaml:"min_text_chars"`      // texts shorter than this are rejected
	WordDominance     float64 `yaml:"word_dominance"`      // single-word share above which text is rejected
	DominanceMinWords int     `yaml:"dominance_min_words"` // dominance check applies from this word count
	NgramMinRepeats   int     `yaml:"ngram_min_repeats"`   // consecutive n-gram repeats collapsed by repair
	MinStrippedChars  int     `yaml:"min_stripped_chars"`  // remainder length required after artifact stripping
}

// DedupConfig contains cross-chunk de-duplication parameters
type DedupConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"` // Jaccard cutoff against last accepted text
	OverlapWindowWords  int     `yaml:"overlap_window_words"` // leading-word trim window
}

// VocabConfig contains topic vocabulary generator configuration
type VocabConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout int    `yaml:"timeout"` // seconds
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the tuned defaults for live lecture capture
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:       16000,
			Channels:         1,
			BlockDuration:    0.5,
			ChunkDuration:    8.0,
			OverlapDuration:  1.5,
			MinChunkDuration: 1.5,
			MinEnergy:        0.0001,
			CaptureRetries:   3,
		},
		Engine: EngineConfig{
			Endpoint:      "http://localhost:9000/transcribe",
			Timeout:       45,
			MaxRetries:    2,
			Workers:       3,
			Language:      "en",
			Model:         "whisper-small",
			BeamSize:      5,
			Temperature:   0.0,
			NoSpeechProb:  0.6,
			LogProbFloor:  -1.0,
			VADThreshold:  0.35,
			MinSilenceMs:  600,
			SpeechPadMs:   400,
			KeepContext:   true,
			HallucSilence: 2.0,
		},
		Filter: FilterConfig{
			MinTextChars:      3,
			WordDominance:     0.7,
			DominanceMinWords: 4,
			NgramMinRepeats:   3,
			MinStrippedChars:  5,
		},
		Dedup: DedupConfig{
			SimilarityThreshold: 0.8,
			OverlapWindowWords:  8,
		},
		Vocab: VocabConfig{
			Enabled: false,
			Model:   "gemini-2.0-flash",
			Timeout: 15,
		},
		HTTP: HTTPConfig{
			Port:    8080,
			Address: "0.0.0.0",
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file, applying defaults for
// omitted sections
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	if err := c.Filter.Validate(); err != nil {
		return fmt.Errorf("filter config: %w", err)
	}

	if err := c.Dedup.Validate(); err != nil {
		return fmt.Errorf("dedup config: %w", err)
	}

	if err := c.Vocab.Validate(); err != nil {
		return fmt.Errorf("vocab config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 16000 Hz, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.BlockDuration <= 0 || a.BlockDuration > 2 {
		return fmt.Errorf("block_duration must be in (0, 2] seconds, got %f", a.BlockDuration)
	}

	if a.ChunkDuration <= 0 {
		return fmt.Errorf("chunk_duration must be positive, got %f", a.ChunkDuration)
	}

	if a.OverlapDuration < 0 || a.OverlapDuration >= a.ChunkDuration {
		return fmt.Errorf("overlap_duration (%f) must be non-negative and less than chunk_duration (%f)",
			a.OverlapDuration, a.ChunkDuration)
	}

	if a.MinChunkDuration <= 0 || a.MinChunkDuration > a.ChunkDuration {
		return fmt.Errorf("min_chunk_duration (%f) must be positive and at most chunk_duration (%f)",
			a.MinChunkDuration, a.ChunkDuration)
	}

	if a.MinEnergy < 0 {
		return fmt.Errorf("min_energy cannot be negative, got %f", a.MinEnergy)
	}

	if a.CaptureRetries < 0 {
		return fmt.Errorf("capture_retries cannot be negative, got %d", a.CaptureRetries)
	}

	return nil
}

// Validate validates engine configuration
func (e *EngineConfig) Validate() error {
	if e.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if e.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", e.Timeout)
	}

	if e.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", e.MaxRetries)
	}

	if e.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", e.Workers)
	}

	if e.BeamSize < 1 {
		return fmt.Errorf("beam_size must be at least 1, got %d", e.BeamSize)
	}

	if e.Temperature != 0 {
		return fmt.Errorf("temperature must be 0 for reproducible output, got %f", e.Temperature)
	}

	if e.NoSpeechProb < 0 || e.NoSpeechProb > 1 {
		return fmt.Errorf("no_speech_prob must be between 0 and 1, got %f", e.NoSpeechProb)
	}

	if e.VADThreshold < 0 || e.VADThreshold > 1 {
		return fmt.Errorf("vad_threshold must be between 0 and 1, got %f", e.VADThreshold)
	}

	if e.MinSilenceMs < 0 {
		return fmt.Errorf("min_silence_ms cannot be negative, got %d", e.MinSilenceMs)
	}

	if e.SpeechPadMs < 0 {
		return fmt.Errorf("speech_pad_ms cannot be negative, got %d", e.SpeechPadMs)
	}

	return nil
}

// Validate validates filter configuration
func (f *FilterConfig) Validate() error {
	if f.MinTextChars < 1 {
		return fmt.Errorf("min_text_chars must be at least 1, got %d", f.MinTextChars)
	}

	if f.WordDominance <= 0 || f.WordDominance > 1 {
		return fmt.Errorf("word_dominance must be in (0, 1], got %f", f.WordDominance)
	}

	if f.DominanceMinWords < 2 {
		return fmt.Errorf("dominance_min_words must be at least 2, got %d", f.DominanceMinWords)
	}

	if f.NgramMinRepeats < 2 {
		return fmt.Errorf("ngram_min_repeats must be at least 2, got %d", f.NgramMinRepeats)
	}

	if f.MinStrippedChars < 0 {
		return fmt.Errorf("min_stripped_chars cannot be negative, got %d", f.MinStrippedChars)
	}

	return nil
}

// Validate validates dedup configuration
func (d *DedupConfig) Validate() error {
	if d.SimilarityThreshold <= 0 || d.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in (0, 1], got %f", d.SimilarityThreshold)
	}

	if d.OverlapWindowWords < 1 {
		return fmt.Errorf("overlap_window_words must be at least 1, got %d", d.OverlapWindowWords)
	}

	return nil
}

// Validate validates vocab configuration
func (v *VocabConfig) Validate() error {
	if !v.Enabled {
		return nil
	}

	if v.Model == "" {
		return fmt.Errorf("model cannot be empty when vocab generation is enabled")
	}

	if v.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", v.Timeout)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetBlockDuration returns the device block duration as a time.Duration
func (a *AudioConfig) GetBlockDuration() time.Duration {
	return time.Duration(a.BlockDuration * float64(time.Second))
}

// GetChunkDuration returns the chunk duration as a time.Duration
func (a *AudioConfig) GetChunkDuration() time.Duration {
	return time.Duration(a.ChunkDuration * float64(time.Second))
}

// GetOverlapDuration returns the overlap duration as a time.Duration
func (a *AudioConfig) GetOverlapDuration() time.Duration {
	return time.Duration(a.OverlapDuration * float64(time.Second))
}

// GetMinChunkDuration returns the minimum chunk duration as a time.Duration
func (a *AudioConfig) GetMinChunkDuration() time.Duration {
	return time.Duration(a.MinChunkDuration * float64(time.Second))
}

// BlockSamples returns the number of samples per device callback buffer
func (a *AudioConfig) BlockSamples() int {
	return int(a.BlockDuration * float64(a.SampleRate))
}

// OverlapSamples returns the number of samples carried into the next chunk
func (a *AudioConfig) OverlapSamples() int {
	return int(a.OverlapDuration * float64(a.SampleRate))
}

// MinChunkSamples returns the minimum number of samples a chunk must hold
func (a *AudioConfig) MinChunkSamples() int {
	return int(a.MinChunkDuration * float64(a.SampleRate))
}

// GetTimeoutDuration returns the engine request timeout as a time.Duration
func (e *EngineConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(e.Timeout) * time.Second
}

// GetTimeoutDuration returns the vocab generation timeout as a time.Duration
func (v *VocabConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(v.Timeout) * time.Second
}
