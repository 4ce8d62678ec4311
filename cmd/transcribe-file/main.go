package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"

	"github.com/lecturekit/transcriber/internal/audio"
	"github.com/lecturekit/transcriber/internal/config"
	"github.com/lecturekit/transcriber/internal/engine"
	"github.com/lecturekit/transcriber/internal/filter"
	"github.com/lecturekit/transcriber/internal/vocab"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	topic := flag.String("topic", "", "Lecture topic for vocabulary biasing")
	output := flag.String("output", "", "Output file for transcript lines (default stdout)")
	chunked := flag.Bool("chunked", true, "Process the file in overlapping chunks")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: transcribe-file [flags] <input.wav>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	inputPath := flag.Arg(0)

	cfg := loadConfig(*configPath)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	samples, err := readWAV(inputPath, cfg.Audio.SampleRate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", inputPath, err)
		os.Exit(1)
	}

	engineClient, err := engine.NewClient(engine.Config{
		Endpoint:      cfg.Engine.Endpoint,
		APIKey:        cfg.Engine.APIKey,
		Timeout:       cfg.Engine.GetTimeoutDuration(),
		MaxRetries:    cfg.Engine.MaxRetries,
		MaxConcurrent: 1,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create engine client: %v\n", err)
		os.Exit(1)
	}
	defer engineClient.Close()

	f := filter.New(filter.Config{
		MinTextChars:      cfg.Filter.MinTextChars,
		WordDominance:     cfg.Filter.WordDominance,
		DominanceMinWords: cfg.Filter.DominanceMinWords,
		NgramMinRepeats:   cfg.Filter.NgramMinRepeats,
		MinStrippedChars:  cfg.Filter.MinStrippedChars,
	}, logger)

	dedup := filter.NewDeduplicator(filter.DedupConfig{
		SimilarityThreshold: cfg.Dedup.SimilarityThreshold,
		OverlapWindowWords:  cfg.Dedup.OverlapWindowWords,
		MinTextChars:        cfg.Filter.MinTextChars,
	}, logger)

	v := vocab.Fallback(*topic)
	prompt := ""
	if *topic != "" {
		prompt = vocab.BuildInitialPrompt(v)
		f.SetLeakPatterns(append(vocab.BuildLeakPatterns(v), filter.GenericLeakPatterns()...))
	}

	out := os.Stdout
	if *output != "" {
		file, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", *output, err)
			os.Exit(1)
		}
		defer file.Close()
		out = file
	}
	writer := bufio.NewWriter(out)
	defer writer.Flush()

	opts := engine.Options{
		Language:      cfg.Engine.Language,
		Model:         cfg.Engine.Model,
		BeamSize:      cfg.Engine.BeamSize,
		Temperature:   cfg.Engine.Temperature,
		InitialPrompt: prompt,
		KeepContext:   cfg.Engine.KeepContext,
		LogProbFloor:  cfg.Engine.LogProbFloor,
		VADThreshold:  cfg.Engine.VADThreshold,
		MinSilenceMs:  cfg.Engine.MinSilenceMs,
		SpeechPadMs:   cfg.Engine.SpeechPadMs,
		HallucSilence: cfg.Engine.HallucSilence,
	}

	gate := audio.NewEnergyGate(cfg.Audio.MinEnergy, cfg.Audio.MinChunkSamples())
	chunkSamples := int(cfg.Audio.ChunkDuration * float64(cfg.Audio.SampleRate))
	step := chunkSamples - cfg.Audio.OverlapSamples()

	var seq uint64
	for start := 0; start < len(samples); start += step {
		end := start + chunkSamples
		if end > len(samples) {
			end = len(samples)
		}
		window := samples[start:end]
		if !*chunked {
			window = samples
			end = len(samples)
		}

		seq++
		chunk := &audio.Chunk{
			ID:         uuid.NewString(),
			Seq:        seq,
			Samples:    window,
			SampleRate: cfg.Audio.SampleRate,
			Duration:   time.Duration(float64(len(window)) / float64(cfg.Audio.SampleRate) * float64(time.Second)),
		}

		if reason := gate.Check(chunk.Samples); reason != audio.SkipNone {
			if end == len(samples) {
				break
			}
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Engine.GetTimeoutDuration())
		segments, _, err := engineClient.Transcribe(ctx, chunk, opts)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Transcription failed for chunk %d: %v\n", seq, err)
			if end == len(samples) {
				break
			}
			continue
		}

		if text := processSegments(cfg, f, dedup, segments); text != "" {
			fmt.Fprintln(writer, text)
		}

		if end == len(samples) {
			break
		}
	}
}

// processSegments applies the same text stages the live pipeline uses:
// per-segment filtering, combined-text filtering, repetition repair and
// de-duplication
func processSegments(cfg *config.Config, f *filter.Filter, dedup *filter.Deduplicator, segments []engine.Segment) string {
	kept := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg.NoSpeechProb > cfg.Engine.NoSpeechProb {
			continue
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" || f.IsHallucination(text) {
			continue
		}
		kept = append(kept, text)
	}

	combined := strings.TrimSpace(strings.Join(kept, " "))
	if combined == "" || f.IsHallucination(combined) {
		return ""
	}

	repaired := f.StripRepetitions(combined)
	if repaired == "" {
		return ""
	}

	text, reason := dedup.Process(repaired)
	if reason != filter.RejectNone {
		return ""
	}
	return text
}

// loadConfig loads the config file, falling back to defaults when the
// file does not exist so the CLI works without any setup
func loadConfig(path string) *config.Config {
	if _, err := os.Stat(path); err != nil {
		return config.Default()
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// readWAV decodes a WAV file to mono float32 at the target sample rate,
// downmixing channels and resampling with linear interpolation as needed
func readWAV(path string, targetRate int) ([]float32, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode wav: %w", err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, fmt.Errorf("wav file contains no audio")
	}

	samples := toMonoFloat32(buf, int(decoder.BitDepth))

	if buf.Format.SampleRate != targetRate {
		samples = resample(samples, buf.Format.SampleRate, targetRate)
	}

	return samples, nil
}

// toMonoFloat32 converts an integer PCM buffer to mono float32 in [-1, 1]
func toMonoFloat32(buf *gaudio.IntBuffer, bitDepth int) []float32 {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}

	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += float32(buf.Data[i*channels+ch]) / scale
		}
		samples[i] = sum / float32(channels)
	}

	return samples
}

// resample converts samples between rates with linear interpolation.
// Adequate for speech going into a transcription model.
func resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	outLen := int(float64(len(samples)) / ratio)
	out := make([]float32, outLen)

	for i := 0; i < outLen; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))

		if idx+1 < len(samples) {
			out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
		} else {
			out[i] = samples[idx]
		}
	}

	return out
}
