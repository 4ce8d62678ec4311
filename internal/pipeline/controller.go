package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lecturekit/transcriber/internal/audio"
	"github.com/lecturekit/transcriber/internal/config"
	"github.com/lecturekit/transcriber/internal/engine"
	"github.com/lecturekit/transcriber/internal/filter"
	"github.com/lecturekit/transcriber/internal/metrics"
	"github.com/lecturekit/transcriber/internal/vocab"
)

// State represents the controller lifecycle state
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
)

// pollInterval is how often the processing loop checks whether enough
// audio has accumulated for a chunk
const pollInterval = 100 * time.Millisecond

// transcribeJob pairs a chunk with the channel its result is delivered
// on, so results can be re-serialized in submission order
type transcribeJob struct {
	chunk  *audio.Chunk
	result chan transcribeResult
}

type transcribeResult struct {
	chunk    *audio.Chunk
	segments []engine.Segment
	err      error
}

// Controller orchestrates the capture, assembly, transcription, filter
// and dedup stages of a recording session. It owns all session state,
// so Start after Stop begins with a clean slate.
type Controller struct {
	config    *config.Config
	device    audio.Device
	engine    engine.Engine
	filter    *filter.Filter
	dedup     *filter.Deduplicator
	assembler *audio.Assembler
	gate      *audio.EnergyGate
	generator vocab.Generator
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu            sync.Mutex
	state         State
	topic         string
	initialPrompt string
	sink          Sink

	cancel context.CancelFunc
	done   chan struct{}

	// drainThreshold is the pending sample count at which a chunk is
	// drained; the overlap tail prepended by the assembler brings the
	// chunk up to the full chunk duration.
	drainThreshold int

	chunksProcessed uint64
	textsEmitted    uint64
}

// ControllerStats represents pipeline statistics
type ControllerStats struct {
	State           State                `json:"state"`
	Topic           string               `json:"topic"`
	ChunksProcessed uint64               `json:"chunks_processed"`
	TextsEmitted    uint64               `json:"texts_emitted"`
	Assembler       audio.AssemblerStats `json:"assembler"`
	Dedup           filter.DedupStats    `json:"dedup"`
}

// NewController creates a pipeline controller. The device may be nil when
// no capture hardware is available; Start will then fail with
// ErrDeviceUnavailable. The generator and metrics are optional.
func NewController(cfg *config.Config, device audio.Device, eng engine.Engine,
	generator vocab.Generator, m *metrics.Metrics, logger *slog.Logger) *Controller {

	f := filter.New(filter.Config{
		MinTextChars:      cfg.Filter.MinTextChars,
		WordDominance:     cfg.Filter.WordDominance,
		DominanceMinWords: cfg.Filter.DominanceMinWords,
		NgramMinRepeats:   cfg.Filter.NgramMinRepeats,
		MinStrippedChars:  cfg.Filter.MinStrippedChars,
	}, logger)

	d := filter.NewDeduplicator(filter.DedupConfig{
		SimilarityThreshold: cfg.Dedup.SimilarityThreshold,
		OverlapWindowWords:  cfg.Dedup.OverlapWindowWords,
		MinTextChars:        cfg.Filter.MinTextChars,
	}, logger)

	assembler := audio.NewAssembler(audio.AssemblerConfig{
		SampleRate:     cfg.Audio.SampleRate,
		OverlapSamples: cfg.Audio.OverlapSamples(),
	})

	gate := audio.NewEnergyGate(cfg.Audio.MinEnergy, cfg.Audio.MinChunkSamples())

	chunkSamples := int(cfg.Audio.ChunkDuration * float64(cfg.Audio.SampleRate))

	return &Controller{
		config:         cfg,
		device:         device,
		engine:         eng,
		filter:         f,
		dedup:          d,
		assembler:      assembler,
		gate:           gate,
		generator:      generator,
		metrics:        m,
		logger:         logger,
		state:          StateIdle,
		drainThreshold: chunkSamples - cfg.Audio.OverlapSamples(),
	}
}

// SetTopic sets the lecture topic and rebuilds the engine biasing prompt
// and the topic-specific leak patterns. Safe to call at any time; an
// in-flight session picks up the new prompt on its next chunk.
func (c *Controller) SetTopic(ctx context.Context, topic string) error {
	topic = strings.TrimSpace(topic)

	var v vocab.Vocabulary
	if c.generator != nil && topic != "" {
		var err error
		v, err = c.generator.Generate(ctx, topic)
		if err != nil {
			return fmt.Errorf("failed to generate vocabulary: %w", err)
		}
	} else {
		v = vocab.Fallback(topic)
	}

	prompt := vocab.BuildInitialPrompt(v)
	patterns := append(vocab.BuildLeakPatterns(v), filter.GenericLeakPatterns()...)

	c.mu.Lock()
	c.topic = topic
	c.initialPrompt = prompt
	c.mu.Unlock()

	c.filter.SetLeakPatterns(patterns)

	c.logger.Info("Topic configured",
		slog.String("topic", topic),
		slog.String("course_name", v.CourseName),
		slog.Int("keywords", len(v.Keywords)))

	return nil
}

// Start begins a recording session and delivers accepted transcript
// texts to the sink. It is idempotent: calling Start while recording
// returns nil without disturbing the session. All per-session state is
// cleared before capture begins.
func (c *Controller) Start(sink Sink) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateRecording {
		c.logger.Debug("Start ignored, session already recording")
		return nil
	}

	if c.device == nil {
		return audio.ErrDeviceUnavailable
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := c.engine.Ready(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrEngineUnavailable, err)
	}

	c.assembler.Reset()
	c.dedup.Reset()
	c.sink = sink

	if err := c.device.Open(c.onBlock); err != nil {
		return fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	c.cancel = runCancel
	c.done = make(chan struct{})
	c.state = StateRecording

	if c.metrics != nil {
		c.metrics.Recording.Set(1)
	}

	go c.run(runCtx)

	c.logger.Info("Recording started", slog.String("topic", c.topic))
	return nil
}

// Stop ends the session, transcribes any remaining audio, and waits for
// in-flight work to finish before returning. Calling Stop while idle is
// a no-op.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	// Stop capture first so the final drain sees all delivered blocks.
	if err := c.device.Close(); err != nil {
		c.logger.Warn("Audio device close failed", slog.String("error", err.Error()))
	}

	cancel()
	<-done

	c.mu.Lock()
	c.state = StateIdle
	c.sink = nil
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.Recording.Set(0)
	}

	c.logger.Info("Recording stopped",
		slog.Uint64("chunks_processed", c.chunksProcessed),
		slog.Uint64("texts_emitted", c.textsEmitted))
	return nil
}

// GetState returns the current lifecycle state
func (c *Controller) GetState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// GetStats returns current pipeline statistics
func (c *Controller) GetStats() ControllerStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return ControllerStats{
		State:           c.state,
		Topic:           c.topic,
		ChunksProcessed: c.chunksProcessed,
		TextsEmitted:    c.textsEmitted,
		Assembler:       c.assembler.GetStats(),
		Dedup:           c.dedup.GetStats(),
	}
}

// onBlock receives capture buffers from the device callback
func (c *Controller) onBlock(block []float32) {
	c.assembler.Append(block)
	if c.metrics != nil {
		c.metrics.BlocksCaptured.Inc()
	}
}

// run is the session processing loop. It polls the assembler, hands full
// chunks to the worker pool, and on shutdown drains the remaining audio
// before closing the pool.
func (c *Controller) run(ctx context.Context) {
	defer close(c.done)

	workers := c.config.Engine.Workers
	jobs := make(chan transcribeJob, workers)
	results := make(chan chan transcribeResult, workers*2)

	var workerWG sync.WaitGroup
	workerWG.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer workerWG.Done()
			c.transcribeWorker(jobs)
		}()
	}

	var emitWG sync.WaitGroup
	emitWG.Add(1)
	go func() {
		defer emitWG.Done()
		c.emitLoop(results)
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final drain: whatever audio arrived since the last
			// chunk still gets transcribed.
			c.submitChunk(jobs, results)
			close(jobs)
			workerWG.Wait()
			close(results)
			emitWG.Wait()
			return
		case <-ticker.C:
			if c.assembler.PendingSamples() >= c.drainThreshold {
				c.submitChunk(jobs, results)
			}
		}
	}
}

// submitChunk drains the assembler and hands the chunk to the worker
// pool. The result channel is queued before the job is dispatched, so
// the emit loop sees results in chunk order regardless of which worker
// finishes first.
func (c *Controller) submitChunk(jobs chan<- transcribeJob, results chan<- chan transcribeResult) {
	chunk := c.assembler.Drain()
	if chunk == nil {
		return
	}

	if reason := c.gate.Check(chunk.Samples); reason != audio.SkipNone {
		c.logger.Debug("Chunk skipped",
			slog.String("chunk_id", chunk.ID),
			slog.String("reason", string(reason)),
			slog.Float64("duration", chunk.Duration.Seconds()))
		if c.metrics != nil {
			c.metrics.ChunksSkipped.WithLabelValues(string(reason)).Inc()
		}
		return
	}

	if c.metrics != nil {
		c.metrics.ChunksAssembled.Inc()
		c.metrics.ChunkDuration.Observe(chunk.Duration.Seconds())
	}

	result := make(chan transcribeResult, 1)
	results <- result
	jobs <- transcribeJob{chunk: chunk, result: result}
}

// transcribeWorker sends chunks to the engine until the job channel
// closes
func (c *Controller) transcribeWorker(jobs <-chan transcribeJob) {
	for job := range jobs {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.Engine.GetTimeoutDuration())
		start := time.Now()
		segments, _, err := c.engine.Transcribe(ctx, job.chunk, c.buildOptions())
		cancel()

		if c.metrics != nil {
			c.metrics.EngineRequests.Inc()
			c.metrics.EngineDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				c.metrics.EngineFailures.Inc()
			} else {
				c.metrics.EngineSuccesses.Inc()
			}
		}

		job.result <- transcribeResult{chunk: job.chunk, segments: segments, err: err}
		close(job.result)
	}
}

// emitLoop consumes transcription results in submission order and runs
// the single-writer stages: filtering, repair, dedup and the sink
func (c *Controller) emitLoop(results <-chan chan transcribeResult) {
	for resultCh := range results {
		res, ok := <-resultCh
		if !ok {
			continue
		}
		c.processResult(res)
	}
}

// processResult applies the text stages to one chunk's segments
func (c *Controller) processResult(res transcribeResult) {
	c.mu.Lock()
	c.chunksProcessed++
	sink := c.sink
	c.mu.Unlock()

	if res.err != nil {
		c.logger.Warn("Transcription failed",
			slog.String("chunk_id", res.chunk.ID),
			slog.String("error", res.err.Error()))
		return
	}

	kept := make([]string, 0, len(res.segments))
	for _, seg := range res.segments {
		if c.metrics != nil {
			c.metrics.SegmentsReceived.Inc()
		}

		if seg.NoSpeechProb > c.config.Engine.NoSpeechProb {
			c.logger.Debug("Segment dropped, no speech",
				slog.String("chunk_id", res.chunk.ID),
				slog.Float64("no_speech_prob", seg.NoSpeechProb))
			if c.metrics != nil {
				c.metrics.SegmentsFiltered.WithLabelValues("no_speech").Inc()
			}
			continue
		}

		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		if c.filter.IsHallucination(text) {
			if c.metrics != nil {
				c.metrics.SegmentsFiltered.WithLabelValues("hallucination").Inc()
			}
			continue
		}

		kept = append(kept, text)
	}

	combined := strings.TrimSpace(strings.Join(kept, " "))
	if combined == "" {
		return
	}

	// Segments that pass individually can still form a hallucinated
	// whole, typically one phrase repeated across segments.
	if c.filter.IsHallucination(combined) {
		if c.metrics != nil {
			c.metrics.SegmentsFiltered.WithLabelValues("hallucination").Inc()
		}
		return
	}

	repaired := c.filter.StripRepetitions(combined)
	if repaired == "" {
		return
	}
	if repaired != combined && c.metrics != nil {
		c.metrics.TextsRepaired.Inc()
	}

	text, reason := c.dedup.Process(repaired)
	if reason != filter.RejectNone {
		if c.metrics != nil {
			c.metrics.TextsRejected.WithLabelValues(string(reason)).Inc()
		}
		return
	}

	c.mu.Lock()
	c.textsEmitted++
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.TextsAccepted.Inc()
	}

	if sink != nil {
		sink.OnTranscript(Transcript{
			Text:    text,
			ChunkID: res.chunk.ID,
			Seq:     res.chunk.Seq,
			At:      time.Now(),
		})
	}
}

// buildOptions assembles the engine request parameters from config and
// the current topic prompt
func (c *Controller) buildOptions() engine.Options {
	c.mu.Lock()
	prompt := c.initialPrompt
	c.mu.Unlock()

	return engine.Options{
		Language:      c.config.Engine.Language,
		Model:         c.config.Engine.Model,
		BeamSize:      c.config.Engine.BeamSize,
		Temperature:   c.config.Engine.Temperature,
		InitialPrompt: prompt,
		KeepContext:   c.config.Engine.KeepContext,
		LogProbFloor:  c.config.Engine.LogProbFloor,
		VADThreshold:  c.config.Engine.VADThreshold,
		MinSilenceMs:  c.config.Engine.MinSilenceMs,
		SpeechPadMs:   c.config.Engine.SpeechPadMs,
		HallucSilence: c.config.Engine.HallucSilence,
	}
}
