package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lecturekit/transcriber/internal/audio"
	"github.com/lecturekit/transcriber/internal/config"
	"github.com/lecturekit/transcriber/internal/engine"
	"github.com/lecturekit/transcriber/internal/metrics"
	"github.com/lecturekit/transcriber/internal/pipeline"
	"github.com/lecturekit/transcriber/internal/server"
	"github.com/lecturekit/transcriber/internal/vocab"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "lecture-transcriber"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	topic := flag.String("topic", "", "Lecture topic for vocabulary biasing")
	autoStart := flag.Bool("start", false, "Start recording immediately")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Float64("chunk_duration", cfg.Audio.ChunkDuration),
		slog.Float64("overlap_duration", cfg.Audio.OverlapDuration),
		slog.Float64("min_energy", cfg.Audio.MinEnergy),
		slog.String("engine_endpoint", cfg.Engine.Endpoint),
		slog.Int("engine_workers", cfg.Engine.Workers),
		slog.Bool("vocab_enabled", cfg.Vocab.Enabled),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize audio capture device
	device, err := audio.NewPortAudioDevice(audio.DeviceConfig{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		BlockSize:  cfg.Audio.BlockSamples(),
		MaxRetries: cfg.Audio.CaptureRetries,
	}, logger)
	if err != nil {
		// The controller reports ErrDeviceUnavailable when a session is
		// started, so the HTTP API stays usable without a microphone.
		logger.Warn("Audio device unavailable", slog.String("error", err.Error()))
	}

	// Initialize transcription engine client
	engineClient, err := engine.NewClient(engine.Config{
		Endpoint:      cfg.Engine.Endpoint,
		APIKey:        cfg.Engine.APIKey,
		Timeout:       cfg.Engine.GetTimeoutDuration(),
		MaxRetries:    cfg.Engine.MaxRetries,
		MaxConcurrent: cfg.Engine.Workers,
	})
	if err != nil {
		logger.Error("Failed to create engine client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize vocabulary generator (if enabled)
	var generator vocab.Generator
	if cfg.Vocab.Enabled {
		generator, err = vocab.NewGeminiGenerator(context.Background(), vocab.GeminiConfig{
			APIKey:  cfg.Vocab.APIKey,
			Model:   cfg.Vocab.Model,
			Timeout: cfg.Vocab.GetTimeoutDuration(),
		}, logger)
		if err != nil {
			logger.Warn("Vocabulary generator unavailable, using generic prompts",
				slog.String("error", err.Error()))
		}
	}

	// Initialize pipeline controller
	var controllerDevice audio.Device
	if device != nil {
		controllerDevice = device
	}
	controller := pipeline.NewController(cfg, controllerDevice, engineClient, generator, appMetrics, logger)
	logger.Info("Pipeline controller initialized")

	if *topic != "" {
		topicCtx, topicCancel := context.WithTimeout(context.Background(), cfg.Vocab.GetTimeoutDuration())
		if err := controller.SetTopic(topicCtx, *topic); err != nil {
			logger.Warn("Topic setup failed", slog.String("error", err.Error()))
		}
		topicCancel()
	}

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, controller, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)

		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	if *autoStart {
		sink := pipeline.SinkFunc(func(t pipeline.Transcript) {
			logger.Info("Transcript", slog.String("text", t.Text), slog.Uint64("seq", t.Seq))
			fmt.Println(t.Text)
			if httpServer != nil {
				httpServer.Hub().Broadcast(t)
			}
		})
		if err := controller.Start(sink); err != nil {
			logger.Error("Failed to start recording", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	// Stop the session first so the remaining audio is transcribed and
	// delivered before the transports go away.
	if err := controller.Stop(); err != nil {
		logger.Error("Error stopping recording session", slog.String("error", err.Error()))
	}

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := engineClient.Close(); err != nil {
		logger.Error("Error closing engine client", slog.String("error", err.Error()))
	}

	// Final statistics
	stats := controller.GetStats()
	logger.Info("Final pipeline statistics",
		slog.Uint64("chunks_processed", stats.ChunksProcessed),
		slog.Uint64("texts_emitted", stats.TextsEmitted),
		slog.Uint64("dedup_accepted", stats.Dedup.Accepted),
		slog.Uint64("dedup_rejected", stats.Dedup.Rejected),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
