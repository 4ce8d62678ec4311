package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lecturekit/transcriber/internal/config"
	"github.com/lecturekit/transcriber/internal/metrics"
	"github.com/lecturekit/transcriber/internal/pipeline"
)

// HTTPServer provides the HTTP API for session control and monitoring
type HTTPServer struct {
	server     *http.Server
	logger     *slog.Logger
	config     *config.Config
	controller *pipeline.Controller
	hub        *Hub
	metrics    *metrics.Metrics

	startTime time.Time
	mu        sync.RWMutex
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger,
	appConfig *config.Config, controller *pipeline.Controller, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:     logger,
		config:     appConfig,
		controller: controller,
		hub:        NewHub(logger),
		metrics:    m,
		startTime:  time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// Hub returns the websocket hub so the transcript sink can broadcast
// accepted texts
func (h *HTTPServer) Hub() *Hub {
	return h.hub
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Session control
	mux.HandleFunc("/session/start", h.withMetrics("/session/start", h.handleSessionStart))
	mux.HandleFunc("/session/stop", h.withMetrics("/session/stop", h.handleSessionStop))
	mux.HandleFunc("/session/topic", h.withMetrics("/session/topic", h.handleSessionTopic))

	// Monitoring
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/status", h.withMetrics("/status", h.handleStatus))
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Live transcript stream
	mux.HandleFunc("/transcripts/ws", h.hub.HandleWS)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}
		handler(ww, r)

		if h.metrics != nil {
			h.metrics.RecordHTTPRequest(r.Method, endpoint,
				fmt.Sprintf("%d", ww.statusCode), time.Since(startTime).Seconds())
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	h.hub.CloseAll()
	return h.server.Shutdown(ctx)
}

// handleSessionStart implements POST /session/start. The transcript sink
// broadcasts accepted texts to websocket clients and logs them.
func (h *HTTPServer) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	err := h.controller.Start(pipeline.SinkFunc(func(t pipeline.Transcript) {
		h.logger.Info("Transcript", slog.String("text", t.Text), slog.Uint64("seq", t.Seq))
		h.hub.Broadcast(t)
	}))
	if err != nil {
		h.logger.Error("Session start failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "recording",
	})
}

// handleSessionStop implements POST /session/stop
func (h *HTTPServer) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.controller.Stop(); err != nil {
		h.logger.Error("Session stop failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "idle",
		"stats":  h.controller.GetStats(),
	})
}

// handleSessionTopic implements POST /session/topic
func (h *HTTPServer) handleSessionTopic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Topic string `json:"topic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.config.Vocab.GetTimeoutDuration())
	defer cancel()

	if err := h.controller.SetTopic(ctx, req.Topic); err != nil {
		h.logger.Error("Topic update failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"topic":  req.Topic,
	})
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := h.controller.GetStats()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    "lecture-transcriber",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"pipeline": map[string]interface{}{
				"state":            stats.State,
				"chunks_processed": stats.ChunksProcessed,
				"texts_emitted":    stats.TextsEmitted,
			},
			"websocket": map[string]interface{}{
				"clients": h.hub.ClientCount(),
			},
		},
	}

	writeJSON(w, http.StatusOK, health)
}

// handleStatus implements the /status endpoint
func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, h.controller.GetStats())
}

// handleConfig implements the /config endpoint, returning the sanitized
// configuration with credentials omitted
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sanitized := map[string]interface{}{
		"audio": map[string]interface{}{
			"sample_rate":        h.config.Audio.SampleRate,
			"channels":           h.config.Audio.Channels,
			"block_duration":     h.config.Audio.BlockDuration,
			"chunk_duration":     h.config.Audio.ChunkDuration,
			"overlap_duration":   h.config.Audio.OverlapDuration,
			"min_chunk_duration": h.config.Audio.MinChunkDuration,
			"min_energy":         h.config.Audio.MinEnergy,
		},
		"engine": map[string]interface{}{
			"endpoint":    h.config.Engine.Endpoint,
			"timeout":     h.config.Engine.Timeout,
			"max_retries": h.config.Engine.MaxRetries,
			"workers":     h.config.Engine.Workers,
			"language":    h.config.Engine.Language,
			"model":       h.config.Engine.Model,
			"beam_size":   h.config.Engine.BeamSize,
			// API key intentionally omitted
		},
		"filter": map[string]interface{}{
			"min_text_chars":    h.config.Filter.MinTextChars,
			"word_dominance":    h.config.Filter.WordDominance,
			"ngram_min_repeats": h.config.Filter.NgramMinRepeats,
		},
		"dedup": map[string]interface{}{
			"similarity_threshold": h.config.Dedup.SimilarityThreshold,
			"overlap_window_words": h.config.Dedup.OverlapWindowWords,
		},
		"vocab": map[string]interface{}{
			"enabled": h.config.Vocab.Enabled,
			"model":   h.config.Vocab.Model,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	writeJSON(w, http.StatusOK, sanitized)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	doc := map[string]interface{}{
		"service": "lecture-transcriber",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"POST /session/start": "Start a recording session",
			"POST /session/stop":  "Stop the recording session",
			"POST /session/topic": "Set the lecture topic",
			"GET /health":         "Health check",
			"GET /status":         "Pipeline statistics",
			"GET /config":         "Sanitized configuration",
			"GET /transcripts/ws": "WebSocket stream of accepted transcripts",
			"GET /metrics":        "Prometheus metrics",
		},
	}

	writeJSON(w, http.StatusOK, doc)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
