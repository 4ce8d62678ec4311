package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lecturekit/transcriber/internal/audio"
)

func testChunk() *audio.Chunk {
	samples := make([]float32, 16000)
	for i := range samples {
		samples[i] = 0.1
	}
	return &audio.Chunk{
		ID:         "test-chunk-1",
		Seq:        1,
		Samples:    samples,
		SampleRate: 16000,
		Duration:   time.Second,
	}
}

func testOptions() Options {
	return Options{
		Language:      "en",
		Model:         "whisper-small",
		BeamSize:      5,
		Temperature:   0,
		InitialPrompt: "This is a Networking lecture.",
		KeepContext:   true,
		LogProbFloor:  -1.0,
		VADThreshold:  0.35,
		MinSilenceMs:  600,
		SpeechPadMs:   400,
		HallucSilence: 2.0,
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("Expected error for empty endpoint")
	}

	client, err := NewClient(Config{Endpoint: "http://localhost:9000/transcribe"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	if client.config.Timeout != 45*time.Second {
		t.Errorf("Expected default timeout, got %v", client.config.Timeout)
	}
	if cap(client.semaphore) != 3 {
		t.Errorf("Expected default concurrency 3, got %d", cap(client.semaphore))
	}
}

func TestTranscribeParsesSegments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
		}

		if got := r.FormValue("chunk_id"); got != "test-chunk-1" {
			t.Errorf("Expected chunk_id test-chunk-1, got %q", got)
		}
		if got := r.FormValue("beam_size"); got != "5" {
			t.Errorf("Expected beam_size 5, got %q", got)
		}
		if got := r.FormValue("temperature"); got != "0.00" {
			t.Errorf("Expected temperature 0.00, got %q", got)
		}
		if got := r.FormValue("initial_prompt"); got != "This is a Networking lecture." {
			t.Errorf("Unexpected initial_prompt %q", got)
		}
		if got := r.FormValue("condition_on_previous_text"); got != "true" {
			t.Errorf("Expected condition_on_previous_text true, got %q", got)
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Expected audio file: %v", err)
		} else {
			file.Close()
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"text":     "hello world this is speech",
			"language": "en",
			"duration": 1.0,
			"segments": []map[string]interface{}{
				{"start": 0.0, "end": 0.6, "text": "hello world", "no_speech_prob": 0.1},
				{"start": 0.6, "end": 1.0, "text": "this is speech", "no_speech_prob": 0.2},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, MaxRetries: 0})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	segments, info, err := client.Transcribe(context.Background(), testChunk(), testOptions())
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if len(segments) != 2 {
		t.Fatalf("Expected 2 segments, got %d", len(segments))
	}
	if segments[0].Text != "hello world" {
		t.Errorf("Unexpected segment text: %q", segments[0].Text)
	}
	if segments[1].NoSpeechProb != 0.2 {
		t.Errorf("Unexpected no_speech_prob: %f", segments[1].NoSpeechProb)
	}
	if info.Language != "en" {
		t.Errorf("Expected language en, got %q", info.Language)
	}

	stats := client.GetStats()
	if stats.TotalRequests != 1 || stats.SuccessRequests != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestTranscribeFlatTextFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"text":     "flat transcription without segments",
			"duration": 2.5,
		})
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	segments, _, err := client.Transcribe(context.Background(), testChunk(), testOptions())
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if len(segments) != 1 {
		t.Fatalf("Expected 1 synthesized segment, got %d", len(segments))
	}
	if segments[0].Text != "flat transcription without segments" {
		t.Errorf("Unexpected text: %q", segments[0].Text)
	}
	if segments[0].End != 2.5 {
		t.Errorf("Expected segment end 2.5, got %f", segments[0].End)
	}
}

func TestTranscribeRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"text": "second attempt worked",
		})
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, MaxRetries: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	segments, _, err := client.Transcribe(context.Background(), testChunk(), testOptions())
	if err != nil {
		t.Fatalf("Expected retry to succeed: %v", err)
	}
	if len(segments) != 1 || segments[0].Text != "second attempt worked" {
		t.Errorf("Unexpected segments: %+v", segments)
	}

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("Expected 2 calls, got %d", got)
	}

	stats := client.GetStats()
	if stats.TotalRetries != 1 {
		t.Errorf("Expected 1 retry, got %d", stats.TotalRetries)
	}
}

func TestTranscribeDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, MaxRetries: 3})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if _, _, err := client.Transcribe(context.Background(), testChunk(), testOptions()); err == nil {
		t.Fatal("Expected error for 400 response")
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected 1 call without retries, got %d", got)
	}
}

func TestReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if err := client.Ready(context.Background()); err != nil {
		t.Errorf("Expected ready, got %v", err)
	}
}

func TestReadyUnreachableServer(t *testing.T) {
	client, err := NewClient(Config{
		Endpoint: "http://127.0.0.1:1/transcribe",
		Timeout:  500 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if err := client.Ready(context.Background()); err == nil {
		t.Error("Expected error for unreachable server")
	}
}
