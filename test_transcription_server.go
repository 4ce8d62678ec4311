package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

type Segment struct {
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Text         string  `json:"text"`
	NoSpeechProb float64 `json:"no_speech_prob"`
}

type TranscriptionResponse struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

func transcribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse multipart form
	err := r.ParseMultipartForm(32 << 20) // 32 MB
	if err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	chunkID := r.FormValue("chunk_id")
	duration := r.FormValue("duration")
	language := r.FormValue("language")
	beamSize := r.FormValue("beam_size")
	initialPrompt := r.FormValue("initial_prompt")

	// Get audio file
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	log.Printf("🎤 TRANSCRIPTION REQUEST RECEIVED:")
	log.Printf("    Chunk ID: %s", chunkID)
	log.Printf("    Duration: %s seconds", duration)
	log.Printf("    Language: %s", language)
	log.Printf("    Beam size: %s", beamSize)
	log.Printf("    Filename: %s", header.Filename)
	log.Printf("    Audio size: %d bytes", len(audioData))
	if initialPrompt != "" {
		log.Printf("    Initial prompt: %s", initialPrompt)
	}

	// Simulate processing time
	time.Sleep(200 * time.Millisecond)

	dur := parseFloat64(duration)
	response := TranscriptionResponse{
		Text:     fmt.Sprintf("This is a test transcription of chunk %s", chunkID),
		Language: "en",
		Duration: dur,
		Segments: []Segment{
			{
				Start:        0,
				End:          dur,
				Text:         fmt.Sprintf("This is a test transcription of chunk %s", chunkID),
				NoSpeechProb: 0.05,
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)

	log.Printf("✅ TRANSCRIPTION RESPONSE SENT: '%s'", response.Text)
	log.Println("---")
}

func parseFloat64(s string) float64 {
	var val float64
	fmt.Sscanf(s, "%f", &val)
	return val
}

func main() {
	http.HandleFunc("/transcribe", transcribeHandler)

	port := ":9000"
	log.Printf("🚀 Test Transcription Server starting on port %s", port)
	log.Printf("📡 Endpoint: http://localhost%s/transcribe", port)
	log.Println("💡 Update your config to use: http://localhost:9000/transcribe")

	if err := http.ListenAndServe(port, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
