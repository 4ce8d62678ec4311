package vocab

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini-backed vocabulary generator
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// GeminiGenerator generates topic vocabularies with the Gemini API
type GeminiGenerator struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewGeminiGenerator creates a Gemini-backed generator
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiGenerator{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// vocabResponse is the JSON shape requested from the model
type vocabResponse struct {
	CourseName string   `json:"course_name"`
	Keywords   []string `json:"keywords"`
}

// Generate asks the model for a course name and 15-20 technical keywords
// for the given topic. On any failure it falls back to the generic
// vocabulary so a session can always start.
func (g *GeminiGenerator) Generate(ctx context.Context, topic string) (Vocabulary, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Fallback(topic), nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"A university lecture is about to be transcribed. The topic is: %q.\n"+
			"Return a JSON object with two fields:\n"+
			"  course_name: a short formal course name for this topic\n"+
			"  keywords: 15 to 20 technical terms likely to be spoken in such a lecture\n"+
			"Respond with JSON only, no markdown.",
		topic,
	)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		g.logger.Warn("Vocabulary generation failed, using fallback",
			slog.String("topic", topic),
			slog.String("error", err.Error()))
		return Fallback(topic), nil
	}

	parsed, err := parseVocabResponse(resp.Text())
	if err != nil {
		g.logger.Warn("Vocabulary response unparseable, using fallback",
			slog.String("topic", topic),
			slog.String("error", err.Error()))
		return Fallback(topic), nil
	}

	g.logger.Info("Vocabulary generated",
		slog.String("topic", topic),
		slog.String("course_name", parsed.CourseName),
		slog.Int("keywords", len(parsed.Keywords)))

	return Vocabulary{
		CourseName: parsed.CourseName,
		Keywords:   parsed.Keywords,
	}, nil
}

// parseVocabResponse extracts the JSON payload from a model reply,
// tolerating markdown code fences the model sometimes adds anyway
func parseVocabResponse(text string) (vocabResponse, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	var parsed vocabResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return vocabResponse{}, fmt.Errorf("failed to parse vocabulary response: %w", err)
	}
	if parsed.CourseName == "" || len(parsed.Keywords) == 0 {
		return vocabResponse{}, fmt.Errorf("vocabulary response missing fields")
	}

	return parsed, nil
}
