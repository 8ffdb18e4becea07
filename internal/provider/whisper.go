package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"vidquery/internal/domain"
	"vidquery/internal/httpx"
)

// WhisperConfig configures the Whisper speech-to-text provider.
type WhisperConfig struct {
	APIBase  string // e.g., "https://api.openai.com/v1"
	APIKey   string
	Model    string // e.g., "whisper-1"
	Language string // optional: ISO-639-1 language code
	Logger   *slog.Logger
}

// Whisper transcribes audio through an OpenAI-compatible Whisper API and
// returns timestamped segments.
type Whisper struct {
	apiBase  string
	apiKey   string
	model    string
	language string
	client   *http.Client
	logger   *slog.Logger
}

func NewWhisper(cfg WhisperConfig) *Whisper {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	return &Whisper{
		apiBase:  cfg.APIBase,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		language: cfg.Language,
		client:   httpx.NewClient(300 * time.Second),
		logger:   cfg.Logger,
	}
}

// whisperSegment matches one segment of a verbose_json transcription response.
type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type whisperResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language,omitempty"`
	Duration float64          `json:"duration,omitempty"`
	Segments []whisperSegment `json:"segments"`
}

// Transcribe converts audio data to a timestamped transcript. filename must
// carry the audio extension (e.g. "audio.mp3") so the service can sniff the
// container format.
func (w *Whisper) Transcribe(ctx context.Context, audioData io.Reader, filename string) (*domain.Transcript, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, audioData); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}

	writer.WriteField("model", w.model)
	writer.WriteField("response_format", "verbose_json")
	writer.WriteField("timestamp_granularities[]", "segment")
	if w.language != "" {
		writer.WriteField("language", w.language)
	}
	writer.Close()

	url := w.apiBase + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+w.apiKey)

	start := time.Now()
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("whisper API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var whisperResp whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&whisperResp); err != nil {
		return nil, fmt.Errorf("decode whisper response: %w", err)
	}

	segments := make([]domain.Segment, 0, len(whisperResp.Segments))
	for _, seg := range whisperResp.Segments {
		segments = append(segments, domain.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		})
	}

	w.logger.Info("audio transcribed",
		"segments", len(segments),
		"duration", whisperResp.Duration,
		"language", whisperResp.Language,
		"elapsed", time.Since(start))

	t := domain.NewTranscript(segments, whisperResp.Language)
	if whisperResp.Duration > 0 {
		t.Duration = whisperResp.Duration
	}
	return t, nil
}
