package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vidquery/internal/httpx"
)

// local models can be slow to load
const defaultOllamaTimeout = 120 * time.Second

// OllamaConfig configures the Ollama embeddings backend.
type OllamaConfig struct {
	APIBase string
	Model   string
	Logger  *slog.Logger
}

// Ollama calls a local Ollama server. The /api/embeddings endpoint only takes
// one prompt per call, so a batch becomes sequential requests.
type Ollama struct {
	apiBase string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

func NewOllama(cfg OllamaConfig) *Ollama {
	base := strings.TrimSuffix(cfg.APIBase, "/")
	if base == "" {
		base = "http://localhost:11434"
	}
	return &Ollama{
		apiBase: base,
		model:   cfg.Model,
		client:  httpx.NewClient(defaultOllamaTimeout),
		logger:  cfg.Logger,
	}
}

func (o *Ollama) Model() string { return o.model }

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

func (o *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for i, text := range texts {
		vec, err := o.embedOne(ctx, text)
		if err != nil {
			return nil, &ServiceError{Err: fmt.Errorf("text %d: %w", i, err)}
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

func (o *Ollama) embedOne(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: o.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	buildReq := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiBase+"/api/embeddings", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	resp, err := httpx.DoWithRetry(ctx, o.client, buildReq, o.logger)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed ollamaEmbedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return toFloat32(parsed.Embedding), nil
}
