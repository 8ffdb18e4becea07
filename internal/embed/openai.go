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

const defaultOpenAITimeout = 60 * time.Second

// OpenAIConfig configures the OpenAI-compatible embeddings backend.
type OpenAIConfig struct {
	APIBase string
	APIKey  string
	Model   string
	Logger  *slog.Logger
}

// OpenAI calls the /embeddings endpoint of an OpenAI-compatible service.
type OpenAI struct {
	apiBase string
	apiKey  string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	base := strings.TrimSuffix(cfg.APIBase, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return &OpenAI{
		apiBase: base,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  httpx.NewClient(defaultOpenAITimeout),
		logger:  cfg.Logger,
	}
}

func (o *OpenAI) Model() string { return o.model }

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(openAIEmbedRequest{Model: o.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embeddings request: %w", err)
	}

	buildReq := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiBase+"/embeddings", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if o.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+o.apiKey)
		}
		return req, nil
	}

	resp, err := httpx.DoWithRetry(ctx, o.client, buildReq, o.logger)
	if err != nil {
		return nil, &ServiceError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ServiceError{Err: fmt.Errorf("read embeddings response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ServiceError{Err: fmt.Errorf("embeddings API status %d: %s", resp.StatusCode, truncate(string(data), 200))}
	}

	var parsed openAIEmbedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &ServiceError{Err: fmt.Errorf("decode embeddings response: %w", err)}
	}
	if parsed.Error != nil {
		return nil, &ServiceError{Err: fmt.Errorf("embeddings API error: %s", parsed.Error.Message)}
	}
	if len(parsed.Data) != len(texts) {
		return nil, &ServiceError{Err: fmt.Errorf("got %d embeddings for %d inputs", len(parsed.Data), len(texts))}
	}

	// The API may return entries out of order; place each by index.
	vectors := make([][]float32, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, &ServiceError{Err: fmt.Errorf("embedding index %d out of range", item.Index)}
		}
		vectors[item.Index] = toFloat32(item.Embedding)
	}
	for i, v := range vectors {
		if v == nil {
			return nil, &ServiceError{Err: fmt.Errorf("missing embedding for input %d", i)}
		}
	}
	return vectors, nil
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
