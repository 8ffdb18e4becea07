// Package embed is the client side of the external embedding service. A
// Gateway batches texts into backend calls and guarantees order-preserving,
// all-or-nothing results.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"vidquery/internal/config"
)

// Embedder turns a batch of texts into one vector per text, same order and
// length as the input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// ServiceError wraps a transport or service failure from the embedding
// backend. Callers that see it must retry the whole operation or abort.
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string { return fmt.Sprintf("embedding service: %v", e.Err) }
func (e *ServiceError) Unwrap() error { return e.Err }

// Gateway splits input into fixed-size batches to respect service limits.
// If any batch fails the whole call fails; no partial results are returned.
type Gateway struct {
	backend   Embedder
	batchSize int
	logger    *slog.Logger
}

func NewGateway(backend Embedder, batchSize int, logger *slog.Logger) *Gateway {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Gateway{backend: backend, batchSize: batchSize, logger: logger}
}

// NewFromConfig builds a batching gateway over the configured backend.
func NewFromConfig(cfg config.EmbeddingsConfig, logger *slog.Logger) (*Gateway, error) {
	var backend Embedder
	switch cfg.Provider {
	case "openai":
		backend = NewOpenAI(OpenAIConfig{APIBase: cfg.APIBase, APIKey: cfg.APIKey, Model: cfg.Model, Logger: logger})
	case "ollama":
		backend = NewOllama(OllamaConfig{APIBase: cfg.APIBase, Model: cfg.Model, Logger: logger})
	default:
		return nil, fmt.Errorf("unsupported embeddings provider: %s", cfg.Provider)
	}
	return NewGateway(backend, cfg.BatchSize, logger), nil
}

// Model reports the backend model identifier.
func (g *Gateway) Model() string { return g.backend.Model() }

// Embed returns one vector per input text, in input order.
func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += g.batchSize {
		end := start + g.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := g.backend.Embed(ctx, texts[start:end])
		if err != nil {
			var svcErr *ServiceError
			if errors.As(err, &svcErr) {
				return nil, err
			}
			return nil, &ServiceError{Err: err}
		}
		if len(batch) != end-start {
			return nil, &ServiceError{Err: fmt.Errorf("backend returned %d vectors for %d texts", len(batch), end-start)}
		}
		vectors = append(vectors, batch...)
	}

	g.logger.Debug("embedded texts", "count", len(texts), "model", g.backend.Model())
	return vectors, nil
}
