// Package query classifies user queries and dispatches them to the matching
// response strategy.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"vidquery/internal/domain"
	"vidquery/internal/prompt"
)

// ClassificationError means the model's intent output could not be used:
// malformed JSON or an intent outside the known set.
type ClassificationError struct {
	Raw string
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify query: %v (raw: %s)", e.Err, truncate(e.Raw, 120))
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// Router asks the model which strategy a query calls for. Classification runs
// in JSON mode at minimal reasoning effort; it is a routing decision, not an
// answer.
type Router struct {
	provider domain.Provider
	prompts  prompt.Pack
	logger   *slog.Logger
}

func NewRouter(provider domain.Provider, prompts prompt.Pack, logger *slog.Logger) *Router {
	return &Router{provider: provider, prompts: prompts, logger: logger}
}

func (r *Router) Classify(ctx context.Context, userQuery string) (*domain.Classification, error) {
	resp, err := r.provider.Chat(ctx, domain.ChatRequest{
		Messages: []domain.Message{
			{Role: "system", Content: r.prompts.Classifier},
			{Role: "user", Content: userQuery},
		},
		Effort:       domain.EffortMinimal,
		ResponseJSON: true,
	})
	if err != nil {
		return nil, fmt.Errorf("classification request: %w", err)
	}

	var parsed domain.Classification
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return nil, &ClassificationError{Raw: resp.Content, Err: err}
	}
	if !parsed.Intent.Valid() {
		return nil, &ClassificationError{Raw: resp.Content, Err: fmt.Errorf("unknown intent %q", parsed.Intent)}
	}
	if parsed.Topic == "" {
		// Fall back to the raw query so downstream search has something.
		parsed.Topic = userQuery
	}

	r.logger.Debug("classified query", "intent", parsed.Intent, "topic", parsed.Topic)
	return &parsed, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
