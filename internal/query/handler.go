package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"vidquery/internal/domain"
	"vidquery/internal/prompt"
)

// ErrMissingTranscript means the chosen strategy needs the full transcript
// and the request did not carry one.
var ErrMissingTranscript = errors.New("transcript required for this request")

// transcripts are cut to this many characters before prompting, keeping the
// head of the video
const maxPromptChars = 100000

// Searcher is the slice of the retriever the handler needs.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, collection string) ([]domain.SearchResult, error)
}

// Clipper cuts a snippet file from the source video.
type Clipper interface {
	Cut(ctx context.Context, videoPath string, window domain.TimeRange) (string, error)
}

// Options tunes the handler's retrieval depths and snippet windowing.
type Options struct {
	SearchTopK         int
	SnippetPadding     float64
	SnippetMaxDuration float64
}

// Handler runs a classified query through its response strategy.
type Handler struct {
	router   *Router
	searcher Searcher
	provider domain.Provider
	clipper  Clipper
	prompts  prompt.Pack
	opts     Options
	logger   *slog.Logger
}

// HandlerConfig wires the handler's collaborators. Clipper may be nil when
// snippet files are not wanted.
type HandlerConfig struct {
	Router   *Router
	Searcher Searcher
	Provider domain.Provider
	Clipper  Clipper
	Prompts  prompt.Pack
	Options  Options
	Logger   *slog.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	opts := cfg.Options
	if opts.SearchTopK <= 0 {
		opts.SearchTopK = 5
	}
	if opts.SnippetPadding <= 0 {
		opts.SnippetPadding = 2
	}
	if opts.SnippetMaxDuration <= 0 {
		opts.SnippetMaxDuration = 60
	}
	return &Handler{
		router:   cfg.Router,
		searcher: cfg.Searcher,
		provider: cfg.Provider,
		clipper:  cfg.Clipper,
		prompts:  cfg.Prompts,
		opts:     opts,
		logger:   cfg.Logger,
	}
}

// Request is one user query plus whatever session material is available.
// Collection names the vector collection to search; strategies never fall
// back to shared retriever state, so concurrent requests for different
// sessions cannot read each other's index.
type Request struct {
	Query      string
	Collection string
	Transcript *domain.Transcript
	VideoPath  string
	History    []domain.Message
}

// Response is the strategy's answer. Window is nil when a snippet request
// found nothing, so callers can tell "no match" from "zero-length clip".
type Response struct {
	Intent      domain.Intent         `json:"intent"`
	Query       string                `json:"query"`
	Message     string                `json:"response"`
	Results     []domain.SearchResult `json:"results,omitempty"`
	Window      *domain.TimeRange     `json:"timestamps,omitempty"`
	Context     string                `json:"context,omitempty"`
	SnippetPath string                `json:"snippet_path,omitempty"`
	KeyPoints   []domain.KeyPoint     `json:"key_points,omitempty"`
}

// Handle classifies the query and runs the matching strategy.
func (h *Handler) Handle(ctx context.Context, req Request) (*Response, error) {
	cls, err := h.router.Classify(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	resp := &Response{Intent: cls.Intent, Query: req.Query}
	switch cls.Intent {
	case domain.IntentSearch:
		err = h.handleSearch(ctx, cls, req, resp)
	case domain.IntentQuestion:
		err = h.handleQuestion(ctx, cls, req, resp)
	case domain.IntentSnippet:
		err = h.handleSnippet(ctx, cls, req, resp)
	case domain.IntentSummary:
		err = h.handleSummary(ctx, req, resp)
	case domain.IntentKeypoints:
		err = h.handleKeypoints(ctx, req, resp)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (h *Handler) handleSearch(ctx context.Context, cls *domain.Classification, req Request, resp *Response) error {
	results, err := h.searcher.Search(ctx, cls.Topic, h.opts.SearchTopK, req.Collection)
	if err != nil {
		return err
	}
	resp.Results = results
	resp.Message = fmt.Sprintf("Found %d relevant segments for '%s'", len(results), cls.Topic)
	return nil
}

func (h *Handler) handleQuestion(ctx context.Context, cls *domain.Classification, req Request, resp *Response) error {
	results, err := h.searcher.Search(ctx, cls.Topic, h.opts.SearchTopK, req.Collection)
	if err != nil {
		return err
	}

	messages := make([]domain.Message, 0, len(req.History)+2)
	messages = append(messages, domain.Message{Role: "system", Content: h.prompts.Question})
	messages = append(messages, req.History...)
	messages = append(messages, domain.Message{
		Role:    "user",
		Content: fmt.Sprintf("Context from video:\n%s\n\nQuestion: %s", formatContext(results), cls.Topic),
	})

	answer, err := h.provider.Chat(ctx, domain.ChatRequest{
		Messages: messages,
		Effort:   domain.EffortLow,
	})
	if err != nil {
		return fmt.Errorf("answer question: %w", err)
	}
	resp.Message = answer.Content
	return nil
}

func (h *Handler) handleSnippet(ctx context.Context, cls *domain.Classification, req Request, resp *Response) error {
	spans, err := h.searcher.Search(ctx, cls.Topic, 3, req.Collection)
	if err != nil {
		return err
	}
	if len(spans) == 0 {
		resp.Message = fmt.Sprintf("No content found for '%s'", cls.Topic)
		return nil
	}

	maxDuration := h.opts.SnippetMaxDuration
	if cls.Parameters.MaxDuration != nil && *cls.Parameters.MaxDuration > 0 {
		maxDuration = *cls.Parameters.MaxDuration
	}
	window := ResolveWindow(spans, h.opts.SnippetPadding, maxDuration)
	resp.Window = &window
	resp.Context = spans[0].Text
	resp.Message = fmt.Sprintf("Found content about '%s' at %s", cls.Topic, domain.FormatTimestamp(window.Start))

	if req.VideoPath != "" && h.clipper != nil {
		path, err := h.clipper.Cut(ctx, req.VideoPath, window)
		if err != nil {
			return fmt.Errorf("cut snippet: %w", err)
		}
		resp.SnippetPath = path
	}
	return nil
}

func (h *Handler) handleSummary(ctx context.Context, req Request, resp *Response) error {
	if req.Transcript == nil || req.Transcript.Empty() {
		return ErrMissingTranscript
	}

	summary, err := h.provider.Chat(ctx, domain.ChatRequest{
		Messages: []domain.Message{
			{Role: "system", Content: h.prompts.Summary},
			{Role: "user", Content: truncateText(req.Transcript.FullText, maxPromptChars)},
		},
		Effort: domain.EffortLow,
	})
	if err != nil {
		return fmt.Errorf("generate summary: %w", err)
	}
	resp.Message = summary.Content
	return nil
}

func (h *Handler) handleKeypoints(ctx context.Context, req Request, resp *Response) error {
	if req.Transcript == nil || req.Transcript.Empty() {
		return ErrMissingTranscript
	}

	answer, err := h.provider.Chat(ctx, domain.ChatRequest{
		Messages: []domain.Message{
			{Role: "system", Content: h.prompts.Keypoints},
			{Role: "user", Content: truncateText(req.Transcript.FullText, maxPromptChars)},
		},
		Effort:       domain.EffortLow,
		ResponseJSON: true,
	})
	if err != nil {
		return fmt.Errorf("extract key points: %w", err)
	}

	var parsed struct {
		KeyPoints []domain.KeyPoint `json:"key_points"`
	}
	if err := json.Unmarshal([]byte(answer.Content), &parsed); err != nil {
		return fmt.Errorf("parse key points: %w", err)
	}
	resp.KeyPoints = parsed.KeyPoints
	resp.Message = fmt.Sprintf("Found %d key points from the video", len(parsed.KeyPoints))
	return nil
}

// formatContext renders search results as timestamped blocks for prompting.
func formatContext(results []domain.SearchResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		header := fmt.Sprintf("[%s - %s]", domain.FormatTimestamp(r.Start), domain.FormatTimestamp(r.End))
		parts = append(parts, header+"\n"+r.Text)
	}
	return strings.Join(parts, "\n\n")
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
