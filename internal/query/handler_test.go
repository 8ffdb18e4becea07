package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"vidquery/internal/domain"
	"vidquery/internal/prompt"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// mockProvider answers the classifier call with classifyJSON and any later
// call with reply, recording every request for assertions.
type mockProvider struct {
	classifyJSON string
	reply        string
	err          error
	requests     []domain.ChatRequest
}

func (m *mockProvider) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if len(req.Messages) > 0 && strings.Contains(req.Messages[0].Content, "intent classifier") {
		return &domain.ChatResponse{Content: m.classifyJSON}, nil
	}
	return &domain.ChatResponse{Content: m.reply}, nil
}

func (m *mockProvider) Name() string                  { return "mock" }
func (m *mockProvider) Healthy(context.Context) error { return nil }

type mockSearcher struct {
	results     []domain.SearchResult
	err         error
	queries     []string
	topKs       []int
	collections []string
}

func (m *mockSearcher) Search(_ context.Context, query string, topK int, collection string) ([]domain.SearchResult, error) {
	m.queries = append(m.queries, query)
	m.topKs = append(m.topKs, topK)
	m.collections = append(m.collections, collection)
	if m.err != nil {
		return nil, m.err
	}
	if topK < len(m.results) {
		return m.results[:topK], nil
	}
	return m.results, nil
}

type mockClipper struct {
	path   string
	cuts   []domain.TimeRange
	videos []string
}

func (m *mockClipper) Cut(_ context.Context, videoPath string, window domain.TimeRange) (string, error) {
	m.videos = append(m.videos, videoPath)
	m.cuts = append(m.cuts, window)
	return m.path, nil
}

func classification(intent string, topic string) string {
	return fmt.Sprintf(`{"intent": %q, "topic": %q, "parameters": {}}`, intent, topic)
}

func newTestHandler(provider *mockProvider, searcher *mockSearcher, clipper Clipper) *Handler {
	prompts := prompt.Defaults()
	return NewHandler(HandlerConfig{
		Router:   NewRouter(provider, prompts, testLogger()),
		Searcher: searcher,
		Provider: provider,
		Clipper:  clipper,
		Prompts:  prompts,
		Logger:   testLogger(),
	})
}

func TestHandleSearch(t *testing.T) {
	provider := &mockProvider{classifyJSON: classification("search", "neural networks")}
	searcher := &mockSearcher{results: []domain.SearchResult{
		{Text: "about neural networks", Start: 10, End: 30, Relevance: 0.9},
		{Text: "more detail", Start: 45, End: 60, Relevance: 0.7},
	}}
	h := newTestHandler(provider, searcher, nil)

	resp, err := h.Handle(context.Background(), Request{Query: "find the part about neural networks"})
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if resp.Intent != domain.IntentSearch {
		t.Errorf("Intent = %q, want search", resp.Intent)
	}
	if len(resp.Results) != 2 {
		t.Errorf("got %d results, want 2", len(resp.Results))
	}
	if resp.Message != "Found 2 relevant segments for 'neural networks'" {
		t.Errorf("Message = %q", resp.Message)
	}
	if searcher.queries[0] != "neural networks" {
		t.Errorf("searched for %q, want the classified topic", searcher.queries[0])
	}
	if searcher.topKs[0] != 5 {
		t.Errorf("search topK = %d, want 5", searcher.topKs[0])
	}
}

func TestStrategiesSearchRequestedCollection(t *testing.T) {
	// Every searching strategy must pass the request's collection through
	// instead of relying on whatever collection the retriever last touched,
	// so interleaved requests for different sessions stay isolated.
	for _, intent := range []string{"search", "question", "snippet"} {
		t.Run(intent, func(t *testing.T) {
			provider := &mockProvider{
				classifyJSON: classification(intent, "the topic"),
				reply:        "an answer",
			}
			searcher := &mockSearcher{results: []domain.SearchResult{
				{Text: "a match", Start: 10, End: 12, Relevance: 0.9},
			}}
			h := newTestHandler(provider, searcher, nil)

			_, err := h.Handle(context.Background(), Request{
				Query:      "about the topic",
				Collection: "transcript_abc123",
			})
			if err != nil {
				t.Fatalf("Handle() error: %v", err)
			}
			if len(searcher.collections) != 1 || searcher.collections[0] != "transcript_abc123" {
				t.Errorf("searched collections = %v, want [transcript_abc123]", searcher.collections)
			}
		})
	}
}

func TestHandleQuestionBuildsContextAndHistory(t *testing.T) {
	provider := &mockProvider{
		classifyJSON: classification("question", "what is backprop"),
		reply:        "Backprop is explained at 01:05.",
	}
	searcher := &mockSearcher{results: []domain.SearchResult{
		{Text: "backprop explained", Start: 65, End: 80, Relevance: 0.9},
	}}
	h := newTestHandler(provider, searcher, nil)

	history := []domain.Message{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}
	resp, err := h.Handle(context.Background(), Request{Query: "what is backprop?", History: history})
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if resp.Message != "Backprop is explained at 01:05." {
		t.Errorf("Message = %q", resp.Message)
	}

	// Second provider call is the answer generation.
	if len(provider.requests) != 2 {
		t.Fatalf("provider called %d times, want 2", len(provider.requests))
	}
	answerReq := provider.requests[1]
	if answerReq.Effort != domain.EffortLow {
		t.Errorf("answer effort = %q, want low", answerReq.Effort)
	}
	// system + 2 history + user
	if len(answerReq.Messages) != 4 {
		t.Fatalf("answer prompt has %d messages, want 4", len(answerReq.Messages))
	}
	if answerReq.Messages[1].Content != "earlier question" {
		t.Errorf("history not forwarded: %+v", answerReq.Messages[1])
	}
	last := answerReq.Messages[3].Content
	if !strings.Contains(last, "[01:05 - 01:20]\nbackprop explained") {
		t.Errorf("context missing timestamped chunk:\n%s", last)
	}
	if !strings.Contains(last, "Question: what is backprop") {
		t.Errorf("question missing from prompt:\n%s", last)
	}
}

func TestHandleSnippet(t *testing.T) {
	provider := &mockProvider{classifyJSON: classification("snippet", "the demo")}
	searcher := &mockSearcher{results: []domain.SearchResult{
		{Text: "demo starts here", Start: 10, End: 12, Relevance: 0.95},
	}}
	clipper := &mockClipper{path: "/tmp/snippet.mp4"}
	h := newTestHandler(provider, searcher, clipper)

	resp, err := h.Handle(context.Background(), Request{Query: "clip the demo", VideoPath: "/videos/a.mp4"})
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if resp.Window == nil {
		t.Fatal("Window is nil, want a resolved range")
	}
	if resp.Window.Start != 8 || resp.Window.End != 14 {
		t.Errorf("Window = %+v, want [8, 14]", resp.Window)
	}
	if resp.Context != "demo starts here" {
		t.Errorf("Context = %q", resp.Context)
	}
	if resp.Message != "Found content about 'the demo' at 00:08" {
		t.Errorf("Message = %q", resp.Message)
	}
	if resp.SnippetPath != "/tmp/snippet.mp4" {
		t.Errorf("SnippetPath = %q", resp.SnippetPath)
	}
	if searcher.topKs[0] != 3 {
		t.Errorf("snippet search topK = %d, want 3", searcher.topKs[0])
	}
	if len(clipper.cuts) != 1 || clipper.videos[0] != "/videos/a.mp4" {
		t.Errorf("clipper calls = %+v %+v", clipper.videos, clipper.cuts)
	}
}

func TestHandleSnippetNoMatches(t *testing.T) {
	provider := &mockProvider{classifyJSON: classification("snippet", "unicorns")}
	searcher := &mockSearcher{}
	h := newTestHandler(provider, searcher, &mockClipper{})

	resp, err := h.Handle(context.Background(), Request{Query: "clip the unicorns"})
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if resp.Window != nil {
		t.Errorf("Window = %+v, want nil for no matches", resp.Window)
	}
	if resp.Message != "No content found for 'unicorns'" {
		t.Errorf("Message = %q", resp.Message)
	}
}

func TestHandleSnippetMaxDurationFromClassifier(t *testing.T) {
	provider := &mockProvider{
		classifyJSON: `{"intent": "snippet", "topic": "the talk", "parameters": {"max_duration": 20}}`,
	}
	searcher := &mockSearcher{results: []domain.SearchResult{
		{Text: "long section", Start: 100, End: 200, Relevance: 0.9},
	}}
	h := newTestHandler(provider, searcher, nil)

	resp, err := h.Handle(context.Background(), Request{Query: "clip the talk, max 20s"})
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if resp.Window == nil {
		t.Fatal("Window is nil")
	}
	if got := resp.Window.Duration(); got != 20 {
		t.Errorf("window duration = %v, want 20", got)
	}
}

func TestHandleSummary(t *testing.T) {
	provider := &mockProvider{
		classifyJSON: classification("summary", "the video"),
		reply:        "A two paragraph summary.",
	}
	h := newTestHandler(provider, &mockSearcher{}, nil)

	transcript := domain.NewTranscript([]domain.Segment{{Start: 0, End: 10, Text: "hello world"}}, "en")
	resp, err := h.Handle(context.Background(), Request{Query: "summarize", Transcript: transcript})
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if resp.Message != "A two paragraph summary." {
		t.Errorf("Message = %q", resp.Message)
	}
	if provider.requests[1].Messages[1].Content != "hello world" {
		t.Errorf("summary prompt = %q", provider.requests[1].Messages[1].Content)
	}
}

func TestHandleSummaryWithoutTranscript(t *testing.T) {
	provider := &mockProvider{classifyJSON: classification("summary", "the video")}
	h := newTestHandler(provider, &mockSearcher{}, nil)

	_, err := h.Handle(context.Background(), Request{Query: "summarize"})
	if !errors.Is(err, ErrMissingTranscript) {
		t.Errorf("Handle() error = %v, want ErrMissingTranscript", err)
	}
}

func TestHandleSummaryTruncatesLongTranscript(t *testing.T) {
	provider := &mockProvider{classifyJSON: classification("summary", "the video"), reply: "ok"}
	h := newTestHandler(provider, &mockSearcher{}, nil)

	long := strings.Repeat("a", maxPromptChars+500)
	transcript := &domain.Transcript{
		Segments: []domain.Segment{{Start: 0, End: 1, Text: "x"}},
		FullText: long,
	}
	if _, err := h.Handle(context.Background(), Request{Query: "summarize", Transcript: transcript}); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	sent := provider.requests[1].Messages[1].Content
	if len(sent) != maxPromptChars+3 {
		t.Errorf("sent %d chars, want %d plus ellipsis", len(sent), maxPromptChars)
	}
	if !strings.HasSuffix(sent, "...") {
		t.Error("truncated transcript does not end with ellipsis")
	}
}

func TestHandleKeypoints(t *testing.T) {
	provider := &mockProvider{
		classifyJSON: classification("keypoints", "the video"),
		reply:        `{"key_points": [{"title": "First", "summary": "One."}, {"title": "Second", "summary": "Two."}]}`,
	}
	h := newTestHandler(provider, &mockSearcher{}, nil)

	transcript := domain.NewTranscript([]domain.Segment{{Start: 0, End: 10, Text: "content"}}, "en")
	resp, err := h.Handle(context.Background(), Request{Query: "key takeaways", Transcript: transcript})
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if len(resp.KeyPoints) != 2 || resp.KeyPoints[0].Title != "First" {
		t.Errorf("KeyPoints = %+v", resp.KeyPoints)
	}
	if resp.Message != "Found 2 key points from the video" {
		t.Errorf("Message = %q", resp.Message)
	}
	if !provider.requests[1].ResponseJSON {
		t.Error("keypoints request did not ask for JSON mode")
	}
}

func TestClassifyRejectsMalformedJSON(t *testing.T) {
	provider := &mockProvider{classifyJSON: "not json at all"}
	h := newTestHandler(provider, &mockSearcher{}, nil)

	_, err := h.Handle(context.Background(), Request{Query: "anything"})
	var clsErr *ClassificationError
	if !errors.As(err, &clsErr) {
		t.Errorf("Handle() error = %v, want *ClassificationError", err)
	}
}

func TestClassifyRejectsUnknownIntent(t *testing.T) {
	provider := &mockProvider{classifyJSON: classification("dance", "whatever")}
	h := newTestHandler(provider, &mockSearcher{}, nil)

	_, err := h.Handle(context.Background(), Request{Query: "anything"})
	var clsErr *ClassificationError
	if !errors.As(err, &clsErr) {
		t.Errorf("Handle() error = %v, want *ClassificationError", err)
	}
}

func TestClassifyUsesMinimalEffortAndJSONMode(t *testing.T) {
	provider := &mockProvider{classifyJSON: classification("search", "x")}
	h := newTestHandler(provider, &mockSearcher{}, nil)

	if _, err := h.Handle(context.Background(), Request{Query: "find x"}); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	cls := provider.requests[0]
	if cls.Effort != domain.EffortMinimal {
		t.Errorf("classifier effort = %q, want minimal", cls.Effort)
	}
	if !cls.ResponseJSON {
		t.Error("classifier request did not ask for JSON mode")
	}
}
