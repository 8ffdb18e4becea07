package retriever

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"vidquery/internal/domain"
	"vidquery/internal/vecstore"
)

var (
	// ErrEmptyTranscript means indexing was attempted on a transcript with no
	// segments.
	ErrEmptyTranscript = errors.New("transcript has no segments")
	// ErrNoIndex means a search ran before any transcript was indexed and no
	// explicit collection was given.
	ErrNoIndex = errors.New("no indexed transcript available")
)

// Embedder is the slice of the embedding gateway the retriever needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever indexes transcripts into the vector store and searches them. The
// active collection is per-instance state guarded by a mutex, so independent
// retrievers never interfere with each other.
type Retriever struct {
	embedder       Embedder
	store          vecstore.Store
	minChunkLength int
	logger         *slog.Logger

	mu      sync.Mutex
	current string
}

// Config wires the retriever's collaborators.
type Config struct {
	Embedder       Embedder
	Store          vecstore.Store
	MinChunkLength int
	Logger         *slog.Logger
}

func New(cfg Config) *Retriever {
	minLen := cfg.MinChunkLength
	if minLen <= 0 {
		minLen = 100
	}
	return &Retriever{
		embedder:       cfg.Embedder,
		store:          cfg.Store,
		minChunkLength: minLen,
		logger:         cfg.Logger,
	}
}

// CollectionForVideo names the collection for a video with a known id.
func CollectionForVideo(videoID string) string {
	return "transcript_" + videoID
}

// CollectionForText derives a stable collection name from the transcript text
// itself, for sources without an id. Only a prefix of the text feeds the hash
// so renaming is cheap for long transcripts.
func CollectionForText(fullText string) string {
	sample := fullText
	if len(sample) > 1000 {
		sample = sample[:1000]
	}
	sum := md5.Sum([]byte(sample))
	return "transcript_video_" + hex.EncodeToString(sum[:])[:12]
}

// Index chunks the transcript, embeds the chunks and replaces the collection
// contents. It returns the collection name and records it as the active
// collection. Existing items are cleared first, so re-indexing the same video
// never duplicates chunks.
func (r *Retriever) Index(ctx context.Context, transcript *domain.Transcript, videoID string) (string, error) {
	if transcript == nil || transcript.Empty() {
		return "", ErrEmptyTranscript
	}

	name := CollectionForText(transcript.FullText)
	if videoID != "" {
		name = CollectionForVideo(videoID)
	}

	chunks := BuildChunks(transcript.Segments, r.minChunkLength)
	if len(chunks) == 0 {
		return "", ErrEmptyTranscript
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return "", fmt.Errorf("embed chunks: %w", err)
	}

	if err := r.store.EnsureCollection(ctx, name); err != nil {
		return "", fmt.Errorf("prepare collection: %w", err)
	}
	if err := r.store.ClearCollection(ctx, name); err != nil {
		return "", fmt.Errorf("prepare collection: %w", err)
	}

	items := make([]vecstore.Item, len(chunks))
	for i, chunk := range chunks {
		items[i] = vecstore.Item{
			ID:     fmt.Sprintf("chunk_%d", i),
			Text:   chunk.Text,
			Vector: vectors[i],
			Start:  chunk.Start,
			End:    chunk.End,
		}
	}
	if err := r.store.Upsert(ctx, name, items); err != nil {
		return "", fmt.Errorf("store chunks: %w", err)
	}

	r.mu.Lock()
	r.current = name
	r.mu.Unlock()

	r.logger.Info("indexed transcript", "collection", name, "chunks", len(chunks))
	return name, nil
}

// Search embeds the query and returns the topK nearest chunks ordered by the
// store. Relevance is 1 minus the reported distance, clamped to [0, 1].
func (r *Retriever) Search(ctx context.Context, query string, topK int, collection string) ([]domain.SearchResult, error) {
	name := collection
	if name == "" {
		r.mu.Lock()
		name = r.current
		r.mu.Unlock()
	}
	if name == "" {
		return nil, ErrNoIndex
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := r.store.Query(ctx, name, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", name, err)
	}

	results := make([]domain.SearchResult, len(matches))
	for i, m := range matches {
		results[i] = domain.SearchResult{
			Text:      m.Text,
			Start:     m.Start,
			End:       m.End,
			Relevance: clamp01(1 - m.Distance),
		}
	}
	return results, nil
}

// Current returns the active collection name, or empty if none.
func (r *Retriever) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// DeleteCollection removes a collection and clears the active collection if
// it pointed at it.
func (r *Retriever) DeleteCollection(ctx context.Context, name string) error {
	if err := r.store.DeleteCollection(ctx, name); err != nil {
		return err
	}
	r.mu.Lock()
	if r.current == name {
		r.current = ""
	}
	r.mu.Unlock()
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
