package vecstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"vidquery/internal/httpx"
)

// Chroma talks to a Chroma server over its v1 REST API. Collections are
// addressed by name externally; the server-assigned collection id needed for
// item operations is resolved once and cached.
type Chroma struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger

	mu  sync.Mutex
	ids map[string]string // collection name -> id
}

// ChromaConfig configures the Chroma client.
type ChromaConfig struct {
	BaseURL        string
	TimeoutSeconds int
	Logger         *slog.Logger
}

func NewChroma(cfg ChromaConfig) *Chroma {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = "http://localhost:8000"
	}
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	return &Chroma{
		baseURL: base,
		client:  httpx.NewClient(time.Duration(timeout) * time.Second),
		logger:  cfg.Logger,
		ids:     make(map[string]string),
	}
}

type chromaCollection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c *Chroma) EnsureCollection(ctx context.Context, name string) error {
	body := map[string]any{
		"name":          name,
		"get_or_create": true,
		"metadata":      map[string]any{"hnsw:space": "cosine"},
	}
	var coll chromaCollection
	if err := c.do(ctx, http.MethodPost, "/api/v1/collections", body, &coll); err != nil {
		return &ServiceError{Op: "ensure collection", Err: err}
	}
	c.cacheID(name, coll.ID)
	return nil
}

func (c *Chroma) ClearCollection(ctx context.Context, name string) error {
	id, err := c.collectionID(ctx, name)
	if err != nil {
		return &ServiceError{Op: "clear collection", Err: err}
	}

	// Chroma has no truncate; fetch all ids and delete them.
	var existing struct {
		IDs []string `json:"ids"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/collections/"+id+"/get", map[string]any{}, &existing); err != nil {
		return &ServiceError{Op: "clear collection", Err: err}
	}
	if len(existing.IDs) == 0 {
		return nil
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/collections/"+id+"/delete", map[string]any{"ids": existing.IDs}, nil); err != nil {
		return &ServiceError{Op: "clear collection", Err: err}
	}
	c.logger.Debug("cleared collection", "name", name, "removed", len(existing.IDs))
	return nil
}

func (c *Chroma) Upsert(ctx context.Context, name string, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	id, err := c.collectionID(ctx, name)
	if err != nil {
		return &ServiceError{Op: "upsert", Err: err}
	}

	ids := make([]string, len(items))
	docs := make([]string, len(items))
	embeddings := make([][]float32, len(items))
	metadatas := make([]map[string]any, len(items))
	for i, item := range items {
		ids[i] = item.ID
		docs[i] = item.Text
		embeddings[i] = item.Vector
		metadatas[i] = map[string]any{"start": item.Start, "end": item.End}
	}

	body := map[string]any{
		"ids":        ids,
		"documents":  docs,
		"embeddings": embeddings,
		"metadatas":  metadatas,
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/collections/"+id+"/add", body, nil); err != nil {
		return &ServiceError{Op: "upsert", Err: err}
	}
	return nil
}

type chromaQueryResponse struct {
	Documents [][]string         `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]float64        `json:"distances"`
}

func (c *Chroma) Query(ctx context.Context, name string, vector []float32, topK int) ([]Match, error) {
	id, err := c.collectionID(ctx, name)
	if err != nil {
		return nil, &ServiceError{Op: "query", Err: err}
	}

	body := map[string]any{
		"query_embeddings": [][]float32{vector},
		"n_results":        topK,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	var resp chromaQueryResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/collections/"+id+"/query", body, &resp); err != nil {
		return nil, &ServiceError{Op: "query", Err: err}
	}
	if len(resp.Documents) == 0 {
		return nil, nil
	}

	docs := resp.Documents[0]
	matches := make([]Match, 0, len(docs))
	for i, doc := range docs {
		m := Match{Text: doc}
		if i < len(resp.Distances[0]) {
			m.Distance = resp.Distances[0][i]
		}
		if i < len(resp.Metadatas[0]) {
			m.Start = metaFloat(resp.Metadatas[0][i], "start")
			m.End = metaFloat(resp.Metadatas[0][i], "end")
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (c *Chroma) Exists(ctx context.Context, name string) (bool, error) {
	var coll chromaCollection
	err := c.do(ctx, http.MethodGet, "/api/v1/collections/"+name, nil, &coll)
	if err != nil {
		var status *statusError
		if errors.As(err, &status) && status.code == http.StatusNotFound {
			return false, nil
		}
		return false, &ServiceError{Op: "exists", Err: err}
	}
	c.cacheID(name, coll.ID)
	return true, nil
}

func (c *Chroma) DeleteCollection(ctx context.Context, name string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/v1/collections/"+name, nil, nil); err != nil {
		return &ServiceError{Op: "delete collection", Err: err}
	}
	c.mu.Lock()
	delete(c.ids, name)
	c.mu.Unlock()
	return nil
}

func (c *Chroma) ListCollections(ctx context.Context) ([]string, error) {
	var colls []chromaCollection
	if err := c.do(ctx, http.MethodGet, "/api/v1/collections", nil, &colls); err != nil {
		return nil, &ServiceError{Op: "list collections", Err: err}
	}
	names := make([]string, 0, len(colls))
	for _, coll := range colls {
		names = append(names, coll.Name)
	}
	return names, nil
}

func (c *Chroma) Count(ctx context.Context, name string) (int, error) {
	id, err := c.collectionID(ctx, name)
	if err != nil {
		return 0, &ServiceError{Op: "count", Err: err}
	}
	var count int
	if err := c.do(ctx, http.MethodGet, "/api/v1/collections/"+id+"/count", nil, &count); err != nil {
		return 0, &ServiceError{Op: "count", Err: err}
	}
	return count, nil
}

func (c *Chroma) cacheID(name, id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	c.ids[name] = id
	c.mu.Unlock()
}

func (c *Chroma) collectionID(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	id, ok := c.ids[name]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	var coll chromaCollection
	if err := c.do(ctx, http.MethodGet, "/api/v1/collections/"+name, nil, &coll); err != nil {
		return "", fmt.Errorf("resolve collection %q: %w", name, err)
	}
	if coll.ID == "" {
		return "", fmt.Errorf("collection %q has no id", name)
	}
	c.cacheID(name, coll.ID)
	return coll.ID, nil
}

// statusError carries the HTTP status of a failed call so callers can tell
// "not found" from real failures.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("index service status %d: %s", e.code, e.body)
}

func (c *Chroma) do(ctx context.Context, method, path string, reqBody, respBody any) error {
	var payload []byte
	if reqBody != nil {
		var err error
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	buildReq := func() (*http.Request, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	}

	resp, err := httpx.DoWithRetry(ctx, c.client, buildReq, c.logger)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(data)
		if len(msg) > 200 {
			msg = msg[:200] + "..."
		}
		return &statusError{code: resp.StatusCode, body: msg}
	}
	if respBody == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, respBody); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func metaFloat(meta map[string]any, key string) float64 {
	if v, ok := meta[key].(float64); ok {
		return v
	}
	return 0
}
