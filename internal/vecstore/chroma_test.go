package vecstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// fakeChromaServer mimics the subset of the Chroma v1 REST API the client
// uses, with a single in-memory collection.
type fakeChromaServer struct {
	t     *testing.T
	name  string
	id    string
	items map[string]Item
	order []string
}

func newFakeChromaServer(t *testing.T) *fakeChromaServer {
	return &fakeChromaServer{t: t, items: make(map[string]Item)}
}

func (f *fakeChromaServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name        string `json:"name"`
			GetOrCreate bool   `json:"get_or_create"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if f.name == "" {
			f.name = req.Name
			f.id = "c0ffee"
		}
		json.NewEncoder(w).Encode(map[string]string{"id": f.id, "name": f.name})
	})

	mux.HandleFunc("GET /api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		out := []map[string]string{}
		if f.name != "" {
			out = append(out, map[string]string{"id": f.id, "name": f.name})
		}
		json.NewEncoder(w).Encode(out)
	})

	mux.HandleFunc("GET /api/v1/collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("name") != f.name {
			http.Error(w, "collection not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": f.id, "name": f.name})
	})

	mux.HandleFunc("DELETE /api/v1/collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("name") != f.name {
			http.Error(w, "collection not found", http.StatusNotFound)
			return
		}
		f.name, f.id = "", ""
		f.items = make(map[string]Item)
		f.order = nil
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("POST /api/v1/collections/{id}/add", func(w http.ResponseWriter, r *http.Request) {
		f.requireID(w, r)
		var req struct {
			IDs        []string         `json:"ids"`
			Documents  []string         `json:"documents"`
			Embeddings [][]float32      `json:"embeddings"`
			Metadatas  []map[string]any `json:"metadatas"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for i, id := range req.IDs {
			item := Item{ID: id, Text: req.Documents[i], Vector: req.Embeddings[i]}
			item.Start = req.Metadatas[i]["start"].(float64)
			item.End = req.Metadatas[i]["end"].(float64)
			if _, exists := f.items[id]; !exists {
				f.order = append(f.order, id)
			}
			f.items[id] = item
		}
		w.WriteHeader(http.StatusCreated)
	})

	mux.HandleFunc("POST /api/v1/collections/{id}/get", func(w http.ResponseWriter, r *http.Request) {
		f.requireID(w, r)
		json.NewEncoder(w).Encode(map[string]any{"ids": f.order})
	})

	mux.HandleFunc("POST /api/v1/collections/{id}/delete", func(w http.ResponseWriter, r *http.Request) {
		f.requireID(w, r)
		var req struct {
			IDs []string `json:"ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, id := range req.IDs {
			delete(f.items, id)
		}
		remaining := f.order[:0]
		for _, id := range f.order {
			if _, ok := f.items[id]; ok {
				remaining = append(remaining, id)
			}
		}
		f.order = remaining
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("POST /api/v1/collections/{id}/query", func(w http.ResponseWriter, r *http.Request) {
		f.requireID(w, r)
		var req struct {
			NResults int `json:"n_results"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		docs := []string{}
		metas := []map[string]any{}
		dists := []float64{}
		for i, id := range f.order {
			if i >= req.NResults {
				break
			}
			item := f.items[id]
			docs = append(docs, item.Text)
			metas = append(metas, map[string]any{"start": item.Start, "end": item.End})
			dists = append(dists, float64(i)*0.1)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"documents": [][]string{docs},
			"metadatas": []any{metas},
			"distances": [][]float64{dists},
		})
	})

	mux.HandleFunc("GET /api/v1/collections/{id}/count", func(w http.ResponseWriter, r *http.Request) {
		f.requireID(w, r)
		json.NewEncoder(w).Encode(len(f.items))
	})

	return mux
}

func (f *fakeChromaServer) requireID(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("id") != f.id {
		f.t.Errorf("request used collection id %q, want %q", r.PathValue("id"), f.id)
	}
}

func newTestChroma(t *testing.T) (*Chroma, *fakeChromaServer) {
	fake := newFakeChromaServer(t)
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return NewChroma(ChromaConfig{BaseURL: srv.URL, Logger: testLogger()}), fake
}

func TestChromaEnsureUpsertQuery(t *testing.T) {
	store, _ := newTestChroma(t)
	ctx := context.Background()

	if err := store.EnsureCollection(ctx, "transcript_abc"); err != nil {
		t.Fatalf("EnsureCollection() error: %v", err)
	}

	items := []Item{
		{ID: "chunk_0", Text: "first chunk", Vector: []float32{0.1, 0.2}, Start: 0, End: 12},
		{ID: "chunk_1", Text: "second chunk", Vector: []float32{0.3, 0.4}, Start: 12, End: 30},
	}
	if err := store.Upsert(ctx, "transcript_abc", items); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	count, err := store.Count(ctx, "transcript_abc")
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}

	matches, err := store.Query(ctx, "transcript_abc", []float32{0.1, 0.2}, 5)
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].Text != "first chunk" || matches[0].Start != 0 || matches[0].End != 12 {
		t.Errorf("match[0] = %+v, want first chunk [0,12]", matches[0])
	}
}

func TestChromaClearCollection(t *testing.T) {
	store, fake := newTestChroma(t)
	ctx := context.Background()

	if err := store.EnsureCollection(ctx, "transcript_abc"); err != nil {
		t.Fatalf("EnsureCollection() error: %v", err)
	}
	items := []Item{{ID: "chunk_0", Text: "old", Vector: []float32{1}, Start: 0, End: 1}}
	if err := store.Upsert(ctx, "transcript_abc", items); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	if err := store.ClearCollection(ctx, "transcript_abc"); err != nil {
		t.Fatalf("ClearCollection() error: %v", err)
	}
	if len(fake.items) != 0 {
		t.Errorf("collection still has %d items after clear", len(fake.items))
	}

	// Clearing an already-empty collection is a no-op.
	if err := store.ClearCollection(ctx, "transcript_abc"); err != nil {
		t.Errorf("ClearCollection() on empty collection: %v", err)
	}
}

func TestChromaExists(t *testing.T) {
	store, _ := newTestChroma(t)
	ctx := context.Background()

	ok, err := store.Exists(ctx, "transcript_missing")
	if err != nil {
		t.Fatalf("Exists() error: %v", err)
	}
	if ok {
		t.Error("Exists() = true for missing collection")
	}

	if err := store.EnsureCollection(ctx, "transcript_abc"); err != nil {
		t.Fatalf("EnsureCollection() error: %v", err)
	}
	ok, err = store.Exists(ctx, "transcript_abc")
	if err != nil {
		t.Fatalf("Exists() error: %v", err)
	}
	if !ok {
		t.Error("Exists() = false for created collection")
	}
}

func TestChromaDeleteAndList(t *testing.T) {
	store, _ := newTestChroma(t)
	ctx := context.Background()

	if err := store.EnsureCollection(ctx, "transcript_abc"); err != nil {
		t.Fatalf("EnsureCollection() error: %v", err)
	}

	names, err := store.ListCollections(ctx)
	if err != nil {
		t.Fatalf("ListCollections() error: %v", err)
	}
	if len(names) != 1 || names[0] != "transcript_abc" {
		t.Errorf("ListCollections() = %v, want [transcript_abc]", names)
	}

	if err := store.DeleteCollection(ctx, "transcript_abc"); err != nil {
		t.Fatalf("DeleteCollection() error: %v", err)
	}
	names, err = store.ListCollections(ctx)
	if err != nil {
		t.Fatalf("ListCollections() error: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("ListCollections() = %v after delete, want empty", names)
	}
}

func TestChromaServiceErrorOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	store := NewChroma(ChromaConfig{BaseURL: srv.URL, Logger: testLogger()})
	err := store.EnsureCollection(context.Background(), "x")
	if err == nil {
		t.Fatal("EnsureCollection() succeeded against failing server")
	}
	if !strings.Contains(err.Error(), "ensure collection") {
		t.Errorf("error %q does not name the operation", err)
	}
}
