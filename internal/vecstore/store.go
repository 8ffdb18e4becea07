// Package vecstore is the client side of the vector index service. It stores
// chunk vectors in named collections and answers nearest-neighbour queries.
package vecstore

import (
	"context"
	"fmt"
)

// Item is one indexed chunk: its id, raw text, embedding vector and the time
// span it covers in the source video.
type Item struct {
	ID     string
	Text   string
	Vector []float32
	Start  float64
	End    float64
}

// Match is one query result. Distance is the raw metric from the index;
// callers convert it to a relevance score.
type Match struct {
	Text     string
	Start    float64
	End      float64
	Distance float64
}

// Store abstracts the vector index service.
type Store interface {
	// EnsureCollection creates the named collection if it does not exist.
	EnsureCollection(ctx context.Context, name string) error
	// ClearCollection removes every item from the collection, leaving it empty.
	ClearCollection(ctx context.Context, name string) error
	// Upsert adds items to the collection.
	Upsert(ctx context.Context, name string, items []Item) error
	// Query returns up to topK nearest matches for the vector.
	Query(ctx context.Context, name string, vector []float32, topK int) ([]Match, error)
	// Exists reports whether the named collection exists.
	Exists(ctx context.Context, name string) (bool, error)
	// DeleteCollection removes the collection and its items.
	DeleteCollection(ctx context.Context, name string) error
	// ListCollections returns the names of all collections.
	ListCollections(ctx context.Context) ([]string, error)
	// Count returns the number of items in the collection.
	Count(ctx context.Context, name string) (int, error)
}

// ServiceError wraps a transport or service failure from the index backend.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string { return fmt.Sprintf("vector store %s: %v", e.Op, e.Err) }
func (e *ServiceError) Unwrap() error { return e.Err }
