package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// fakeBackend records batch sizes and returns a vector encoding the global
// position of each text, so order can be verified end to end.
type fakeBackend struct {
	batches  [][]string
	failOn   int // 1-based batch number to fail on, 0 = never
	seen     int
	shortLen bool
}

func (f *fakeBackend) Model() string { return "fake" }

func (f *fakeBackend) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	if f.failOn > 0 && len(f.batches) == f.failOn {
		return nil, errors.New("backend down")
	}
	out := make([][]float32, 0, len(texts))
	for range texts {
		out = append(out, []float32{float32(f.seen)})
		f.seen++
	}
	if f.shortLen && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("text %d", i)
	}
	return out
}

func TestGatewayBatching(t *testing.T) {
	backend := &fakeBackend{}
	gw := NewGateway(backend, 3, testLogger())

	vectors, err := gw.Embed(context.Background(), texts(7))
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(vectors) != 7 {
		t.Fatalf("got %d vectors, want 7", len(vectors))
	}
	wantBatches := []int{3, 3, 1}
	if len(backend.batches) != len(wantBatches) {
		t.Fatalf("got %d batches, want %d", len(backend.batches), len(wantBatches))
	}
	for i, want := range wantBatches {
		if len(backend.batches[i]) != want {
			t.Errorf("batch %d size = %d, want %d", i, len(backend.batches[i]), want)
		}
	}
	for i, v := range vectors {
		if v[0] != float32(i) {
			t.Errorf("vector %d = %v, want position %d", i, v[0], i)
		}
	}
}

func TestGatewayExactBatchBoundary(t *testing.T) {
	backend := &fakeBackend{}
	gw := NewGateway(backend, 4, testLogger())

	vectors, err := gw.Embed(context.Background(), texts(8))
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(vectors) != 8 {
		t.Fatalf("got %d vectors, want 8", len(vectors))
	}
	if len(backend.batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(backend.batches))
	}
}

func TestGatewayMidBatchFailure(t *testing.T) {
	backend := &fakeBackend{failOn: 2}
	gw := NewGateway(backend, 2, testLogger())

	vectors, err := gw.Embed(context.Background(), texts(5))
	if err == nil {
		t.Fatal("Embed() succeeded, want error")
	}
	if vectors != nil {
		t.Errorf("got partial vectors %v, want nil", vectors)
	}
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Errorf("error %v is not a *ServiceError", err)
	}
}

func TestGatewayLengthMismatch(t *testing.T) {
	backend := &fakeBackend{shortLen: true}
	gw := NewGateway(backend, 10, testLogger())

	_, err := gw.Embed(context.Background(), texts(3))
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("error %v is not a *ServiceError", err)
	}
}

func TestGatewayEmptyInput(t *testing.T) {
	backend := &fakeBackend{}
	gw := NewGateway(backend, 10, testLogger())

	vectors, err := gw.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if vectors != nil {
		t.Errorf("got %v, want nil", vectors)
	}
	if len(backend.batches) != 0 {
		t.Errorf("backend called %d times for empty input", len(backend.batches))
	}
}
