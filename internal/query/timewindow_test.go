package query

import (
	"testing"

	"vidquery/internal/domain"
)

func span(start, end float64) domain.SearchResult {
	return domain.SearchResult{Start: start, End: end}
}

func TestResolveWindowPadsShortSpan(t *testing.T) {
	got := ResolveWindow([]domain.SearchResult{span(10, 12)}, 2, 60)
	want := domain.TimeRange{Start: 8, End: 14}
	if got != want {
		t.Errorf("ResolveWindow() = %+v, want %+v", got, want)
	}
}

func TestResolveWindowRecentersLongSpan(t *testing.T) {
	// 10..200 padded is far over 60s, so the window collapses to 60s around
	// the first span's midpoint (105).
	got := ResolveWindow([]domain.SearchResult{span(10, 200)}, 2, 60)
	want := domain.TimeRange{Start: 75, End: 135}
	if got != want {
		t.Errorf("ResolveWindow() = %+v, want %+v", got, want)
	}
}

func TestResolveWindowFloorsAtZero(t *testing.T) {
	got := ResolveWindow([]domain.SearchResult{span(1, 3)}, 2, 60)
	if got.Start != 0 {
		t.Errorf("Start = %v, want 0", got.Start)
	}
	if got.End != 5 {
		t.Errorf("End = %v, want 5", got.End)
	}
}

func TestResolveWindowCoversAllSpans(t *testing.T) {
	spans := []domain.SearchResult{span(20, 25), span(5, 8), span(30, 33)}
	got := ResolveWindow(spans, 2, 60)
	want := domain.TimeRange{Start: 3, End: 35}
	if got != want {
		t.Errorf("ResolveWindow() = %+v, want %+v", got, want)
	}
}

func TestResolveWindowRecentersOnFirstSpan(t *testing.T) {
	// The first span is the most relevant match, not the earliest. When the
	// combined window is too long, the cut centers on it.
	spans := []domain.SearchResult{span(100, 110), span(5, 8), span(300, 305)}
	got := ResolveWindow(spans, 2, 60)
	want := domain.TimeRange{Start: 75, End: 135}
	if got != want {
		t.Errorf("ResolveWindow() = %+v, want %+v", got, want)
	}
}

func TestResolveWindowRecenterNearStart(t *testing.T) {
	// Recentering can hit the floor; only the start is clamped.
	spans := []domain.SearchResult{span(0, 10), span(500, 505)}
	got := ResolveWindow(spans, 2, 60)
	if got.Start != 0 {
		t.Errorf("Start = %v, want 0", got.Start)
	}
	if got.End != 35 {
		t.Errorf("End = %v, want 35", got.End)
	}
}
