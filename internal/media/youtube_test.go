package media

import (
	"testing"

	"vidquery/internal/domain"
)

func TestIsURL(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"https://youtube.com/watch?v=abc", true},
		{"http://example.com/video.mp4", true},
		{"/home/user/video.mp4", false},
		{"video.mp4", false},
		{"ftp://example.com/video.mp4", false},
	}
	for _, tc := range cases {
		if got := IsURL(tc.input); got != tc.want {
			t.Errorf("IsURL(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestIsYouTubeURL(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", true},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"https://vimeo.com/12345", false},
		{"https://example.com/watch?v=abc", false},
	}
	for _, tc := range cases {
		if got := IsYouTubeURL(tc.input); got != tc.want {
			t.Errorf("IsYouTubeURL(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestVideoID(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/abc123", "abc123"},
		{"https://www.youtube.com/embed/abc123", "abc123"},
		{"https://www.youtube.com/watch?v=abc123&t=30s", "abc123"},
	}
	for _, tc := range cases {
		got, err := VideoID(tc.input)
		if err != nil {
			t.Errorf("VideoID(%q) error: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("VideoID(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestVideoIDErrors(t *testing.T) {
	for _, input := range []string{
		"https://www.youtube.com/",
		"https://youtu.be/",
		"https://vimeo.com/12345",
	} {
		if _, err := VideoID(input); err == nil {
			t.Errorf("VideoID(%q) succeeded, want error", input)
		}
	}
}

func TestPickTrackPreference(t *testing.T) {
	tracks := []CaptionTrack{
		{Language: "de", Auto: true, URL: "auto-de"},
		{Language: "en", Auto: true, URL: "auto-en"},
		{Language: "de", Auto: false, URL: "manual-de"},
	}

	// Manual track in another language beats auto in the wanted language.
	got, err := PickTrack(tracks, "en")
	if err != nil {
		t.Fatalf("PickTrack() error: %v", err)
	}
	if got.URL != "manual-de" {
		t.Errorf("picked %q, want manual-de", got.URL)
	}

	// With a manual track in the wanted language, that wins.
	tracks = append(tracks, CaptionTrack{Language: "en", Auto: false, URL: "manual-en"})
	got, err = PickTrack(tracks, "en")
	if err != nil {
		t.Fatal(err)
	}
	if got.URL != "manual-en" {
		t.Errorf("picked %q, want manual-en", got.URL)
	}
}

func TestPickTrackAutoFallback(t *testing.T) {
	tracks := []CaptionTrack{{Language: "fr", Auto: true, URL: "auto-fr"}}
	got, err := PickTrack(tracks, "en")
	if err != nil {
		t.Fatalf("PickTrack() error: %v", err)
	}
	if got.URL != "auto-fr" {
		t.Errorf("picked %q, want auto-fr", got.URL)
	}
}

func TestPickTrackNone(t *testing.T) {
	if _, err := PickTrack(nil, "en"); err != ErrNoCaptions {
		t.Errorf("PickTrack(nil) error = %v, want ErrNoCaptions", err)
	}
}

func TestParseJSON3(t *testing.T) {
	data := []byte(`{
		"events": [
			{"tStartMs": 0, "dDurationMs": 2000},
			{"tStartMs": 1000, "dDurationMs": 3000, "segs": [{"utf8": "hello "}, {"utf8": "world"}]},
			{"tStartMs": 4000, "dDurationMs": 1000, "segs": [{"utf8": "\n"}]},
			{"tStartMs": 5000, "dDurationMs": 2500, "segs": [{"utf8": "  second   line "}]}
		]
	}`)

	segments, err := ParseJSON3(data)
	if err != nil {
		t.Fatalf("ParseJSON3() error: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[0].Text != "hello world" || segments[0].Start != 1 || segments[0].End != 4 {
		t.Errorf("segment[0] = %+v", segments[0])
	}
	if segments[1].Text != "second line" || segments[1].Start != 5 || segments[1].End != 7.5 {
		t.Errorf("segment[1] = %+v", segments[1])
	}
}

func TestParseJSON3Invalid(t *testing.T) {
	if _, err := ParseJSON3([]byte("nope")); err == nil {
		t.Error("ParseJSON3 accepted invalid input")
	}
}

func TestYouTubeSnippetLinks(t *testing.T) {
	links, err := YouTubeSnippetLinks("https://youtu.be/abc123", domain.TimeRange{Start: 65.7, End: 95.2})
	if err != nil {
		t.Fatalf("YouTubeSnippetLinks() error: %v", err)
	}
	if links.WatchURL != "https://www.youtube.com/watch?v=abc123&t=65" {
		t.Errorf("WatchURL = %q", links.WatchURL)
	}
	if links.EmbedURL != "https://www.youtube.com/embed/abc123?start=65&end=95" {
		t.Errorf("EmbedURL = %q", links.EmbedURL)
	}
	if links.TimestampDisplay != "01:05 - 01:35" {
		t.Errorf("TimestampDisplay = %q", links.TimestampDisplay)
	}
	if links.Duration != 30 {
		t.Errorf("Duration = %d", links.Duration)
	}
}
