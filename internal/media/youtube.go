// Package media ingests videos: YouTube caption extraction, Whisper
// transcription for local files, and ffmpeg snippet cutting.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"vidquery/internal/domain"
	"vidquery/internal/httpx"
)

// ErrNoCaptions means the video has neither manual nor auto-generated
// captions; callers fall back to audio transcription.
var ErrNoCaptions = errors.New("no captions available")

var youtubeHosts = map[string]bool{
	"youtube.com":     true,
	"www.youtube.com": true,
	"m.youtube.com":   true,
	"youtu.be":        true,
	"www.youtu.be":    true,
}

// IsURL reports whether the input looks like an http(s) URL rather than a
// local file path.
func IsURL(input string) bool {
	parsed, err := url.Parse(input)
	if err != nil {
		return false
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https"
}

// IsYouTubeURL reports whether the URL points at a YouTube video.
func IsYouTubeURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return youtubeHosts[parsed.Host]
}

// VideoID extracts the video id from the common YouTube URL shapes: watch
// pages, short links, shorts and embeds.
func VideoID(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if !youtubeHosts[parsed.Host] {
		return "", fmt.Errorf("not a youtube url: %s", raw)
	}

	if parsed.Host == "youtu.be" || parsed.Host == "www.youtu.be" {
		id := strings.Trim(parsed.Path, "/")
		if id == "" {
			return "", fmt.Errorf("no video id in %s", raw)
		}
		return id, nil
	}

	if id := parsed.Query().Get("v"); id != "" {
		return id, nil
	}
	for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
		if rest, ok := strings.CutPrefix(parsed.Path, prefix); ok {
			if id, _, _ := strings.Cut(rest, "/"); id != "" {
				return id, nil
			}
		}
	}
	return "", fmt.Errorf("no video id in %s", raw)
}

// CaptionTrack is one available caption track for a video.
type CaptionTrack struct {
	Language string
	URL      string // json3 format
	Auto     bool
}

// VideoInfo is what caption extraction needs to know about a video.
type VideoInfo struct {
	ID       string
	Title    string
	Duration float64
	Tracks   []CaptionTrack
}

// InfoProvider looks up video metadata and caption tracks. The production
// implementation shells out to yt-dlp; tests stub it.
type InfoProvider interface {
	VideoInfo(ctx context.Context, videoURL string) (*VideoInfo, error)
	DownloadAudio(ctx context.Context, videoURL, outputPath string) (*VideoInfo, error)
}

// CaptionFetcher downloads a caption track and parses it into a transcript.
type CaptionFetcher struct {
	client *http.Client
	logger *slog.Logger
}

func NewCaptionFetcher(logger *slog.Logger) *CaptionFetcher {
	return &CaptionFetcher{client: httpx.NewClient(30 * time.Second), logger: logger}
}

// PickTrack chooses the best caption track: manual captions in the wanted
// language, then any manual captions, then auto captions in the wanted
// language, then any auto captions.
func PickTrack(tracks []CaptionTrack, language string) (CaptionTrack, error) {
	pick := func(auto bool, lang string) (CaptionTrack, bool) {
		for _, t := range tracks {
			if t.Auto == auto && (lang == "" || t.Language == lang) {
				return t, true
			}
		}
		return CaptionTrack{}, false
	}

	for _, attempt := range []struct {
		auto bool
		lang string
	}{
		{false, language},
		{false, ""},
		{true, language},
		{true, ""},
	} {
		if t, ok := pick(attempt.auto, attempt.lang); ok {
			return t, nil
		}
	}
	return CaptionTrack{}, ErrNoCaptions
}

// Fetch downloads a json3 caption track and converts it to segments.
func (f *CaptionFetcher) Fetch(ctx context.Context, track CaptionTrack) ([]domain.Segment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, track.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch captions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch captions: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read captions: %w", err)
	}
	return ParseJSON3(data)
}

type json3Doc struct {
	Events []struct {
		StartMs    int64 `json:"tStartMs"`
		DurationMs int64 `json:"dDurationMs"`
		Segs       []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// ParseJSON3 converts YouTube's json3 caption format into segments. Events
// without text (styling, window positioning) are skipped.
func ParseJSON3(data []byte) ([]domain.Segment, error) {
	var doc json3Doc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse json3 captions: %w", err)
	}

	var segments []domain.Segment
	for _, event := range doc.Events {
		if len(event.Segs) == 0 {
			continue
		}
		var parts []string
		for _, seg := range event.Segs {
			text := strings.TrimSpace(seg.UTF8)
			if text != "" && text != "\n" {
				parts = append(parts, text)
			}
		}
		if len(parts) == 0 {
			continue
		}
		text := strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.Join(parts, " "), " "))
		if text == "" {
			continue
		}
		segments = append(segments, domain.Segment{
			Start: float64(event.StartMs) / 1000,
			End:   float64(event.StartMs+event.DurationMs) / 1000,
			Text:  text,
		})
	}
	return segments, nil
}
