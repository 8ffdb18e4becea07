package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// YtDlp implements InfoProvider by shelling out to the yt-dlp binary.
type YtDlp struct {
	binary string
	logger *slog.Logger
}

func NewYtDlp(logger *slog.Logger) *YtDlp {
	return &YtDlp{binary: "yt-dlp", logger: logger}
}

type ytdlpInfo struct {
	ID                string                       `json:"id"`
	Title             string                       `json:"title"`
	Duration          float64                      `json:"duration"`
	Subtitles         map[string][]ytdlpCaptionFmt `json:"subtitles"`
	AutomaticCaptions map[string][]ytdlpCaptionFmt `json:"automatic_captions"`
}

type ytdlpCaptionFmt struct {
	Ext string `json:"ext"`
	URL string `json:"url"`
}

func (y *YtDlp) VideoInfo(ctx context.Context, videoURL string) (*VideoInfo, error) {
	cmd := exec.CommandContext(ctx, y.binary, "-J", "--no-warnings", "--skip-download", videoURL)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("yt-dlp timed out or cancelled")
		}
		return nil, fmt.Errorf("yt-dlp: %w: %s", err, firstLine(stderr.String()))
	}

	var info ytdlpInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("parse yt-dlp output: %w", err)
	}

	out := &VideoInfo{ID: info.ID, Title: info.Title, Duration: info.Duration}
	out.Tracks = append(out.Tracks, collectTracks(info.Subtitles, false)...)
	out.Tracks = append(out.Tracks, collectTracks(info.AutomaticCaptions, true)...)
	return out, nil
}

func collectTracks(byLang map[string][]ytdlpCaptionFmt, auto bool) []CaptionTrack {
	var tracks []CaptionTrack
	for lang, formats := range byLang {
		for _, f := range formats {
			if f.Ext == "json3" {
				tracks = append(tracks, CaptionTrack{Language: lang, URL: f.URL, Auto: auto})
				break
			}
		}
	}
	return tracks
}

func (y *YtDlp) DownloadAudio(ctx context.Context, videoURL, outputPath string) (*VideoInfo, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	base := strings.TrimSuffix(outputPath, filepath.Ext(outputPath))

	cmd := exec.CommandContext(ctx, y.binary,
		"-f", "bestaudio/best",
		"-x", "--audio-format", "mp3", "--audio-quality", "192K",
		"-o", base+".%(ext)s",
		"--no-warnings", "--print-json",
		videoURL,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	y.logger.Info("downloading audio", "url", videoURL)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("yt-dlp timed out or cancelled")
		}
		return nil, fmt.Errorf("yt-dlp download: %w: %s", err, firstLine(stderr.String()))
	}

	var info ytdlpInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("parse yt-dlp output: %w", err)
	}
	return &VideoInfo{ID: info.ID, Title: info.Title, Duration: info.Duration}, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
