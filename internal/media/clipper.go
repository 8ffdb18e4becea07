package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"vidquery/internal/domain"
)

// FFmpegClipper cuts snippet files with the ffmpeg binary.
type FFmpegClipper struct {
	binary    string
	probe     string
	outputDir string
	logger    *slog.Logger
}

func NewFFmpegClipper(binary, outputDir string, logger *slog.Logger) *FFmpegClipper {
	if binary == "" {
		binary = "ffmpeg"
	}
	// ffprobe ships alongside ffmpeg, so look for it in the same place.
	probe := "ffprobe"
	if strings.HasSuffix(binary, "ffmpeg") {
		probe = strings.TrimSuffix(binary, "ffmpeg") + "ffprobe"
	}
	return &FFmpegClipper{binary: binary, probe: probe, outputDir: outputDir, logger: logger}
}

// Cut writes the window of the source video to a new mp4 and returns its
// path. The stream is re-encoded so cuts land on exact timestamps instead of
// the nearest keyframe.
func (c *FFmpegClipper) Cut(ctx context.Context, videoPath string, window domain.TimeRange) (string, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return "", fmt.Errorf("source video: %w", err)
	}
	if err := os.MkdirAll(c.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	duration, err := c.probeDuration(ctx, videoPath)
	if err != nil {
		c.logger.Warn("cannot probe video duration, cutting unclamped", "source", videoPath, "error", err)
		duration = 0
	}
	window = clampWindow(window, duration)

	outPath := filepath.Join(c.outputDir, fmt.Sprintf("snippet_%d-%d.mp4", int(window.Start), int(window.End)))

	cmd := exec.CommandContext(ctx, c.binary,
		"-y",
		"-ss", fmt.Sprintf("%.3f", window.Start),
		"-to", fmt.Sprintf("%.3f", window.End),
		"-i", videoPath,
		"-c:v", "libx264",
		"-c:a", "aac",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	c.logger.Info("cutting snippet", "source", videoPath, "start", window.Start, "end", window.End)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("ffmpeg timed out or cancelled")
		}
		return "", fmt.Errorf("ffmpeg: %w: %s", err, firstLine(stderr.String()))
	}
	return outPath, nil
}

// probeDuration reads the container duration in seconds with ffprobe.
func (c *FFmpegClipper) probeDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, c.probe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return duration, nil
}

// clampWindow bounds a cut to the source: the start is floored at 0 and,
// when the duration is known, the end never runs past it. A zero duration
// means unknown and leaves the end alone.
func clampWindow(w domain.TimeRange, duration float64) domain.TimeRange {
	if w.Start < 0 {
		w.Start = 0
	}
	if duration > 0 && w.End > duration {
		w.End = duration
	}
	return w
}

// ExtractAudio pulls the audio track out of a video file as mp3, for
// transcription.
func (c *FFmpegClipper) ExtractAudio(ctx context.Context, videoPath string) (string, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return "", fmt.Errorf("source video: %w", err)
	}
	if err := os.MkdirAll(c.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	stem := filepath.Base(videoPath)
	stem = stem[:len(stem)-len(filepath.Ext(stem))]
	outPath := filepath.Join(c.outputDir, stem+"_audio.mp3")

	cmd := exec.CommandContext(ctx, c.binary,
		"-y",
		"-i", videoPath,
		"-vn",
		"-acodec", "libmp3lame", "-b:a", "192k",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("ffmpeg timed out or cancelled")
		}
		return "", fmt.Errorf("ffmpeg: %w: %s", err, firstLine(stderr.String()))
	}
	return outPath, nil
}
