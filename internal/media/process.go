package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidquery/internal/domain"
	"vidquery/internal/metrics"
)

var supportedVideoFormats = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".webm": true,
	".flv":  true,
}

// Transcriber converts audio data to a timestamped transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioData io.Reader, filename string) (*domain.Transcript, error)
}

// CaptionGetter downloads and parses one caption track.
type CaptionGetter interface {
	Fetch(ctx context.Context, track CaptionTrack) ([]domain.Segment, error)
}

// AudioExtractor pulls the audio track out of a local video file.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoPath string) (string, error)
}

// Result is a fully processed video ready to index.
type Result struct {
	Transcript *domain.Transcript
	VideoID    string
	Title      string
	Duration   float64
	Source     string
	VideoURL   string
	VideoPath  string
	AudioPath  string
}

// Processor turns a video reference into a transcript. YouTube videos use
// published captions when available and fall back to downloading the audio
// and transcribing it; local files always go through transcription.
type Processor struct {
	info        InfoProvider
	captions    CaptionGetter
	transcriber Transcriber
	extractor   AudioExtractor
	workspace   string
	logger      *slog.Logger
}

// ProcessorConfig wires the processor's collaborators.
type ProcessorConfig struct {
	Info        InfoProvider
	Captions    CaptionGetter
	Transcriber Transcriber
	Extractor   AudioExtractor
	Workspace   string
	Logger      *slog.Logger
}

func NewProcessor(cfg ProcessorConfig) *Processor {
	return &Processor{
		info:        cfg.Info,
		captions:    cfg.Captions,
		transcriber: cfg.Transcriber,
		extractor:   cfg.Extractor,
		workspace:   cfg.Workspace,
		logger:      cfg.Logger,
	}
}

// ProcessURL transcribes a YouTube video.
func (p *Processor) ProcessURL(ctx context.Context, videoURL, language string) (*Result, error) {
	if !IsYouTubeURL(videoURL) {
		return nil, fmt.Errorf("unsupported video url: %s", videoURL)
	}
	videoID, err := VideoID(videoURL)
	if err != nil {
		return nil, err
	}

	info, err := p.info.VideoInfo(ctx, videoURL)
	if err != nil {
		return nil, fmt.Errorf("video info: %w", err)
	}

	result := &Result{
		VideoID:  videoID,
		Title:    info.Title,
		Duration: info.Duration,
		Source:   domain.SourceYouTube,
		VideoURL: videoURL,
	}

	transcript, err := p.transcriptFromCaptions(ctx, info, language)
	if err != nil && !errors.Is(err, ErrNoCaptions) {
		return nil, err
	}
	if transcript == nil {
		p.logger.Info("no usable captions, downloading audio", "video", videoID)
		transcript, result.AudioPath, err = p.transcriptFromAudio(ctx, videoURL, videoID)
		if err != nil {
			return nil, err
		}
	}
	if info.Duration > 0 {
		transcript.Duration = info.Duration
	}

	result.Transcript = transcript
	return result, nil
}

func (p *Processor) transcriptFromCaptions(ctx context.Context, info *VideoInfo, language string) (*domain.Transcript, error) {
	track, err := PickTrack(info.Tracks, language)
	if err != nil {
		return nil, err
	}

	segments, err := p.captions.Fetch(ctx, track)
	if err != nil {
		return nil, fmt.Errorf("fetch captions: %w", err)
	}
	if len(segments) == 0 {
		return nil, ErrNoCaptions
	}

	p.logger.Info("extracted captions", "video", info.ID, "language", track.Language, "auto", track.Auto, "segments", len(segments))
	return domain.NewTranscript(segments, track.Language), nil
}

func (p *Processor) transcriptFromAudio(ctx context.Context, videoURL, videoID string) (*domain.Transcript, string, error) {
	audioPath := filepath.Join(p.workspace, "audio", videoID+".mp3")
	if _, err := p.info.DownloadAudio(ctx, videoURL, audioPath); err != nil {
		return nil, "", fmt.Errorf("download audio: %w", err)
	}
	transcript, err := p.transcribeFile(ctx, audioPath)
	if err != nil {
		return nil, "", err
	}
	return transcript, audioPath, nil
}

// ProcessLocal transcribes a video file on disk.
func (p *Processor) ProcessLocal(ctx context.Context, videoPath string) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(videoPath))
	if !supportedVideoFormats[ext] {
		return nil, fmt.Errorf("unsupported video format: %s", ext)
	}
	abs, err := filepath.Abs(videoPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("video file: %w", err)
	}

	audioPath, err := p.extractor.ExtractAudio(ctx, abs)
	if err != nil {
		return nil, fmt.Errorf("extract audio: %w", err)
	}

	transcript, err := p.transcribeFile(ctx, audioPath)
	if err != nil {
		return nil, err
	}

	stem := filepath.Base(abs)
	stem = strings.TrimSuffix(stem, filepath.Ext(stem))
	return &Result{
		Transcript: transcript,
		Title:      stem,
		Duration:   transcript.Duration,
		Source:     domain.SourceLocal,
		VideoPath:  abs,
		AudioPath:  audioPath,
	}, nil
}

func (p *Processor) transcribeFile(ctx context.Context, audioPath string) (*domain.Transcript, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	started := time.Now()
	transcript, err := p.transcriber.Transcribe(ctx, f, filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("transcribe audio: %w", err)
	}
	metrics.TranscribeLatency.Observe(time.Since(started).Seconds())
	return transcript, nil
}
