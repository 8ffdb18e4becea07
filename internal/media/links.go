package media

import (
	"fmt"

	"vidquery/internal/domain"
)

// SnippetLinks are shareable YouTube URLs for a time window, in the formats
// players accept.
type SnippetLinks struct {
	WatchURL         string `json:"watch_url"`
	ShortURL         string `json:"short_url"`
	EmbedURL         string `json:"embed_url"`
	StartTime        int    `json:"start_time"`
	EndTime          int    `json:"end_time"`
	Duration         int    `json:"duration"`
	TimestampDisplay string `json:"timestamp_display"`
}

// YouTubeSnippetLinks builds timestamped links into the source video for a
// window. Only the embed format supports an end time.
func YouTubeSnippetLinks(videoURL string, window domain.TimeRange) (*SnippetLinks, error) {
	videoID, err := VideoID(videoURL)
	if err != nil {
		return nil, err
	}

	start := int(window.Start)
	end := int(window.End)
	return &SnippetLinks{
		WatchURL:  fmt.Sprintf("https://www.youtube.com/watch?v=%s&t=%d", videoID, start),
		ShortURL:  fmt.Sprintf("https://youtu.be/%s?t=%d", videoID, start),
		EmbedURL:  fmt.Sprintf("https://www.youtube.com/embed/%s?start=%d&end=%d", videoID, start, end),
		StartTime: start,
		EndTime:   end,
		Duration:  end - start,
		TimestampDisplay: fmt.Sprintf("%s - %s",
			domain.FormatTimestamp(window.Start), domain.FormatTimestamp(window.End)),
	}, nil
}
