package domain

import (
	"fmt"
	"strings"
)

// Segment is a single timed span of transcript text. Start and End are in
// seconds; End >= Start for every segment.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the immutable output of transcribing one video. Segments are
// presented in chronological order; FullText is the space-joined segment text.
type Transcript struct {
	Segments []Segment `json:"segments"`
	FullText string    `json:"full_text"`
	Language string    `json:"language,omitempty"`
	Duration float64   `json:"duration"`
}

// NewTranscript derives FullText and Duration from the given segments.
func NewTranscript(segments []Segment, language string) *Transcript {
	texts := make([]string, 0, len(segments))
	var end float64
	for _, seg := range segments {
		texts = append(texts, seg.Text)
		if seg.End > end {
			end = seg.End
		}
	}
	return &Transcript{
		Segments: segments,
		FullText: strings.Join(texts, " "),
		Language: language,
		Duration: end,
	}
}

// Empty reports whether the transcript carries no segments.
func (t *Transcript) Empty() bool {
	return t == nil || len(t.Segments) == 0
}

// Chunk is a retrieval-sized window over one or more consecutive segments.
type Chunk struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// FormatTimestamp renders seconds as MM:SS, or HH:MM:SS for durations of an
// hour or more.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}
