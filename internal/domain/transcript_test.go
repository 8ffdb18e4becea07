package domain

import "testing"

func TestNewTranscript(t *testing.T) {
	tr := NewTranscript([]Segment{
		{Start: 0, End: 5, Text: "hello"},
		{Start: 5, End: 12, Text: "world"},
	}, "en")

	if tr.FullText != "hello world" {
		t.Errorf("FullText = %q", tr.FullText)
	}
	if tr.Duration != 12 {
		t.Errorf("Duration = %v, want 12", tr.Duration)
	}
	if tr.Language != "en" {
		t.Errorf("Language = %q", tr.Language)
	}
}

func TestTranscriptEmpty(t *testing.T) {
	var nilT *Transcript
	if !nilT.Empty() {
		t.Error("nil transcript should be empty")
	}
	if !NewTranscript(nil, "").Empty() {
		t.Error("zero-segment transcript should be empty")
	}
	if NewTranscript([]Segment{{Text: "x"}}, "").Empty() {
		t.Error("transcript with a segment should not be empty")
	}
}

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00"},
		{65.7, "01:05"},
		{599, "09:59"},
		{3600, "01:00:00"},
		{3725, "01:02:05"},
		{-3, "00:00"},
	}
	for _, tc := range cases {
		if got := FormatTimestamp(tc.seconds); got != tc.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}
