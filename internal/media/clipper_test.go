package media

import (
	"testing"

	"vidquery/internal/domain"
)

func TestClampWindow(t *testing.T) {
	cases := []struct {
		name     string
		window   domain.TimeRange
		duration float64
		want     domain.TimeRange
	}{
		{"within bounds", domain.TimeRange{Start: 10, End: 40}, 120, domain.TimeRange{Start: 10, End: 40}},
		{"end past duration", domain.TimeRange{Start: 100, End: 200}, 150, domain.TimeRange{Start: 100, End: 150}},
		{"negative start", domain.TimeRange{Start: -5, End: 20}, 120, domain.TimeRange{Start: 0, End: 20}},
		{"unknown duration leaves end", domain.TimeRange{Start: 10, End: 500}, 0, domain.TimeRange{Start: 10, End: 500}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := clampWindow(tc.window, tc.duration); got != tc.want {
				t.Errorf("clampWindow(%+v, %v) = %+v, want %+v", tc.window, tc.duration, got, tc.want)
			}
		})
	}
}

func TestNewFFmpegClipperProbePath(t *testing.T) {
	c := NewFFmpegClipper("", t.TempDir(), testLogger())
	if c.probe != "ffprobe" {
		t.Errorf("probe = %q, want ffprobe", c.probe)
	}
	c = NewFFmpegClipper("/opt/ffmpeg/bin/ffmpeg", t.TempDir(), testLogger())
	if c.probe != "/opt/ffmpeg/bin/ffprobe" {
		t.Errorf("probe = %q, want sibling ffprobe", c.probe)
	}
}
