package query

import "vidquery/internal/domain"

// ResolveWindow turns ranked search spans into one clip window. The window
// covers every span plus padding seconds on both sides, floored at zero. If
// that exceeds maxDuration the window is recentered on the midpoint of the
// first span, which is the most relevant match, and cut to maxDuration.
func ResolveWindow(spans []domain.SearchResult, padding, maxDuration float64) domain.TimeRange {
	start := spans[0].Start
	end := spans[0].End
	for _, s := range spans[1:] {
		if s.Start < start {
			start = s.Start
		}
		if s.End > end {
			end = s.End
		}
	}

	start -= padding
	if start < 0 {
		start = 0
	}
	end += padding

	if end-start > maxDuration {
		center := (spans[0].Start + spans[0].End) / 2
		start = center - maxDuration/2
		if start < 0 {
			start = 0
		}
		end = center + maxDuration/2
	}
	return domain.TimeRange{Start: start, End: end}
}
