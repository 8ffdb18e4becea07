package domain

// SearchResult is one scored hit from a semantic search over an indexed
// transcript. Relevance is in [0,1], 1 meaning a perfect match.
type SearchResult struct {
	Text      string  `json:"text"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Relevance float64 `json:"relevance"`
}

// TimeRange is a resolved [Start, End] window in seconds.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the window length in seconds.
func (r TimeRange) Duration() float64 {
	return r.End - r.Start
}
