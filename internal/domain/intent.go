package domain

// Intent is the closed set of query intents the router may produce.
type Intent string

const (
	IntentSearch    Intent = "search"
	IntentQuestion  Intent = "question"
	IntentSnippet   Intent = "snippet"
	IntentSummary   Intent = "summary"
	IntentKeypoints Intent = "keypoints"
)

// Valid reports whether the intent is one of the five known values.
func (i Intent) Valid() bool {
	switch i {
	case IntentSearch, IntentQuestion, IntentSnippet, IntentSummary, IntentKeypoints:
		return true
	}
	return false
}

// Classification is the validated output of the intent router.
type Classification struct {
	Intent     Intent           `json:"intent"`
	Topic      string           `json:"topic"`
	Parameters ClassifierParams `json:"parameters"`
}

// ClassifierParams are optional parameters the classifier may extract from
// the query text.
type ClassifierParams struct {
	MaxDuration *float64 `json:"max_duration,omitempty"` // seconds
	DetailLevel string   `json:"detail_level,omitempty"` // "brief" | "detailed"
}

// KeyPoint is one entry of a keypoints response.
type KeyPoint struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}
