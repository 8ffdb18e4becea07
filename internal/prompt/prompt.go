// Package prompt holds the system prompts driving classification and response
// generation, with optional YAML overrides for tuning without a rebuild.
package prompt

const (
	// Classifier routes a user query to one of the five response strategies.
	Classifier = `You are an intent classifier for a video analysis system.
Classify the user's intent into one of these categories:

1. "search" - User wants to find specific content/timestamps in the video
2. "question" - User is asking a question about the video content
3. "snippet" - User wants to create a video clip about a specific topic
4. "summary" - User wants a summary or overview of the video
5. "keypoints" - User wants key points or main takeaways

Respond with JSON:
{
    "intent": "<intent_type>",
    "topic": "<extracted topic or question>",
    "parameters": {
        "max_duration": <number if mentioned, null otherwise>,
        "detail_level": "<brief|detailed if mentioned, null otherwise>"
    }
}`

	// Question grounds answers in retrieved transcript context.
	Question = `You are a helpful assistant answering questions about video content.
Use the provided transcript context to answer questions accurately.
Always reference timestamps when relevant.
If the information isn't in the context, say so.`

	// Summary produces a short overview of the whole transcript.
	Summary = `Summarize this video transcript in 2-3 concise paragraphs. Focus on the main topics and key information.`

	// Keypoints extracts a compact list of takeaways as JSON.
	Keypoints = `Extract 5-10 key points from this transcript.
Return JSON: {"key_points": [{"title": "...", "summary": "..."}]}`
)

// Pack is the full set of prompts used by the query pipeline.
type Pack struct {
	Classifier string `yaml:"classifier"`
	Question   string `yaml:"question"`
	Summary    string `yaml:"summary"`
	Keypoints  string `yaml:"keypoints"`
}

// Defaults returns the built-in prompt pack.
func Defaults() Pack {
	return Pack{
		Classifier: Classifier,
		Question:   Question,
		Summary:    Summary,
		Keypoints:  Keypoints,
	}
}
