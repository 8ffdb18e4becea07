// Package retriever turns transcripts into indexed chunks and answers
// semantic searches over them.
package retriever

import (
	"strings"

	"vidquery/internal/domain"
)

// BuildChunks merges consecutive segments into chunks of at least minLength
// characters. A chunk closes as soon as it reaches the threshold; the final
// chunk may be shorter when the transcript runs out of segments. Each chunk
// keeps the start of its first segment and the end of its last.
func BuildChunks(segments []domain.Segment, minLength int) []domain.Chunk {
	if len(segments) == 0 {
		return nil
	}

	var chunks []domain.Chunk
	var texts []string
	var start float64
	length := 0

	for i, seg := range segments {
		if len(texts) == 0 {
			start = seg.Start
		} else {
			length++ // join space
		}
		texts = append(texts, seg.Text)
		length += len(seg.Text)

		if length >= minLength || i == len(segments)-1 {
			chunks = append(chunks, domain.Chunk{
				Text:  strings.Join(texts, " "),
				Start: start,
				End:   seg.End,
			})
			texts = texts[:0]
			length = 0
		}
	}
	return chunks
}
