package retriever

import (
	"context"
	"fmt"
	"strings"

	"vidquery/internal/domain"
)

// EnsureIndexed makes sure the named collection is available before a query
// runs against it. If the collection survived in the store it is activated
// as-is; if the index was lost (a restarted or wiped store) the transcript is
// re-indexed from scratch. Returns true when a rebuild happened.
func (r *Retriever) EnsureIndexed(ctx context.Context, name string, transcript *domain.Transcript) (bool, error) {
	ok, err := r.store.Exists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("check collection %s: %w", name, err)
	}
	if ok {
		r.mu.Lock()
		r.current = name
		r.mu.Unlock()
		return false, nil
	}

	if transcript == nil || transcript.Empty() {
		return false, fmt.Errorf("collection %s lost and no transcript to rebuild from: %w", name, ErrNoIndex)
	}

	r.logger.Warn("collection missing, rebuilding index", "collection", name)
	videoID := strings.TrimPrefix(name, "transcript_")
	rebuilt, err := r.Index(ctx, transcript, videoID)
	if err != nil {
		return false, fmt.Errorf("rebuild collection %s: %w", name, err)
	}
	if rebuilt != name {
		// Should not happen: the name is derived from the same video id.
		r.logger.Warn("rebuilt collection under different name", "want", name, "got", rebuilt)
	}
	return true, nil
}
