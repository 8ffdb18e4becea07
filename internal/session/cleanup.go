package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"vidquery/internal/domain"
)

// ErrSessionNotFound means the session id does not exist for that user.
var ErrSessionNotFound = errors.New("session not found")

// CollectionDeleter removes a vector collection by name.
type CollectionDeleter interface {
	DeleteCollection(ctx context.Context, name string) error
}

// Cleaner tears down everything a session owns: its vector collection, its
// media files, and finally the database rows. Each step runs even if an
// earlier one failed; all failures are reported together so nothing is
// silently leaked.
type Cleaner struct {
	store       domain.SessionStore
	collections CollectionDeleter
	logger      *slog.Logger
}

func NewCleaner(store domain.SessionStore, collections CollectionDeleter, logger *slog.Logger) *Cleaner {
	return &Cleaner{store: store, collections: collections, logger: logger}
}

func (c *Cleaner) DeleteSession(ctx context.Context, id, userID string) error {
	sess, err := c.store.GetSession(ctx, id, userID)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}

	var errs []error

	if sess.CollectionName != "" {
		if err := c.collections.DeleteCollection(ctx, sess.CollectionName); err != nil {
			errs = append(errs, fmt.Errorf("delete collection %s: %w", sess.CollectionName, err))
		}
	}

	for _, path := range []string{sess.VideoPath, sess.AudioPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
		}
	}

	deleted, err := c.store.DeleteSession(ctx, id, userID)
	if err != nil {
		errs = append(errs, err)
	} else if !deleted {
		errs = append(errs, fmt.Errorf("session %s: rows already gone", id))
	}

	if len(errs) > 0 {
		c.logger.Warn("session deleted with failures", "session", id, "failures", len(errs))
		return errors.Join(errs...)
	}
	c.logger.Info("session deleted", "session", id)
	return nil
}
