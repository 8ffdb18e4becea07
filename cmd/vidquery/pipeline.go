package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"vidquery/internal/domain"
	"vidquery/internal/media"
	"vidquery/internal/query"
	"vidquery/internal/session"
	"vidquery/internal/vecstore"

	"github.com/spf13/cobra"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func processCmd() *cobra.Command {
	var userID, language string
	cmd := &cobra.Command{
		Use:   "process [url-or-file]",
		Short: "Transcribe and index a YouTube video or local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			st, err := buildStack(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signalContext()
			defer stop()

			if language == "" {
				language = cfg.Media.DefaultLanguage
			}

			var result *media.Result
			if media.IsURL(args[0]) {
				result, err = st.processor.ProcessURL(ctx, args[0], language)
			} else {
				result, err = st.processor.ProcessLocal(ctx, args[0])
			}
			if err != nil {
				return err
			}

			collection, err := st.retriever.Index(ctx, result.Transcript, result.VideoID)
			if err != nil {
				return fmt.Errorf("index transcript: %w", err)
			}

			sess := domain.Session{
				ID:             session.NewID(),
				UserID:         userID,
				Source:         result.Source,
				VideoURL:       result.VideoURL,
				VideoPath:      result.VideoPath,
				AudioPath:      result.AudioPath,
				Title:          result.Title,
				Duration:       result.Duration,
				CollectionName: collection,
			}
			if err := st.store.CreateSession(ctx, sess); err != nil {
				return err
			}
			if err := st.store.SaveTranscript(ctx, sess.ID, result.Transcript); err != nil {
				return err
			}

			return printJSON(map[string]any{
				"session_id": sess.ID,
				"title":      sess.Title,
				"duration":   sess.Duration,
				"segments":   len(result.Transcript.Segments),
			})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "cli", "user id owning the session")
	cmd.Flags().StringVarP(&language, "language", "l", "", "preferred caption/transcription language")
	return cmd
}

// prepareSession loads a session, its transcript, and makes sure the search
// index is in place.
func prepareSession(ctx context.Context, st *stack, sessionID, userID string) (*domain.Session, *domain.Transcript, error) {
	sess, err := st.store.GetSession(ctx, sessionID, userID)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil {
		return nil, nil, fmt.Errorf("session %s not found", sessionID)
	}
	transcript, err := st.store.GetTranscript(ctx, sess.ID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := st.retriever.EnsureIndexed(ctx, sess.CollectionName, transcript); err != nil {
		return nil, nil, fmt.Errorf("search index unavailable: %w", err)
	}
	return sess, transcript, nil
}

func queryCmd() *cobra.Command {
	var userID, sessionID string
	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Ask a question about an indexed video",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			st, err := buildStack(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signalContext()
			defer stop()

			sess, transcript, err := prepareSession(ctx, st, sessionID, userID)
			if err != nil {
				return err
			}

			result, err := st.handler.Handle(ctx, query.Request{
				Query:      strings.Join(args, " "),
				Collection: sess.CollectionName,
				Transcript: transcript,
				VideoPath:  sess.VideoPath,
			})
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "cli", "user id owning the session")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id to query")
	cmd.MarkFlagRequired("session")
	return cmd
}

func searchCmd() *cobra.Command {
	var userID, sessionID string
	var topK int
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Semantic search over an indexed transcript",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			st, err := buildStack(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signalContext()
			defer stop()

			sess, _, err := prepareSession(ctx, st, sessionID, userID)
			if err != nil {
				return err
			}

			if topK <= 0 {
				topK = cfg.Retrieval.SearchTopK
			}
			results, err := st.retriever.Search(ctx, strings.Join(args, " "), topK, sess.CollectionName)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"results": results, "count": len(results)})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "cli", "user id owning the session")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id to search")
	cmd.Flags().IntVarP(&topK, "results", "n", 0, "number of results (default from config)")
	cmd.MarkFlagRequired("session")
	return cmd
}

func sessionsCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List and delete sessions",
	}
	cmd.PersistentFlags().StringVarP(&userID, "user", "u", "cli", "user id owning the sessions")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List sessions for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := session.NewSQLiteStore(cfg.Session.DBPath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.ListSessions(context.Background(), userID)
			if err != nil {
				return err
			}
			return printJSON(sessions)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete [session-id]",
		Short: "Delete a session and everything it owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := session.NewSQLiteStore(cfg.Session.DBPath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			index := vecstore.NewChroma(vecstore.ChromaConfig{
				BaseURL:        cfg.Index.BaseURL,
				TimeoutSeconds: cfg.Index.TimeoutSeconds,
				Logger:         logger,
			})
			cleaner := session.NewCleaner(store, index, logger)

			ctx, stop := signalContext()
			defer stop()

			if err := cleaner.DeleteSession(ctx, args[0], userID); err != nil {
				return err
			}
			logger.Info("session deleted", "session", args[0])
			return nil
		},
	})

	return cmd
}
