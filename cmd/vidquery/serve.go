package main

import (
	"fmt"
	"os"
	"path/filepath"

	"vidquery/internal/api"
	"vidquery/internal/config"
	"vidquery/internal/embed"
	"vidquery/internal/media"
	"vidquery/internal/prompt"
	"vidquery/internal/provider"
	"vidquery/internal/query"
	"vidquery/internal/retriever"
	"vidquery/internal/session"
	"vidquery/internal/vecstore"

	"github.com/spf13/cobra"
)

// stack holds the wired pipeline shared by the server and the one-shot
// commands.
type stack struct {
	cfg       *config.Config
	store     *session.SQLiteStore
	index     *vecstore.Chroma
	retriever *retriever.Retriever
	processor *media.Processor
	handler   *query.Handler
	cleaner   *session.Cleaner
	clipper   *media.FFmpegClipper
}

func (s *stack) Close() error {
	return s.store.Close()
}

// buildStack constructs every component from config. The caller owns Close.
func buildStack(cfg *config.Config) (*stack, error) {
	if err := os.MkdirAll(cfg.General.Workspace, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	store, err := session.NewSQLiteStore(cfg.Session.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}

	embedder, err := embed.NewFromConfig(cfg.Embeddings, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("embedding gateway: %w", err)
	}

	index := vecstore.NewChroma(vecstore.ChromaConfig{
		BaseURL:        cfg.Index.BaseURL,
		TimeoutSeconds: cfg.Index.TimeoutSeconds,
		Logger:         logger,
	})
	retr := retriever.New(retriever.Config{
		Embedder:       embedder,
		Store:          index,
		MinChunkLength: cfg.Retrieval.MinChunkLength,
		Logger:         logger,
	})

	prompts, err := prompt.Load(cfg.Prompts.File, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("prompt pack: %w", err)
	}

	provFactory := provider.NewFactory(cfg, logger)
	prov, err := provFactory.Get("")
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("llm provider: %w", err)
	}

	clipper := media.NewFFmpegClipper(cfg.Media.FFmpegPath, filepath.Join(cfg.General.Workspace, "snippets"), logger)
	whisper := provider.NewWhisper(provider.WhisperConfig{
		APIBase:  cfg.Media.WhisperAPIBase,
		APIKey:   cfg.Media.WhisperAPIKey,
		Model:    cfg.Media.WhisperModel,
		Language: cfg.Media.DefaultLanguage,
		Logger:   logger,
	})
	processor := media.NewProcessor(media.ProcessorConfig{
		Info:        media.NewYtDlp(logger),
		Captions:    media.NewCaptionFetcher(logger),
		Transcriber: whisper,
		Extractor:   clipper,
		Workspace:   cfg.General.Workspace,
		Logger:      logger,
	})

	handler := query.NewHandler(query.HandlerConfig{
		Router:   query.NewRouter(prov, prompts, logger),
		Searcher: retr,
		Provider: prov,
		Clipper:  clipper,
		Prompts:  prompts,
		Options: query.Options{
			SearchTopK:         cfg.Retrieval.SearchTopK,
			SnippetPadding:     cfg.Retrieval.SnippetPadding,
			SnippetMaxDuration: cfg.Retrieval.SnippetMaxDuration,
		},
		Logger: logger,
	})

	return &stack{
		cfg:       cfg,
		store:     store,
		index:     index,
		retriever: retr,
		processor: processor,
		handler:   handler,
		cleaner:   session.NewCleaner(store, index, logger),
		clipper:   clipper,
	}, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long:  "Starts the processing and query API. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
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

	server := api.NewServer(api.Config{
		Host:            cfg.API.Host,
		Port:            cfg.API.Port,
		Workspace:       cfg.General.Workspace,
		HistoryPerQuery: cfg.Session.HistoryPerQuery,
		SnippetMax:      cfg.Retrieval.SnippetMaxDuration,
		MetricsEnabled:  cfg.Metrics.Enabled,
		Store:           st.store,
		Retriever:       st.retriever,
		Processor:       st.processor,
		Handler:         st.handler,
		Cleaner:         st.cleaner,
		Clipper:         st.clipper,
		Logger:          logger,
	})
	return server.Start(ctx)
}
