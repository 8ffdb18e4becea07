package main

import (
	"context"
	"log/slog"
	"os"

	"vidquery/internal/config"
	"vidquery/internal/provider"
	"vidquery/internal/vecstore"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:     "vidquery",
		Short:   "vidquery: semantic search and Q&A over video transcripts",
		Long:    "vidquery ingests YouTube videos and local files, indexes their transcripts into a vector store, and answers questions about them.",
		Version: version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.vidquery/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(processCmd())
	root.AddCommand(queryCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(sessionsCmd())
	root.AddCommand(statusCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the config and rebuilds the logger at the configured level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.General.LogLevel)}))
	return cfg, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show system status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false)
				cfg = config.Defaults()
			} else {
				logger.Info("config", "path", cfgPath, "loaded", true)
			}
			ctx := context.Background()

			factory := provider.NewFactory(cfg, logger)
			prov, err := factory.Get("")
			if err != nil {
				logger.Info("provider", "healthy", false, "err", err)
			} else if err := prov.Healthy(ctx); err != nil {
				logger.Info("provider", "name", prov.Name(), "healthy", false, "err", err)
			} else {
				logger.Info("provider", "name", prov.Name(), "healthy", true)
			}

			index := vecstore.NewChroma(vecstore.ChromaConfig{
				BaseURL:        cfg.Index.BaseURL,
				TimeoutSeconds: cfg.Index.TimeoutSeconds,
				Logger:         logger,
			})
			collections, err := index.ListCollections(ctx)
			if err != nil {
				logger.Info("index", "url", cfg.Index.BaseURL, "healthy", false, "err", err)
			} else {
				logger.Info("index", "url", cfg.Index.BaseURL, "healthy", true, "collections", len(collections))
			}
			return nil
		},
	}
}
