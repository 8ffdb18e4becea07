package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for vidquery.
type Config struct {
	General    GeneralConfig             `json:"general"`
	Providers  map[string]ProviderConfig `json:"providers"`
	Embeddings EmbeddingsConfig          `json:"embeddings"`
	Index      IndexConfig               `json:"index"`
	Retrieval  RetrievalConfig           `json:"retrieval"`
	Session    SessionConfig             `json:"session"`
	Media      MediaConfig               `json:"media"`
	API        APIConfig                 `json:"api"`
	Metrics    MetricsConfig             `json:"metrics"`
	Prompts    PromptsConfig             `json:"prompts"`
}

type GeneralConfig struct {
	Workspace       string `json:"workspace"`
	LogLevel        string `json:"logLevel"`
	DefaultProvider string `json:"defaultProvider"`
}

type ProviderConfig struct {
	Enabled      bool   `json:"enabled"`
	APIBase      string `json:"apiBase,omitempty"`
	APIKey       string `json:"apiKey,omitempty"`
	DefaultModel string `json:"defaultModel,omitempty"`
}

// EmbeddingsConfig configures the external embedding service client.
type EmbeddingsConfig struct {
	Provider  string `json:"provider"` // "openai" | "ollama"
	APIBase   string `json:"apiBase,omitempty"`
	APIKey    string `json:"apiKey,omitempty"`
	Model     string `json:"model"`
	BatchSize int    `json:"batchSize"`
}

// IndexConfig configures the external vector index service (Chroma).
type IndexConfig struct {
	BaseURL        string `json:"baseUrl"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// RetrievalConfig tunes chunking and windowing.
type RetrievalConfig struct {
	MinChunkLength     int     `json:"minChunkLength"`     // characters per chunk before emission
	SearchTopK         int     `json:"searchTopK"`         // default k for /search
	SnippetPadding     float64 `json:"snippetPadding"`     // seconds added around matched spans
	SnippetMaxDuration float64 `json:"snippetMaxDuration"` // default snippet window cap, seconds
}

type SessionConfig struct {
	DBPath          string `json:"dbPath"`
	HistoryPerQuery int    `json:"historyPerQuery"` // conversation turns passed as context
}

// MediaConfig configures transcription and clipping collaborators.
type MediaConfig struct {
	WhisperAPIBase  string `json:"whisperApiBase,omitempty"`
	WhisperAPIKey   string `json:"whisperApiKey,omitempty"`
	WhisperModel    string `json:"whisperModel,omitempty"`
	DefaultLanguage string `json:"defaultLanguage,omitempty"`
	FFmpegPath      string `json:"ffmpegPath,omitempty"`
}

type APIConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type MetricsConfig struct {
	Enabled bool `json:"enabled"`
}

// PromptsConfig points at an optional YAML prompt-pack override file.
type PromptsConfig struct {
	File string `json:"file,omitempty"`
}

// DefaultConfigDir returns the default config directory (~/.vidquery).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vidquery"
	}
	return filepath.Join(home, ".vidquery")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.Workspace = expandPath(cfg.General.Workspace)
	cfg.Session.DBPath = expandPath(cfg.Session.DBPath)
	cfg.Prompts.File = expandPath(cfg.Prompts.File)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	switch cfg.Embeddings.Provider {
	case "openai", "ollama":
	default:
		errs = append(errs, "embeddings.provider must be one of: openai, ollama")
	}
	if cfg.Embeddings.Model == "" {
		errs = append(errs, "embeddings.model is required")
	}
	if cfg.Embeddings.BatchSize < 1 || cfg.Embeddings.BatchSize > 2048 {
		errs = append(errs, "embeddings.batchSize must be between 1 and 2048")
	}

	if cfg.Index.BaseURL == "" {
		errs = append(errs, "index.baseUrl is required")
	}
	if cfg.Index.TimeoutSeconds < 1 {
		errs = append(errs, "index.timeoutSeconds must be >= 1")
	}

	if cfg.Retrieval.MinChunkLength < 1 {
		errs = append(errs, "retrieval.minChunkLength must be >= 1")
	}
	if cfg.Retrieval.SearchTopK < 1 || cfg.Retrieval.SearchTopK > 100 {
		errs = append(errs, "retrieval.searchTopK must be between 1 and 100")
	}
	if cfg.Retrieval.SnippetPadding < 0 {
		errs = append(errs, "retrieval.snippetPadding must be >= 0")
	}
	if cfg.Retrieval.SnippetMaxDuration <= 0 {
		errs = append(errs, "retrieval.snippetMaxDuration must be > 0")
	}

	if cfg.Session.HistoryPerQuery < 1 {
		errs = append(errs, "session.historyPerQuery must be >= 1")
	}

	if cfg.API.Port < 0 || cfg.API.Port > 65535 {
		errs = append(errs, "api.port must be between 0 and 65535")
	}

	if _, ok := cfg.Providers[cfg.General.DefaultProvider]; !ok {
		errs = append(errs, fmt.Sprintf("general.defaultProvider references unknown provider: %s", cfg.General.DefaultProvider))
	}
	for name, pc := range cfg.Providers {
		if pc.Enabled && pc.APIBase == "" && name != "ollama" {
			errs = append(errs, fmt.Sprintf("providers.%s: apiBase is required", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
