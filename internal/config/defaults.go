package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			Workspace:       "~/.vidquery/workspace",
			LogLevel:        "info",
			DefaultProvider: "openai",
		},
		Providers: map[string]ProviderConfig{
			"openai": {
				Enabled:      true,
				APIBase:      "https://api.openai.com/v1",
				APIKey:       "${OPENAI_API_KEY}",
				DefaultModel: "gpt-5-mini",
			},
			"ollama": {
				Enabled:      false,
				APIBase:      "http://localhost:11434",
				DefaultModel: "llama3.1:8b",
			},
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "openai",
			APIBase:   "https://api.openai.com/v1",
			APIKey:    "${OPENAI_API_KEY}",
			Model:     "text-embedding-3-small",
			BatchSize: 100,
		},
		Index: IndexConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 30,
		},
		Retrieval: RetrievalConfig{
			MinChunkLength:     100,
			SearchTopK:         5,
			SnippetPadding:     2,
			SnippetMaxDuration: 60,
		},
		Session: SessionConfig{
			DBPath:          "~/.vidquery/data.db",
			HistoryPerQuery: 10,
		},
		Media: MediaConfig{
			WhisperAPIBase:  "https://api.openai.com/v1",
			WhisperAPIKey:   "${OPENAI_API_KEY}",
			WhisperModel:    "whisper-1",
			DefaultLanguage: "en",
			FFmpegPath:      "ffmpeg",
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}
