package provider

import (
	"fmt"
	"log/slog"
	"sync"

	"vidquery/internal/config"
	"vidquery/internal/domain"
)

// Factory creates and caches LLM providers from config.
type Factory struct {
	cfg    *config.Config
	logger *slog.Logger
	cache  map[string]domain.Provider
	mu     sync.Mutex
}

func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
		cache:  make(map[string]domain.Provider),
	}
}

// Get returns the provider with the given name, or the default if name is
// empty. Created providers are cached so the same instance is reused.
func (f *Factory) Get(name string) (domain.Provider, error) {
	if name == "" {
		name = f.cfg.General.DefaultProvider
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if cached, ok := f.cache[name]; ok {
		return cached, nil
	}

	pc, ok := f.cfg.Providers[name]
	if !ok || !pc.Enabled {
		return nil, fmt.Errorf("provider %q is not configured or not enabled", name)
	}

	var prov domain.Provider
	switch name {
	case "ollama":
		prov = NewOllama(OllamaConfig{APIBase: pc.APIBase, DefaultModel: pc.DefaultModel, Logger: f.logger})
	default:
		// Everything else is treated as an OpenAI-compatible endpoint.
		prov = NewOpenAI(OpenAIConfig{APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.DefaultModel, Logger: f.logger})
	}

	f.cache[name] = prov
	return prov, nil
}
