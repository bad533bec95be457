package embedding

import (
	"fmt"
	"log/slog"

	"ragbot/internal/config"
	"ragbot/internal/domain"
)

// New builds the configured embedder.
func New(cfg config.EmbeddingConfig, logger *slog.Logger) (domain.Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllama(OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Logger:  logger,
		}), nil
	case "openai":
		return NewOpenAI(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Logger:  logger,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
