package provider

import (
	"fmt"
	"log/slog"

	"ragbot/internal/config"
	"ragbot/internal/domain"
)

// New builds the configured LLM provider.
func New(cfg config.LLMConfig, logger *slog.Logger) (domain.Provider, error) {
	switch cfg.Provider {
	case "gigachat":
		return NewGigaChat(GigaChatConfig{
			AuthKey:      cfg.GigaChat.AuthKey,
			Scope:        cfg.GigaChat.Scope,
			OAuthURL:     cfg.GigaChat.OAuthURL,
			APIURL:       cfg.GigaChat.APIURL,
			Model:        cfg.Model,
			SystemPrompt: cfg.SystemPrompt,
			Temperature:  cfg.Temperature,
			MaxTokens:    cfg.MaxTokens,
			Insecure:     cfg.GigaChat.Insecure,
			Logger:       logger,
		})
	case "openai":
		return NewOpenAI(OpenAIConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			Model:        cfg.Model,
			SystemPrompt: cfg.SystemPrompt,
			Temperature:  cfg.Temperature,
			MaxTokens:    cfg.MaxTokens,
			Logger:       logger,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
