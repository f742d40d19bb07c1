package services

import (
	"context"
	"fmt"

	"support-chat/internal/config"
	"support-chat/internal/models"
)

// Stream yields text deltas in the order the upstream produced them. Recv
// returns io.EOF once the upstream signals completion. A delta may be empty.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Provider is a streaming chat-completion backend.
type Provider interface {
	Name() string
	Stream(ctx context.Context, messages []models.ChatMessage) (Stream, error)
}

// NewProvider builds the single provider selected by configuration. The
// returned provider is shared by all requests.
func NewProvider(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.ExtraHeaders()), nil
	case config.ProviderGemini:
		return NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}
