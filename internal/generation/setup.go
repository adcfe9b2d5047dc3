package generation

import (
	"context"
	"fmt"
	"net/http"

	"outfit-studio/internal/config"
)

// NewProvider builds the provider selected by cfg.Provider. The returned
// close function releases provider resources.
func NewProvider(ctx context.Context, cfg config.GenerationConfig) (Provider, func() error, error) {
	switch cfg.Provider {
	case "", "azure-openai":
		tokens, err := NewTokenSource(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		p, err := NewAzureOpenAIProvider(cfg, tokens, &http.Client{})
		if err != nil {
			return nil, nil, err
		}
		return p, func() error { return nil }, nil
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, nil, ErrMissingCredentials
		}
		p, err := NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}
