package cognitive

import (
	"context"
	"fmt"

	"llmos/internal/config"
)

// NewBackend selects and constructs a Backend for cfg.Provider (§11,
// LLMOS_PROVIDER), defaulting to Anthropic when unset.
func NewBackend(ctx context.Context, cfg config.Config) (Backend, error) {
	switch cfg.Provider {
	case "", "anthropic":
		p := cfg.Anthropic
		return NewAnthropicBackend(p.APIKey, p.Model, p.BaseURL), nil
	case "openai":
		p := cfg.OpenAI
		return NewOpenAIBackend(p.APIKey, p.Model, p.BaseURL), nil
	case "google":
		p := cfg.Google
		return NewGoogleBackend(ctx, p.APIKey, p.Model)
	default:
		return nil, fmt.Errorf("cognitive: unknown provider %q", cfg.Provider)
	}
}
