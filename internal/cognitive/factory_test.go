package cognitive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmos/internal/config"
)

func TestNewBackend_DefaultsToAnthropic(t *testing.T) {
	t.Parallel()
	backend, err := NewBackend(context.Background(), config.Config{Anthropic: config.ProviderConfig{APIKey: "key"}})
	require.NoError(t, err)
	_, ok := backend.(*AnthropicBackend)
	assert.True(t, ok)
}

func TestNewBackend_SelectsOpenAI(t *testing.T) {
	t.Parallel()
	backend, err := NewBackend(context.Background(), config.Config{Provider: "openai", OpenAI: config.ProviderConfig{APIKey: "key"}})
	require.NoError(t, err)
	_, ok := backend.(*OpenAIBackend)
	assert.True(t, ok)
}

func TestNewBackend_RejectsUnknownProvider(t *testing.T) {
	t.Parallel()
	_, err := NewBackend(context.Background(), config.Config{Provider: "bogus"})
	assert.Error(t, err)
}
