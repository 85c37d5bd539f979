package compat

import (
	"context"
	"testing"

	"github.com/lumenforge/aria/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateClient_RejectsWrongKeyPrefix(t *testing.T) {
	p := NewProvider(OpenRouter, nil)
	_, err := p.CreateClient(context.Background(), "sk-not-openrouter", "openai/gpt-4o", "")
	require.Error(t, err)
	assert.Equal(t, provider.KindAuthFailed, provider.KindOf(err))
}

func TestCreateClient_AcceptsValidKeyPrefix(t *testing.T) {
	p := NewProvider(OpenRouter, nil)
	client, err := p.CreateClient(context.Background(), "sk-or-abc123", "openai/gpt-4o", "")
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o", client.ModelName())
}

func TestCreateClient_VendorsWithoutKeyPrefixAcceptAnyKey(t *testing.T) {
	for _, spec := range []VendorSpec{Anthropic, DeepSeek, Grok, Mistral} {
		p := NewProvider(spec, nil)
		_, err := p.CreateClient(context.Background(), "any-key", "default-model", "")
		require.NoError(t, err, spec.Name)
	}
}

func TestCreateClient_DefaultBaseURLUsedWhenEndpointEmpty(t *testing.T) {
	p := NewProvider(DeepSeek, nil)
	client, err := p.CreateClient(context.Background(), "key", "deepseek-chat", "")
	require.NoError(t, err)
	assert.NotNil(t, client)
}
