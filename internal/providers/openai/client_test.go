package openai

import (
	"context"
	"testing"

	"github.com/openai/openai-go"

	"github.com/lumenforge/aria/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_MissingAPIKey(t *testing.T) {
	_, err := NewClient("", "gpt-4o", "", "openai")
	require.Error(t, err)
	assert.Equal(t, provider.KindAuthFailed, provider.KindOf(err))
}

func TestNewClient_DefaultsVendorName(t *testing.T) {
	c, err := NewClient("sk-test", "gpt-4o", "", "")
	require.NoError(t, err)
	assert.Equal(t, "openai", c.vendor)
}

func TestNewClient_UnknownModelGetsDefaultLimits(t *testing.T) {
	c, err := NewClient("sk-test", "some-future-model", "", "openai")
	require.NoError(t, err)
	limits, err := c.ModelLimits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, defaultModelLimits.inputTokenLimit, limits.InputTokenLimit)
}

func TestNewClient_KnownModelLimits(t *testing.T) {
	c, err := NewClient("sk-test", "gpt-4o", "", "openai")
	require.NoError(t, err)
	limits, err := c.ModelLimits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(128000), limits.InputTokenLimit)
}

func TestApplyParams_TemperatureOutOfRange(t *testing.T) {
	newParams := openai.ChatCompletionNewParams{}
	err := applyParams(&newParams, map[string]any{"temperature": 3.0})
	require.Error(t, err)
	assert.Equal(t, provider.KindUnexpected, provider.KindOf(err))
}

func TestApplyParams_ValidValues(t *testing.T) {
	newParams := openai.ChatCompletionNewParams{}
	err := applyParams(&newParams, map[string]any{
		"temperature": 0.5, "top_p": 0.9, "max_tokens": 100,
		"presence_penalty": 0.1, "frequency_penalty": -0.1,
	})
	require.NoError(t, err)
}
