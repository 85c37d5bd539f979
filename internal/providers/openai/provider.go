package openai

import (
	"context"
	"fmt"

	"github.com/lumenforge/aria/internal/logutil"
	"github.com/lumenforge/aria/internal/provider"
	"github.com/lumenforge/aria/internal/providers"
)

// Provider implements providers.Factory for the OpenAI API.
type Provider struct {
	logger logutil.LoggerInterface
}

// NewProvider constructs a Provider. A nil logger gets a default one.
func NewProvider(logger logutil.LoggerInterface) providers.Factory {
	if logger == nil {
		logger = logutil.NewLogger(logutil.InfoLevel, nil, "[openai-provider] ")
	}
	return &Provider{logger: logger}
}

// CreateClient implements providers.Factory.
func (p *Provider) CreateClient(ctx context.Context, apiKey, modelID, apiEndpoint string) (provider.Client, error) {
	p.logger.DebugContext(ctx, "creating openai client", "model", modelID)
	client, err := NewClient(apiKey, modelID, apiEndpoint, "openai")
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return client, nil
}
