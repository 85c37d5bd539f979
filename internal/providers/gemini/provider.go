package gemini

import (
	"context"
	"fmt"

	"github.com/lumenforge/aria/internal/logutil"
	"github.com/lumenforge/aria/internal/provider"
	"github.com/lumenforge/aria/internal/providers"
)

// Provider implements providers.Factory for the Gemini API.
type Provider struct {
	logger logutil.LoggerInterface
}

// NewProvider constructs a Provider. A nil logger gets a default one.
func NewProvider(logger logutil.LoggerInterface) providers.Factory {
	if logger == nil {
		logger = logutil.NewLogger(logutil.InfoLevel, nil, "[gemini-provider] ")
	}
	return &Provider{logger: logger}
}

// CreateClient implements providers.Factory.
func (p *Provider) CreateClient(ctx context.Context, apiKey, modelID, apiEndpoint string) (provider.Client, error) {
	p.logger.DebugContext(ctx, "creating gemini client", "model", modelID)
	client, err := NewClient(ctx, apiKey, modelID, apiEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return client, nil
}
