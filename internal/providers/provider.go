// Package providers contains the factory interface every vendor adapter
// package (openai, gemini, compat) implements to construct a
// provider.Client.
package providers

import (
	"context"

	"github.com/lumenforge/aria/internal/provider"
)

// Factory creates a provider.Client for a specific model.
type Factory interface {
	// CreateClient builds a client for modelID, authenticated with apiKey.
	// apiEndpoint overrides the vendor's default base URL; empty uses the
	// vendor default.
	CreateClient(ctx context.Context, apiKey string, modelID string, apiEndpoint string) (provider.Client, error)
}
