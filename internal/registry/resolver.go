package registry

import (
	"context"
	"os"

	"github.com/lumenforge/aria/internal/provider"
)

// Resolver adapts a Registry plus its loaded APIKeySources/credential
// environment into the orchestrator.Resolver shape, so the orchestrator
// package never imports registry directly.
type Resolver struct {
	reg           *Registry
	apiKeySources map[string]string
	discovery     map[string][]string
}

// NewResolver wraps reg. apiKeySources maps provider name to the
// environment variable holding its credential (as loaded from
// ModelsConfig.APIKeySources); discovery is the static provider -> models
// table consulted for auto-discovery.
func NewResolver(reg *Registry, apiKeySources map[string]string, discovery map[string][]string) *Resolver {
	return &Resolver{reg: reg, apiKeySources: apiKeySources, discovery: discovery}
}

// HasCredential reports whether providerName's configured environment
// variable is set in the process environment.
func (r *Resolver) HasCredential(providerName string) bool {
	envVar, ok := r.apiKeySources[providerName]
	if !ok {
		return false
	}
	_, set := os.LookupEnv(envVar)
	return set
}

// KnownProvider reports whether providerName has a registered factory.
func (r *Resolver) KnownProvider(providerName string) bool {
	_, err := r.reg.GetFactory(context.Background(), providerName)
	return err == nil
}

// CreateClient resolves providerName's credential and delegates to the
// registry's factory for modelName.
func (r *Resolver) CreateClient(ctx context.Context, providerName, modelName string) (provider.Client, error) {
	envVar := r.apiKeySources[providerName]
	apiKey := os.Getenv(envVar)

	providerDef, err := r.reg.GetProvider(ctx, providerName)
	if err != nil {
		return nil, err
	}
	factory, err := r.reg.GetFactory(ctx, providerName)
	if err != nil {
		return nil, err
	}
	return factory.CreateClient(ctx, apiKey, modelName, providerDef.BaseURL)
}

// AutoDiscoveryModels returns the static provider -> models table.
func (r *Resolver) AutoDiscoveryModels() map[string][]string {
	return r.discovery
}
