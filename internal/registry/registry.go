package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lumenforge/aria/internal/logutil"
	"github.com/lumenforge/aria/internal/provider"
	"github.com/lumenforge/aria/internal/providers"
)

// Registry holds loaded provider and model definitions alongside the
// providers.Factory implementations registered against them. All access is
// protected by an internal mutex; there is deliberately no package-level
// singleton — a composition root owns its own Registry and passes it to
// whatever needs it.
type Registry struct {
	models          map[string]ModelDefinition
	providers       map[string]ProviderDefinition
	implementations map[string]providers.Factory
	mu              sync.RWMutex
	logger          logutil.LoggerInterface
}

// New creates an empty Registry.
func New(logger logutil.LoggerInterface) *Registry {
	if logger == nil {
		logger = logutil.NewLogger(logutil.InfoLevel, nil, "[registry] ")
	}
	return &Registry{
		models:          make(map[string]ModelDefinition),
		providers:       make(map[string]ProviderDefinition),
		implementations: make(map[string]providers.Factory),
		logger:          logger,
	}
}

// ConfigLoaderInterface is implemented by anything that can produce a
// ModelsConfig, letting tests substitute a fixture loader.
type ConfigLoaderInterface interface {
	Load() (*ModelsConfig, error)
}

// LoadConfig loads and validates the models configuration using loader,
// replacing any previously loaded providers and models, and returns the
// loaded configuration for callers (such as Compose) that need to inspect it
// further (e.g. APIKeySources).
func (r *Registry) LoadConfig(ctx context.Context, loader ConfigLoaderInterface) (*ModelsConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.DebugContext(ctx, "loading models configuration")
	config, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	r.providers = make(map[string]ProviderDefinition)
	r.models = make(map[string]ModelDefinition)

	for _, p := range config.Providers {
		r.providers[p.Name] = p
	}
	for _, m := range config.Models {
		r.models[m.Name] = m
	}

	r.logger.InfoContext(ctx, "models configuration loaded: providers=%d models=%d", len(r.providers), len(r.models))
	return config, nil
}

// GetModel retrieves a model definition by name.
func (r *Registry) GetModel(ctx context.Context, name string) (*ModelDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	model, ok := r.models[name]
	if !ok {
		r.logger.WarnContext(ctx, "model not found in registry: model=%s available=%s", name, r.availableModelsList())
		return nil, fmt.Errorf("model '%s' not found in registry", name)
	}
	return &model, nil
}

func (r *Registry) availableModelsList() string {
	if len(r.models) == 0 {
		return "none"
	}
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	if len(names) > 5 {
		return fmt.Sprintf("%s and %d others", strings.Join(names[:5], ", "), len(names)-5)
	}
	return strings.Join(names, ", ")
}

// GetAvailableModels returns every model name currently loaded.
func (r *Registry) GetAvailableModels(ctx context.Context) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	return names
}

// GetProvider retrieves a provider definition by name.
func (r *Registry) GetProvider(ctx context.Context, name string) (*ProviderDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider '%s' not found in registry", name)
	}
	return &p, nil
}

// RegisterFactory associates a providers.Factory implementation with a
// provider already present in the loaded configuration.
func (r *Registry) RegisterFactory(ctx context.Context, name string, factory providers.Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("provider '%s' not defined in configuration", name)
	}
	r.implementations[name] = factory
	r.logger.DebugContext(ctx, "registered provider factory: provider=%s", name)
	return nil
}

// GetFactory retrieves a registered providers.Factory.
func (r *Registry) GetFactory(ctx context.Context, name string) (providers.Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	impl, ok := r.implementations[name]
	if !ok {
		return nil, fmt.Errorf("no factory registered for provider '%s'", name)
	}
	return impl, nil
}

// CreateClient builds a provider.Client for modelName using its registered
// provider factory and apiKey.
func (r *Registry) CreateClient(ctx context.Context, apiKey, modelName string) (provider.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("empty API key provided for model '%s'", modelName)
	}

	model, err := r.GetModel(ctx, modelName)
	if err != nil {
		return nil, err
	}

	providerDef, err := r.GetProvider(ctx, model.Provider)
	if err != nil {
		return nil, fmt.Errorf("model '%s' references provider '%s': %w", modelName, model.Provider, err)
	}

	factory, err := r.GetFactory(ctx, model.Provider)
	if err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "creating client: model=%s api_model_id=%s provider=%s", modelName, model.APIModelID, model.Provider)
	client, err := factory.CreateClient(ctx, apiKey, model.APIModelID, providerDef.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("provider '%s' failed to create client for model '%s': %w", model.Provider, modelName, err)
	}
	return client, nil
}

// GetAllModelNames returns every model name currently loaded.
func (r *Registry) GetAllModelNames(ctx context.Context) []string {
	return r.GetAvailableModels(ctx)
}

// GetModelNamesByProvider returns the model names belonging to providerName.
func (r *Registry) GetModelNamesByProvider(ctx context.Context, providerName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name, model := range r.models {
		if model.Provider == providerName {
			names = append(names, name)
		}
	}
	return names
}
