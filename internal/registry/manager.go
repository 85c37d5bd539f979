package registry

import (
	"context"
	"fmt"
	"os"

	"github.com/lumenforge/aria/internal/logutil"
	"github.com/lumenforge/aria/internal/providers"
	"github.com/lumenforge/aria/internal/providers/compat"
	"github.com/lumenforge/aria/internal/providers/gemini"
	"github.com/lumenforge/aria/internal/providers/openai"
)

// FactoryBuilder constructs a providers.Factory for a given provider name.
// The built-in set below covers every vendor the domain stack wires in;
// a composition root may pass additional builders for vendors not known here.
type FactoryBuilder func(logutil.LoggerInterface) providers.Factory

// DefaultFactoryBuilders returns the builder for every provider name this
// module ships an adapter for.
func DefaultFactoryBuilders() map[string]FactoryBuilder {
	return map[string]FactoryBuilder{
		"openai":     func(l logutil.LoggerInterface) providers.Factory { return openai.NewProvider(l) },
		"gemini":     func(l logutil.LoggerInterface) providers.Factory { return gemini.NewProvider(l) },
		"openrouter": func(l logutil.LoggerInterface) providers.Factory { return compat.NewProvider(compat.OpenRouter, l) },
		"anthropic":  func(l logutil.LoggerInterface) providers.Factory { return compat.NewProvider(compat.Anthropic, l) },
		"deepseek":   func(l logutil.LoggerInterface) providers.Factory { return compat.NewProvider(compat.DeepSeek, l) },
		"grok":       func(l logutil.LoggerInterface) providers.Factory { return compat.NewProvider(compat.Grok, l) },
		"mistral":    func(l logutil.LoggerInterface) providers.Factory { return compat.NewProvider(compat.Mistral, l) },
	}
}

// Compose loads configuration via loader, then registers a factory for every
// configured provider whose API key environment variable (per
// config.APIKeySources) is set in the process environment. A provider whose
// credential is missing, or for which no FactoryBuilder is known, is skipped
// with a Warning rather than failing composition — credentials are an
// operator-time concern, not a startup-time one.
func Compose(ctx context.Context, logger logutil.LoggerInterface, loader ConfigLoaderInterface, builders map[string]FactoryBuilder) (*Registry, []Warning, error) {
	if logger == nil {
		logger = logutil.NewLogger(logutil.InfoLevel, nil, "[registry] ")
	}
	if builders == nil {
		builders = DefaultFactoryBuilders()
	}

	reg := New(logger)
	config, err := reg.LoadConfig(ctx, loader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load registry configuration: %w", err)
	}

	var warnings []Warning
	for _, p := range config.Providers {
		builder, known := builders[p.Name]
		if !known {
			warnings = append(warnings, Warning{Provider: p.Name, Message: "no adapter registered for this provider"})
			continue
		}

		envVar, hasSource := config.APIKeySources[p.Name]
		if !hasSource {
			warnings = append(warnings, Warning{Provider: p.Name, Message: "no api_key_sources entry for this provider"})
			continue
		}
		if _, set := os.LookupEnv(envVar); !set {
			warnings = append(warnings, Warning{Provider: p.Name, Message: fmt.Sprintf("credential environment variable %s not set; provider disabled", envVar)})
			continue
		}

		if err := reg.RegisterFactory(ctx, p.Name, builder(logger)); err != nil {
			warnings = append(warnings, Warning{Provider: p.Name, Message: err.Error()})
		}
	}

	return reg, warnings, nil
}
