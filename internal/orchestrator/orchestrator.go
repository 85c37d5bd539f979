// Package orchestrator selects among a preference-ordered list of
// provider+model pairs and generates text via the first one that
// succeeds, falling back through the remaining candidates on failure.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lumenforge/aria/internal/provider"
	"github.com/lumenforge/aria/internal/logutil"
	"github.com/lumenforge/aria/internal/ratelimit"
)

// ModelRef names one provider+model pair in preference order.
type ModelRef struct {
	Provider string
	Model    string
}

func (r ModelRef) key() string { return r.Provider + ":" + r.Model }

// Resolver is the registry-shaped collaborator construction consults to
// turn model references into live clients, without the orchestrator
// package importing the registry package directly.
type Resolver interface {
	// HasCredential reports whether providerName has a usable credential
	// in the current environment.
	HasCredential(providerName string) bool
	// KnownProvider reports whether providerName has a registered adapter.
	KnownProvider(providerName string) bool
	// CreateClient builds a client for providerName/modelName.
	CreateClient(ctx context.Context, providerName, modelName string) (provider.Client, error)
	// AutoDiscoveryModels returns the static provider -> models table used
	// for auto-discovery, e.g. {"openai": ["gpt-4o", "gpt-4.1"]}.
	AutoDiscoveryModels() map[string][]string
}

// prefixProviders maps a model-name prefix to its inferred provider. Order
// matters only in that every prefix is checked; ties cannot occur because
// prefixes are disjoint by construction.
var prefixProviders = []struct {
	prefix   string
	provider string
}{
	{"gpt-", "openai"},
	{"deepseek-", "deepseek"},
	{"grok-", "grok"},
	{"gemini-", "gemini"},
	{"gemma-", "gemini"},
	{"mistral-", "mistral"},
	{"open-mixtral-", "mistral"},
	{"codestral-", "mistral"},
	{"claude-", "anthropic"},
}

func inferProvider(model string) (string, bool) {
	for _, p := range prefixProviders {
		if strings.HasPrefix(model, p.prefix) {
			return p.provider, true
		}
	}
	return "", false
}

// AllProvidersFailed is raised when every candidate in modelPreference was
// attempted and none produced text.
type AllProvidersFailed struct {
	Last error
}

func (e *AllProvidersFailed) Error() string {
	return fmt.Sprintf("all providers failed, last error: %v", e.Last)
}

func (e *AllProvidersFailed) Unwrap() error { return e.Last }

// FallbackNotification describes one provider-to-provider fallback
// transition, published fire-and-forget when EnableFallbackNotifications
// is set.
type FallbackNotification struct {
	FailedProvider   string
	FailedModel      string
	NextProvider     string
	NextModel        string
	RetriesExhausted int
	ErrorMessage     string
}

// NotificationSink receives fallback transitions from the Orchestrator.
type NotificationSink interface {
	Notify(ctx context.Context, n FallbackNotification)
}

// Warning is a non-fatal diagnostic produced during construction, e.g. an
// unknown model prefix falling back to a default provider.
type Warning struct {
	Model   string
	Message string
}

// Options configures an Orchestrator beyond its required model preference.
type Options struct {
	EnableAutoDiscovery         bool
	EnableFallbackNotifications bool
	NotificationSink            NotificationSink
	RetryPolicy                 provider.RetryPolicy
	RateLimiter                 *ratelimit.RateLimiter
	Logger                      logutil.LoggerInterface
}

// Orchestrator holds an immutable model preference built once at
// construction and never mutated afterward. Generate calls are safe from
// multiple concurrent producers: no per-call state touches shared maps.
type Orchestrator struct {
	modelPreference []ModelRef
	clients         map[string]provider.Client
	retryPolicy     provider.RetryPolicy
	rateLimiter     *ratelimit.RateLimiter
	logger          logutil.LoggerInterface

	notify   bool
	sink     NotificationSink
	notifyCh chan FallbackNotification
	closeCh  chan struct{}
	wg       sync.WaitGroup
}

// New constructs an Orchestrator from a required primary model and zero or
// more fallback models, each either "provider:model" or a bare "model"
// (provider inferred by prefix, then by resolver lookup, then defaulted to
// "openai" with a warning). Entries whose provider is unknown, whose
// library is missing, or whose credential is absent are skipped with a
// Warning rather than failing construction. If EnableAutoDiscovery is set,
// resolver.AutoDiscoveryModels() entries not already present are appended
// after the explicit entries, never prepended; providers are visited in map
// iteration order (not fixed) and each provider's models in listed order. Returns an
// error only if the final model preference is empty.
func New(ctx context.Context, resolver Resolver, primaryModel string, fallbackModels []string, opts Options) (*Orchestrator, []Warning, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logutil.NewLogger(logutil.InfoLevel, nil, "[orchestrator] ")
	}
	if opts.RetryPolicy.MaxAttempts <= 0 {
		opts.RetryPolicy = provider.DefaultRetryPolicy()
	}

	var warnings []Warning
	var preference []ModelRef
	seen := make(map[string]bool)
	clients := make(map[string]provider.Client)

	candidates := append([]string{primaryModel}, fallbackModels...)
	for _, candidate := range candidates {
		ref, warn, ok := resolveCandidate(resolver, candidate)
		if warn != nil {
			warnings = append(warnings, *warn)
		}
		if !ok || seen[ref.key()] {
			continue
		}
		if !resolver.KnownProvider(ref.Provider) {
			warnings = append(warnings, Warning{Model: candidate, Message: fmt.Sprintf("provider %q is unknown, skipping", ref.Provider)})
			continue
		}
		if !resolver.HasCredential(ref.Provider) {
			warnings = append(warnings, Warning{Model: candidate, Message: fmt.Sprintf("no credential available for provider %q, skipping", ref.Provider)})
			continue
		}

		client, err := resolver.CreateClient(ctx, ref.Provider, ref.Model)
		if err != nil {
			warnings = append(warnings, Warning{Model: candidate, Message: fmt.Sprintf("failed to create client: %v", err)})
			continue
		}

		seen[ref.key()] = true
		preference = append(preference, ref)
		clients[ref.key()] = client
	}

	if opts.EnableAutoDiscovery {
		for providerName, models := range resolver.AutoDiscoveryModels() {
			for _, model := range models {
				ref := ModelRef{Provider: providerName, Model: model}
				if seen[ref.key()] {
					continue
				}
				if !resolver.HasCredential(providerName) {
					continue
				}
				client, err := resolver.CreateClient(ctx, providerName, model)
				if err != nil {
					continue
				}
				seen[ref.key()] = true
				preference = append(preference, ref)
				clients[ref.key()] = client
			}
		}
	}

	if len(preference) == 0 {
		return nil, warnings, fmt.Errorf("orchestrator: no usable provider in model preference")
	}

	o := &Orchestrator{
		modelPreference: preference,
		clients:         clients,
		retryPolicy:     opts.RetryPolicy,
		rateLimiter:     opts.RateLimiter,
		logger:          logger,
		notify:          opts.EnableFallbackNotifications,
		sink:            opts.NotificationSink,
	}

	if o.notify && o.sink != nil {
		o.notifyCh = make(chan FallbackNotification, 32)
		o.closeCh = make(chan struct{})
		o.wg.Add(1)
		go o.drainNotifications()
	}

	return o, warnings, nil
}

func resolveCandidate(resolver Resolver, candidate string) (ModelRef, *Warning, bool) {
	if candidate == "" {
		return ModelRef{}, nil, false
	}
	if providerName, model, ok := strings.Cut(candidate, ":"); ok {
		return ModelRef{Provider: providerName, Model: model}, nil, true
	}
	if providerName, ok := inferProvider(candidate); ok {
		return ModelRef{Provider: providerName, Model: candidate}, nil, true
	}
	if resolver.KnownProvider("openai") {
		return ModelRef{Provider: "openai", Model: candidate}, &Warning{
			Model:   candidate,
			Message: "could not infer provider for model, defaulting to openai",
		}, true
	}
	return ModelRef{}, &Warning{Model: candidate, Message: "could not infer provider and openai is unavailable"}, false
}

// Generate iterates the model preference in order, invoking each client's
// Call-wrapped Generate, returning the first success. It never returns
// text from a provider earlier in the list than the one that actually
// produced it: attempts proceed strictly left to right. On exhaustion it
// raises AllProvidersFailed carrying the last error.
func (o *Orchestrator) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	params := map[string]any{"max_tokens": maxTokens, "temperature": temperature}

	var lastErr error
	for i, ref := range o.modelPreference {
		client := o.clients[ref.key()]

		if o.rateLimiter != nil {
			if err := o.rateLimiter.Acquire(ctx, ref.Model); err != nil {
				lastErr = fmt.Errorf("%s:%s: %w", ref.Provider, ref.Model, err)
				continue
			}
		}
		text, err := provider.Call(ctx, client, prompt, params, o.retryPolicy, o.logger)
		if o.rateLimiter != nil {
			o.rateLimiter.Release()
		}
		if err == nil {
			return text, nil
		}

		lastErr = fmt.Errorf("%s:%s: %w", ref.Provider, ref.Model, err)
		if i+1 < len(o.modelPreference) && o.notify {
			next := o.modelPreference[i+1]
			o.publish(ctx, FallbackNotification{
				FailedProvider:   ref.Provider,
				FailedModel:      ref.Model,
				NextProvider:     next.Provider,
				NextModel:        next.Model,
				RetriesExhausted: o.retryPolicy.MaxAttempts,
				ErrorMessage:     err.Error(),
			})
		}
	}

	return "", &AllProvidersFailed{Last: lastErr}
}

func (o *Orchestrator) publish(ctx context.Context, n FallbackNotification) {
	select {
	case o.notifyCh <- n:
	default:
		o.logger.WarnContext(ctx, "orchestrator: notification channel full, dropping fallback notification for %s:%s", n.FailedProvider, n.FailedModel)
	}
}

func (o *Orchestrator) drainNotifications() {
	defer o.wg.Done()
	for {
		select {
		case n := <-o.notifyCh:
			o.sink.Notify(context.Background(), n)
		case <-o.closeCh:
			return
		}
	}
}

// Close stops the background notification-draining goroutine, if one was
// started. It is safe to call even when notifications are disabled.
func (o *Orchestrator) Close() error {
	if o.closeCh != nil {
		close(o.closeCh)
		o.wg.Wait()
	}
	return nil
}

// ModelPreference returns a copy of the resolved, ordered model
// preference, for diagnostics and tests.
func (o *Orchestrator) ModelPreference() []ModelRef {
	return append([]ModelRef(nil), o.modelPreference...)
}
