// Package compat provides a single providers.Factory implementation for every
// vendor that speaks the OpenAI chat-completions wire format behind its own
// base URL and API key: OpenRouter, Anthropic, DeepSeek, Grok, and Mistral
// all qualify, grounded on the teacher's OpenRouter adapter, which already
// does exactly this for one vendor.
package compat

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumenforge/aria/internal/logutil"
	"github.com/lumenforge/aria/internal/provider"
	"github.com/lumenforge/aria/internal/providers"
	"github.com/lumenforge/aria/internal/providers/openai"
)

// VendorSpec describes one OpenAI-compatible vendor.
type VendorSpec struct {
	Name           string
	DefaultBaseURL string
	// KeyPrefix, when non-empty, is the required prefix for API keys sent to
	// this vendor (e.g. OpenRouter keys start with "sk-or"). Empty means no
	// format check is performed.
	KeyPrefix string
}

var (
	OpenRouter = VendorSpec{Name: "openrouter", DefaultBaseURL: "https://openrouter.ai/api/v1", KeyPrefix: "sk-or"}
	Anthropic  = VendorSpec{Name: "anthropic", DefaultBaseURL: "https://api.anthropic.com/v1"}
	DeepSeek   = VendorSpec{Name: "deepseek", DefaultBaseURL: "https://api.deepseek.com/v1"}
	Grok       = VendorSpec{Name: "grok", DefaultBaseURL: "https://api.x.ai/v1"}
	Mistral    = VendorSpec{Name: "mistral", DefaultBaseURL: "https://api.mistral.ai/v1"}
)

// Provider implements providers.Factory for one OpenAI-compatible vendor.
type Provider struct {
	spec   VendorSpec
	logger logutil.LoggerInterface
}

// NewProvider constructs a Provider for spec. A nil logger gets a default one.
func NewProvider(spec VendorSpec, logger logutil.LoggerInterface) providers.Factory {
	if logger == nil {
		logger = logutil.NewLogger(logutil.InfoLevel, nil, fmt.Sprintf("[%s-provider] ", spec.Name))
	}
	return &Provider{spec: spec, logger: logger}
}

// CreateClient implements providers.Factory.
func (p *Provider) CreateClient(ctx context.Context, apiKey, modelID, apiEndpoint string) (provider.Client, error) {
	if p.spec.KeyPrefix != "" && !strings.HasPrefix(apiKey, p.spec.KeyPrefix) {
		return nil, provider.NewVendorError(provider.KindAuthFailed, p.spec.Name,
			fmt.Sprintf("API key does not have the expected '%s' prefix", p.spec.KeyPrefix),
			"check that you are using a key issued by this vendor, not another provider's key", nil)
	}

	baseURL := apiEndpoint
	if baseURL == "" {
		baseURL = p.spec.DefaultBaseURL
	}

	p.logger.DebugContext(ctx, "creating compat client", "vendor", p.spec.Name, "model", modelID, "base_url", baseURL)
	client, err := openai.NewClient(apiKey, modelID, baseURL, p.spec.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", p.spec.Name, err)
	}
	return client, nil
}
