// Package gemini adapts Google's generative-ai-go SDK to provider.Client and,
// via its multimodal call path, to the vision-capable Validator used by the
// browser-driven generation loop.
package gemini

import (
	"context"
	"strings"
	"sync"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/lumenforge/aria/internal/provider"
)

const (
	defaultTemperature = float32(0.7)
	defaultTopP        = float32(0.95)
	defaultMaxTokens   = int32(8192)

	defaultInputTokenLimit  = int32(30720)
	defaultOutputTokenLimit = int32(8192)
)

// Client wraps a genai.Client and GenerativeModel and implements
// provider.LimitsAwareClient.
type Client struct {
	genaiClient *genai.Client
	model       *genai.GenerativeModel
	modelName   string

	mu sync.Mutex
}

// NewClient builds a Gemini client for modelName. apiEndpoint overrides the
// default endpoint (used for test doubles), and disables API-key auth when set.
func NewClient(ctx context.Context, apiKey, modelName, apiEndpoint string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" && apiEndpoint == "" {
		return nil, provider.NewVendorError(provider.KindAuthFailed, "gemini",
			"API key not set", "set the Gemini API key environment variable", nil)
	}

	var opts []option.ClientOption
	if apiEndpoint != "" {
		opts = append(opts, option.WithEndpoint(apiEndpoint), option.WithoutAuthentication())
	} else {
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	genaiClient, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, provider.NewVendorError(provider.KindTransientAPI, "gemini",
			"failed to create client", "", err)
	}

	model := genaiClient.GenerativeModel(modelName)
	model.SetTemperature(defaultTemperature)
	model.SetTopP(defaultTopP)
	model.SetMaxOutputTokens(defaultMaxTokens)

	return &Client{genaiClient: genaiClient, model: model, modelName: modelName}, nil
}

// ModelName implements provider.Client.
func (c *Client) ModelName() string { return c.modelName }

// Close implements provider.Client.
func (c *Client) Close() error { return c.genaiClient.Close() }

// Generate implements provider.Client.
func (c *Client) Generate(ctx context.Context, prompt string, params map[string]any) (string, error) {
	if prompt == "" {
		return "", provider.NewVendorError(provider.KindUnexpected, "gemini", "prompt cannot be empty", "", nil)
	}

	c.mu.Lock()
	applyGenerationParams(c.model, params)
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	c.mu.Unlock()

	if err != nil {
		return "", classifyError(err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", provider.NewVendorError(provider.KindResponseMalformed, "gemini",
			"no generation candidates returned", "this can indicate content filtering", nil)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", provider.NewVendorError(provider.KindContentBlocked, "gemini",
			"response blocked by safety filtering", "", nil)
	}
	if candidate.Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

// GenerateMultimodal sends prompt alongside inline image bytes (mimeType,
// e.g. "image/png") and returns the generated text. It is the call path the
// vision Validator uses to judge a screenshot against expected state.
func (c *Client) GenerateMultimodal(ctx context.Context, prompt string, imageBytes []byte, mimeType string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.model.GenerateContent(ctx, genai.ImageData(strings.TrimPrefix(mimeType, "image/"), imageBytes), genai.Text(prompt))
	if err != nil {
		return "", classifyError(err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", provider.NewVendorError(provider.KindResponseMalformed, "gemini",
			"no generation candidates returned for multimodal request", "", nil)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

// CountTokens implements provider.LimitsAwareClient.
func (c *Client) CountTokens(ctx context.Context, text string) (int32, error) {
	if text == "" {
		return 0, nil
	}
	resp, err := c.model.CountTokens(ctx, genai.Text(text))
	if err != nil {
		return 0, classifyError(err)
	}
	return resp.TotalTokens, nil
}

// ModelLimits implements provider.LimitsAwareClient. Gemini's listModels API
// isn't wired here; this adapter uses conservative fixed defaults.
func (c *Client) ModelLimits(ctx context.Context) (*provider.ModelLimits, error) {
	return &provider.ModelLimits{InputTokenLimit: defaultInputTokenLimit, OutputTokenLimit: defaultOutputTokenLimit}, nil
}

func applyGenerationParams(model *genai.GenerativeModel, params map[string]any) {
	if params == nil {
		return
	}
	if v, ok := floatParam(params, "temperature"); ok {
		model.SetTemperature(v)
	}
	if v, ok := floatParam(params, "top_p"); ok {
		model.SetTopP(v)
	}
	if v, ok := intParam(params, "top_k"); ok {
		model.SetTopK(v)
	}
	if v, ok := intParam(params, "max_output_tokens"); ok {
		model.SetMaxOutputTokens(v)
	} else if v, ok := intParam(params, "max_tokens"); ok {
		model.SetMaxOutputTokens(v)
	}
}

func floatParam(params map[string]any, key string) (float32, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return float32(n), true
	case float32:
		return n, true
	case int:
		return float32(n), true
	}
	return 0, false
}

func intParam(params map[string]any, key string) (int32, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return int32(n), true
	case int32:
		return n, true
	case int64:
		return int32(n), true
	case float64:
		return int32(n), true
	}
	return 0, false
}

func classifyError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "blocked") || strings.Contains(msg, "safety"):
		return provider.NewVendorError(provider.KindContentBlocked, "gemini", err.Error(), "", err)
	case strings.Contains(msg, "permission") || strings.Contains(msg, "unauthenticated") || strings.Contains(msg, "api key not valid"):
		return provider.NewVendorError(provider.KindAuthFailed, "gemini", err.Error(),
			"check that the Gemini API key is valid", err)
	case strings.Contains(msg, "resource exhausted") || strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit"):
		return provider.NewVendorError(provider.KindRateLimited, "gemini", err.Error(), "wait and retry", err)
	case strings.Contains(msg, "unavailable") || strings.Contains(msg, "internal") || strings.Contains(msg, "deadline"):
		return provider.NewVendorError(provider.KindTransientAPI, "gemini", err.Error(),
			"this is typically transient; retrying may succeed", err)
	case strings.Contains(msg, "not found"):
		return provider.NewVendorError(provider.KindLibraryMissing, "gemini", err.Error(), "", err)
	default:
		return provider.NewVendorError(provider.KindUnexpected, "gemini", err.Error(), "", err)
	}
}
