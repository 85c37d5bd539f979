// Package openai adapts the OpenAI chat-completions API, and any vendor that
// speaks the same wire format behind a custom base URL, to provider.Client.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkoukk/tiktoken-go"

	"github.com/lumenforge/aria/internal/provider"
)

// modelInfo holds the hardcoded token limits for models this adapter knows
// about. Unknown models fall back to a conservative default.
type modelInfo struct {
	inputTokenLimit  int32
	outputTokenLimit int32
}

var knownModelLimits = map[string]modelInfo{
	"gpt-4":                      {8192, 2048},
	"gpt-4-32k":                  {32768, 4096},
	"gpt-4-turbo":                {128000, 4096},
	"gpt-4-turbo-2024-04-09":     {128000, 4096},
	"gpt-4o":                     {128000, 4096},
	"gpt-4.1-mini":               {1000000, 32768},
	"gpt-4.1":                    {1000000, 32768},
	"gpt-4.1-preview":            {1000000, 32768},
	"o4-mini":                    {1000000, 32768},
	"o4":                         {1000000, 32768},
	"gpt-3.5-turbo":              {16385, 4096},
	"gpt-3.5-turbo-16k":          {16385, 4096},
}

var defaultModelLimits = modelInfo{inputTokenLimit: 8192, outputTokenLimit: 2048}

// Client wraps openai-go and implements provider.LimitsAwareClient. It also
// speaks for any OpenAI-compatible vendor (OpenRouter, DeepSeek, Grok,
// Mistral, Anthropic's OpenAI-compatible endpoint) when constructed with a
// non-empty baseURL and vendor name.
type Client struct {
	api          *openai.Client
	modelName    string
	vendor       string
	limits       modelInfo
	temperature  *float64
	topP         *float64
	maxTokens    *int64
	presencePen  *float64
	frequencyPen *float64
}

// NewClient builds a client for modelName against apiKey. baseURL overrides
// the OpenAI endpoint for OpenAI-compatible vendors; empty means the real
// OpenAI API. vendor names the adapter in error messages (defaults to
// "openai").
func NewClient(apiKey, modelName, baseURL, vendor string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, provider.NewVendorError(provider.KindAuthFailed, vendorOrDefault(vendor),
			"API key not set", "set the provider's API key environment variable", nil)
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	api := openai.NewClient(opts...)

	limits, ok := knownModelLimits[modelName]
	if !ok {
		limits = defaultModelLimits
	}

	return &Client{
		api:       &api,
		modelName: modelName,
		vendor:    vendorOrDefault(vendor),
		limits:    limits,
	}, nil
}

func vendorOrDefault(vendor string) string {
	if vendor == "" {
		return "openai"
	}
	return vendor
}

// ModelName implements provider.Client.
func (c *Client) ModelName() string { return c.modelName }

// Close implements provider.Client. The OpenAI SDK holds no resources that
// need explicit release.
func (c *Client) Close() error { return nil }

// Generate implements provider.Client.
func (c *Client) Generate(ctx context.Context, prompt string, params map[string]any) (string, error) {
	newParams := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Model:    c.modelName,
	}
	if err := applyParams(&newParams, params); err != nil {
		return "", err
	}

	completion, err := c.api.Chat.Completions.New(ctx, newParams)
	if err != nil {
		return "", classifyError(c.vendor, err)
	}
	if len(completion.Choices) == 0 {
		return "", provider.NewVendorError(provider.KindResponseMalformed, c.vendor,
			"response contained no choices", "", nil)
	}

	choice := completion.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", provider.NewVendorError(provider.KindContentBlocked, c.vendor,
			"response blocked by content filter", "", nil)
	}
	return choice.Message.Content, nil
}

// CountTokens implements provider.LimitsAwareClient using cl100k_base, the
// encoding shared by every model this adapter supports.
func (c *Client) CountTokens(ctx context.Context, text string) (int32, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return 0, provider.NewVendorError(provider.KindUnexpected, c.vendor,
			"failed to load tokenizer encoding", "", err)
	}
	return int32(len(enc.Encode(text, nil, nil))), nil
}

// ModelLimits implements provider.LimitsAwareClient.
func (c *Client) ModelLimits(ctx context.Context) (*provider.ModelLimits, error) {
	return &provider.ModelLimits{
		InputTokenLimit:  c.limits.inputTokenLimit,
		OutputTokenLimit: c.limits.outputTokenLimit,
	}, nil
}

// applyParams validates and copies generic overrides onto newParams,
// returning a KindUnexpected VendorError on the first out-of-range value.
func applyParams(newParams *openai.ChatCompletionNewParams, params map[string]any) error {
	if temp, ok := floatParam(params, "temperature"); ok {
		if temp < 0.0 || temp > 2.0 {
			return provider.NewVendorError(provider.KindUnexpected, "openai",
				"temperature must be between 0.0 and 2.0", "", nil)
		}
		newParams.Temperature = openai.Float(temp)
	}
	if topP, ok := floatParam(params, "top_p"); ok {
		if topP < 0.0 || topP > 1.0 {
			return provider.NewVendorError(provider.KindUnexpected, "openai",
				"top_p must be between 0.0 and 1.0", "", nil)
		}
		newParams.TopP = openai.Float(topP)
	}
	maxTokens, hasMaxTokens := intParam(params, "max_tokens")
	if !hasMaxTokens {
		maxTokens, hasMaxTokens = intParam(params, "max_output_tokens")
	}
	if hasMaxTokens {
		if maxTokens <= 0 {
			return provider.NewVendorError(provider.KindUnexpected, "openai",
				"max_tokens must be positive", "", nil)
		}
		newParams.MaxTokens = openai.Int(maxTokens)
	}
	if penalty, ok := floatParam(params, "presence_penalty"); ok {
		if penalty < -2.0 || penalty > 2.0 {
			return provider.NewVendorError(provider.KindUnexpected, "openai",
				"presence_penalty must be between -2.0 and 2.0", "", nil)
		}
		newParams.PresencePenalty = openai.Float(penalty)
	}
	if penalty, ok := floatParam(params, "frequency_penalty"); ok {
		if penalty < -2.0 || penalty > 2.0 {
			return provider.NewVendorError(provider.KindUnexpected, "openai",
				"frequency_penalty must be between -2.0 and 2.0", "", nil)
		}
		newParams.FrequencyPenalty = openai.Float(penalty)
	}
	return nil
}

func floatParam(params map[string]any, key string) (float64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func intParam(params map[string]any, key string) (int64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// classifyError normalizes an openai-go SDK error into a provider.VendorError.
func classifyError(vendor string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.Error
	if !asAPIError(err, &apiErr) {
		return provider.NewVendorError(provider.KindUnexpected, vendor, err.Error(), "", err)
	}

	switch apiErr.StatusCode {
	case 401, 403:
		return provider.NewVendorError(provider.KindAuthFailed, vendor,
			fmt.Sprintf("authentication failed: %s", apiErr.Message),
			"check that the API key is valid and has not expired", err)
	case 429:
		return provider.NewVendorError(provider.KindRateLimited, vendor,
			fmt.Sprintf("rate limited: %s", apiErr.Message),
			"wait and retry, or reduce request concurrency", err)
	case 500, 502, 503, 504:
		return provider.NewVendorError(provider.KindTransientAPI, vendor,
			fmt.Sprintf("server error: %s", apiErr.Message),
			"this is typically transient; retrying may succeed", err)
	case 404:
		return provider.NewVendorError(provider.KindLibraryMissing, vendor,
			fmt.Sprintf("model not found: %s", apiErr.Message), "", err)
	default:
		return provider.NewVendorError(provider.KindUnexpected, vendor, apiErr.Message, "", err)
	}
}

func asAPIError(err error, target **openai.Error) bool {
	if apiErr, ok := err.(*openai.Error); ok {
		*target = apiErr
		return true
	}
	return false
}
