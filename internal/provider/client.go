package provider

import (
	"context"
	"time"

	"github.com/lumenforge/aria/internal/logutil"
)

// Client is the minimal interface every vendor adapter implements.
// Orchestration, retry, and fallback logic all work against this interface,
// never against a vendor SDK directly.
type Client interface {
	// Generate sends prompt to the model and returns the generated text.
	// params carries optional overrides (temperature, max_tokens, top_p, ...);
	// unrecognized keys are ignored by the adapter.
	Generate(ctx context.Context, prompt string, params map[string]any) (text string, err error)

	// ModelName returns the model identifier this client was constructed for.
	ModelName() string

	// Close releases any resources held by the client.
	Close() error
}

// ModelLimits describes a model's token capacity.
type ModelLimits struct {
	InputTokenLimit  int32
	OutputTokenLimit int32
}

// LimitsAwareClient is implemented by clients that can report model limits
// and token counts; adapters implement it in addition to Client.
type LimitsAwareClient interface {
	Client
	CountTokens(ctx context.Context, text string) (int32, error)
	ModelLimits(ctx context.Context) (*ModelLimits, error)
}

// RetryPolicy configures the backoff schedule used by Call.
type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy is N=3 attempts with a 1s initial delay, doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: time.Second, BackoffFactor: 2.0}
}

// Call runs client.Generate under the retry policy: it retries
// KindRateLimited and KindTransientAPI failures up to MaxAttempts times, and
// retries the first KindUnexpected failure it sees in a given call — a
// second KindUnexpected in the same call aborts immediately. All other kinds
// are not retried.
func Call(ctx context.Context, client Client, prompt string, params map[string]any, policy RetryPolicy, logger logutil.LoggerInterface) (string, error) {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	delay := policy.InitialDelay
	sawUnexpected := false
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		text, err := client.Generate(ctx, prompt, params)
		if err == nil {
			return text, nil
		}
		lastErr = err

		kind := KindOf(err)
		retryable := kind == KindRateLimited || kind == KindTransientAPI
		if kind == KindUnexpected {
			if sawUnexpected {
				return "", err
			}
			sawUnexpected = true
			retryable = true
		}
		if !retryable || attempt == policy.MaxAttempts {
			return "", err
		}

		if logger != nil {
			logger.WarnContext(ctx, "provider call failed, retrying: model=%s attempt=%d kind=%s delay=%s",
				client.ModelName(), attempt, kind.String(), delay.String())
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		delay = time.Duration(float64(delay) * policy.BackoffFactor)
	}
	return "", lastErr
}

// MockClient is a test double implementing Client.
type MockClient struct {
	Model           string
	GenerateFunc    func(ctx context.Context, prompt string, params map[string]any) (string, error)
	CloseFunc       func() error
}

func (m *MockClient) Generate(ctx context.Context, prompt string, params map[string]any) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, params)
	}
	return "mock response", nil
}

func (m *MockClient) ModelName() string {
	if m.Model != "" {
		return m.Model
	}
	return "mock-model"
}

func (m *MockClient) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}
