package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/lumenforge/aria/internal/logutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall_SucceedsFirstTry(t *testing.T) {
	client := &MockClient{GenerateFunc: func(ctx context.Context, prompt string, params map[string]any) (string, error) {
		return "ok", nil
	}}
	text, err := Call(context.Background(), client, "hi", nil, RetryPolicy{MaxAttempts: 3, InitialDelay: 0, BackoffFactor: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestCall_RetriesRateLimitedThenSucceeds(t *testing.T) {
	attempts := 0
	client := &MockClient{GenerateFunc: func(ctx context.Context, prompt string, params map[string]any) (string, error) {
		attempts++
		if attempts < 2 {
			return "", NewVendorError(KindRateLimited, "mock", "rate limited", "", nil)
		}
		return "recovered", nil
	}}
	text, err := Call(context.Background(), client, "hi", nil, RetryPolicy{MaxAttempts: 3, InitialDelay: 0, BackoffFactor: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 2, attempts)
}

func TestCall_SecondUnexpectedAbortsImmediately(t *testing.T) {
	attempts := 0
	client := &MockClient{GenerateFunc: func(ctx context.Context, prompt string, params map[string]any) (string, error) {
		attempts++
		return "", NewVendorError(KindUnexpected, "mock", "boom", "", errors.New("boom"))
	}}
	_, err := Call(context.Background(), client, "hi", nil, RetryPolicy{MaxAttempts: 5, InitialDelay: 0, BackoffFactor: 2}, nil)
	require.Error(t, err)
	assert.Equal(t, 2, attempts)
}

func TestCall_NonRetryableAbortsImmediately(t *testing.T) {
	attempts := 0
	client := &MockClient{GenerateFunc: func(ctx context.Context, prompt string, params map[string]any) (string, error) {
		attempts++
		return "", NewVendorError(KindAuthFailed, "mock", "bad key", "", nil)
	}}
	_, err := Call(context.Background(), client, "hi", nil, RetryPolicy{MaxAttempts: 3, InitialDelay: 0, BackoffFactor: 2}, nil)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestCall_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := &MockClient{GenerateFunc: func(ctx context.Context, prompt string, params map[string]any) (string, error) {
		return "", NewVendorError(KindTransientAPI, "mock", "down", "", nil)
	}}
	_, err := Call(ctx, client, "hi", nil, RetryPolicy{MaxAttempts: 3, InitialDelay: 0, BackoffFactor: 2}, logutil.NewTestLogger(t))
	require.Error(t, err)
}

func TestKindOf_PlainErrorIsUnexpected(t *testing.T) {
	assert.Equal(t, KindUnexpected, KindOf(errors.New("plain")))
}

func TestVendorError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewVendorError(KindTransientAPI, "mock", "failed", "", cause)
	assert.True(t, errors.Is(err, cause))
}
