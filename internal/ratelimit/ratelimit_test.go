package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphore_BlocksAtCapacity(t *testing.T) {
	sem := NewSemaphore(2)
	require.NoError(t, sem.Acquire(context.Background()))
	require.NoError(t, sem.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := sem.Acquire(ctx)
	assert.ErrorIs(t, err, ErrContextCanceled)

	sem.Release()
	require.NoError(t, sem.Acquire(context.Background()))
}

func TestSemaphore_NilMeansNoLimit(t *testing.T) {
	var sem *Semaphore
	assert.NoError(t, sem.Acquire(context.Background()))
	sem.Release()
}

func TestNewSemaphore_NonPositiveReturnsNil(t *testing.T) {
	assert.Nil(t, NewSemaphore(0))
	assert.Nil(t, NewSemaphore(-1))
}

func TestTokenBucket_NonPositiveRateReturnsNil(t *testing.T) {
	assert.Nil(t, NewTokenBucket(0, 1))
}

func TestTokenBucket_AllowsWithinBurst(t *testing.T) {
	tb := NewTokenBucket(60, 2)
	require.NoError(t, tb.Acquire(context.Background(), "model-a"))
	require.NoError(t, tb.Acquire(context.Background(), "model-a"))
}

func TestTokenBucket_PerModelIsolation(t *testing.T) {
	tb := NewTokenBucket(60, 1)
	require.NoError(t, tb.Acquire(context.Background(), "model-a"))
	require.NoError(t, tb.Acquire(context.Background(), "model-b"))
}

func TestRateLimiter_AcquireRelease(t *testing.T) {
	rl := NewRateLimiter(2, 120)
	require.NoError(t, rl.Acquire(context.Background(), "model-a"))
	rl.Release()
}

func TestRateLimiter_SemaphoreReleasedOnTokenBucketFailure(t *testing.T) {
	rl := NewRateLimiter(1, 60)
	require.NoError(t, rl.Acquire(context.Background(), "model-a"))
	rl.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := rl.Acquire(ctx, "model-a")
	require.Error(t, err)
	assert.Len(t, rl.semaphore.tickets, 0)
	rl.Release()
}
