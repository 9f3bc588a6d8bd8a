package ratelimiting

import (
	"context"
	"net/url"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketRateLimiter(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping test in short mode")
	}
	rateLimiter, stop := NewTokenBucketRateLimiter(1, 2)
	defer stop()

	assert.True(t, rateLimiter.Consume("host2"))

	// Burst of 2
	assert.True(t, rateLimiter.Consume("host1"))
	assert.True(t, rateLimiter.Consume("host1"))
	assert.False(t, rateLimiter.Consume("host1"))

	time.Sleep(1000 * time.Millisecond)
	runtime.Gosched()

	// Refill rate of 1
	assert.True(t, rateLimiter.Consume("host1"))
	assert.False(t, rateLimiter.Consume("host1"))

	// Burst of 2 - even after refill
	assert.True(t, rateLimiter.Consume("host3"))
	assert.True(t, rateLimiter.Consume("host3"))
	assert.False(t, rateLimiter.Consume("host3"))

	assert.True(t, rateLimiter.Consume("host2"))
	assert.True(t, rateLimiter.Consume("host2"))
	assert.False(t, rateLimiter.Consume("host2"))
}

func TestTokenBucketRateLimiterWait(t *testing.T) {
	t.Parallel()

	rateLimiter, stop := NewTokenBucketRateLimiter(1, 1)
	defer stop()

	t.Run("token available", func(t *testing.T) {
		require.NoError(t, rateLimiter.Wait(t.Context(), "host1"))
	})

	t.Run("deadline shorter than refill", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
		defer cancel()

		// The bucket for host1 is empty and refills after 1s
		require.Error(t, rateLimiter.Wait(ctx, "host1"))
	})

	t.Run("other keys are independent", func(t *testing.T) {
		require.NoError(t, rateLimiter.Wait(t.Context(), "host2"))
	})
}

func TestUnlimitedRateLimiter(t *testing.T) {
	t.Parallel()

	rateLimiter := NewUnlimitedRateLimiter()
	for range 100 {
		require.True(t, rateLimiter.Consume("host"))
		require.NoError(t, rateLimiter.Wait(t.Context(), "host"))
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.ErrorIs(t, rateLimiter.Wait(ctx, "host"), context.Canceled)
}

func TestHostKeyFunc(t *testing.T) {
	u, err := url.Parse("https://images.example.com:8443/a/b.png?x=1")
	require.NoError(t, err)
	assert.Equal(t, "host: images.example.com:8443", HostKeyFunc(u))
}
