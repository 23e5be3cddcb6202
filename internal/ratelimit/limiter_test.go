package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, maxRequests int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return New(rdb, Config{MaxRequests: maxRequests, Window: window}, nil), mr
}

func TestAllowWithinThreshold(t *testing.T) {
	limiter, _ := newTestLimiter(t, 5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow(ctx, "/api/v1/auth/login", "1.2.3.4"), "request %d", i+1)
	}
	assert.False(t, limiter.Allow(ctx, "/api/v1/auth/login", "1.2.3.4"))
}

func TestBucketsAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "/login", "1.2.3.4"))
	assert.False(t, limiter.Allow(ctx, "/login", "1.2.3.4"))

	// Other address, other route: fresh buckets.
	assert.True(t, limiter.Allow(ctx, "/login", "5.6.7.8"))
	assert.True(t, limiter.Allow(ctx, "/refresh", "1.2.3.4"))
}

func TestWindowExpiry(t *testing.T) {
	limiter, mr := newTestLimiter(t, 2, time.Minute)
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "/login", "1.2.3.4"))
	assert.True(t, limiter.Allow(ctx, "/login", "1.2.3.4"))
	assert.False(t, limiter.Allow(ctx, "/login", "1.2.3.4"))

	mr.FastForward(time.Minute + time.Second)

	assert.True(t, limiter.Allow(ctx, "/login", "1.2.3.4"))
}

func TestWindowIsFixedNotSliding(t *testing.T) {
	limiter, mr := newTestLimiter(t, 100, time.Minute)
	ctx := context.Background()

	require.True(t, limiter.Allow(ctx, "/login", "1.2.3.4"))

	// A burst late in the window must not extend it.
	mr.FastForward(50 * time.Second)
	for i := 0; i < 10; i++ {
		require.True(t, limiter.Allow(ctx, "/login", "1.2.3.4"))
	}
	ttl := mr.TTL(bucketKey("/login", "1.2.3.4"))
	assert.LessOrEqual(t, ttl, 10*time.Second)
}

func TestFailOpen(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	limiter := New(rdb, Config{MaxRequests: 1, Window: time.Minute}, nil)

	mr.Close()

	// Counter service down: every request is allowed, nothing panics.
	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow(context.Background(), "/login", "1.2.3.4"))
	}
}

func TestReset(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	require.True(t, limiter.Allow(ctx, "/login", "1.2.3.4"))
	require.False(t, limiter.Allow(ctx, "/login", "1.2.3.4"))

	assert.True(t, limiter.Reset(ctx, "/login", "1.2.3.4"))
	assert.True(t, limiter.Allow(ctx, "/login", "1.2.3.4"))
}

func TestResetFailSoft(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	limiter := New(rdb, Config{MaxRequests: 1, Window: time.Minute}, nil)

	mr.Close()

	assert.False(t, limiter.Reset(context.Background(), "/login", "1.2.3.4"))
}
