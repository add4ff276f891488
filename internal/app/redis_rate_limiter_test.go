package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionLimiterAllowsUpToLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewActionLimiter(client, "test:limit:", 2, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		decision, err := limiter.Allow(ctx, "approve", "u1")
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, i, decision.Hits)
	}

	decision, err := limiter.Allow(ctx, "approve", "u1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, time.Minute, decision.RetryAfter)

	decision, err = limiter.Allow(ctx, "approve", "u2")
	require.NoError(t, err)
	assert.True(t, decision.Allowed, "limits are per uid")

	decision, err = limiter.Allow(ctx, "reject", "u1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed, "limits are per operation")

	assert.True(t, mr.Exists("test:limit:approve:u1"))

	mr.FastForward(time.Minute)
	decision, err = limiter.Allow(ctx, "approve", "u1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed, "window resets")
}

func TestActionLimiterDisabled(t *testing.T) {
	decision, err := NewActionLimiter(nil, "", 1, time.Minute).Allow(context.Background(), "approve", "u1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	var nilLimiter *ActionLimiter
	decision, err = nilLimiter.Allow(context.Background(), "approve", "u1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestActionLimiterFailsOpenOnRedisError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	decision, err := NewActionLimiter(client, "", 1, time.Minute).Allow(context.Background(), "approve", "u1")
	assert.Error(t, err)
	assert.True(t, decision.Allowed)
}
