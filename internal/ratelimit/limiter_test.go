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

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestLimiter_FixedWindow(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := New(rdb, "", map[string]Rule{"login": {Max: 3, Window: time.Minute}})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Check(ctx, "login", "10.0.0.1"))
	}
	assert.ErrorIs(t, l.Check(ctx, "login", "10.0.0.1"), ErrRateLimited)
	assert.NoError(t, l.Check(ctx, "login", "10.0.0.2"))
	assert.Equal(t, time.Minute, mr.TTL("ss:rl:login:10.0.0.1"))

	mr.FastForward(time.Minute + time.Second)
	assert.NoError(t, l.Check(ctx, "login", "10.0.0.1"))
}

func TestLimiter_UnknownActionAndNil(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := New(rdb, "", map[string]Rule{"disabled": {Max: 0, Window: time.Minute}})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		assert.NoError(t, l.Check(ctx, "signup", "k"))
		assert.NoError(t, l.Check(ctx, "disabled", "k"))
	}

	var none *Limiter
	assert.NoError(t, none.Check(ctx, "login", "k"))
}

func TestLimiter_Unavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := New(rdb, "", map[string]Rule{"login": {Max: 3, Window: time.Minute}})
	mr.Close()

	assert.ErrorIs(t, l.Check(context.Background(), "login", "k"), ErrUnavailable)
}
