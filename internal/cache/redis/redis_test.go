package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return Wrap(rdb), mr
}

func TestNewPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), ClientConfig{Addr: mr.Addr(), PoolSize: 2})
	require.NoError(t, err)
	require.NoError(t, c.Ping(context.Background()))
	require.NoError(t, c.Close())

	mr.Close()
	_, err = New(context.Background(), ClientConfig{Addr: mr.Addr()})
	require.Error(t, err)
}

func TestOptions(t *testing.T) {
	opts := options(ClientConfig{Addr: "cache:6379", DB: 2, PoolSize: 8})
	require.Equal(t, "cache:6379", opts.Addr)
	require.Equal(t, 2, opts.DB)
	require.Equal(t, 8, opts.PoolSize)
	require.Equal(t, "polyseek", opts.ClientName)
	require.Nil(t, opts.TLSConfig)

	opts = options(ClientConfig{Addr: "cache:6380", TLSEnabled: true})
	require.NotNil(t, opts.TLSConfig)
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	c, mr := newTestClient(t)
	rl := NewRateLimiter(c)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := rl.Allow(ctx, "analyze:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d", i)
		require.Equal(t, 2-i, d.Remaining)
		require.Zero(t, d.RetryAfter)
		now = now.Add(time.Second)
	}
	require.True(t, mr.Exists("ratelimit:analyze:1.2.3.4"))

	// The fourth request at base+3s waits for the first (base) to expire.
	d, err := rl.Allow(ctx, "analyze:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Zero(t, d.Remaining)
	require.Equal(t, 57*time.Second, d.RetryAfter)

	// A different key has its own window.
	d, err = rl.Allow(ctx, "analyze:5.6.7.8", 3, time.Minute)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	// Once the oldest entry leaves the window a slot frees up.
	now = base.Add(time.Minute + 500*time.Millisecond)
	d, err = rl.Allow(ctx, "analyze:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.Zero(t, d.Remaining)
}

func TestRateLimiterZeroLimitAllows(t *testing.T) {
	c, _ := newTestClient(t)
	d, err := NewRateLimiter(c).Allow(context.Background(), "k", 0, time.Minute)
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestRateLimiterServerDown(t *testing.T) {
	c, mr := newTestClient(t)
	mr.Close()
	_, err := NewRateLimiter(c).Allow(context.Background(), "k", 1, time.Minute)
	require.Error(t, err)
}

func TestSignalBusPublishSubscribe(t *testing.T) {
	c, _ := newTestClient(t)
	bus := NewSignalBus(c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, "ch:analysis")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "ch:analysis", []byte(`{"event":"analysis.completed"}`)))

	select {
	case msg := <-ch:
		require.JSONEq(t, `{"event":"analysis.completed"}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, 2*time.Second, 10*time.Millisecond)
}

func TestIsPattern(t *testing.T) {
	require.True(t, isPattern("ch:*"))
	require.False(t, isPattern("ch:analysis"))
}
