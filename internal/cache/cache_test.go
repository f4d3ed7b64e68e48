package cache

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestKeyLayout(t *testing.T) {
	asOf := time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC)
	key := Key("trend", metric.Steps, "d7", asOf)
	assert.Equal(t, "health:steps:trend:d7:2026-04-01Z", key)
	assert.True(t, strings.HasPrefix(key, MetricPrefix(metric.Steps)))
}

func TestKeySeparatesZonesOnTheSameDate(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*60*60)
	utc := Key("trend", metric.Steps, "d1", time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	local := Key("trend", metric.Steps, "d1", time.Date(2026, 3, 14, 12, 0, 0, 0, shanghai))

	assert.NotEqual(t, utc, local)
	assert.True(t, strings.HasSuffix(local, ":2026-03-14+08:00"))
}

func TestMemoryStoreExpiresLazily(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	clock.Advance(time.Minute)
	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok, "entry exactly at ttl is still fresh")
	assert.Equal(t, []byte("v"), got)

	clock.Advance(time.Nanosecond)
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStoreLastWriterWins(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k", []byte("first"), 0))
	require.NoError(t, store.Set(ctx, "k", []byte("second"), 0))

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", string(got))
}

func TestMemoryStorePrefixAndNamespaceClear(t *testing.T) {
	inner := NewMemoryStore()
	ctx := context.Background()
	alice := Namespaced(inner, "alice")
	bob := Namespaced(inner, "bob")
	asOf := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, alice.Set(ctx, Key("trend", metric.Steps, "d7", asOf), []byte("a1"), 0))
	require.NoError(t, alice.Set(ctx, Key("trend", metric.BodyMass, "d7", asOf), []byte("a2"), 0))
	require.NoError(t, bob.Set(ctx, Key("trend", metric.Steps, "d7", asOf), []byte("b1"), 0))

	require.NoError(t, alice.DeletePrefix(ctx, MetricPrefix(metric.Steps)))
	_, ok, _ := alice.Get(ctx, Key("trend", metric.Steps, "d7", asOf))
	assert.False(t, ok)
	_, ok, _ = alice.Get(ctx, Key("trend", metric.BodyMass, "d7", asOf))
	assert.True(t, ok)

	require.NoError(t, alice.Clear(ctx))
	assert.Equal(t, 1, inner.Len())
	_, ok, _ = bob.Get(ctx, Key("trend", metric.Steps, "d7", asOf))
	assert.True(t, ok)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("TEST_REDIS_URL"))
	if addr == "" {
		t.Skip("TEST_REDIS_URL is not set")
	}
	ctx := context.Background()
	store, err := NewRedisStore(ctx, addr)
	require.NoError(t, err)
	defer store.Close()

	key := Key("trend", metric.Steps, "d7", time.Now())
	require.NoError(t, store.Set(ctx, key, []byte("payload"), time.Minute))
	got, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "payload", string(got))

	require.NoError(t, store.DeletePrefix(ctx, MetricPrefix(metric.Steps)))
	_, ok, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
