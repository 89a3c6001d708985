package state

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/tirtabot/internal/types"
)

func newRedisStore(t *testing.T) (*RedisStore, *fakeClock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	clock := newFakeClock()
	return NewRedisStore(client, WithTTL(time.Minute), WithClock(clock.Now)), clock, mr
}

func TestRedisStoreLifecycle(t *testing.T) {
	store, clock, _ := newRedisStore(t)
	ctx := context.Background()
	sender := types.NewSenderID("telegram", "42")

	got, err := store.Get(ctx, sender)
	require.NoError(t, err)
	assert.Nil(t, got)

	started, err := store.Start(ctx, sender)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	require.NoError(t, store.UpdateTopic(ctx, sender, types.TopicCustomer))
	require.NoError(t, store.UpdateSubject(ctx, sender, "0101010001"))

	got, err = store.Get(ctx, sender)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, started.ID, got.ID)
	assert.Equal(t, sender, got.Sender)
	assert.Equal(t, types.TopicCustomer, got.Topic)
	assert.Equal(t, "0101010001", got.Subject)
	assert.True(t, got.ExpiresAt.Equal(clock.Now().Add(time.Minute)), "expiration should slide on update")
}

func TestRedisStoreExpiryIsStrict(t *testing.T) {
	store, clock, _ := newRedisStore(t)
	ctx := context.Background()
	sender := types.NewSenderID("telegram", "42")

	_, err := store.Start(ctx, sender)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	got, err := store.Get(ctx, sender)
	require.NoError(t, err)
	assert.Nil(t, got, "a session expiring exactly now is expired")

	require.NoError(t, store.UpdateTopic(ctx, sender, types.TopicBill))
	got, err = store.Get(ctx, sender)
	require.NoError(t, err)
	assert.Nil(t, got, "updates must not revive expired rows")
}

func TestRedisStoreLatestRowWins(t *testing.T) {
	store, clock, _ := newRedisStore(t)
	ctx := context.Background()
	sender := types.NewSenderID("telegram", "42")

	_, err := store.Start(ctx, sender)
	require.NoError(t, err)
	require.NoError(t, store.UpdateTopic(ctx, sender, types.TopicHistory))

	clock.Advance(10 * time.Second)
	second, err := store.Start(ctx, sender)
	require.NoError(t, err)

	got, err := store.Get(ctx, sender)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, types.TopicNone, got.Topic)
}

func TestRedisStoreResetWinsExpirationTie(t *testing.T) {
	store, _, _ := newRedisStore(t)
	ctx := context.Background()
	sender := types.NewSenderID("telegram", "42")

	// The clock never moves, so every row shares one expiration.
	for i := 0; i < 20; i++ {
		_, err := store.Start(ctx, sender)
		require.NoError(t, err)
		require.NoError(t, store.UpdateTopic(ctx, sender, types.TopicCustomer))
		require.NoError(t, store.UpdateSubject(ctx, sender, "0101010001"))

		reset, err := store.Start(ctx, sender)
		require.NoError(t, err)

		got, err := store.Get(ctx, sender)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, reset.ID, got.ID, "round %d", i)
		assert.Equal(t, types.TopicNone, got.Topic)
		assert.Empty(t, got.Subject)
	}
}

func TestRedisStoreIndexExpiryOnlyExtends(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	clock := newFakeClock()
	long := NewRedisStore(client, WithTTL(10*time.Minute), WithClock(clock.Now))
	short := NewRedisStore(client, WithTTL(time.Minute), WithClock(clock.Now))
	ctx := context.Background()
	sender := types.NewSenderID("telegram", "42")

	first, err := long.Start(ctx, sender)
	require.NoError(t, err)
	_, err = short.Start(ctx, sender)
	require.NoError(t, err)

	assert.Greater(t, mr.TTL(indexKey(sender)), 9*time.Minute, "index must outlive its latest row")

	mr.FastForward(2 * time.Minute)
	clock.Advance(2 * time.Minute)

	got, err := short.Get(ctx, sender)
	require.NoError(t, err)
	require.NotNil(t, got, "row with the later expiration must survive a shorter ttl")
	assert.Equal(t, first.ID, got.ID)
}

func TestRedisStoreSendersAreIsolated(t *testing.T) {
	store, _, _ := newRedisStore(t)
	ctx := context.Background()
	a := types.NewSenderID("telegram", "1")
	b := types.NewSenderID("telegram", "2")

	_, err := store.Start(ctx, a)
	require.NoError(t, err)
	require.NoError(t, store.UpdateTopic(ctx, a, types.TopicBill))

	got, err := store.Get(ctx, b)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStorePruneExpired(t *testing.T) {
	store, clock, mr := newRedisStore(t)
	ctx := context.Background()

	_, err := store.Start(ctx, types.NewSenderID("telegram", "1"))
	require.NoError(t, err)
	_, err = store.Start(ctx, types.NewSenderID("telegram", "2"))
	require.NoError(t, err)

	clock.Advance(45 * time.Second)
	kept, err := store.Start(ctx, types.NewSenderID("telegram", "3"))
	require.NoError(t, err)

	removed, err := store.PruneExpired(ctx, clock.Now().Add(20*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	assert.True(t, mr.Exists(rowKey(string(kept.ID))))

	removed, err = store.PruneExpired(ctx, clock.Now().Add(20*time.Second))
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, _, mr := newRedisStore(t)
	mr.Close()

	_, err := store.Get(context.Background(), types.NewSenderID("telegram", "42"))
	assert.Error(t, err)
}
