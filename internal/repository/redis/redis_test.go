package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/agent-platform/internal/domain"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Client) {
	mr := miniredis.RunT(t)
	client := NewClientFrom(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestConversationStore_Lifecycle(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewConversationStore(client, 0)
	ctx := context.Background()
	key := domain.ConversationKey{AppName: "demo", UserID: "alice", SessionID: "s-1"}

	missing, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, missing)

	created, err := store.Create(ctx, key, map[string]any{"step": 1})
	require.NoError(t, err)
	assert.Equal(t, key, created.ConversationKey)
	assert.True(t, mr.Exists("conversation:demo:alice:s-1"))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, float64(1), got.State["step"])
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))

	_, err = store.Create(ctx, key, nil)
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists))

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key))
	gone, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestConversationStore_TTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewConversationStore(client, time.Minute)
	ctx := context.Background()
	key := domain.ConversationKey{AppName: "demo", UserID: "bob", SessionID: "s-2"}

	_, err := store.Create(ctx, key, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL("conversation:demo:bob:s-2"))

	mr.FastForward(2 * time.Minute)
	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestConversationStore_List(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewConversationStore(client, 0)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for _, k := range []domain.ConversationKey{
		{AppName: "demo", UserID: "a", SessionID: "z-first"},
		{AppName: "demo", UserID: "a", SessionID: "a-second"},
		{AppName: "demo", UserID: "b", SessionID: "2"},
		{AppName: "demo", UserID: "a:b", SessionID: "3"},
		{AppName: "demo:a", UserID: "x", SessionID: "4"},
		{AppName: "other", UserID: "a", SessionID: "5"},
		{AppName: "d*", UserID: "a", SessionID: "6"},
	} {
		_, err := store.Create(ctx, k, nil)
		require.NoError(t, err)
	}

	convs, err := store.List(ctx, "demo", "a")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "z-first", convs[0].SessionID)
	assert.Equal(t, "a-second", convs[1].SessionID)

	glob, err := store.List(ctx, "d*", "a")
	require.NoError(t, err)
	require.Len(t, glob, 1)
	assert.Equal(t, "6", glob[0].SessionID)

	none, err := store.List(ctx, "demo", "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestConversationStore_GetError(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewConversationStore(client, 0)
	require.NoError(t, store.Ping(context.Background()))

	mr.SetError("server unavailable")
	_, err := store.Get(context.Background(), domain.ConversationKey{AppName: "demo", UserID: "a", SessionID: "1"})
	assert.Error(t, err)
}

func TestRateLimiter_Allow(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewRateLimiter(client, 2, 1)
	fixed := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, remaining, reset, err := limiter.Allow(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 2-i, remaining)
		assert.Equal(t, time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC), reset)
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)

	allowed, _, _, err = limiter.Allow(ctx, "user-2")
	require.NoError(t, err)
	assert.True(t, allowed)

	fixed = fixed.Add(time.Minute)
	allowed, remaining, _, err = limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 2, remaining)
	assert.Equal(t, 3, limiter.Limit())
}
