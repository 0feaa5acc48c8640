package session

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookchat-dev/bookchat/pkg/chat"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client, "", ttl)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStoreIdentityRoundtrip(t *testing.T) {
	store, _ := newRedisStore(t, 0)
	ctx := context.Background()

	_, err := store.LoadIdentity(ctx)
	assert.ErrorIs(t, err, ErrIdentityNotFound)

	require.NoError(t, store.SaveIdentity(ctx, "chat_1_abcdefghi"))

	id, err := store.LoadIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "chat_1_abcdefghi", id)
}

func TestRedisStoreMessagesRoundtrip(t *testing.T) {
	store, _ := newRedisStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "s1", &chat.Message{ID: "m1", Role: chat.RoleUser, Content: "hi"}))
	require.NoError(t, store.AppendMessage(ctx, "s1", &chat.Message{ID: "m2", Role: chat.RoleAssistant, Content: "hello", Status: chat.StatusComplete}))

	msgs, err := store.LoadMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, chat.StatusComplete, msgs[1].Status)
}

func TestRedisStoreClearMessages(t *testing.T) {
	store, mr := newRedisStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "s1", &chat.Message{ID: "m1", Role: chat.RoleUser, Content: "hi"}))
	require.NoError(t, store.ClearMessages(ctx, "s1"))

	msgs, err := store.LoadMessages(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.False(t, mr.Exists("bookchat:messages:s1"))
}

func TestRedisStoreAppendSetsTTL(t *testing.T) {
	store, mr := newRedisStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "s1", &chat.Message{ID: "m1", Role: chat.RoleUser, Content: "hi"}))
	assert.Equal(t, time.Hour, mr.TTL("bookchat:messages:s1"))
}

func TestRedisStorePrune(t *testing.T) {
	store, mr := newRedisStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "old", &chat.Message{ID: "m1", Role: chat.RoleUser, Content: "x"}))
	require.NoError(t, store.AppendMessage(ctx, "fresh", &chat.Message{ID: "m2", Role: chat.RoleUser, Content: "y"}))

	stale := time.Now().Add(-48 * time.Hour).Unix()
	mr.HSet("bookchat:activity", "old", strconv.FormatInt(stale, 10))

	removed, err := store.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.False(t, mr.Exists("bookchat:messages:old"))
	assert.True(t, mr.Exists("bookchat:messages:fresh"))
}

func TestRedisStoreCustomPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client, "other:", 0)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "s1", &chat.Message{ID: "m1", Role: chat.RoleUser, Content: "hi"}))
	assert.True(t, mr.Exists("other:messages:s1"))
}

func TestRedisStoreClosed(t *testing.T) {
	store, _ := newRedisStore(t, 0)
	ctx := context.Background()
	require.NoError(t, store.Close())

	_, err := store.LoadIdentity(ctx)
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.AppendMessage(ctx, "s", &chat.Message{ID: "m"}), ErrStoreClosed)
}
