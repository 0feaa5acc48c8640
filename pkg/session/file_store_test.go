package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookchat-dev/bookchat/pkg/chat"
)

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestFileStoreIdentityRoundtrip(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()

	_, err := store.LoadIdentity(ctx)
	assert.ErrorIs(t, err, ErrIdentityNotFound)

	require.NoError(t, store.SaveIdentity(ctx, "chat_1_abcdefghi"))

	id, err := store.LoadIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "chat_1_abcdefghi", id)
}

func TestFileStoreMessagesRoundtrip(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()

	msgs, err := store.LoadMessages(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, store.AppendMessage(ctx, "s1", &chat.Message{ID: "m1", Role: chat.RoleUser, Content: "hi"}))
	require.NoError(t, store.AppendMessage(ctx, "s1", &chat.Message{ID: "m2", Role: chat.RoleAssistant, Content: "hello", Status: chat.StatusComplete}))

	msgs, err = store.LoadMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
	assert.Equal(t, chat.StatusComplete, msgs[1].Status)
}

func TestFileStoreMessagesIsolatedPerSession(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "a", &chat.Message{ID: "m1", Role: chat.RoleUser, Content: "for a"}))
	require.NoError(t, store.AppendMessage(ctx, "b", &chat.Message{ID: "m2", Role: chat.RoleUser, Content: "for b"}))

	msgs, err := store.LoadMessages(ctx, "a")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
}

func TestFileStoreClearMessages(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "s1", &chat.Message{ID: "m1", Role: chat.RoleUser, Content: "hi"}))
	require.NoError(t, store.ClearMessages(ctx, "s1"))

	msgs, err := store.LoadMessages(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	// Clearing an already empty session is not an error.
	require.NoError(t, store.ClearMessages(ctx, "s1"))
}

func TestFileStoreRejectsUnsafeSessionIDs(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()

	for _, id := range []string{"../evil", "a/b", `a\b`, ""} {
		assert.Error(t, store.AppendMessage(ctx, id, &chat.Message{ID: "m"}), "id %q", id)
		_, err := store.LoadMessages(ctx, id)
		assert.Error(t, err, "id %q", id)
	}
}

func TestFileStorePrune(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "old", &chat.Message{ID: "m1", Role: chat.RoleUser, Content: "x"}))
	require.NoError(t, store.AppendMessage(ctx, "fresh", &chat.Message{ID: "m2", Role: chat.RoleUser, Content: "y"}))

	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "sessions", "old.jsonl"), stale, stale))

	removed, err := store.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	msgs, err := store.LoadMessages(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msgs, err = store.LoadMessages(ctx, "fresh")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestFileStorePruneKeepsIdentity(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	require.NoError(t, store.SaveIdentity(ctx, "chat_1_abcdefghi"))

	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "identity"), stale, stale))

	_, err = store.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)

	id, err := store.LoadIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "chat_1_abcdefghi", id)
}

func TestFileStoreClosed(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()
	require.NoError(t, store.Close())

	_, err := store.LoadIdentity(ctx)
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.SaveIdentity(ctx, "x"), ErrStoreClosed)
	assert.ErrorIs(t, store.AppendMessage(ctx, "s", &chat.Message{ID: "m"}), ErrStoreClosed)
	assert.ErrorIs(t, store.Ping(ctx), ErrStoreClosed)
}

func TestLoadOrCreateIdentity(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()

	id, err := LoadOrCreateIdentity(ctx, store)
	require.NoError(t, err)
	assert.True(t, HasIDPrefix(id))

	// A second call returns the same persisted identity.
	again, err := LoadOrCreateIdentity(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, id, again)
}
