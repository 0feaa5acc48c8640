// Package session provides client-local persistence for the chat session:
// the session identifier that survives across runs, a local mirror of the
// conversation, and a scheduled janitor pruning stale session data.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bookchat-dev/bookchat/pkg/chat"
)

// Common errors for store operations.
var (
	// ErrIdentityNotFound is returned when no session identity has been
	// persisted yet.
	ErrIdentityNotFound = errors.New("session identity not found")
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("session store is closed")
)

// Store abstracts client-local session persistence.
// Implementations must be safe for concurrent use.
type Store interface {
	// LoadIdentity returns the persisted session identifier.
	// Returns ErrIdentityNotFound if none has been saved.
	LoadIdentity(ctx context.Context) (string, error)

	// SaveIdentity persists the session identifier.
	SaveIdentity(ctx context.Context, sessionID string) error

	// AppendMessage appends a message to the session's local mirror.
	AppendMessage(ctx context.Context, sessionID string, msg *chat.Message) error

	// LoadMessages returns the session's mirrored messages in order.
	LoadMessages(ctx context.Context, sessionID string) ([]*chat.Message, error)

	// ClearMessages removes the session's mirrored messages.
	ClearMessages(ctx context.Context, sessionID string) error

	// Prune removes session data older than maxAge and reports how many
	// sessions were removed.
	Prune(ctx context.Context, maxAge time.Duration) (int, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// LoadOrCreateIdentity returns the persisted session identifier, generating
// and persisting a fresh one on first use. The identity is created once and
// reused indefinitely; this component never rotates or expires it.
func LoadOrCreateIdentity(ctx context.Context, store Store) (string, error) {
	id, err := store.LoadIdentity(ctx)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrIdentityNotFound) {
		return "", fmt.Errorf("load session identity: %w", err)
	}

	id = NewID()
	if err := store.SaveIdentity(ctx, id); err != nil {
		return "", fmt.Errorf("save session identity: %w", err)
	}
	return id, nil
}
