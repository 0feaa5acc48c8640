package client

import (
	"context"

	"github.com/bookchat-dev/bookchat/pkg/chat"
	"github.com/bookchat-dev/bookchat/pkg/transcript"
)

// View is the rendering adapter driven by the session client. The client
// owns all transcript state; the view only mirrors the changes it is told
// about, in the order it is told about them.
//
// View methods are invoked from the client's dispatch goroutine and from
// callers of Send/Clear, and may run while client-internal locks are held:
// implementations must not call back into the client.
type View interface {
	// Append renders a new entry at the end of the transcript.
	Append(e *transcript.Entry)
	// Update re-renders an existing entry in place.
	Update(e *transcript.Entry)
	// Remove drops the entry with the given id (optimistic rollback).
	Remove(id string)
	// Reset replaces the whole rendered transcript.
	Reset(entries []*transcript.Entry)
	// ShowBooks renders auxiliary book cards after the current position.
	ShowBooks(books []chat.BookResult)
	// SetConnState updates the connection-status indicator.
	SetConnState(s ConnState)
}

// Notifier surfaces transient, non-transcript notifications (toasts).
type Notifier interface {
	Info(msg string)
	Error(msg string)
}

// Saver is the external save-toggle collaborator targeted by the save_book
// action.
type Saver interface {
	// SaveFromChat saves a book via the chat-triggered endpoint and
	// returns the backend's user-facing message.
	SaveFromChat(ctx context.Context, bookID int) (string, error)
}

// NopView is a View that ignores everything. Useful for headless use and
// tests.
type NopView struct{}

func (NopView) Append(*transcript.Entry)    {}
func (NopView) Update(*transcript.Entry)    {}
func (NopView) Remove(string)               {}
func (NopView) Reset([]*transcript.Entry)   {}
func (NopView) ShowBooks([]chat.BookResult) {}
func (NopView) SetConnState(ConnState)      {}

// NopNotifier is a Notifier that drops all notifications.
type NopNotifier struct{}

func (NopNotifier) Info(string)  {}
func (NopNotifier) Error(string) {}
