// Package books tracks the user's saved-book set and keeps it synchronized
// with the backend. Toggles for the same book are coalesced so rapid
// double-clicks converge on one consistent state instead of racing.
package books

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/bookchat-dev/bookchat/pkg/api"
)

// SavedBooks is the client-local mirror of the session's saved books.
// SavedBooks is safe for concurrent use.
type SavedBooks struct {
	api *api.Client
	log zerolog.Logger

	mu  sync.RWMutex
	ids map[int]struct{}

	group singleflight.Group
}

// New creates an empty saved-book set backed by the given API client.
// Call Sync to seed it from the backend.
func New(apiClient *api.Client, logger zerolog.Logger) *SavedBooks {
	return &SavedBooks{
		api: apiClient,
		log: logger,
		ids: make(map[int]struct{}),
	}
}

// Sync replaces the local set with the backend's saved-book list. Called at
// startup to initialize local saved-state.
func (s *SavedBooks) Sync(ctx context.Context) error {
	ids, err := s.api.SavedBooks(ctx)
	if err != nil {
		return fmt.Errorf("sync saved books: %w", err)
	}

	s.mu.Lock()
	s.ids = make(map[int]struct{}, len(ids))
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	s.mu.Unlock()

	s.log.Debug().Int("count", len(ids)).Msg("saved books synced")
	return nil
}

// IsSaved reports whether the book is in the local saved set.
func (s *SavedBooks) IsSaved(bookID int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[bookID]
	return ok
}

// All returns the saved book ids in ascending order.
func (s *SavedBooks) All() []int {
	s.mu.RLock()
	out := make([]int, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Ints(out)
	return out
}

// Toggle flips the saved state of a book on the backend and applies the
// server's answer to the local set. Concurrent toggles of the same book
// share a single in-flight request, so every caller observes the same final
// state. The local set is only updated from the response, never
// optimistically.
func (s *SavedBooks) Toggle(ctx context.Context, bookID int) (*api.SaveResult, error) {
	v, err, _ := s.group.Do(strconv.Itoa(bookID), func() (any, error) {
		res, err := s.api.ToggleSave(ctx, bookID)
		if err != nil {
			return nil, err
		}
		s.apply(bookID, res.Saved)
		return res, nil
	})
	if err != nil {
		return nil, fmt.Errorf("toggle book %d: %w", bookID, err)
	}
	return v.(*api.SaveResult), nil
}

// SaveFromChat saves a book via the chat-triggered save endpoint and applies
// the result to the local set. It implements the save_book action target.
func (s *SavedBooks) SaveFromChat(ctx context.Context, bookID int) (string, error) {
	res, err := s.api.SaveFromChat(ctx, bookID)
	if err != nil {
		return "", fmt.Errorf("save book %d from chat: %w", bookID, err)
	}
	s.apply(bookID, res.Saved)
	return res.Message, nil
}

func (s *SavedBooks) apply(bookID int, saved bool) {
	s.mu.Lock()
	if saved {
		s.ids[bookID] = struct{}{}
	} else {
		delete(s.ids, bookID)
	}
	s.mu.Unlock()
}
