// Package transcript implements the deduplicating reconciliation state
// machine for a chat session: an ordered, append-only sequence of entries
// keyed by message id, updated in place as message states advance.
//
// The package is pure state transition logic. It performs no I/O and knows
// nothing about rendering; callers observe the returned Change and drive
// their own view.
package transcript

import (
	"time"

	"github.com/bookchat-dev/bookchat/pkg/chat"
)

// Change describes the transcript effect of applying one message state.
type Change int

const (
	// ChangeNone means the state was already applied (or is otherwise
	// redundant) and the transcript is untouched.
	ChangeNone Change = iota
	// ChangeAppend means a new entry was appended at the end.
	ChangeAppend
	// ChangeUpdate means an existing entry was updated in place.
	ChangeUpdate
)

func (c Change) String() string {
	switch c {
	case ChangeAppend:
		return "append"
	case ChangeUpdate:
		return "update"
	default:
		return "none"
	}
}

// Entry is one rendered transcript position. At most one entry exists per
// distinct message id; entry order never changes once appended.
type Entry struct {
	ID      string
	Role    chat.Role
	Content string
	Status  chat.Status
	// Provisional marks an entry whose content is a placeholder (the
	// assistant is still thinking). It is cleared by the next state of
	// the same id.
	Provisional bool
	Timestamp   string
}

// Transcript is the ordered message view for one chat session.
// Transcript is not safe for concurrent use; the owning client serializes
// access through its dispatch loop.
type Transcript struct {
	entries []*Entry
	index   map[string]int
	seen    *KeySet
}

// New creates an empty transcript whose processed-key set holds at most
// keyCap keys (0 uses DefaultKeyCap).
func New(keyCap int) *Transcript {
	return &Transcript{
		index: make(map[string]int),
		seen:  NewKeySet(keyCap),
	}
}

// Apply reconciles one message state into the transcript.
//
// A state whose key (id + status) was already applied is dropped and yields
// ChangeNone. A novel state for an existing id updates that entry in place;
// a novel id appends a new entry at the end. A thinking status marks the
// entry provisional instead of taking the content field literally; any other
// status stores the content and clears the provisional mark.
func (t *Transcript) Apply(msg *chat.Message) Change {
	key := msg.StateKey()
	if t.seen.Contains(key) {
		return ChangeNone
	}
	t.seen.Add(key)

	if i, ok := t.index[msg.ID]; ok {
		e := t.entries[i]
		e.Status = msg.Status
		e.Timestamp = msg.Timestamp
		if msg.Provisional() {
			e.Provisional = true
		} else {
			e.Content = msg.Content
			e.Provisional = false
		}
		return ChangeUpdate
	}

	e := &Entry{
		ID:        msg.ID,
		Role:      msg.Role,
		Status:    msg.Status,
		Timestamp: msg.Timestamp,
	}
	if msg.Provisional() {
		e.Provisional = true
	} else {
		e.Content = msg.Content
	}
	t.index[msg.ID] = len(t.entries)
	t.entries = append(t.entries, e)
	return ChangeAppend
}

// AppendLocal appends a locally-synthesized entry (optimistic user message
// or synthetic error bubble) without touching the processed-key set. Local
// ids never collide with server ids, so the id index stays consistent.
func (t *Transcript) AppendLocal(e *Entry) {
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	t.index[e.ID] = len(t.entries)
	t.entries = append(t.entries, e)
}

// Remove deletes the entry with the given id, preserving the order of the
// remaining entries. It reports whether an entry was removed. Used to roll
// back an optimistic append after a failed send.
func (t *Transcript) Remove(id string) bool {
	i, ok := t.index[id]
	if !ok {
		return false
	}
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
	delete(t.index, id)
	for j := i; j < len(t.entries); j++ {
		t.index[t.entries[j].ID] = j
	}
	return true
}

// Reset empties the transcript and the processed-key set, then seeds the
// given welcome entry if non-nil. Either the whole reset happens or none of
// it; there is no partial state.
func (t *Transcript) Reset(welcome *Entry) {
	t.entries = t.entries[:0]
	t.index = make(map[string]int)
	t.seen.Reset()
	if welcome != nil {
		t.AppendLocal(welcome)
	}
}

// Get returns the entry for id, if present.
func (t *Transcript) Get(id string) (*Entry, bool) {
	i, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return t.entries[i], true
}

// Entries returns the entries in order. The slice is a copy; the entries
// are shared.
func (t *Transcript) Entries() []*Entry {
	out := make([]*Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	return len(t.entries)
}

// SeenKeys returns the number of processed message-state keys.
func (t *Transcript) SeenKeys() int {
	return t.seen.Len()
}
