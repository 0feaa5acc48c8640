package transcript

// KeySet tracks which message-state keys have already been applied to the
// transcript. Membership suppresses redundant re-renders when the transport
// redelivers a frame or the server resends unchanged state.
//
// The set is capped: once cap is reached the oldest keys are evicted in
// insertion order. Old keys only matter for replay of old states, so a
// bounded window is enough and keeps long-lived sessions from growing
// without limit.
type KeySet struct {
	keys  map[string]struct{}
	order []string
	cap   int
}

// DefaultKeyCap bounds the number of remembered message-state keys.
const DefaultKeyCap = 4096

// NewKeySet creates a key set holding at most capacity keys. A capacity of
// zero or less uses DefaultKeyCap.
func NewKeySet(capacity int) *KeySet {
	if capacity <= 0 {
		capacity = DefaultKeyCap
	}
	return &KeySet{
		keys: make(map[string]struct{}),
		cap:  capacity,
	}
}

// Contains reports whether key has been recorded.
func (s *KeySet) Contains(key string) bool {
	_, ok := s.keys[key]
	return ok
}

// Add records key, evicting the oldest key if the set is full.
// Adding an existing key is a no-op.
func (s *KeySet) Add(key string) {
	if _, ok := s.keys[key]; ok {
		return
	}
	if len(s.order) >= s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.keys, oldest)
	}
	s.keys[key] = struct{}{}
	s.order = append(s.order, key)
}

// Len returns the number of recorded keys.
func (s *KeySet) Len() int {
	return len(s.keys)
}

// Reset forgets all keys.
func (s *KeySet) Reset() {
	s.keys = make(map[string]struct{})
	s.order = s.order[:0]
}
