package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIDFormat(t *testing.T) {
	id := NewID()

	assert.True(t, strings.HasPrefix(id, "chat_"), "id %q should carry the chat_ prefix", id)
	parts := strings.Split(id, "_")
	assert.Len(t, parts, 3)
	assert.NotEmpty(t, parts[1], "timestamp part")
	assert.Len(t, parts[2], 9, "random suffix")
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewID()
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %q", id)
		seen[id] = struct{}{}
	}
}

func TestHasIDPrefix(t *testing.T) {
	assert.True(t, HasIDPrefix(NewID()))
	assert.True(t, HasIDPrefix("chat_123_abcdefghi"))
	assert.False(t, HasIDPrefix("session_123"))
	assert.False(t, HasIDPrefix(""))
}
