package session

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

// idPrefix marks identifiers generated by this client.
const idPrefix = "chat_"

const suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewID generates a fresh session identifier: a fixed prefix, the current
// time in milliseconds, and a random suffix. Collisions across concurrent
// first-runs are what the suffix is for.
func NewID() string {
	return fmt.Sprintf("%s%d_%s", idPrefix, time.Now().UnixMilli(), randSuffix(9))
}

// HasIDPrefix reports whether id was generated by NewID.
func HasIDPrefix(id string) bool {
	return strings.HasPrefix(id, idPrefix)
}

func randSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand is documented never to fail on supported
		// platforms; fall back to a time-derived suffix anyway.
		return fmt.Sprintf("%09d", time.Now().UnixNano()%1e9)
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return string(out)
}
