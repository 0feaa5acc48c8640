// Package chat defines the wire and domain types exchanged with the
// book-assistant backend: chat messages, their lifecycle status, and the
// side-channel action payloads attached to streamed events.
package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks a message typed by the user.
	RoleUser Role = "user"
	// RoleAssistant marks a message produced by the assistant.
	RoleAssistant Role = "assistant"
)

// Status describes the lifecycle state of a streamed message.
// The backend pushes the same message id more than once as its status
// advances; a status change is an update to the same logical message.
type Status string

const (
	// StatusNone means the frame carried no status field.
	StatusNone Status = ""
	// StatusThinking marks a provisional placeholder while the assistant
	// is still working. The content field is not meaningful yet.
	StatusThinking Status = "thinking"
	// StatusComplete marks a finished assistant response.
	StatusComplete Status = "complete"
	// StatusError marks a message that represents a failure.
	StatusError Status = "error"
)

// initialStatus is the dedup-key stand-in for an absent status field.
const initialStatus = "initial"

// Message is a single chat message as pushed by the backend stream or
// synthesized locally for optimistic rendering.
type Message struct {
	ID        string   `json:"id"`
	Role      Role     `json:"role"`
	Content   string   `json:"content"`
	Status    Status   `json:"status,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	Actions   *Actions `json:"actions,omitempty"`
}

// StateKey derives the deduplication key for this message state. Two frames
// with the same id and status are the same state and must be applied at most
// once. An absent status maps to "initial" so that the bare message and a
// later status-carrying update produce distinct keys.
func (m *Message) StateKey() string {
	status := string(m.Status)
	if status == "" {
		status = initialStatus
	}
	return m.ID + ":" + status
}

// Provisional reports whether this message state renders as a placeholder
// rather than its literal content.
func (m *Message) Provisional() bool {
	return m.Status == StatusThinking
}

// NewLocalMessage builds a locally-synthesized message with the given id.
// Local ids must be distinguishable from server ids; callers use the
// "local-" prefix convention from the client package.
func NewLocalMessage(id string, role Role, content string, status Status) *Message {
	return &Message{
		ID:        id,
		Role:      role,
		Content:   content,
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// FrameTypeConnected is the control frame the backend pushes once on stream
// open as a connection acknowledgment. It has no transcript effect.
const FrameTypeConnected = "connected"

// Frame is the envelope for a single pushed stream payload: either a
// control frame ({"type":"connected"}) or a Message-shaped object.
type Frame struct {
	// Type is set on control frames and empty on message frames.
	Type      string `json:"type,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	Message
}

// Control reports whether the frame is a connection acknowledgment rather
// than a message.
func (f *Frame) Control() bool {
	return f.Type == FrameTypeConnected
}

// ParseFrame decodes a raw pushed payload. A malformed payload yields an
// error and must be dropped by the caller without any transcript mutation.
func ParseFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse frame: %w", err)
	}
	if f.Type == "" && f.ID == "" {
		return nil, fmt.Errorf("parse frame: missing message id")
	}
	return &f, nil
}
