package session

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bookchat-dev/bookchat/pkg/chat"
)

// ErrInvalidPathComponent is returned when a session id contains unsafe
// characters.
var ErrInvalidPathComponent = errors.New("invalid path component: contains path separator or traversal sequence")

// validatePathComponent checks that a string is safe to use as a path
// component. It rejects empty strings, path separators, and traversal
// sequences.
func validatePathComponent(s string) error {
	if s == "" {
		return errors.New("path component cannot be empty")
	}
	if strings.ContainsAny(s, `/\`) || strings.Contains(s, "..") {
		return ErrInvalidPathComponent
	}
	return nil
}

// FileStore implements Store using plain files.
// Storage layout:
//
//	~/.bookchat/
//	  ├── identity                 # persisted session id
//	  └── sessions/
//	      └── <session-id>.jsonl   # mirrored messages, one per line
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
	closed  bool
}

// NewFileStore creates a file-based store. If baseDir is empty, it uses
// ~/.bookchat.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".bookchat")
	}

	if err := os.MkdirAll(filepath.Join(baseDir, "sessions"), 0700); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	return &FileStore{baseDir: baseDir}, nil
}

// LoadIdentity returns the persisted session identifier.
func (f *FileStore) LoadIdentity(ctx context.Context) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return "", ErrStoreClosed
	}

	data, err := os.ReadFile(f.identityPath())
	if os.IsNotExist(err) {
		return "", ErrIdentityNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read identity: %w", err)
	}

	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", ErrIdentityNotFound
	}
	return id, nil
}

// SaveIdentity persists the session identifier.
func (f *FileStore) SaveIdentity(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}
	if err := validatePathComponent(sessionID); err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}

	if err := os.WriteFile(f.identityPath(), []byte(sessionID+"\n"), 0600); err != nil {
		return fmt.Errorf("write identity: %w", err)
	}
	return nil
}

// AppendMessage appends a message to the session's local mirror.
func (f *FileStore) AppendMessage(ctx context.Context, sessionID string, msg *chat.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}
	if err := validatePathComponent(sessionID); err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	path := f.messagesPath(sessionID)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // #nosec G304 - path components validated
	if err != nil {
		return fmt.Errorf("open session file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// LoadMessages returns the session's mirrored messages in order.
func (f *FileStore) LoadMessages(ctx context.Context, sessionID string) ([]*chat.Message, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStoreClosed
	}
	if err := validatePathComponent(sessionID); err != nil {
		return nil, fmt.Errorf("invalid session id: %w", err)
	}

	file, err := os.Open(f.messagesPath(sessionID)) // #nosec G304 - path components validated
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open session file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var messages []*chat.Message
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var msg chat.Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return nil, fmt.Errorf("parse stored message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	return messages, nil
}

// ClearMessages removes the session's mirrored messages.
func (f *FileStore) ClearMessages(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}
	if err := validatePathComponent(sessionID); err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}

	err := os.Remove(f.messagesPath(sessionID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// Prune removes mirrored sessions that have not been written to within
// maxAge. The persisted identity is never pruned.
func (f *FileStore) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, ErrStoreClosed
	}

	cutoff := time.Now().Add(-maxAge)
	dir := filepath.Join(f.baseDir, "sessions")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read sessions directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Ping verifies the base directory is accessible.
func (f *FileStore) Ping(ctx context.Context) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return ErrStoreClosed
	}
	_, err := os.Stat(f.baseDir)
	return err
}

// Close marks the store closed.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FileStore) identityPath() string {
	return filepath.Join(f.baseDir, "identity")
}

func (f *FileStore) messagesPath(sessionID string) string {
	return filepath.Join(f.baseDir, "sessions", sessionID+".jsonl")
}
