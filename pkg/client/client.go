// Package client implements the streaming chat session client: one
// long-lived server-push connection per session, a deduplicating transcript
// reconciliation loop, a bounded reconnect policy, optimistic sends with
// rollback, and side-channel action dispatch.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/bookchat-dev/bookchat/pkg/api"
	"github.com/bookchat-dev/bookchat/pkg/chat"
	"github.com/bookchat-dev/bookchat/pkg/observability"
	"github.com/bookchat-dev/bookchat/pkg/sse"
	"github.com/bookchat-dev/bookchat/pkg/transcript"
)

// ConnState is the stream connection state.
type ConnState int

const (
	// StateDisconnected means no stream is open and none is pending.
	StateDisconnected ConnState = iota
	// StateConnecting means a stream dial is in progress.
	StateConnecting
	// StateConnected means the stream is live.
	StateConnected
	// StateError means the stream dropped and a reconnect may be pending.
	StateError
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "disconnected"
	}
}

// ErrThrottled is returned when a send is rejected by the local rate guard.
var ErrThrottled = errors.New("send throttled")

// localIDPrefix distinguishes locally-synthesized message ids from server
// ids.
const localIDPrefix = "local-"

// Defaults for Config zero values.
const (
	DefaultReconnectDelay = 5 * time.Second
	DefaultWelcomeText    = "Hi! I'm your book assistant. Ask me about books or tell me what you like to read."
	DefaultSendErrorText  = "Sorry, I couldn't send your message. Please try again."
)

// Config tunes a SessionClient.
type Config struct {
	// ReconnectDelay is the fixed delay before the single reconnect
	// attempt scheduled after a stream drop. Zero uses
	// DefaultReconnectDelay.
	ReconnectDelay time.Duration
	// WelcomeText seeds the transcript after a successful clear and on
	// an empty history. Zero uses DefaultWelcomeText.
	WelcomeText string
	// SendErrorText is the synthetic assistant bubble shown when a send
	// request fails. Zero uses DefaultSendErrorText.
	SendErrorText string
	// SendRate and SendBurst bound outgoing sends per second. A zero
	// rate disables the guard.
	SendRate  float64
	SendBurst int
	// KeyCap bounds the processed-key set (0 uses the transcript
	// package default).
	KeyCap int
}

func (c *Config) setDefaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.WelcomeText == "" {
		c.WelcomeText = DefaultWelcomeText
	}
	if c.SendErrorText == "" {
		c.SendErrorText = DefaultSendErrorText
	}
}

// SessionClient maintains a resilient streaming connection for one chat
// session and presents a deduplicated, monotonically-updating transcript
// through its View.
//
// A client owns at most one active stream. Opening a new connection tears
// down the previous one first; there are no leaked streams.
type SessionClient struct {
	cfg       Config
	api       *api.Client
	sessionID string
	view      View
	notifier  Notifier
	saver     Saver
	log       zerolog.Logger
	limiter   *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	tr        *transcript.Transcript
	state     ConnState
	stream    *sse.Stream
	reconnect *time.Timer
	open      bool
	// gen numbers connection attempts so that callbacks from a torn-down
	// stream cannot disturb its successor.
	gen int
}

// New creates a session client. view, notifier, and saver may be nil; nil
// ports are replaced with no-ops.
func New(apiClient *api.Client, sessionID string, cfg Config, view View, notifier Notifier, saver Saver, logger zerolog.Logger) (*SessionClient, error) {
	if apiClient == nil {
		return nil, errors.New("client: api client is required")
	}
	if sessionID == "" {
		return nil, errors.New("client: session id is required")
	}
	cfg.setDefaults()

	if view == nil {
		view = NopView{}
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}

	c := &SessionClient{
		cfg:       cfg,
		api:       apiClient,
		sessionID: sessionID,
		view:      view,
		notifier:  notifier,
		saver:     saver,
		log:       logger.With().Str("session_id", sessionID).Logger(),
		tr:        transcript.New(cfg.KeyCap),
		state:     StateDisconnected,
	}
	if cfg.SendRate > 0 {
		burst := cfg.SendBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), burst)
	}
	return c, nil
}

// SessionID returns the session identifier this client is bound to.
func (c *SessionClient) SessionID() string {
	return c.sessionID
}

// State returns the current connection state.
func (c *SessionClient) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Entries returns the current transcript entries in order.
func (c *SessionClient) Entries() []*transcript.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tr.Entries()
}

// Open establishes the streaming connection and keeps it alive until Close.
// Calling Open on an already-open client reconnects.
func (c *SessionClient) Open(ctx context.Context) {
	c.mu.Lock()
	if !c.open {
		c.open = true
		c.ctx, c.cancel = context.WithCancel(ctx)
	}
	c.mu.Unlock()
	c.connect()
}

// Close terminates the active stream, cancels any pending reconnect, and
// marks the client closed. Reopening establishes a fresh connection rather
// than resuming.
func (c *SessionClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return
	}
	c.open = false
	c.gen++
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	if c.stream != nil {
		_ = c.stream.Close()
		c.stream = nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.setStateLocked(StateDisconnected)
	c.log.Debug().Msg("session client closed")
}

// connect tears down any previous stream and dials a fresh one. It never
// blocks the caller on the handshake longer than the dial itself.
func (c *SessionClient) connect() {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	if c.stream != nil {
		_ = c.stream.Close()
		c.stream = nil
	}
	c.setStateLocked(StateConnecting)
	ctx := c.ctx
	c.mu.Unlock()

	stream, err := c.api.OpenStream(ctx, c.sessionID)

	c.mu.Lock()
	if c.gen != gen || !c.open {
		// A newer connect or Close superseded this attempt.
		c.mu.Unlock()
		if stream != nil {
			_ = stream.Close()
		}
		return
	}
	if err != nil {
		c.mu.Unlock()
		c.log.Warn().Err(err).Msg("stream dial failed")
		c.onDisconnect(gen)
		return
	}
	c.stream = stream
	c.setStateLocked(StateConnected)
	c.mu.Unlock()

	c.log.Debug().Msg("stream connected")
	go c.dispatch(ctx, stream, gen)
}

// dispatch is the single consumption loop for one connection. Events are
// applied strictly in arrival order; the server is the ordering authority.
func (c *SessionClient) dispatch(ctx context.Context, stream *sse.Stream, gen int) {
	for {
		event, err := stream.Recv()
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.log.Warn().Err(err).Msg("stream dropped")
			c.onDisconnect(gen)
			return
		}
		c.handleEvent(event)
	}
}

// onDisconnect marks the connection failed and schedules exactly one
// reconnect attempt, unless the client is closed or a newer connection
// already owns the state.
func (c *SessionClient) onDisconnect(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	if c.stream != nil {
		_ = c.stream.Close()
		c.stream = nil
	}
	c.setStateLocked(StateError)
	if !c.open {
		return
	}
	if c.reconnect != nil {
		// A reconnect is already pending for this disconnection.
		return
	}
	observability.RecordReconnect()
	c.log.Info().Dur("delay", c.cfg.ReconnectDelay).Msg("reconnect scheduled")
	c.reconnect = time.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.mu.Lock()
		c.reconnect = nil
		if !c.open || c.state == StateConnected || c.state == StateConnecting {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		c.connect()
	})
}

func (c *SessionClient) handleEvent(event *sse.Event) {
	frame, err := chat.ParseFrame([]byte(event.Data))
	if err != nil {
		observability.RecordParseError()
		c.log.Warn().Err(err).Str("data", truncate(event.Data, 256)).Msg("dropping malformed frame")
		return
	}
	if frame.Control() {
		observability.RecordStreamEvent("connected")
		c.log.Debug().Msg("stream acknowledged")
		return
	}
	observability.RecordStreamEvent("message")

	msg := &frame.Message

	c.mu.Lock()
	change := c.tr.Apply(msg)
	var entry *transcript.Entry
	if change != transcript.ChangeNone {
		entry, _ = c.tr.Get(msg.ID)
	}
	size := c.tr.Len()
	c.mu.Unlock()
	observability.SetTranscriptEntries(size)

	switch change {
	case transcript.ChangeNone:
		observability.RecordDedupDrop()
		return
	case transcript.ChangeAppend:
		c.view.Append(entry)
	case transcript.ChangeUpdate:
		c.view.Update(entry)
	}

	// Actions ride along with the message but render independently of the
	// transcript, after the primary update.
	if msg.Actions != nil {
		c.dispatchActions(msg.Actions)
	}
}

func (c *SessionClient) dispatchActions(actions *chat.Actions) {
	switch actions.Type {
	case chat.ActionBookResults:
		c.view.ShowBooks(actions.Books)
	case chat.ActionSaveBook:
		if c.saver == nil {
			c.log.Warn().Int("book_id", actions.BookID).Msg("save_book action with no saver configured")
			return
		}
		bookID := actions.BookID
		go func() {
			msg, err := c.saver.SaveFromChat(c.ctx, bookID)
			if err != nil {
				c.log.Warn().Err(err).Int("book_id", bookID).Msg("chat-triggered save failed")
				c.notifier.Error("Could not save the book. Please try again.")
				return
			}
			if msg == "" {
				msg = "Book saved to your list"
			}
			c.notifier.Info(msg)
		}()
	default:
		c.log.Warn().Str("type", actions.Type).Msg("unknown action payload")
	}
}

// Send pushes a user message. The typed text appears in the transcript
// immediately, before any network round-trip; a failed request removes the
// optimistic entry and replaces it with a synthetic assistant error bubble.
// Empty input (after trimming) is a silent no-op with no network call.
func (c *SessionClient) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if c.limiter != nil && !c.limiter.Allow() {
		c.notifier.Error("You're sending messages too quickly. Give it a moment.")
		return ErrThrottled
	}

	tempID := localIDPrefix + uuid.New().String()
	entry := &transcript.Entry{
		ID:      tempID,
		Role:    chat.RoleUser,
		Content: text,
	}
	c.mu.Lock()
	c.tr.AppendLocal(entry)
	c.mu.Unlock()
	c.view.Append(entry)

	if _, err := c.api.Send(ctx, text, c.sessionID); err != nil {
		c.log.Warn().Err(err).Msg("send failed, rolling back optimistic entry")
		errEntry := &transcript.Entry{
			ID:      localIDPrefix + uuid.New().String(),
			Role:    chat.RoleAssistant,
			Content: c.cfg.SendErrorText,
			Status:  chat.StatusError,
		}
		c.mu.Lock()
		c.tr.Remove(tempID)
		c.tr.AppendLocal(errEntry)
		c.mu.Unlock()
		c.view.Remove(tempID)
		c.view.Append(errEntry)
		// Failure is contained: the user sees it as a chat bubble.
		return nil
	}
	return nil
}

// Clear deletes the session's server-side history. On success the
// transcript and processed-key set are reset and a single welcome message
// is reseeded; on failure nothing changes and a toast is raised.
func (c *SessionClient) Clear(ctx context.Context) error {
	if err := c.api.ClearHistory(ctx, c.sessionID); err != nil {
		c.notifier.Error("Could not clear chat history. Please try again.")
		return fmt.Errorf("clear history: %w", err)
	}

	c.mu.Lock()
	c.tr.Reset(c.welcomeEntry())
	entries := c.tr.Entries()
	c.mu.Unlock()
	c.view.Reset(entries)
	observability.SetTranscriptEntries(len(entries))
	return nil
}

// SeedHistory backfills the transcript from the backend's stored history.
// If the history is empty it seeds the welcome message instead.
func (c *SessionClient) SeedHistory(ctx context.Context, limit int) error {
	resp, err := c.api.History(ctx, c.sessionID, limit)
	if err != nil {
		return fmt.Errorf("seed history: %w", err)
	}

	c.mu.Lock()
	for _, msg := range resp.Messages {
		c.tr.Apply(msg)
	}
	if c.tr.Len() == 0 {
		c.tr.AppendLocal(c.welcomeEntry())
	}
	entries := c.tr.Entries()
	c.mu.Unlock()
	c.view.Reset(entries)
	observability.SetTranscriptEntries(len(entries))
	return nil
}

func (c *SessionClient) welcomeEntry() *transcript.Entry {
	return &transcript.Entry{
		ID:      localIDPrefix + "welcome",
		Role:    chat.RoleAssistant,
		Content: c.cfg.WelcomeText,
	}
}

// setStateLocked updates the connection state and indicator. Callers hold
// c.mu.
func (c *SessionClient) setStateLocked(s ConnState) {
	c.state = s
	observability.SetStreamConnected(s == StateConnected)
	c.view.SetConnState(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
