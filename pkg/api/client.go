// Package api implements the HTTP client for the book-assistant backend:
// the chat send/history/clear endpoints, the saved-books surface, and the
// SSE stream opener. Request/response shapes follow the backend contracts;
// everything behind them (retrieval, inference, persistence) is the
// backend's business.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bookchat-dev/bookchat/pkg/chat"
	"github.com/bookchat-dev/bookchat/pkg/observability"
	"github.com/bookchat-dev/bookchat/pkg/sse"
)

// DefaultTimeout bounds one-shot requests (send, clear, save). The SSE
// stream uses a separate client with no timeout.
const DefaultTimeout = 30 * time.Second

// Config holds client construction options.
type Config struct {
	// BaseURL is the backend root, e.g. "http://localhost:8000".
	BaseURL string
	// Timeout for one-shot requests. Zero uses DefaultTimeout.
	Timeout time.Duration
	// HTTPClient overrides the request client (tests). Its Timeout is
	// left untouched.
	HTTPClient *http.Client
	// StreamClient overrides the streaming client (tests). It must not
	// carry a timeout.
	StreamClient *http.Client
	// Logger for request-level logging.
	Logger zerolog.Logger
}

// Client talks to the book-assistant backend.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
	log          zerolog.Logger
	tracer       trace.Tracer
}

// NewClient creates a backend client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api: base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("api: parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api: unsupported base URL scheme %q", base.Scheme)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	streamClient := cfg.StreamClient
	if streamClient == nil {
		streamClient = &http.Client{}
	}

	return &Client{
		baseURL:      base.String(),
		httpClient:   httpClient,
		streamClient: streamClient,
		log:          cfg.Logger,
		tracer:       otel.Tracer("bookchat/api"),
	}, nil
}

// SendAck is the acknowledgment returned by the send endpoint. The actual
// assistant reply arrives asynchronously on the stream, never here.
type SendAck struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id"`
	SessionID string `json:"session_id"`
}

// HistoryResponse is the stored conversation for a session.
type HistoryResponse struct {
	SessionID string          `json:"session_id"`
	Messages  []*chat.Message `json:"messages"`
	Total     int             `json:"total"`
}

// SavedBooksResponse lists the book ids saved by the current session.
type SavedBooksResponse struct {
	SavedBooks []int `json:"saved_books"`
	Count      int   `json:"count"`
}

// CheckSavedResponse reports whether a single book is saved.
type CheckSavedResponse struct {
	BookID  int  `json:"book_id"`
	IsSaved bool `json:"is_saved"`
}

// SaveResult is the outcome of a save or toggle request.
type SaveResult struct {
	Success bool   `json:"success"`
	Saved   bool   `json:"saved"`
	BookID  int    `json:"book_id"`
	Message string `json:"message"`
}

// OpenStream opens the session's server-push event stream. The caller owns
// the returned stream and must Close it.
func (c *Client) OpenStream(ctx context.Context, sessionID string) (*sse.Stream, error) {
	u := c.baseURL + "/api/chat/stream/" + url.PathEscape(sessionID)
	c.log.Debug().Str("session_id", sessionID).Msg("opening chat stream")
	return sse.Dial(ctx, c.streamClient, u)
}

// Send pushes a user message for asynchronous processing. The message and
// session id travel as query parameters, matching the backend contract.
func (c *Client) Send(ctx context.Context, message, sessionID string) (*SendAck, error) {
	q := url.Values{}
	q.Set("message", message)
	q.Set("session_id", sessionID)
	u := c.baseURL + "/api/chat/send?" + q.Encode()

	var ack SendAck
	if err := c.do(ctx, "chat.send", http.MethodPost, u, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// History fetches up to limit stored messages for the session. A limit of
// zero or less leaves the backend default in place.
func (c *Client) History(ctx context.Context, sessionID string, limit int) (*HistoryResponse, error) {
	u := c.baseURL + "/api/chat/history/" + url.PathEscape(sessionID)
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}

	var resp HistoryResponse
	if err := c.do(ctx, "chat.history", http.MethodGet, u, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearHistory deletes the session's server-side conversation.
func (c *Client) ClearHistory(ctx context.Context, sessionID string) error {
	u := c.baseURL + "/api/chat/clear/" + url.PathEscape(sessionID)
	return c.do(ctx, "chat.clear", http.MethodDelete, u, nil)
}

// SavedBooks returns all saved book ids for the current session.
func (c *Client) SavedBooks(ctx context.Context) ([]int, error) {
	var resp SavedBooksResponse
	if err := c.do(ctx, "books.saved", http.MethodGet, c.baseURL+"/api/saved-books", &resp); err != nil {
		return nil, err
	}
	return resp.SavedBooks, nil
}

// CheckSaved reports whether a single book is saved.
func (c *Client) CheckSaved(ctx context.Context, bookID int) (bool, error) {
	u := c.baseURL + "/api/check-saved/" + strconv.Itoa(bookID)
	var resp CheckSavedResponse
	if err := c.do(ctx, "books.check", http.MethodGet, u, &resp); err != nil {
		return false, err
	}
	return resp.IsSaved, nil
}

// ToggleSave flips the saved state of a book via the page-level toggle
// endpoint.
func (c *Client) ToggleSave(ctx context.Context, bookID int) (*SaveResult, error) {
	u := c.baseURL + "/api/save-book/" + strconv.Itoa(bookID)
	var res SaveResult
	if err := c.do(ctx, "books.toggle", http.MethodPost, u, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SaveFromChat saves a book through the chat-triggered save endpoint. This
// is a distinct backend route from ToggleSave; both are supported.
func (c *Client) SaveFromChat(ctx context.Context, bookID int) (*SaveResult, error) {
	u := c.baseURL + "/api/books/" + strconv.Itoa(bookID) + "/save"
	var res SaveResult
	if err := c.do(ctx, "books.save_from_chat", http.MethodPost, u, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// do runs one traced request and decodes a JSON response into out (out may
// be nil for status-only endpoints).
func (c *Client) do(ctx context.Context, op, method, u string, out any) error {
	ctx, span := c.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("http.method", method),
	))
	defer span.End()

	start := time.Now()
	err := c.doRequest(ctx, method, u, out)
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	observability.RecordAPIRequest(op, status, time.Since(start))

	return err
}

func (c *Client) doRequest(ctx context.Context, method, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, req.URL.Path, resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, req.URL.Path, err)
	}
	return nil
}
