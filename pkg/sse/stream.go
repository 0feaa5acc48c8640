package sse

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Stream is a live server-sent event connection. Events are read by a
// background goroutine and delivered through Recv in arrival order.
type Stream struct {
	ctx    context.Context
	cancel context.CancelFunc
	body   io.Closer
	events chan *Event

	err       error
	errMu     sync.Mutex
	closeOnce sync.Once
}

// Dial opens an SSE connection to url using client. The returned stream
// stays open until the server closes it, the context is canceled, or Close
// is called. The http.Client must not carry a request timeout: the
// connection is long-lived by design.
func Dial(ctx context.Context, client *http.Client, url string) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req) // #nosec G107 - url built from validated config
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("open stream: unexpected status %d", resp.StatusCode)
	}

	s := newStream(ctx, resp.Body)
	go s.readLoop(NewParser(resp.Body))
	return s, nil
}

func newStream(ctx context.Context, body io.Closer) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	return &Stream{
		ctx:    ctx,
		cancel: cancel,
		body:   body,
		events: make(chan *Event, 64),
	}
}

// readLoop drains the parser into the event channel until the stream ends.
func (s *Stream) readLoop(p *Parser) {
	defer close(s.events)
	for {
		event, err := p.Next()
		if err != nil {
			if err != io.EOF {
				s.setErr(err)
			}
			return
		}
		select {
		case <-s.ctx.Done():
			return
		case s.events <- event:
		}
	}
}

// Recv returns the next event in arrival order. It returns io.EOF when the
// server closed the stream cleanly, the stream's transport error if it
// dropped, or the context error on cancellation.
func (s *Stream) Recv() (*Event, error) {
	select {
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	case event, ok := <-s.events:
		if !ok {
			if err := s.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		return event, nil
	}
}

// Err returns the transport error that ended the stream, if any.
func (s *Stream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Stream) setErr(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}

// Close terminates the stream and releases the underlying connection.
// Close is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.body.Close()
	})
	return nil
}
