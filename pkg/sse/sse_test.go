package sse

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParserSingleEvent(t *testing.T) {
	p := NewParser(strings.NewReader("data: {\"id\":\"m1\"}\n\n"))

	event, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"id":"m1"}`, event.Data)

	_, err = p.Next()
	assert.Equal(t, io.EOF, err)
}

func TestParserFields(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Event
	}{
		{
			name:  "event name and id",
			input: "event: message\nid: 42\ndata: hello\n\n",
			want:  Event{ID: "42", Name: "message", Data: "hello"},
		},
		{
			name:  "multi-line data",
			input: "data: line one\ndata: line two\n\n",
			want:  Event{Data: "line one\nline two"},
		},
		{
			name:  "crlf line endings",
			input: "data: hello\r\n\r\n",
			want:  Event{Data: "hello"},
		},
		{
			name:  "no space after colon",
			input: "data:compact\n\n",
			want:  Event{Data: "compact"},
		},
		{
			name:  "comment lines skipped",
			input: ": keep-alive\ndata: payload\n\n",
			want:  Event{Data: "payload"},
		},
		{
			name:  "trailing data without blank line",
			input: "data: tail",
			want:  Event{Data: "tail"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser(strings.NewReader(tt.input))
			event, err := p.Next()
			require.NoError(t, err)
			assert.Equal(t, tt.want, *event)
		})
	}
}

func TestParserSkipsLeadingBlankLines(t *testing.T) {
	p := NewParser(strings.NewReader("\n\ndata: after blanks\n\n"))
	event, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "after blanks", event.Data)
}

func TestStreamDeliversEventsInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, payload := range []string{"one", "two", "three"} {
			_, _ = io.WriteString(w, "data: "+payload+"\n\n")
			flusher.Flush()
		}
	}))
	defer srv.Close()

	stream, err := Dial(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	var got []string
	for {
		event, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, event.Data)
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestDialRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := Dial(context.Background(), srv.Client(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestStreamCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := Dial(ctx, srv.Client(), srv.URL)
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	cancel()

	done := make(chan error, 1)
	go func() {
		_, err := stream.Recv()
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Recv did not observe cancellation")
	}
}
