package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestSendEncodesQueryParams(t *testing.T) {
	var gotMethod, gotPath, gotMessage, gotSession string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotMessage = r.URL.Query().Get("message")
		gotSession = r.URL.Query().Get("session_id")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "message_id": "m-42", "session_id": "chat_1_abc"}`))
	})

	ack, err := c.Send(context.Background(), "what should I read?", "chat_1_abc")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/chat/send", gotPath)
	assert.Equal(t, "what should I read?", gotMessage)
	assert.Equal(t, "chat_1_abc", gotSession)
	assert.True(t, ack.Success)
	assert.Equal(t, "m-42", ack.MessageID)
}

func TestHistoryLimit(t *testing.T) {
	var gotPath, gotLimit string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotLimit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"session_id": "chat_1_abc",
			"messages": [
				{"id": "m1", "role": "user", "content": "hi"},
				{"id": "m2", "role": "assistant", "content": "hello", "status": "complete"}
			],
			"total": 2
		}`))
	})

	resp, err := c.History(context.Background(), "chat_1_abc", 10)
	require.NoError(t, err)

	assert.Equal(t, "/api/chat/history/chat_1_abc", gotPath)
	assert.Equal(t, "10", gotLimit)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "m1", resp.Messages[0].ID)
	assert.Equal(t, 2, resp.Total)
}

func TestHistoryZeroLimitOmitsParam(t *testing.T) {
	var sawLimit bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, sawLimit = r.URL.Query()["limit"]
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"session_id": "s", "messages": [], "total": 0}`))
	})

	_, err := c.History(context.Background(), "s", 0)
	require.NoError(t, err)
	assert.False(t, sawLimit)
}

func TestClearHistory(t *testing.T) {
	var gotMethod, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.ClearHistory(context.Background(), "chat_1_abc"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/api/chat/clear/chat_1_abc", gotPath)
}

func TestSavedBooks(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/saved-books", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"saved_books": [3, 7, 11], "count": 3}`))
	})

	ids, err := c.SavedBooks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{3, 7, 11}, ids)
}

func TestCheckSaved(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/check-saved/7", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"book_id": 7, "is_saved": true}`))
	})

	saved, err := c.CheckSaved(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, saved)
}

func TestToggleSave(t *testing.T) {
	var gotMethod, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "saved": false, "book_id": 7, "message": "Book removed"}`))
	})

	res, err := c.ToggleSave(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/save-book/7", gotPath)
	assert.False(t, res.Saved)
	assert.Equal(t, "Book removed", res.Message)
}

func TestSaveFromChatUsesDistinctRoute(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "saved": true, "book_id": 9, "message": "Book saved"}`))
	})

	res, err := c.SaveFromChat(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, "/api/books/9/save", gotPath)
	assert.True(t, res.Saved)
}

func TestNonOKStatusIsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.Send(context.Background(), "hi", "s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "boom")
}

func TestMalformedResponseBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := c.Send(context.Background(), "hi", "s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}
