package chat

// Action payload types attached to streamed messages. Actions are
// side-channel instructions rendered or executed independently of the
// transcript; the enclosing message's dedup key governs their replay.
const (
	// ActionBookResults carries a list of book summaries to render as
	// auxiliary cards after the triggering message.
	ActionBookResults = "book_results"
	// ActionSaveBook instructs the client to save a book on the user's
	// behalf via the chat-triggered save endpoint.
	ActionSaveBook = "save_book"
)

// BookResult is one book summary inside a book_results action.
type BookResult struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

// Actions is the tagged action variant attached to a message event.
// Exactly one of Books or BookID is meaningful, selected by Type.
type Actions struct {
	Type   string       `json:"type"`
	Books  []BookResult `json:"books,omitempty"`
	BookID int          `json:"book_id,omitempty"`
}
