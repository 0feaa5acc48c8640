// Package ui renders the chat transcript and notifications to a terminal.
// It is the thin presentation adapter behind the client's View and Notifier
// ports; all transcript state lives in the client.
package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/bookchat-dev/bookchat/pkg/chat"
	"github.com/bookchat-dev/bookchat/pkg/client"
	"github.com/bookchat-dev/bookchat/pkg/transcript"
)

var (
	userLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	assistantLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("135"))

	thinkingStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("243"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	bookCardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	bookTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	bookMetaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	connStateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	toastInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	toastErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

// TerminalView writes transcript changes to a terminal writer. A terminal
// is append-only, so Update re-prints the finalized message rather than
// editing the earlier provisional line.
type TerminalView struct {
	mu  sync.Mutex
	out io.Writer
}

// NewTerminalView creates a view writing to out.
func NewTerminalView(out io.Writer) *TerminalView {
	return &TerminalView{out: out}
}

// Append renders a new entry.
func (v *TerminalView) Append(e *transcript.Entry) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.printEntry(e)
}

// Update re-renders an entry whose state advanced.
func (v *TerminalView) Update(e *transcript.Entry) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.printEntry(e)
}

// Remove notes a rolled-back entry. The already-printed line cannot be
// unprinted; the synthetic error bubble that follows explains the failure.
func (v *TerminalView) Remove(id string) {}

// Reset prints the whole transcript from scratch.
func (v *TerminalView) Reset(entries []*transcript.Entry) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, connStateStyle.Render("--- conversation ---"))
	for _, e := range entries {
		v.printEntry(e)
	}
}

// ShowBooks renders auxiliary book cards.
func (v *TerminalView) ShowBooks(books []chat.BookResult) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, b := range books {
		card := bookTitleStyle.Render(b.Title) + "\n" +
			bookMetaStyle.Render(fmt.Sprintf("by %s · #%d", b.Author, b.ID))
		fmt.Fprintln(v.out, bookCardStyle.Render(card))
	}
}

// SetConnState prints connection transitions.
func (v *TerminalView) SetConnState(s client.ConnState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch s {
	case client.StateConnected:
		fmt.Fprintln(v.out, connStateStyle.Render("[connected]"))
	case client.StateError:
		fmt.Fprintln(v.out, connStateStyle.Render("[connection lost, retrying]"))
	}
}

func (v *TerminalView) printEntry(e *transcript.Entry) {
	label := assistantLabelStyle.Render("assistant")
	if e.Role == chat.RoleUser {
		label = userLabelStyle.Render("you")
	}

	switch {
	case e.Provisional:
		fmt.Fprintf(v.out, "%s %s\n", label, thinkingStyle.Render("thinking..."))
	case e.Status == chat.StatusError:
		fmt.Fprintf(v.out, "%s %s\n", label, errorStyle.Render(e.Content))
	default:
		fmt.Fprintf(v.out, "%s %s\n", label, e.Content)
	}
}

// TerminalNotifier prints toast-style notifications.
type TerminalNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

// NewTerminalNotifier creates a notifier writing to out.
func NewTerminalNotifier(out io.Writer) *TerminalNotifier {
	return &TerminalNotifier{out: out}
}

// Info prints an informational toast.
func (n *TerminalNotifier) Info(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.out, toastInfoStyle.Render("✔ "+msg))
}

// Error prints an error toast.
func (n *TerminalNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.out, toastErrorStyle.Render("✘ "+msg))
}
