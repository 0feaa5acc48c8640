// Package sse implements client-side consumption of Server-Sent Event
// streams: the wire field grammar and a channel-based stream wrapper over a
// long-lived HTTP response.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// Event is a single decoded server-sent event.
type Event struct {
	// ID is the optional event id field.
	ID string
	// Name is the optional event type field.
	Name string
	// Data is the event payload, with multi-line data fields joined by
	// newlines.
	Data string
}

// Parser decodes server-sent events from a raw byte stream.
type Parser struct {
	reader *bufio.Reader
}

// NewParser creates a parser reading from r.
func NewParser(r io.Reader) *Parser {
	return &Parser{reader: bufio.NewReader(r)}
}

// Next reads the next event. It returns io.EOF when the stream ends cleanly
// with no pending event data.
func (p *Parser) Next() (*Event, error) {
	event := &Event{}
	var dataLines []string

	for {
		line, err := p.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF && len(dataLines) > 0 {
				event.Data = strings.Join(dataLines, "\n")
				return event, nil
			}
			return nil, err
		}

		line = strings.TrimRight(line, "\r\n")

		// Blank line terminates the event.
		if line == "" {
			if len(dataLines) > 0 || event.Name != "" {
				event.Data = strings.Join(dataLines, "\n")
				return event, nil
			}
			continue
		}

		// Lines starting with a colon are comments (used as keep-alives).
		if strings.HasPrefix(line, ":") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, trimFieldValue(line, "data:"))
		case strings.HasPrefix(line, "event:"):
			event.Name = trimFieldValue(line, "event:")
		case strings.HasPrefix(line, "id:"):
			event.ID = trimFieldValue(line, "id:")
		}
	}
}

func trimFieldValue(line, field string) string {
	v := strings.TrimPrefix(line, field)
	return strings.TrimPrefix(v, " ")
}
