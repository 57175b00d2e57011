package llm

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// Event is one dispatched server-sent event.
type Event struct {
	Event string
	Data  string
	ID    string
	Retry int
}

// SSEReader splits a text/event-stream body into events.
type SSEReader struct {
	scanner *bufio.Scanner
	lastID  string
}

// NewSSEReader wraps r. Lines may be up to 2 MiB.
func NewSSEReader(r io.Reader) *SSEReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)
	return &SSEReader{scanner: scanner}
}

// Next returns the next event carrying data. It returns io.EOF once the
// stream ends. A trailing event without its blank line is still dispatched.
func (r *SSEReader) Next() (Event, error) {
	var (
		ev      Event
		data    []string
		hasData bool
	)
	for r.scanner.Scan() {
		line := strings.TrimSuffix(r.scanner.Text(), "\r")
		if line == "" {
			if hasData {
				ev.Data = strings.Join(data, "\n")
				ev.ID = r.lastID
				return ev, nil
			}
			ev = Event{}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := line, ""
		if idx := strings.IndexByte(line, ':'); idx >= 0 {
			field, value = line[:idx], strings.TrimPrefix(line[idx+1:], " ")
		}

		switch field {
		case "event":
			ev.Event = value
		case "data":
			data = append(data, value)
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				r.lastID = value
			}
		case "retry":
			if n, err := strconv.Atoi(value); err == nil {
				ev.Retry = n
			}
		}
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	if hasData {
		ev.Data = strings.Join(data, "\n")
		ev.ID = r.lastID
		return ev, nil
	}
	return Event{}, io.EOF
}
