package llm

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, input string) []Event {
	t.Helper()
	reader := NewSSEReader(strings.NewReader(input))
	var events []Event
	for {
		ev, err := reader.Next()
		if err == io.EOF {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func TestSSEReaderBasicFields(t *testing.T) {
	events := readAll(t, "event: auction.started\nid: 7\nretry: 1500\ndata: {\"a\":1}\n\n")
	require.Len(t, events, 1)
	assert.Equal(t, "auction.started", events[0].Event)
	assert.Equal(t, "7", events[0].ID)
	assert.Equal(t, 1500, events[0].Retry)
	assert.Equal(t, `{"a":1}`, events[0].Data)
}

func TestSSEReaderMultilineDataAndComments(t *testing.T) {
	events := readAll(t, ": keepalive\ndata: line one\ndata:line two\n\ndata: second\n\n")
	require.Len(t, events, 2)
	assert.Equal(t, "line one\nline two", events[0].Data)
	assert.Equal(t, "second", events[1].Data)
}

func TestSSEReaderCRLFAndTrailingEvent(t *testing.T) {
	events := readAll(t, "data: first\r\n\r\ndata: last")
	require.Len(t, events, 2)
	assert.Equal(t, "first", events[0].Data)
	assert.Equal(t, "last", events[1].Data)
}

func TestSSEReaderDropsEventsWithoutData(t *testing.T) {
	events := readAll(t, "event: ping\n\nevent: message\ndata: x\n\n")
	require.Len(t, events, 1)
	assert.Equal(t, "message", events[0].Event)
}

func TestSSEReaderStripsOnlyOneSpace(t *testing.T) {
	events := readAll(t, "data:   padded\n\n")
	require.Len(t, events, 1)
	assert.Equal(t, "  padded", events[0].Data)
}
