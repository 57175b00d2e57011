package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonrepair"
)

// ErrInvalidJSON is returned when model output cannot be turned into a JSON
// object, even after repair.
var ErrInvalidJSON = errors.New("invalid JSON from model")

// InvalidJSONError carries the offending model output.
type InvalidJSONError struct {
	Raw string
	Err error
}

func (e *InvalidJSONError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", ErrInvalidJSON.Error(), e.Err)
	}
	return ErrInvalidJSON.Error()
}

func (e *InvalidJSONError) Unwrap() error { return ErrInvalidJSON }

// JSONAccumulator collects streamed text deltas of a JSON answer and can
// produce a best-effort object at any point.
type JSONAccumulator struct {
	mu  sync.Mutex
	buf strings.Builder
}

// Write appends one delta.
func (a *JSONAccumulator) Write(delta string) {
	a.mu.Lock()
	a.buf.WriteString(delta)
	a.mu.Unlock()
}

// String returns the text collected so far.
func (a *JSONAccumulator) String() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.String()
}

// Len returns the number of bytes collected so far.
func (a *JSONAccumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.Len()
}

// Snapshot repairs the partial text into an object. It returns nil when
// nothing object-like has arrived yet.
func (a *JSONAccumulator) Snapshot() map[string]any {
	candidate := objectCandidate(a.String(), true)
	if candidate == "" {
		return nil
	}
	obj, err := decodeObject(candidate)
	if err == nil {
		return obj
	}
	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return nil
	}
	obj, err = decodeObject(repaired)
	if err != nil {
		return nil
	}
	return obj
}

// Final parses the complete text.
func (a *JSONAccumulator) Final() (map[string]any, error) {
	return ParseReport(a.String())
}

// ParseReport turns model output into a JSON object. Markdown fences and
// surrounding prose are stripped. A strict parse is tried first, then a
// repaired one.
func ParseReport(content string) (map[string]any, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, &InvalidJSONError{Raw: content, Err: errors.New("empty content")}
	}
	if obj, err := decodeObject(trimmed); err == nil {
		return obj, nil
	}

	candidate := objectCandidate(trimmed, false)
	if candidate == "" {
		return nil, &InvalidJSONError{Raw: content, Err: errors.New("no JSON object found")}
	}
	obj, strictErr := decodeObject(candidate)
	if strictErr == nil {
		return obj, nil
	}
	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return nil, &InvalidJSONError{Raw: content, Err: strictErr}
	}
	obj, err = decodeObject(repaired)
	if err != nil {
		return nil, &InvalidJSONError{Raw: content, Err: err}
	}
	return obj, nil
}

// objectCandidate strips code fences and returns the text from the first
// '{'. Unless partial is set, the text is cut after the last '}'.
func objectCandidate(text string, partial bool) string {
	text = stripFences(text)
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	text = text[start:]
	if partial {
		return text
	}
	end := strings.LastIndexByte(text, '}')
	if end < 0 {
		return text
	}
	return text[:end+1]
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "```json"); idx >= 0 {
			text = text[idx:]
		} else {
			return text
		}
	}
	// Drop the opening fence line.
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = strings.TrimLeft(text, "`")
		text = strings.TrimPrefix(text, "json")
	}
	if end := strings.LastIndex(text, "```"); end >= 0 {
		text = text[:end]
	}
	return strings.TrimSpace(text)
}

func decodeObject(text string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("JSON value is not an object")
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON object")
	}
	return obj, nil
}
