// Package report models analysis reports and applies the post-processing
// that runs after the model answers.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"govai/internal/llm"
)

// Report keys added by post-processing.
const (
	KeyAmbient  = "__ambient"
	KeyBoundary = "__verification_boundary"
	KeyRefusal  = "__refusal"
)

// Report is a typed, tolerant view over a stored report file. Model output
// is loosely shaped, so list fields accept strings, scalars and objects.
type Report struct {
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`

	Input          *Input          `json:"input,omitempty"`
	Extracted      *Extracted      `json:"extracted,omitempty"`
	Analysis       *Analysis       `json:"analysis,omitempty"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
	Limitations    StringList      `json:"limitations,omitempty"`

	Ambient  *llm.Lifecycle `json:"__ambient,omitempty"`
	Boundary *Boundary      `json:"__verification_boundary,omitempty"`
	Refusal  *Refusal       `json:"__refusal,omitempty"`
}

// Input identifies what was analyzed.
type Input struct {
	URL        Text `json:"url"`
	FetchedAt  Text `json:"fetched_at"`
	SourceType Text `json:"source_type"`
}

// Extracted mirrors the fetched record.
type Extracted struct {
	SourceType     Text           `json:"source_type,omitempty"`
	Title          Text           `json:"title"`
	Body           Text           `json:"body"`
	Options        StringList     `json:"options"`
	CurrentResults map[string]any `json:"current_results"`
	Metadata       map[string]any `json:"metadata"`
}

// Analysis is the model's reading of the proposal.
type Analysis struct {
	Summary        Text       `json:"summary"`
	KeyChanges     StringList `json:"key_changes"`
	Risks          StringList `json:"risks"`
	Benefits       StringList `json:"benefits"`
	Unknowns       StringList `json:"unknowns"`
	EvidenceQuotes StringList `json:"evidence_quotes"`
}

// Substantive reports whether the analysis says anything beyond a summary.
func (a *Analysis) Substantive() bool {
	if a == nil {
		return false
	}
	return len(a.KeyChanges) > 0 || len(a.Risks) > 0 || len(a.Benefits) > 0 || len(a.EvidenceQuotes) > 0
}

// Recommendation is the model's voting advice.
type Recommendation struct {
	SuggestedOption Text       `json:"suggested_option"`
	Confidence      Text       `json:"confidence"`
	Reasoning       StringList `json:"reasoning"`
	Conflicts       StringList `json:"conflicts_with_user_principles"`
}

// Boundary separates report paths traceable to fetched data from model
// judgment.
type Boundary struct {
	Deterministic []string `json:"deterministic"`
	Interpretive  []string `json:"interpretive"`
	Notes         []string `json:"notes"`
}

// Refusal records a detected model refusal.
type Refusal struct {
	Detected bool   `json:"detected"`
	Phrase   string `json:"phrase"`
	Field    string `json:"field"`
}

// Decode parses a stored report.
func Decode(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

// IsError reports whether the file records a failed job.
func (r *Report) IsError() bool {
	return r != nil && r.Status == "error"
}

// Text is a string that also accepts numbers, booleans and objects.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*t = Text(stringify(v))
	return nil
}

func (t Text) String() string { return string(t) }

// StringList is a list of strings that tolerates scalars, objects and a
// bare string in place of a list.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch vv := v.(type) {
	case nil:
		*l = nil
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s := stringify(item); s != "" {
				out = append(out, s)
			}
		}
		*l = out
	default:
		if s := stringify(vv); s != "" {
			*l = StringList{s}
		} else {
			*l = nil
		}
	}
	return nil
}

// textKeys are tried, in order, when a list item is an object.
var textKeys = []string{"text", "quote", "description", "summary", "title", "name", "value"}

func stringify(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case json.Number:
		return vv.String()
	case float64, bool, int, int64:
		return fmt.Sprint(vv)
	case map[string]any:
		for _, key := range textKeys {
			if s, ok := vv[key].(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
		return compactJSON(vv)
	default:
		return compactJSON(vv)
	}
}

func compactJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSpace(buf.String())
}

// Marshal renders v as 2-space indented JSON without HTML escaping, the
// format every report file uses.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
