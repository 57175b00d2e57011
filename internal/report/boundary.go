package report

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"govai/internal/source"
)

// Boundary labels.
const (
	LabelDeterministic = "deterministic"
	LabelInterpretive  = "interpretive"
)

// LabelBoundary labels every path of a report as deterministic, meaning
// traceable to the fetched record, or interpretive. Input and extracted
// fields are deterministic. Evidence quotes are deterministic when their
// normalized text occurs in the extracted title or body, and the suggested
// option when it names one of the extracted options. Every other analysis,
// recommendation and limitation text is interpretive.
func LabelBoundary(raw map[string]any, rec source.Record) Boundary {
	b := Boundary{Deterministic: []string{}, Interpretive: []string{}, Notes: []string{}}

	b.Deterministic = append(b.Deterministic, "input.url", "input.fetched_at", "input.source_type")
	b.Deterministic = append(b.Deterministic, "extracted.source_type", "extracted.fetched_at", "extracted.title", "extracted.body", "extracted.options")
	if rec.CurrentResults != nil {
		b.Deterministic = append(b.Deterministic, "extracted.current_results")
	}
	if len(rec.Metadata) > 0 {
		b.Deterministic = append(b.Deterministic, "extracted.metadata")
	}

	corpus := normalizeText(rec.Title + " " + rec.Body)

	for _, section := range []string{"analysis", "recommendation", "limitations"} {
		value, ok := raw[section]
		if !ok {
			continue
		}
		walkLeaves(section, value, func(path string, leaf any) {
			text := stringify(leaf)
			switch {
			case strings.HasPrefix(path, "analysis.evidence_quotes["):
				if quoteInCorpus(text, corpus) {
					b.Deterministic = append(b.Deterministic, path)
					return
				}
				b.Notes = append(b.Notes, fmt.Sprintf("%s not found verbatim in extracted text", path))
			case path == "recommendation.suggested_option":
				if option, ok := matchOption(text, rec.Options); ok {
					b.Deterministic = append(b.Deterministic, path)
					if option != text {
						b.Notes = append(b.Notes, fmt.Sprintf("%s matches extracted option %q", path, option))
					}
					return
				}
				if len(rec.Options) == 0 {
					b.Notes = append(b.Notes, fmt.Sprintf("%s cannot be checked: no extracted options", path))
				} else {
					b.Notes = append(b.Notes, fmt.Sprintf("%s %q is not an extracted option", path, text))
				}
			}
			b.Interpretive = append(b.Interpretive, path)
		})
	}

	sort.Strings(b.Deterministic)
	sort.Strings(b.Interpretive)
	sort.Strings(b.Notes)
	return b
}

// walkLeaves calls fn for every scalar under v. Objects that stand in for a
// list item are treated as a single leaf.
func walkLeaves(path string, v any, fn func(path string, leaf any)) {
	switch vv := v.(type) {
	case map[string]any:
		if strings.HasSuffix(path, "]") {
			fn(path, vv)
			return
		}
		for _, k := range sortedKeys(vv) {
			walkLeaves(path+"."+k, vv[k], fn)
		}
	case []any:
		for i, item := range vv {
			walkLeaves(fmt.Sprintf("%s[%d]", path, i), item, fn)
		}
	case nil:
	default:
		fn(path, vv)
	}
}

// normalizeText lowercases, drops punctuation and collapses whitespace.
func normalizeText(s string) string {
	var sb strings.Builder
	space := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			space = false
		case !space:
			sb.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(sb.String())
}

// quoteInCorpus checks every fragment of an elided quote.
func quoteInCorpus(quote, corpus string) bool {
	if corpus == "" {
		return false
	}
	fragments := strings.FieldsFunc(quote, func(r rune) bool { return r == '…' })
	var parts []string
	for _, f := range fragments {
		parts = append(parts, strings.Split(f, "...")...)
	}
	found := 0
	for _, part := range parts {
		norm := normalizeText(part)
		if norm == "" {
			continue
		}
		if !strings.Contains(corpus, norm) {
			return false
		}
		found++
	}
	return found > 0
}

func matchOption(suggested string, options []string) (string, bool) {
	want := normalizeText(suggested)
	if want == "" {
		return "", false
	}
	for _, option := range options {
		if normalizeText(option) == want {
			return option, true
		}
	}
	return "", false
}
