package report

import (
	"errors"
	"fmt"
	"strings"

	alexerrors "govai/internal/errors"
)

// ErrRefusal marks model output that declined to answer.
var ErrRefusal = errors.New("model refused to answer")

// RefusalError carries the matched phrase.
type RefusalError struct {
	Phrase string
	Text   string
}

func (e *RefusalError) Error() string {
	return fmt.Sprintf("%s (matched %q)", ErrRefusal.Error(), e.Phrase)
}

func (e *RefusalError) Unwrap() error { return ErrRefusal }

var refusalPhrases = []string{
	"i'm sorry, but",
	"i am sorry, but",
	"i'm sorry, i can't",
	"i apologize, but",
	"i can't assist",
	"i cannot assist",
	"i can't help",
	"i cannot help",
	"i can't provide",
	"i cannot provide",
	"i can't comply",
	"i cannot comply",
	"i'm unable to",
	"i am unable to",
	"i won't be able to",
	"i must decline",
	"as an ai",
}

// DetectRefusal reports the first refusal phrase found in text, matching
// case-insensitively and treating typographic apostrophes as plain ones.
func DetectRefusal(text string) (string, bool) {
	norm := strings.ToLower(text)
	norm = strings.NewReplacer("’", "'", "‘", "'").Replace(norm)
	for _, phrase := range refusalPhrases {
		if strings.Contains(norm, phrase) {
			return phrase, true
		}
	}
	return "", false
}

// CheckUnparsed classifies model output that did not parse as JSON. A
// refusal becomes a permanent RefusalError; anything else returns nil.
func CheckUnparsed(content string) error {
	phrase, ok := DetectRefusal(content)
	if !ok {
		return nil
	}
	refusal := &RefusalError{Phrase: phrase, Text: content}
	return &alexerrors.PermanentError{Err: refusal, Message: refusal.Error()}
}

// detectReportRefusal inspects a parsed report. Only a summary without any
// substantive analysis counts, so a report that merely quotes an apology
// is not flagged.
func detectReportRefusal(analysis *Analysis) *Refusal {
	if analysis == nil || analysis.Substantive() {
		return nil
	}
	phrase, ok := DetectRefusal(string(analysis.Summary))
	if !ok {
		return nil
	}
	return &Refusal{Detected: true, Phrase: phrase, Field: "analysis.summary"}
}
