package report

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"govai/internal/source"
)

var unsafeChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// Sanitize lowercases s and reduces it to [a-z0-9._-], with runs of other
// characters collapsed to a single dash and no leading or trailing dash.
func Sanitize(s string) string {
	s = unsafeChars.ReplaceAllString(strings.ToLower(s), "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return strings.Trim(s, "-")
}

// SafeTimestamp renders t as an ISO timestamp usable in file names.
func SafeTimestamp(t time.Time) string {
	return strings.NewReplacer(":", "-", ".", "-").Replace(source.FormatTimestamp(t))
}

// Filename picks the report file name for a record: Snapshot reports are
// named by proposal id, Tally reports by organization and on-chain id, and
// everything else by timestamp.
func Filename(rec source.Record, now time.Time) string {
	switch rec.SourceType {
	case source.SourceSnapshot:
		if id := Sanitize(metaString(rec.Metadata, "proposal_id")); id != "" {
			return fmt.Sprintf("report-snapshot-%s.json", id)
		}
	case source.SourceTally:
		org := Sanitize(metaString(rec.Metadata, "organization_slug"))
		if org == "" {
			org = Sanitize(metaString(rec.Metadata, "governor_slug"))
		}
		if org == "" {
			org = "unknown"
		}
		onchain := Sanitize(metaString(rec.Metadata, "onchain_id"))
		if onchain == "" {
			onchain = "unknown"
		}
		return fmt.Sprintf("report-tally-%s-%s.json", org, onchain)
	}
	return fmt.Sprintf("report-%s.json", SafeTimestamp(now))
}

func metaString(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
