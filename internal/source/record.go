// Package source fetches governance proposals from Snapshot, Tally and
// arbitrary web pages and normalizes them into a Record.
package source

import (
	"time"

	"govai/internal/extract"
)

// SourceType names where a Record came from.
type SourceType string

const (
	SourceSnapshot SourceType = "snapshot"
	SourceTally    SourceType = "tally"
	SourceDAODAO   SourceType = "daodao"
	SourceGeneric  SourceType = "generic"
)

// Record is the normalized extracted proposal handed to the prompt builder
// and embedded in reports.
type Record struct {
	SourceType     SourceType     `json:"source_type"`
	FetchedAt      string         `json:"fetched_at"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	Options        []string       `json:"options"`
	CurrentResults map[string]any `json:"current_results"`
	Metadata       map[string]any `json:"metadata"`
}

// TimestampFormat matches JavaScript's Date.toISOString.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in TimestampFormat, always in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

func fromExtract(sourceType SourceType, fetchedAt time.Time, res extract.Result) Record {
	options := res.Options
	if options == nil {
		options = []string{}
	}
	metadata := res.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Record{
		SourceType:     sourceType,
		FetchedAt:      FormatTimestamp(fetchedAt),
		Title:          res.Title,
		Body:           res.Body,
		Options:        options,
		CurrentResults: res.CurrentResults,
		Metadata:       metadata,
	}
}
