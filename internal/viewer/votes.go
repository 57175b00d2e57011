package viewer

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// VoteRow is one rendered row of a results table.
type VoteRow struct {
	Label   string
	Class   string
	Votes   string
	Voters  string
	Percent string
	Width   float64
}

// VoteTable is one results table. Kind selects the column layout.
type VoteTable struct {
	Kind   string
	Status string
	Rows   []VoteRow
}

const (
	tableVotes     = "votes"
	tableVoteStats = "voteStats"
	tableScores    = "scores"
)

// voteEntry keeps a votes-map entry in file order.
type voteEntry struct {
	Key   string
	Value any
}

// orderedVotes reads extracted.current_results.votes with its key order
// intact. Missing or non-object values yield nil.
func orderedVotes(data []byte) []voteEntry {
	var doc struct {
		Extracted struct {
			CurrentResults struct {
				Votes json.RawMessage `json:"votes"`
			} `json:"current_results"`
		} `json:"extracted"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}
	raw := doc.Extracted.CurrentResults.Votes
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil
	}
	var entries []voteEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return entries
		}
		key, _ := keyTok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return entries
		}
		entries = append(entries, voteEntry{Key: key, Value: v})
	}
	return entries
}

// voteTables builds the tables for whichever result shapes are present.
func voteTables(results map[string]any, votes []voteEntry, options []string) []VoteTable {
	if len(results) == 0 {
		return nil
	}
	var tables []VoteTable
	if _, ok := results["votes"]; ok && len(votes) > 0 {
		tables = append(tables, votesTable(results, votes))
	}
	if stats, ok := results["voteStats"].([]any); ok {
		tables = append(tables, voteStatsTable(stats))
	}
	if scores, ok := results["scores"].([]any); ok && len(scores) > 0 {
		tables = append(tables, scoresTable(scores, results["scores_total"], options))
	}
	return tables
}

func votesTable(results map[string]any, votes []voteEntry) VoteTable {
	t := VoteTable{Kind: tableVotes}
	if s, ok := results["status"].(string); ok {
		t.Status = s
	}
	total := 0.0
	for _, e := range votes {
		if n, ok := toFloat(e.Value); ok {
			total += n
		}
	}
	for _, e := range votes {
		n, _ := toFloat(e.Value)
		pct := 0.0
		if total > 0 {
			pct = n / total * 100
		}
		t.Rows = append(t.Rows, VoteRow{
			Label:   e.Key,
			Class:   cssToken(e.Key),
			Votes:   FormatNumber(e.Value),
			Percent: FormatPercent(pct) + "%",
			Width:   pct,
		})
	}
	return t
}

func voteStatsTable(stats []any) VoteTable {
	t := VoteTable{Kind: tableVoteStats}
	for _, s := range stats {
		stat, ok := s.(map[string]any)
		if !ok {
			continue
		}
		typ := fmt.Sprint(stat["type"])
		row := VoteRow{
			Label:   typ,
			Class:   cssToken(typ),
			Votes:   FormatNumber(stat["votesCount"]),
			Voters:  "N/A",
			Percent: "N/A",
		}
		if n, ok := toFloat(stat["votersCount"]); ok && n != 0 {
			row.Voters = GroupDigits(n)
		}
		if p, ok := toFloat(stat["percent"]); ok && p != 0 {
			row.Percent = FormatPercent(p) + "%"
			row.Width = p
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// scoresTable pairs Snapshot scores with the choice list by index.
func scoresTable(scores []any, totalV any, options []string) VoteTable {
	t := VoteTable{Kind: tableScores}
	total, ok := toFloat(totalV)
	if !ok || total == 0 {
		total = 0
		for _, s := range scores {
			if n, ok := toFloat(s); ok {
				total += n
			}
		}
	}
	for i, s := range scores {
		label := fmt.Sprintf("#%d", i+1)
		if i < len(options) {
			label = options[i]
		}
		n, _ := toFloat(s)
		pct := 0.0
		if total > 0 {
			pct = n / total * 100
		}
		t.Rows = append(t.Rows, VoteRow{
			Label:   label,
			Class:   cssToken(label),
			Votes:   FormatNumber(s),
			Percent: FormatPercent(pct) + "%",
			Width:   pct,
		})
	}
	return t
}
