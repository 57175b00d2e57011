package main

import (
	"fmt"
	"strings"

	"govai/internal/report"
)

// reportMarkdown lays a report out as markdown for terminal display.
func reportMarkdown(name string, rep *report.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Report: %s\n\n", name)

	if rep.IsError() {
		fmt.Fprintf(&b, "**Analysis failed:** %s\n\n", rep.Error)
		return b.String()
	}
	if r := rep.Refusal; r != nil && r.Detected {
		fmt.Fprintf(&b, "> **The model declined to analyze this proposal** (%q in %s)\n\n", r.Phrase, r.Field)
	}

	if in := rep.Input; in != nil {
		b.WriteString("## Source\n\n")
		field(&b, "URL", in.URL.String())
		field(&b, "Fetched at", in.FetchedAt.String())
		field(&b, "Source type", in.SourceType.String())
		b.WriteString("\n")
	}
	if ex := rep.Extracted; ex != nil {
		if ex.Title != "" {
			fmt.Fprintf(&b, "## %s\n\n", ex.Title)
		}
		list(&b, "Voting options", ex.Options)
	}
	if an := rep.Analysis; an != nil {
		b.WriteString("## Analysis\n\n")
		if an.Summary != "" {
			b.WriteString(an.Summary.String() + "\n\n")
		}
		list(&b, "Key changes", an.KeyChanges)
		list(&b, "Risks", an.Risks)
		list(&b, "Benefits", an.Benefits)
		list(&b, "Unknowns", an.Unknowns)
		if len(an.EvidenceQuotes) > 0 {
			b.WriteString("### Evidence quotes\n\n")
			for _, q := range an.EvidenceQuotes {
				fmt.Fprintf(&b, "> %s\n\n", q)
			}
		}
	}
	if rec := rep.Recommendation; rec != nil {
		b.WriteString("## Recommendation\n\n")
		field(&b, "Suggested option", rec.SuggestedOption.String())
		field(&b, "Confidence", rec.Confidence.String())
		b.WriteString("\n")
		list(&b, "Reasoning", rec.Reasoning)
		list(&b, "Conflicts with principles", rec.Conflicts)
	}
	if len(rep.Limitations) > 0 {
		b.WriteString("## Limitations\n\n")
		for _, l := range rep.Limitations {
			fmt.Fprintf(&b, "- %s\n", l)
		}
		b.WriteString("\n")
	}
	if lc := rep.Ambient; lc != nil {
		b.WriteString("## Verification\n\n")
		if lc.Verified != nil {
			field(&b, "Verified", fmt.Sprint(*lc.Verified))
		}
		field(&b, "Model", lc.Model)
		field(&b, "Request ID", lc.RequestID)
		field(&b, "Merkle root", lc.MerkleRoot)
		if au := lc.Auction; au != nil {
			field(&b, "Auction", au.Status)
			if au.Bids != nil {
				field(&b, "Bids", fmt.Sprintf("%d placed, %d revealed", au.Bids.Placed, au.Bids.Revealed))
			}
		}
		field(&b, "Bidder", lc.Bidder)
		b.WriteString("\n")
	}
	if bd := rep.Boundary; bd != nil && len(bd.Notes) > 0 {
		list(&b, "Verification notes", bd.Notes)
	}
	return b.String()
}

func field(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "- **%s:** %s\n", label, value)
}

func list(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "### %s\n\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}
