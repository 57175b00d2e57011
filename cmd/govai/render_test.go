package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govai/internal/report"
)

func TestReportMarkdown(t *testing.T) {
	rep, err := report.Decode([]byte(`{
		"input": {"url": "https://example.org/p", "fetched_at": "2025-01-01T00:00:00.000Z", "source_type": "generic"},
		"extracted": {"title": "Raise quorum", "body": "b", "options": ["For", "Against"], "current_results": null, "metadata": {}},
		"analysis": {"summary": "Raises quorum.", "key_changes": ["quorum 4%"], "risks": [], "benefits": [], "unknowns": ["UNKNOWN"], "evidence_quotes": ["quorum shall be"]},
		"recommendation": {"suggested_option": "For", "confidence": "low", "reasoning": ["Fits principles.", "Low risk."], "conflicts_with_user_principles": []},
		"limitations": ["No results"],
		"__ambient": {"verified": false, "request_id": "abc"},
		"__verification_boundary": {"deterministic": [], "interpretive": [], "notes": ["something"]}
	}`))
	require.NoError(t, err)

	md := reportMarkdown("r.json", rep)
	assert.Contains(t, md, "# Report: r.json")
	assert.Contains(t, md, "- **URL:** https://example.org/p")
	assert.Contains(t, md, "## Raise quorum")
	assert.Contains(t, md, "- For\n- Against")
	assert.Contains(t, md, "> quorum shall be")
	assert.Contains(t, md, "- **Suggested option:** For")
	assert.Contains(t, md, "### Reasoning\n\n- Fits principles.\n- Low risk.\n")
	assert.NotContains(t, md, `["Fits principles."`)
	assert.Contains(t, md, "- **Verified:** false")
	assert.Contains(t, md, "- **Request ID:** abc")
	assert.Contains(t, md, "### Verification notes")
	assert.NotContains(t, md, "### Risks")
}

func TestReportMarkdownErrorReport(t *testing.T) {
	rep, err := report.Decode([]byte(`{"status":"error","error":"fetch failed"}`))
	require.NoError(t, err)
	md := reportMarkdown("e.json", rep)
	assert.Contains(t, md, "**Analysis failed:** fetch failed")
	assert.NotContains(t, md, "## Analysis")
}
