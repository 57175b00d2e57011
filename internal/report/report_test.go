package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	alexerrors "govai/internal/errors"
	"govai/internal/llm"
	"govai/internal/source"
)

func sampleRecord() source.Record {
	return source.Record{
		SourceType: source.SourceSnapshot,
		FetchedAt:  "2025-01-02T03:04:05.000Z",
		Title:      "Raise the treasury cap",
		Body:       "This proposal raises the treasury cap to 5M tokens. Funds are released quarterly.",
		Options:    []string{"For", "Against", "Abstain"},
		Metadata:   map[string]any{"proposal_id": "0xABC"},
	}
}

func sampleRaw() map[string]any {
	return map[string]any{
		"input": map[string]any{"url": "model-made-this-up"},
		"analysis": map[string]any{
			"summary":         "Raises the cap.",
			"key_changes":     []any{"cap raised"},
			"risks":           []any{map[string]any{"text": "dilution"}},
			"benefits":        []any{},
			"unknowns":        []any{"UNKNOWN"},
			"evidence_quotes": []any{"raises the treasury cap to 5M tokens", "funds are burned"},
		},
		"recommendation": map[string]any{
			"suggested_option":               "for",
			"confidence":                     "medium",
			"reasoning":                      []any{"Aligned with growth."},
			"conflicts_with_user_principles": []any{},
		},
		"limitations": []any{"Only the proposal text was available."},
	}
}

func TestAssembleOverridesInputAndExtracted(t *testing.T) {
	verified := true
	lc := &llm.Lifecycle{Verified: &verified, RequestID: "req-1"}
	out := Assemble(sampleRaw(), "https://snapshot.box/#/s:ens.eth/proposal/0xABC", sampleRecord(), lc)

	input := out["input"].(map[string]any)
	assert.Equal(t, "https://snapshot.box/#/s:ens.eth/proposal/0xABC", input["url"])
	assert.Equal(t, "snapshot", input["source_type"])
	assert.Equal(t, sampleRecord(), out["extracted"])
	assert.Same(t, lc, out[KeyAmbient])
	assert.NotContains(t, out, KeyRefusal)

	data, err := Marshal(out)
	require.NoError(t, err)
	r, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, Text("Raise the treasury cap"), r.Extracted.Title)
	assert.Equal(t, StringList{"dilution"}, r.Analysis.Risks)
	require.NotNil(t, r.Ambient)
	assert.Equal(t, "req-1", r.Ambient.RequestID)
	require.NotNil(t, r.Boundary)
}

func TestAssembleWithoutLifecycle(t *testing.T) {
	raw := sampleRaw()
	raw[KeyAmbient] = "stale"
	out := Assemble(raw, "u", sampleRecord(), nil)
	assert.NotContains(t, out, KeyAmbient)
}

func TestLabelBoundary(t *testing.T) {
	b := LabelBoundary(sampleRaw(), sampleRecord())

	assert.Contains(t, b.Deterministic, "input.url")
	assert.Contains(t, b.Deterministic, "extracted.body")
	assert.Contains(t, b.Deterministic, "extracted.metadata")
	assert.NotContains(t, b.Deterministic, "extracted.current_results")
	assert.Contains(t, b.Deterministic, "analysis.evidence_quotes[0]")
	assert.Contains(t, b.Deterministic, "recommendation.suggested_option")

	assert.Contains(t, b.Interpretive, "analysis.evidence_quotes[1]")
	assert.Contains(t, b.Interpretive, "analysis.summary")
	assert.Contains(t, b.Interpretive, "analysis.risks[0]")
	assert.Contains(t, b.Interpretive, "recommendation.reasoning")
	assert.Contains(t, b.Interpretive, "limitations[0]")

	assert.True(t, sortedCopy(b.Deterministic))
	assert.True(t, sortedCopy(b.Interpretive))
	assert.Contains(t, b.Notes, "analysis.evidence_quotes[1] not found verbatim in extracted text")
	assert.Contains(t, b.Notes, `recommendation.suggested_option matches extracted option "For"`)
}

func TestLabelBoundaryElidedQuoteAndUnknownOption(t *testing.T) {
	raw := map[string]any{
		"analysis":       map[string]any{"evidence_quotes": []any{"raises the treasury cap … released quarterly"}},
		"recommendation": map[string]any{"suggested_option": "UNKNOWN"},
	}
	rec := sampleRecord()
	rec.Options = nil
	b := LabelBoundary(raw, rec)

	assert.Contains(t, b.Deterministic, "analysis.evidence_quotes[0]")
	assert.Contains(t, b.Interpretive, "recommendation.suggested_option")
	assert.Contains(t, b.Notes, "recommendation.suggested_option cannot be checked: no extracted options")
}

func sortedCopy(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] > s[i] {
			return false
		}
	}
	return true
}

func TestDetectRefusal(t *testing.T) {
	phrase, ok := DetectRefusal("I’m sorry, but I can’t help with that request.")
	assert.True(t, ok)
	assert.Equal(t, "i'm sorry, but", phrase)

	_, ok = DetectRefusal(`{"analysis": {"summary": "fine"}}`)
	assert.False(t, ok)
}

func TestCheckUnparsed(t *testing.T) {
	err := CheckUnparsed("As an AI language model, I cannot evaluate this.")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRefusal))
	assert.True(t, alexerrors.IsPermanent(err))

	assert.NoError(t, CheckUnparsed("garbage {"))
}

func TestAssembleFlagsRefusalSummary(t *testing.T) {
	raw := map[string]any{"analysis": map[string]any{"summary": "I cannot help with governance advice."}}
	out := Assemble(raw, "u", sampleRecord(), nil)
	refusal, ok := out[KeyRefusal].(*Refusal)
	require.True(t, ok)
	assert.True(t, refusal.Detected)
	assert.Equal(t, "analysis.summary", refusal.Field)

	// A substantive analysis is left alone.
	out = Assemble(sampleRaw(), "u", sampleRecord(), nil)
	assert.NotContains(t, out, KeyRefusal)
}

func TestTolerantLists(t *testing.T) {
	var a Analysis
	require.NoError(t, json.Unmarshal([]byte(`{
		"summary": 42,
		"risks": "single risk",
		"benefits": [1, true, {"description": "lower fees"}, {"x": 1}, null, ""],
		"unknowns": null
	}`), &a))
	assert.Equal(t, Text("42"), a.Summary)
	assert.Equal(t, StringList{"single risk"}, a.Risks)
	assert.Equal(t, StringList{"1", "true", "lower fees", `{"x":1}`}, a.Benefits)
	assert.Nil(t, a.Unknowns)
}

func TestRecommendationReasoningList(t *testing.T) {
	var r Recommendation
	require.NoError(t, json.Unmarshal([]byte(`{"reasoning": ["First reason", "Second reason"]}`), &r))
	assert.Equal(t, StringList{"First reason", "Second reason"}, r.Reasoning)

	require.NoError(t, json.Unmarshal([]byte(`{"reasoning": "Only one"}`), &r))
	assert.Equal(t, StringList{"Only one"}, r.Reasoning)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "uniswap", Sanitize("  Uniswap  "))
	assert.Equal(t, "a-b.c_d", Sanitize("A//B.c_d"))
	assert.Equal(t, "0xabc", Sanitize("0xABC"))
	assert.Equal(t, "", Sanitize("---"))
}

func TestFilename(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 890_000_000, time.UTC)

	assert.Equal(t, "report-snapshot-0xabc.json", Filename(sampleRecord(), now))

	tally := source.Record{SourceType: source.SourceTally, Metadata: map[string]any{
		"organization_slug": nil, "governor_slug": "Arbitrum", "onchain_id": "83",
	}}
	assert.Equal(t, "report-tally-arbitrum-83.json", Filename(tally, now))

	tally.Metadata = map[string]any{}
	assert.Equal(t, "report-tally-unknown-unknown.json", Filename(tally, now))

	generic := source.Record{SourceType: source.SourceGeneric}
	assert.Equal(t, "report-2025-03-04T05-06-07-890Z.json", Filename(generic, now))

	snapshotNoID := source.Record{SourceType: source.SourceSnapshot, Metadata: map[string]any{}}
	assert.Equal(t, "report-2025-03-04T05-06-07-890Z.json", Filename(snapshotNoID, now))
}

func TestStoreRoundTripAndList(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	store := Store{Dir: dir}

	list, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, store.Write("old.json", map[string]any{"a": "<b>"}))
	require.NoError(t, store.Write("new.json", ErrorReport(errors.New("boom"))))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.json"), past, past))

	data, err := store.Read("old.json")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": \"<b>\"\n}", string(data))

	list, err = store.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new.json", list[0].Name)
	assert.Equal(t, "old.json", list[1].Name)

	r, err := store.Load("new.json")
	require.NoError(t, err)
	assert.True(t, r.IsError())
	assert.Equal(t, "boom", r.Error)

	assert.True(t, store.Exists("new.json"))
	assert.False(t, store.Exists("missing.json"))
}

func TestStoreRejectsTraversal(t *testing.T) {
	store := Store{Dir: t.TempDir()}
	for _, name := range []string{"../x.json", "a/b.json", `a\b.json`, "", ".."} {
		_, err := store.Read(name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
		assert.ErrorIs(t, store.Write(name, 1), ErrInvalidName, name)
		assert.False(t, store.Exists(name))
	}
}
