package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReportStrict(t *testing.T) {
	obj, err := ParseReport(`{"analysis":{"summary":"ok"}}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"summary": "ok"}, obj["analysis"])
}

func TestParseReportStripsFencesAndProse(t *testing.T) {
	content := "Here is the report:\n```json\n{\"limitations\": [\"a\"]}\n```\nThanks."
	obj, err := ParseReport(content)
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, obj["limitations"])
}

func TestParseReportRepairsTrailingComma(t *testing.T) {
	obj, err := ParseReport(`{"a": "x", "b": ["y",],}`)
	require.NoError(t, err)
	assert.Equal(t, "x", obj["a"])
}

func TestParseReportRejectsNonJSON(t *testing.T) {
	_, err := ParseReport("I'm sorry, but I can't help with that.")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidJSON))

	var invalid *InvalidJSONError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Raw, "sorry")
}

func TestParseReportRejectsEmpty(t *testing.T) {
	_, err := ParseReport("   ")
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

func TestJSONAccumulatorSnapshot(t *testing.T) {
	var acc JSONAccumulator
	assert.Nil(t, acc.Snapshot())

	acc.Write("```json\n{\"analysis\": {\"summary\": \"Raises")
	snap := acc.Snapshot()
	require.NotNil(t, snap)
	analysis, ok := snap["analysis"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Raises", analysis["summary"])

	acc.Write(" fees\"}}\n```")
	final, err := acc.Final()
	require.NoError(t, err)
	assert.Equal(t, "Raises fees", final["analysis"].(map[string]any)["summary"])
}
