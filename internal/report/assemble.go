package report

import (
	"encoding/json"

	"govai/internal/llm"
	"govai/internal/source"
)

// Assemble merges the parsed model output with the fetched record. The
// record is authoritative: input and extracted always come from it,
// whatever the model wrote there. Lifecycle metadata, refusal detection
// and the verification boundary are attached under their "__" keys.
func Assemble(raw map[string]any, url string, rec source.Record, lifecycle *llm.Lifecycle) map[string]any {
	out := make(map[string]any, len(raw)+5)
	for k, v := range raw {
		out[k] = v
	}
	out["input"] = map[string]any{
		"url":         url,
		"fetched_at":  rec.FetchedAt,
		"source_type": string(rec.SourceType),
	}
	out["extracted"] = rec
	if lifecycle != nil {
		out[KeyAmbient] = lifecycle
	} else {
		delete(out, KeyAmbient)
	}

	delete(out, KeyRefusal)
	if refusal := detectReportRefusal(analysisOf(raw)); refusal != nil {
		out[KeyRefusal] = refusal
	}
	out[KeyBoundary] = LabelBoundary(raw, rec)
	return out
}

// ErrorReport is the file written for a failed job.
func ErrorReport(err error) map[string]any {
	return map[string]any{"status": "error", "error": err.Error()}
}

func analysisOf(raw map[string]any) *Analysis {
	section, ok := raw["analysis"]
	if !ok {
		return nil
	}
	data, err := json.Marshal(section)
	if err != nil {
		return nil
	}
	var a Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		return nil
	}
	return &a
}
