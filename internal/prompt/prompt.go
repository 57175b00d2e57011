// Package prompt assembles the analysis prompt sent to the model.
package prompt

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SystemPrompt is shared by every provider so runs stay comparable.
const SystemPrompt = "You are a governance analysis assistant. You must output ONLY valid JSON."

//go:embed assets/report.schema.json assets/principles.example.json
var assets embed.FS

// DefaultSchema returns the bundled report schema.
func DefaultSchema() string {
	data, _ := assets.ReadFile("assets/report.schema.json")
	return string(data)
}

// DefaultPrinciples returns the bundled example principles file.
func DefaultPrinciples() []byte {
	data, _ := assets.ReadFile("assets/principles.example.json")
	return data
}

// Build renders the user prompt for one proposal. extracted and principles
// are encoded as indented JSON.
func Build(url string, extracted any, principles any, schema string) (string, error) {
	extractedJSON, err := indentJSON(extracted)
	if err != nil {
		return "", fmt.Errorf("encode extracted data: %w", err)
	}
	principlesJSON, err := indentJSON(principles)
	if err != nil {
		return "", fmt.Errorf("encode principles: %w", err)
	}

	var b strings.Builder
	b.WriteString("\nYou are given:\n\n")
	b.WriteString("URL:\n")
	b.WriteString(url)
	b.WriteString("\n\nEXTRACTED_DATA (may be incomplete):\n")
	b.WriteString(extractedJSON)
	b.WriteString("\n\nUSER_PRINCIPLES:\n")
	b.WriteString(principlesJSON)
	b.WriteString("\n\nTASK:\n")
	b.WriteString("Produce a JSON report with the following rules:\n\n")
	b.WriteString("- If some fields (options, results, execution details) are missing or uncertain, you MUST explicitly say \"UNKNOWN\".\n")
	b.WriteString("- Do NOT guess voting options or results.\n")
	b.WriteString("- Base your analysis ONLY on provided data.\n")
	b.WriteString("- Be conservative and honest.\n")
	b.WriteString("- Output ONLY valid JSON, no comments, no markdown.\n\n")
	b.WriteString("Follow this JSON structure exactly:\n")
	b.WriteString(schema)
	b.WriteString("\n")
	return b.String(), nil
}

func indentJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// LoadSchema reads the schema at path, falling back to the bundled schema
// when the file does not exist.
func LoadSchema(path string) (string, error) {
	if path == "" {
		return DefaultSchema(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultSchema(), nil
	}
	if err != nil {
		return "", fmt.Errorf("read schema: %w", err)
	}
	return string(data), nil
}

// ErrNoPrinciples reports a missing principles file.
var ErrNoPrinciples = errors.New("principles file not found")

// LoadPrinciples decodes a principles file. Files ending in .yaml or .yml are
// parsed as YAML; anything else as JSON.
func LoadPrinciples(path string) (any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrNoPrinciples)
	}
	if err != nil {
		return nil, fmt.Errorf("read principles: %w", err)
	}
	return ParsePrinciples(path, data)
}

// ParsePrinciples decodes principle data, choosing the format from name.
func ParsePrinciples(name string, data []byte) (any, error) {
	var out any
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("parse principles %s: %w", name, err)
		}
	default:
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("parse principles %s: %w", name, err)
		}
	}
	return out, nil
}

// InitPrinciples copies example (or the bundled example when example is
// missing) to target unless target already exists. It reports whether a
// file was written.
func InitPrinciples(target, example string) (bool, error) {
	if _, err := os.Stat(target); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", target, err)
	}

	data, err := os.ReadFile(example)
	if errors.Is(err, os.ErrNotExist) {
		data = DefaultPrinciples()
	} else if err != nil {
		return false, fmt.Errorf("read %s: %w", example, err)
	}
	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", target, err)
	}
	return true, nil
}
