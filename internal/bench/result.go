package bench

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"govai/internal/llm"
	"govai/internal/report"
)

// Pricing is USD per one million tokens for one provider.
type Pricing struct {
	Tier       string
	InputPerM  float64
	OutputPerM float64
}

// Result is the saved benchmark document.
type Result struct {
	BenchVersion  int                    `json:"bench_version"`
	CreatedAt     string                 `json:"created_at"`
	StartedAt     string                 `json:"started_at"`
	FinishedAt    string                 `json:"finished_at"`
	URL           string                 `json:"url"`
	Pricing       any                    `json:"pricing"`
	Constraints   Constraints            `json:"constraints"`
	ExtractedMeta map[string]string      `json:"extracted_meta"`
	Results       map[string][]RunResult `json:"results"`
	Summary       []Summary              `json:"summary"`
	Notes         []string               `json:"notes"`

	// pricing per provider for the text summary
	providerPricing map[string]Pricing
}

// Constraints records the knobs a run was made with.
type Constraints struct {
	Runs         int    `json:"runs"`
	Retries      int    `json:"retries"`
	TimeoutMS    int64  `json:"timeout_ms"`
	SystemPrompt string `json:"system_prompt"`
	// EstimatedPromptTokens is a local count for providers that omit usage.
	EstimatedPromptTokens int               `json:"estimated_prompt_tokens"`
	MaxTokens             map[string]int    `json:"max_tokens"`
	Models                map[string]string `json:"models"`
}

// RunResult is one run, including its retries.
type RunResult struct {
	OK           bool          `json:"ok"`
	LatencyMS    *int64        `json:"latency_ms"`
	Usage        *llm.Usage    `json:"usage"`
	CostEstimate *CostEstimate `json:"cost_estimate"`
	Attempts     []Attempt     `json:"attempts"`
	JSONValid    bool          `json:"json_valid"`
}

// Attempt is one call within a run.
type Attempt struct {
	Attempt int            `json:"attempt"`
	OK      bool           `json:"ok"`
	Error   string         `json:"error,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// CostEstimate is derived from reported token usage.
type CostEstimate struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	InputUSD         float64 `json:"input_usd"`
	OutputUSD        float64 `json:"output_usd"`
	TotalUSD         float64 `json:"total_usd"`
}

// Summary aggregates one provider's runs.
type Summary struct {
	Provider         string          `json:"provider"`
	RunsTotal        int             `json:"runs_total"`
	RunsOK           int             `json:"runs_ok"`
	RunsFail         int             `json:"runs_fail"`
	AvgLatencyMSOK   *int64          `json:"avg_latency_ms_ok"`
	TotalAttempts    int             `json:"total_attempts"`
	TotalRetries     int             `json:"total_retries"`
	UsageAggregate   *UsageAggregate `json:"usage_aggregate"`
	CostAggregateUSD *CostAggregate  `json:"cost_aggregate_usd"`
}

// UsageAggregate sums usage over ok runs that reported any.
type UsageAggregate struct {
	PromptTokens     int  `json:"prompt_tokens"`
	CompletionTokens int  `json:"completion_tokens"`
	TotalTokens      int  `json:"total_tokens"`
	HasAny           bool `json:"has_any"`
}

// CostAggregate sums estimated cost over ok runs.
type CostAggregate struct {
	TotalUSD       float64  `json:"total_usd"`
	InputUSD       float64  `json:"input_usd"`
	OutputUSD      float64  `json:"output_usd"`
	AvgUSDPerOKRun *float64 `json:"avg_usd_per_ok_run"`
}

// EstimateCost prices usage. It returns nil when usage is missing or both
// token counts are zero.
func EstimateCost(u *llm.Usage, p Pricing) *CostEstimate {
	if u == nil {
		return nil
	}
	if math.IsNaN(p.InputPerM) || math.IsNaN(p.OutputPerM) || math.IsInf(p.InputPerM, 0) || math.IsInf(p.OutputPerM, 0) {
		return nil
	}
	if u.PromptTokens == 0 && u.CompletionTokens == 0 {
		return nil
	}
	in := float64(u.PromptTokens) / 1_000_000 * p.InputPerM
	out := float64(u.CompletionTokens) / 1_000_000 * p.OutputPerM
	return &CostEstimate{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		InputUSD:         in,
		OutputUSD:        out,
		TotalUSD:         in + out,
	}
}

// Summarize aggregates runs for one provider.
func Summarize(provider string, runs []RunResult) Summary {
	s := Summary{Provider: provider, RunsTotal: len(runs)}
	var latencySum int64
	usage := UsageAggregate{}
	cost := CostAggregate{}
	costAny := false

	for _, r := range runs {
		s.TotalAttempts += len(r.Attempts)
		if len(r.Attempts) > 1 {
			s.TotalRetries += len(r.Attempts) - 1
		}
		if !r.OK {
			s.RunsFail++
			continue
		}
		s.RunsOK++
		if r.LatencyMS != nil {
			latencySum += *r.LatencyMS
		}
		if u := r.Usage; u != nil && (u.PromptTokens != 0 || u.CompletionTokens != 0 || u.TotalTokens != 0) {
			usage.HasAny = true
			usage.PromptTokens += u.PromptTokens
			usage.CompletionTokens += u.CompletionTokens
			usage.TotalTokens += u.TotalTokens
		}
		if c := r.CostEstimate; c != nil {
			costAny = true
			cost.TotalUSD += c.TotalUSD
			cost.InputUSD += c.InputUSD
			cost.OutputUSD += c.OutputUSD
		}
	}

	if s.RunsOK > 0 {
		avg := int64(math.Round(float64(latencySum) / float64(s.RunsOK)))
		s.AvgLatencyMSOK = &avg
	}
	if usage.HasAny {
		s.UsageAggregate = &usage
	}
	if costAny {
		if s.RunsOK > 0 {
			avg := cost.TotalUSD / float64(s.RunsOK)
			cost.AvgUSDPerOKRun = &avg
		}
		s.CostAggregateUSD = &cost
	}
	return s
}

// FormatSummary renders the plain-text digest of res.
func FormatSummary(res *Result, jsonPath string) string {
	lines := []string{
		"Web2 Micro-Challenge #4 - cost + latency reality check",
		"URL: " + res.URL,
		fmt.Sprintf("Runs per provider: %d, retries: %d, timeout: %dms", res.Constraints.Runs, res.Constraints.Retries, res.Constraints.TimeoutMS),
		"",
	}
	for _, s := range res.Summary {
		lines = append(lines,
			s.Provider+":",
			fmt.Sprintf("- ok/fail: %d/%d", s.RunsOK, s.RunsFail),
			fmt.Sprintf("- avg latency (ok): %s ms", fmtInt(s.AvgLatencyMSOK)),
			fmt.Sprintf("- total retries: %d", s.TotalRetries),
		)
		if u := s.UsageAggregate; u != nil {
			lines = append(lines, fmt.Sprintf("- usage total_tokens: %d (prompt %d, completion %d)", u.TotalTokens, u.PromptTokens, u.CompletionTokens))
		} else {
			lines = append(lines, "- usage: n/a (provider did not return token usage)")
		}
		if c := s.CostAggregateUSD; c != nil {
			p := res.providerPricing[s.Provider]
			lines = append(lines,
				fmt.Sprintf("- pricing: %s (in $%s/1M, out $%s/1M)", p.Tier, fmtFloat(p.InputPerM), fmtFloat(p.OutputPerM)),
				fmt.Sprintf("- estimated cost (ok runs): total %s, avg %s per ok run", fmtUSD(&c.TotalUSD), fmtUSD(c.AvgUSDPerOKRun)),
			)
		} else {
			lines = append(lines, "- estimated cost: n/a (missing usage or pricing)")
		}
		lines = append(lines, "")
	}
	lines = append(lines, "Full JSON saved: "+jsonPath)
	return strings.Join(lines, "\n")
}

func fmtInt(n *int64) string {
	if n == nil {
		return "n/a"
	}
	return strconv.FormatInt(*n, 10)
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func fmtUSD(f *float64) string {
	if f == nil || math.IsNaN(*f) || math.IsInf(*f, 0) {
		return "n/a"
	}
	return fmt.Sprintf("$%.6f", *f)
}

// Save writes bench-result-<ts>.json and bench-summary-<ts>.txt into dir
// and returns both paths with the rendered summary.
func Save(dir string, res *Result, now time.Time) (jsonPath, txtPath, summary string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", "", fmt.Errorf("create %s: %w", dir, err)
	}
	ts := report.SafeTimestamp(now)
	jsonPath = filepath.Join(dir, "bench-result-"+ts+".json")
	txtPath = filepath.Join(dir, "bench-summary-"+ts+".txt")

	data, err := report.Marshal(res)
	if err != nil {
		return "", "", "", fmt.Errorf("encode bench result: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", "", "", fmt.Errorf("write %s: %w", jsonPath, err)
	}
	summary = FormatSummary(res, jsonPath)
	if err := os.WriteFile(txtPath, []byte(summary), 0o644); err != nil {
		return "", "", "", fmt.Errorf("write %s: %w", txtPath, err)
	}
	return jsonPath, txtPath, summary, nil
}
