// Package bench compares providers on one proposal: latency, retries, token
// usage and estimated cost over repeated buffered completions.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	alexerrors "govai/internal/errors"
	"govai/internal/llm"
	"govai/internal/logging"
	"govai/internal/observability"
	"govai/internal/prompt"
	"govai/internal/source"
)

// Version is written as bench_version.
const Version = 2

const defaultBaseDelay = 800 * time.Millisecond

var notes = []string{
	"Same proposal URL, same extracted data, same prompt structure for both providers.",
	"Cost is estimated from usage.prompt_tokens/completion_tokens when provided by the API. If usage is missing, cost is reported as null.",
}

// Provider is one endpoint under test.
type Provider struct {
	Name      string
	Client    llm.Client
	Model     string
	MaxTokens int
	Pricing   Pricing
}

// Config configures a Harness.
type Config struct {
	Providers []Provider
	Runs      int
	Retries   int
	Timeout   time.Duration
	// Parallel runs providers concurrently; runs of one provider stay
	// sequential.
	Parallel bool
	// BaseDelay is multiplied by the attempt number between retries.
	BaseDelay time.Duration
	// PricingInfo is copied into the output as "pricing".
	PricingInfo any

	Logger logging.Logger
	Tracer *observability.TracerProvider
	Now    func() time.Time
}

// Harness runs the benchmark.
type Harness struct {
	cfg    Config
	logger logging.Logger
	now    func() time.Time
}

// New validates cfg.
func New(cfg Config) (*Harness, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("bench: no providers configured")
	}
	for _, p := range cfg.Providers {
		if p.Client == nil {
			return nil, fmt.Errorf("bench: provider %q has no client", p.Name)
		}
	}
	if cfg.Runs < 1 {
		cfg.Runs = 1
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("bench")
	}
	return &Harness{cfg: cfg, logger: logger, now: now}, nil
}

// Input is the shared prompt every provider receives.
type Input struct {
	URL    string
	Record source.Record
	Prompt string
}

// Run benchmarks every provider against in.
func (h *Harness) Run(ctx context.Context, in Input) (*Result, error) {
	started := h.now()
	runs := make([][]RunResult, len(h.cfg.Providers))

	g, gctx := errgroup.WithContext(ctx)
	if !h.cfg.Parallel {
		g.SetLimit(1)
	}
	for i, p := range h.cfg.Providers {
		g.Go(func() error {
			var err error
			runs[i], err = h.runProvider(gctx, p, in.Prompt)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	finished := h.now()

	res := &Result{
		BenchVersion:  Version,
		CreatedAt:     source.FormatTimestamp(finished),
		StartedAt:     source.FormatTimestamp(started),
		FinishedAt:    source.FormatTimestamp(finished),
		URL:           in.URL,
		Pricing:       h.cfg.PricingInfo,
		Constraints:   h.constraints(in.Prompt),
		ExtractedMeta: map[string]string{"source_type": sourceType(in.Record)},
		Results:       make(map[string][]RunResult, len(h.cfg.Providers)),
		Notes:         notes,

		providerPricing: make(map[string]Pricing, len(h.cfg.Providers)),
	}
	for i, p := range h.cfg.Providers {
		res.Results[p.Name] = runs[i]
		res.providerPricing[p.Name] = p.Pricing
		res.Summary = append(res.Summary, Summarize(p.Name, runs[i]))
	}
	return res, nil
}

// runProvider only fails when ctx is cancelled; call errors are recorded.
func (h *Harness) runProvider(ctx context.Context, p Provider, userPrompt string) (runs []RunResult, err error) {
	ctx, span := h.cfg.Tracer.StartSpan(ctx, observability.SpanBench, attribute.String(observability.AttrProvider, p.Name))
	defer func() { observability.EndSpan(span, err) }()

	req := llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: prompt.SystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Model:     p.Model,
		MaxTokens: p.MaxTokens,
	}
	for i := 0; i < h.cfg.Runs; i++ {
		if err := ctx.Err(); err != nil {
			return runs, err
		}
		h.logger.Info("[%s] run %d/%d...", p.Name, i+1, h.cfg.Runs)
		runs = append(runs, h.runOnce(ctx, p, req))
	}
	return runs, nil
}

func (h *Harness) runOnce(ctx context.Context, p Provider, req llm.Request) RunResult {
	var attempts []Attempt
	var lastErr error
	retryCfg := alexerrors.RetryConfig{
		MaxAttempts: h.cfg.Retries,
		BaseDelay:   h.cfg.BaseDelay,
		Strategy:    alexerrors.BackoffLinear,
		ShouldRetry: func(error) bool { return true },
		OnAttempt: func(attempt int, err error) {
			a := Attempt{Attempt: attempt, OK: err == nil}
			if err != nil {
				lastErr = err
				a.Error = err.Error()
				a.Meta = llm.ErrorMeta(err)
			}
			attempts = append(attempts, a)
		},
	}

	var measured time.Duration
	completion, err := alexerrors.RetryWithResultAndLog(ctx, retryCfg, func(ctx context.Context) (*llm.Completion, error) {
		callCtx := ctx
		if h.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, h.cfg.Timeout)
			defer cancel()
		}
		start := time.Now()
		c, err := p.Client.Complete(callCtx, req)
		measured = time.Since(start)
		return c, err
	}, h.logger)

	if err != nil {
		if lastErr != nil {
			h.logger.Warn("[%s] run failed after %d attempts: %v", p.Name, len(attempts), lastErr)
		}
		return RunResult{OK: false, Attempts: attempts}
	}

	latency := completion.Latency
	if latency <= 0 {
		latency = measured
	}
	ms := latency.Milliseconds()
	return RunResult{
		OK:           true,
		LatencyMS:    &ms,
		Usage:        completion.Usage,
		CostEstimate: EstimateCost(completion.Usage, p.Pricing),
		Attempts:     attempts,
		JSONValid:    jsonTruthy(completion.Content),
	}
}

func (h *Harness) constraints(userPrompt string) Constraints {
	c := Constraints{
		Runs:                  h.cfg.Runs,
		Retries:               h.cfg.Retries,
		TimeoutMS:             h.cfg.Timeout.Milliseconds(),
		SystemPrompt:          prompt.SystemPrompt,
		EstimatedPromptTokens: prompt.RequestTokens(userPrompt),
		MaxTokens:             map[string]int{},
		Models:                map[string]string{},
	}
	for _, p := range h.cfg.Providers {
		c.MaxTokens[p.Name] = p.MaxTokens
		model := p.Model
		if model == "" {
			model = "not_set"
		}
		c.Models[p.Name] = model
	}
	return c
}

func sourceType(rec source.Record) string {
	if rec.SourceType != "" {
		return string(rec.SourceType)
	}
	if s, ok := rec.Metadata["source_type"].(string); ok && s != "" {
		return s
	}
	return "unknown"
}

// jsonTruthy reports whether content is strict JSON whose value is not
// null, false, zero or an empty string.
func jsonTruthy(content string) bool {
	var v any
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	}
	return true
}
