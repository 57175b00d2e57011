// Package analyzer runs one proposal through fetch, prompt, model and
// post-processing.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"govai/internal/llm"
	"govai/internal/logging"
	"govai/internal/observability"
	"govai/internal/prompt"
	"govai/internal/report"
	"govai/internal/source"
)

// Fetcher resolves a proposal URL to a record.
type Fetcher interface {
	FetchAndExtract(ctx context.Context, url string) (source.Record, error)
}

// Config wires an Analyzer.
type Config struct {
	Fetcher Fetcher
	Client  llm.Client
	// Schema is the report schema text placed in the prompt. Empty means
	// the embedded default.
	Schema string
	// Stream requests server-sent events when Client supports them.
	Stream    bool
	Callbacks llm.Callbacks
	Logger    logging.Logger
	Tracer    *observability.TracerProvider
}

// Analyzer is safe for concurrent use when its Fetcher and Client are.
type Analyzer struct {
	fetcher   Fetcher
	client    llm.Client
	schema    string
	stream    bool
	callbacks llm.Callbacks
	logger    logging.Logger
	tracer    *observability.TracerProvider
}

// Result is everything one analysis produced.
type Result struct {
	Record       source.Record
	Report       map[string]any
	Completion   *llm.Completion
	PromptTokens int
	Duration     time.Duration
}

// New validates cfg.
func New(cfg Config) (*Analyzer, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("analyzer: fetcher is required")
	}
	if cfg.Client == nil {
		return nil, errors.New("analyzer: LLM client is required")
	}
	schema := cfg.Schema
	if schema == "" {
		schema = prompt.DefaultSchema()
	}
	logger := cfg.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("analyzer")
	}
	return &Analyzer{
		fetcher:   cfg.Fetcher,
		client:    cfg.Client,
		schema:    schema,
		stream:    cfg.Stream,
		callbacks: cfg.Callbacks,
		logger:    logger,
		tracer:    cfg.Tracer,
	}, nil
}

// Analyze fetches url, asks the model for a report against principles and
// returns the assembled report.
func (a *Analyzer) Analyze(ctx context.Context, url string, principles any) (result *Result, err error) {
	ctx, span := a.tracer.StartSpan(ctx, observability.SpanAnalyze, attribute.String(observability.AttrURL, url))
	defer func() { observability.EndSpan(span, err) }()
	start := time.Now()

	rec, err := a.fetcher.FetchAndExtract(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	span.SetAttributes(attribute.String(observability.AttrSource, string(rec.SourceType)))
	a.logger.Info("Extracted %s proposal %q (%d body chars, %d options)", rec.SourceType, rec.Title, len(rec.Body), len(rec.Options))

	userPrompt, err := prompt.Build(url, rec, principles, a.schema)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}
	promptTokens := prompt.RequestTokens(userPrompt)
	a.logger.Debug("Prompt ready: %d chars, ~%d tokens", len(userPrompt), promptTokens)

	var acc llm.JSONAccumulator
	callbacks := llm.Callbacks{
		OnDelta: func(delta string) {
			acc.Write(delta)
			if a.callbacks.OnDelta != nil {
				a.callbacks.OnDelta(delta)
			}
		},
		OnEvent: a.callbacks.OnEvent,
	}
	req := llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: prompt.SystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream: a.stream,
	}
	completion, err := llm.Do(ctx, a.client, req, callbacks)
	if err != nil {
		if acc.Len() > 0 {
			a.logger.Warn("LLM failed after %d bytes of output: %v", acc.Len(), err)
		}
		return nil, err
	}

	raw, err := llm.ParseReport(completion.Content)
	if err != nil {
		if refusal := report.CheckUnparsed(completion.Content); refusal != nil {
			return nil, refusal
		}
		a.logger.Error("Model returned non-JSON: %s", truncate(completion.Content, 2000))
		return nil, err
	}

	return &Result{
		Record:       rec,
		Report:       report.Assemble(raw, url, rec, completion.Lifecycle),
		Completion:   completion,
		PromptTokens: promptTokens,
		Duration:     time.Since(start),
	}, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
