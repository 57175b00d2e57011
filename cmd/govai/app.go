package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"govai/internal/analyzer"
	"govai/internal/config"
	alexerrors "govai/internal/errors"
	"govai/internal/httpclient"
	"govai/internal/llm"
	"govai/internal/logging"
	"govai/internal/observability"
	"govai/internal/prompt"
	"govai/internal/source"
)

const fetchTimeout = 60 * time.Second

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

var errNoAPIKey = errors.New("AMBIENT_API_KEY is not set. Put it into .env file.")

func errorText(msg string) string {
	return red(msg)
}

// isTTY checks if stdout is an interactive terminal.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// globalOptions are the persistent root flags.
type globalOptions struct {
	configPath string
	envFile    string
	debug      bool
	stream     bool
}

// app is the configured runtime shared by every command.
type app struct {
	cfg        config.Config
	logger     logging.Logger
	metrics    *observability.Metrics
	tracer     *observability.TracerProvider
	httpClient *http.Client
}

func newApp(opts *globalOptions, overrides map[string]any) (*app, error) {
	loadOpts := []config.Option{config.WithEnvFile(opts.envFile)}
	if opts.configPath != "" {
		loadOpts = append(loadOpts, config.WithConfigPath(opts.configPath))
	}
	if opts.stream {
		overrides["LLM_STREAM"] = true
	}
	if len(overrides) > 0 {
		loadOpts = append(loadOpts, config.WithOverrides(overrides))
	}
	cfg, err := config.Load(loadOpts...)
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if opts.debug {
		level = "debug"
	}
	logging.Configure(logging.Config{Level: level, Format: cfg.Logging.Format, Output: os.Stderr})
	logger := logging.NewComponentLogger("govai")

	tracer, err := observability.NewTracerProvider(observability.TracingConfig{
		Enabled:        cfg.Tracing.Enabled,
		Exporter:       cfg.Tracing.Exporter,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		ZipkinEndpoint: cfg.Tracing.ZipkinEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		ServiceName:    "govai",
	})
	if err != nil {
		logger.Warn("tracing disabled: %v", err)
		tracer = nil
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		metrics:    observability.DefaultMetrics(),
		tracer:     tracer,
		httpClient: httpclient.New(fetchTimeout, logging.NewComponentLogger("http")),
	}, nil
}

func (a *app) close() {
	if a.tracer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Warn("tracer shutdown: %v", err)
	}
}

func (a *app) fetcher() *source.Fetcher {
	return source.NewFetcher(source.Options{
		HTTPClient:  a.httpClient,
		SnapshotURL: a.cfg.SnapshotURL,
		TallyURL:    a.cfg.TallyURL,
		TallyAPIKey: a.cfg.TallyAPIKey,
		Logger:      logging.NewComponentLogger("fetcher"),
		Metrics:     a.metrics,
		Tracer:      a.tracer,
	})
}

// ambientClient is the analysis provider wrapped with retries and a
// circuit breaker.
func (a *app) ambientClient() (llm.Client, error) {
	p := a.cfg.Ambient
	if p.APIKey == "" {
		return nil, errNoAPIKey
	}
	client, err := llm.NewOpenAIClient(llm.Config{
		Provider:  p.Name,
		BaseURL:   p.BaseURL,
		APIKey:    p.APIKey,
		Model:     p.Model,
		MaxTokens: p.MaxTokens,
		Timeout:   a.cfg.LLMTimeout,
	}, llm.WithMetrics(a.metrics), llm.WithTracer(a.tracer))
	if err != nil {
		return nil, err
	}
	retryCfg := alexerrors.RetryConfig{
		MaxAttempts:  2,
		BaseDelay:    2 * time.Second,
		MaxDelay:     20 * time.Second,
		JitterFactor: 0.25,
		Strategy:     alexerrors.BackoffExponential,
	}
	breakerLogger := logging.NewComponentLogger("breaker")
	breaker := alexerrors.NewCircuitBreaker(p.Name, alexerrors.CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		OnStateChange: func(from, to alexerrors.CircuitState, name string) {
			breakerLogger.Warn("circuit %s: %s -> %s", name, from, to)
		},
	})
	return llm.NewRetryClient(client, retryCfg, breaker), nil
}

func (a *app) analyzer(callbacks llm.Callbacks) (*analyzer.Analyzer, error) {
	client, err := a.ambientClient()
	if err != nil {
		return nil, err
	}
	schema, err := prompt.LoadSchema(a.cfg.SchemaPath)
	if err != nil {
		return nil, err
	}
	return analyzer.New(analyzer.Config{
		Fetcher:   a.fetcher(),
		Client:    client,
		Schema:    schema,
		Stream:    a.cfg.Stream,
		Callbacks: callbacks,
		Logger:    logging.NewComponentLogger("analyzer"),
		Tracer:    a.tracer,
	})
}
