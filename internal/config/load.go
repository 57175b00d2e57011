package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Option customizes Load.
type Option func(*loadOptions)

type loadOptions struct {
	envLookup  EnvLookup
	configPath string
	envFile    string
	overrides  map[string]any
}

// WithEnv replaces the environment lookup, mainly for tests.
func WithEnv(lookup EnvLookup) Option {
	return func(o *loadOptions) {
		o.envLookup = lookup
	}
}

// WithConfigPath points Load at a YAML or JSON config file. A missing file
// is an error when the path is set explicitly.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) {
		o.configPath = path
	}
}

// WithEnvFile changes the dotenv file consulted before the environment.
// An empty path disables dotenv loading.
func WithEnvFile(path string) Option {
	return func(o *loadOptions) {
		o.envFile = path
	}
}

// WithOverrides applies caller values on top of every other layer. Keys use
// the environment variable names.
func WithOverrides(overrides map[string]any) Option {
	return func(o *loadOptions) {
		if o.overrides == nil {
			o.overrides = map[string]any{}
		}
		for k, v := range overrides {
			o.overrides[k] = v
		}
	}
}

var defaults = map[string]any{
	"AMBIENT_BASE_URL":           DefaultAmbientBaseURL,
	"AMBIENT_MAX_TOKENS":         DefaultMaxTokens,
	"NOUS_BASE_URL":              DefaultNousBaseURL,
	"NOUS_MODEL":                 DefaultNousModel,
	"NOUS_MAX_TOKENS":            DefaultMaxTokens,
	"SNAPSHOT_GRAPHQL_URL":       DefaultSnapshotURL,
	"TALLY_GRAPHQL_URL":          DefaultTallyURL,
	"PORT":                       DefaultPort,
	"PAGE_PORT":                  DefaultPagePort,
	"REPORTS_DIR":                DefaultReportsDir,
	"PROD_REPORTS_DIR":           DefaultProdReportsDir,
	"BENCH_RESULTS_DIR":          DefaultBenchDir,
	"PRINCIPLES_PATH":            DefaultPrinciples,
	"PRINCIPLES_EXAMPLE_PATH":    DefaultExample,
	"SCHEMA_PATH":                DefaultSchema,
	"LLM_STREAM":                 false,
	"LLM_TIMEOUT_SECONDS":        600,
	"QUEUE_CONCURRENCY":          1,
	"BENCH_RUNS":                 3,
	"BENCH_RETRIES":              2,
	"BENCH_TIMEOUT_MS":           3000000,
	"BENCH_PARALLEL":             false,
	"AMBIENT_TIER":               "standard",
	"AMBIENT_STANDARD_IN_PER_M":  0.35,
	"AMBIENT_STANDARD_OUT_PER_M": 1.71,
	"AMBIENT_MINI_IN_PER_M":      0.05,
	"AMBIENT_MINI_OUT_PER_M":     0.5,
	"NOUS_IN_PER_M":              0.05,
	"NOUS_OUT_PER_M":             0.2,
	"LOG_LEVEL":                  "info",
	"LOG_FORMAT":                 "text",
	"TRACING_ENABLED":            false,
	"TRACING_EXPORTER":           "otlp",
	"TRACING_OTLP_ENDPOINT":      "",
	"TRACING_ZIPKIN_ENDPOINT":    "",
	"TRACING_SAMPLE_RATE":        1.0,
}

// Keys without defaults that are still read from every layer.
var plainKeys = []string{
	"AMBIENT_API_KEY",
	"AMBIENT_MODEL",
	"NOUS_API_KEY",
	"TALLY_API_KEY",
	"PROPOSAL_URL",
}

// Load resolves configuration from, lowest to highest precedence: built-in
// defaults, the optional config file, the dotenv file, the environment and
// caller overrides.
func Load(opts ...Option) (Config, error) {
	options := loadOptions{
		envLookup: AliasEnvLookup(DefaultEnvLookup, DefaultEnvAliases()),
		envFile:   ".env",
	}
	for _, opt := range opts {
		opt(&options)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if options.configPath != "" {
		v.SetConfigFile(options.configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", options.configPath, err)
		}
	}

	if err := mergeEnvFile(v, options.envFile); err != nil {
		return Config{}, err
	}

	for _, key := range knownKeys() {
		if value, ok := options.envLookup(key); ok {
			v.Set(key, value)
		}
	}
	for key, value := range options.overrides {
		v.Set(key, value)
	}

	cfg := fromViper(v)
	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeEnvFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	env := viper.New()
	env.SetConfigFile(path)
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return v.MergeConfigMap(env.AllSettings())
}

func knownKeys() []string {
	keys := make([]string, 0, len(defaults)+len(plainKeys))
	for key := range defaults {
		keys = append(keys, key)
	}
	return append(keys, plainKeys...)
}

func fromViper(v *viper.Viper) Config {
	return Config{
		Ambient: Provider{
			Name:      "ambient",
			APIKey:    strings.TrimSpace(v.GetString("AMBIENT_API_KEY")),
			BaseURL:   v.GetString("AMBIENT_BASE_URL"),
			Model:     v.GetString("AMBIENT_MODEL"),
			MaxTokens: v.GetInt("AMBIENT_MAX_TOKENS"),
		},
		Nous: Provider{
			Name:      "nous",
			APIKey:    strings.TrimSpace(v.GetString("NOUS_API_KEY")),
			BaseURL:   v.GetString("NOUS_BASE_URL"),
			Model:     v.GetString("NOUS_MODEL"),
			MaxTokens: v.GetInt("NOUS_MAX_TOKENS"),
		},
		TallyAPIKey:      strings.TrimSpace(v.GetString("TALLY_API_KEY")),
		SnapshotURL:      v.GetString("SNAPSHOT_GRAPHQL_URL"),
		TallyURL:         v.GetString("TALLY_GRAPHQL_URL"),
		ProposalURL:      strings.TrimSpace(v.GetString("PROPOSAL_URL")),
		Port:             v.GetInt("PORT"),
		PagePort:         v.GetInt("PAGE_PORT"),
		ReportsDir:       v.GetString("REPORTS_DIR"),
		ProdReportsDir:   v.GetString("PROD_REPORTS_DIR"),
		BenchDir:         v.GetString("BENCH_RESULTS_DIR"),
		PrinciplesPath:   v.GetString("PRINCIPLES_PATH"),
		ExamplePath:      v.GetString("PRINCIPLES_EXAMPLE_PATH"),
		SchemaPath:       v.GetString("SCHEMA_PATH"),
		Stream:           v.GetBool("LLM_STREAM"),
		LLMTimeout:       time.Duration(v.GetInt("LLM_TIMEOUT_SECONDS")) * time.Second,
		QueueConcurrency: v.GetInt("QUEUE_CONCURRENCY"),
		Bench: Bench{
			Runs:            v.GetInt("BENCH_RUNS"),
			Retries:         v.GetInt("BENCH_RETRIES"),
			Timeout:         time.Duration(v.GetInt64("BENCH_TIMEOUT_MS")) * time.Millisecond,
			Parallel:        v.GetBool("BENCH_PARALLEL"),
			AmbientTier:     strings.ToLower(strings.TrimSpace(v.GetString("AMBIENT_TIER"))),
			AmbientStandard: Pricing{InputPerM: v.GetFloat64("AMBIENT_STANDARD_IN_PER_M"), OutputPerM: v.GetFloat64("AMBIENT_STANDARD_OUT_PER_M")},
			AmbientMini:     Pricing{InputPerM: v.GetFloat64("AMBIENT_MINI_IN_PER_M"), OutputPerM: v.GetFloat64("AMBIENT_MINI_OUT_PER_M")},
			Nous:            Pricing{InputPerM: v.GetFloat64("NOUS_IN_PER_M"), OutputPerM: v.GetFloat64("NOUS_OUT_PER_M")},
		},
		Logging: Logging{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Tracing: Tracing{
			Enabled:        v.GetBool("TRACING_ENABLED"),
			Exporter:       v.GetString("TRACING_EXPORTER"),
			OTLPEndpoint:   v.GetString("TRACING_OTLP_ENDPOINT"),
			ZipkinEndpoint: v.GetString("TRACING_ZIPKIN_ENDPOINT"),
			SampleRate:     v.GetFloat64("TRACING_SAMPLE_RATE"),
		},
	}
}

func normalize(cfg *Config) error {
	cfg.Ambient.BaseURL = strings.TrimRight(cfg.Ambient.BaseURL, "/")
	cfg.Nous.BaseURL = strings.TrimRight(cfg.Nous.BaseURL, "/")
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", cfg.Port)
	}
	if cfg.PagePort <= 0 || cfg.PagePort > 65535 {
		return fmt.Errorf("invalid PAGE_PORT %d", cfg.PagePort)
	}
	if cfg.QueueConcurrency < 1 {
		cfg.QueueConcurrency = 1
	}
	if cfg.Bench.Runs < 1 {
		return fmt.Errorf("BENCH_RUNS must be at least 1, got %d", cfg.Bench.Runs)
	}
	if cfg.Bench.Retries < 0 {
		cfg.Bench.Retries = 0
	}
	if cfg.Bench.AmbientTier != "mini" {
		cfg.Bench.AmbientTier = "standard"
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = 10 * time.Minute
	}
	return nil
}
