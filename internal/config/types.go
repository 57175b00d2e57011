package config

import "time"

// Default endpoints and file locations.
const (
	DefaultAmbientBaseURL = "https://api.ambient.xyz/v1"
	DefaultNousBaseURL    = "https://inference-api.nousresearch.com/v1"
	DefaultNousModel      = "Hermes-4-70B"
	DefaultSnapshotURL    = "https://hub.snapshot.org/graphql"
	DefaultTallyURL       = "https://api.tally.xyz/query"

	DefaultPort           = 3000
	DefaultPagePort       = 3100
	DefaultReportsDir     = "reports"
	DefaultProdReportsDir = "prod-reports"
	DefaultBenchDir       = "bench-results"
	DefaultPrinciples     = "principles.json"
	DefaultExample        = "principles.example.json"
	DefaultSchema         = "report.schema.json"
	DefaultMaxTokens      = 100000
)

// Provider holds the connection settings for one OpenAI-style endpoint.
type Provider struct {
	Name      string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// Pricing is USD per one million tokens.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// Bench configures the cost/latency harness.
type Bench struct {
	Runs        int
	Retries     int
	Timeout     time.Duration
	Parallel    bool
	AmbientTier string // standard | mini
	// AmbientStandard, AmbientMini and Nous are per-tier price sheets.
	AmbientStandard Pricing
	AmbientMini     Pricing
	Nous            Pricing
}

// Logging selects the slog handler.
type Logging struct {
	Level  string
	Format string
}

// Tracing mirrors observability.TracingConfig without importing it.
type Tracing struct {
	Enabled        bool
	Exporter       string
	OTLPEndpoint   string
	ZipkinEndpoint string
	SampleRate     float64
}

// Config is the fully resolved runtime configuration shared by every binary.
type Config struct {
	Ambient Provider
	Nous    Provider

	TallyAPIKey string
	SnapshotURL string
	TallyURL    string
	ProposalURL string

	Port           int
	PagePort       int
	ReportsDir     string
	ProdReportsDir string
	BenchDir       string

	PrinciplesPath string
	ExamplePath    string
	SchemaPath     string

	Stream           bool
	LLMTimeout       time.Duration
	QueueConcurrency int

	Bench   Bench
	Logging Logging
	Tracing Tracing
}

// SelectedAmbientPricing returns the price sheet for the configured tier.
func (b Bench) SelectedAmbientPricing() (string, Pricing) {
	if b.AmbientTier == "mini" {
		return "mini", b.AmbientMini
	}
	return "standard", b.AmbientStandard
}
