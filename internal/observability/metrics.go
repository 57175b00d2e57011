package observability

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "govai"

// Metrics exposes Prometheus collectors for fetches, LLM calls and jobs.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	fetches         *prometheus.CounterVec
	llmRequests     *prometheus.CounterVec
	llmDuration     *prometheus.HistogramVec
	llmTokens       *prometheus.CounterVec
	lifecycleEvents *prometheus.CounterVec
	jobs            *prometheus.CounterVec
	jobsActive      prometheus.Gauge
	jobsQueued      prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the instance registered with the global registry.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs Metrics on reg. Collectors already registered
// with identical descriptors are reused; any other registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		fetches: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "fetches_total",
			Help:      "Proposal fetch attempts by source and outcome.",
		}, []string{"source", "outcome"})),
		llmRequests: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Chat completion requests by provider, mode and outcome.",
		}, []string{"provider", "mode", "outcome"})),
		llmDuration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "Wall time of chat completion requests.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"provider", "mode"})),
		llmTokens: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Tokens reported by providers, split into prompt and completion.",
		}, []string{"provider", "kind"})),
		lifecycleEvents: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "lifecycle_events_total",
			Help:      "Streamed auction, bid and verification events.",
		}, []string{"kind"})),
		jobs: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "completed_total",
			Help:      "Analysis jobs finished, by outcome.",
		}, []string{"outcome"})),
		jobsActive: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "active",
			Help:      "Jobs currently running.",
		})),
		jobsQueued: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "queued",
			Help:      "Jobs waiting for a worker.",
		})),
	}
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, collector C) C {
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return collector
}

// ObserveFetch counts one fetch attempt against a source.
func (m *Metrics) ObserveFetch(source, outcome string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(source, outcome).Inc()
}

// ObserveLLM records a finished chat completion call.
func (m *Metrics) ObserveLLM(provider, mode, outcome string, duration time.Duration, promptTokens, completionTokens int) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(provider, mode, outcome).Inc()
	m.llmDuration.WithLabelValues(provider, mode).Observe(duration.Seconds())
	if promptTokens > 0 {
		m.llmTokens.WithLabelValues(provider, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.llmTokens.WithLabelValues(provider, "completion").Add(float64(completionTokens))
	}
}

// ObserveLifecycleEvent counts a streamed lifecycle event by kind.
func (m *Metrics) ObserveLifecycleEvent(kind string) {
	if m == nil {
		return
	}
	m.lifecycleEvents.WithLabelValues(kind).Inc()
}

// JobQueued marks a job as waiting.
func (m *Metrics) JobQueued() {
	if m == nil {
		return
	}
	m.jobsQueued.Inc()
}

// JobStarted moves a job from waiting to running.
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.jobsQueued.Dec()
	m.jobsActive.Inc()
}

// JobFinished records a running job's outcome.
func (m *Metrics) JobFinished(outcome string) {
	if m == nil {
		return
	}
	m.jobsActive.Dec()
	m.jobs.WithLabelValues(outcome).Inc()
}
