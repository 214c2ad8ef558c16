// Package metrics provides Prometheus metrics collection for speechgate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for speechgate.
type Collector struct {
	// Synthesis request metrics
	SynthRequestsTotal *prometheus.CounterVec
	SynthDuration      *prometheus.HistogramVec

	// Admission and quota metrics
	RateLimitHits  prometheus.Counter
	QuotaDenials   *prometheus.CounterVec
	UsageCommitted *prometheus.CounterVec

	// Provider metrics
	ProviderAttempts *prometheus.CounterVec
	ProviderRetries  *prometheus.CounterVec

	// Ledger metrics
	LedgerCommitDuration prometheus.Histogram
	LedgerCommitErrors   prometheus.Counter

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
}

// New creates a new metrics collector registered on the default registry.
func New() *Collector {
	return newWith(promauto.With(prometheus.DefaultRegisterer))
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	return newWith(promauto.With(reg))
}

func newWith(factory promauto.Factory) *Collector {
	return &Collector{
		SynthRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "speechgate",
				Name:      "synth_requests_total",
				Help:      "Total synthesis requests by tier and outcome",
			},
			[]string{"tier", "outcome"},
		),
		SynthDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "speechgate",
				Name:      "synth_duration_seconds",
				Help:      "End-to-end synthesis request duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"tier"},
		),
		RateLimitHits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "speechgate",
				Name:      "rate_limit_hits_total",
				Help:      "Total requests denied by admission control",
			},
		),
		QuotaDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "speechgate",
				Name:      "quota_denials_total",
				Help:      "Total requests denied by the quota ledger",
			},
			[]string{"tier"},
		),
		UsageCommitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "speechgate",
				Name:      "usage_committed_total",
				Help:      "Billable units committed to the ledger by tier and unit",
			},
			[]string{"tier", "unit"},
		),
		ProviderAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "speechgate",
				Name:      "provider_attempts_total",
				Help:      "Provider call attempts by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		ProviderRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "speechgate",
				Name:      "provider_retries_total",
				Help:      "Provider call retries by operation",
			},
			[]string{"operation"},
		),
		LedgerCommitDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "speechgate",
				Name:      "ledger_commit_duration_seconds",
				Help:      "Ledger commit duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		LedgerCommitErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "speechgate",
				Name:      "ledger_commit_errors_total",
				Help:      "Total failed ledger commits",
			},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "speechgate",
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "speechgate",
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
	}
}
