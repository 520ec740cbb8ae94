// Package metrics exposes Prometheus metrics for the reconciliation engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ReconcileTotal counts reconciliation attempts by record and outcome.
	ReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dyndnsd_reconcile_total",
			Help: "Reconciliation attempts by record and outcome",
		},
		[]string{"record", "outcome"},
	)

	// ProviderErrorsTotal counts provider failures by record and error kind.
	ProviderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dyndnsd_provider_errors_total",
			Help: "Provider publish failures by record and error classification",
		},
		[]string{"record", "kind"},
	)

	// ResolveFailuresTotal counts failed public address resolutions.
	ResolveFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dyndnsd_resolve_failures_total",
			Help: "Public address resolutions that produced no agreed-upon address",
		},
		[]string{"record"},
	)

	// LastSuccessTimestamp is the Unix time of the last confirmed publish.
	LastSuccessTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dyndnsd_last_success_timestamp_seconds",
			Help: "Timestamp of the last confirmed publish per record",
		},
		[]string{"record"},
	)

	// RetryAttempts is the current consecutive-failure count per record.
	RetryAttempts = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dyndnsd_retry_attempts",
			Help: "Consecutive failed reconciliation attempts since the last success",
		},
		[]string{"record"},
	)
)

func init() {
	prometheus.MustRegister(ReconcileTotal)
	prometheus.MustRegister(ProviderErrorsTotal)
	prometheus.MustRegister(ResolveFailuresTotal)
	prometheus.MustRegister(LastSuccessTimestamp)
	prometheus.MustRegister(RetryAttempts)
}
