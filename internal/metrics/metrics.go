// Package metrics provides Prometheus instrumentation for the Chain
// Monitor (spec §7, Non-goals: no metrics HTTP endpoint is exposed —
// these collectors exist for embedding callers to register and scrape).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry groups every metric the Chain Monitor and Validation Engine
// emit. Constructing one with NewRegistry registers all collectors
// against the supplied registerer; pass prometheus.NewRegistry() in
// tests to avoid colliding with the global default registry.
type Registry struct {
	CurrentBlock      *prometheus.GaugeVec
	GetBlockPause     *prometheus.GaugeVec
	ContractsFound    *prometheus.CounterVec
	ContractsInjected *prometheus.CounterVec
	ContractsSkipped  *prometheus.CounterVec
	ValidationTotal   *prometheus.CounterVec
}

// NewRegistry constructs and registers the Chain Monitor's metric
// collectors against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		CurrentBlock: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sourceverify_monitor_current_block",
			Help: "Most recently polled block number, by chain.",
		}, []string{"chain"}),

		GetBlockPause: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sourceverify_monitor_block_pause_seconds",
			Help: "Current adaptive pause between block polls, by chain.",
		}, []string{"chain"}),

		ContractsFound: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sourceverify_monitor_contracts_found_total",
			Help: "Contract-creation transactions observed, by chain.",
		}, []string{"chain"}),

		ContractsInjected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sourceverify_monitor_contracts_injected_total",
			Help: "Checked contracts successfully handed to the downstream verifier, by chain.",
		}, []string{"chain"}),

		ContractsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sourceverify_monitor_contracts_skipped_total",
			Help: "Contracts not injected, by chain and reason (already_verified, inject_failed).",
		}, []string{"chain", "reason"}),

		ValidationTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sourceverify_validation_total",
			Help: "Validation Engine outcomes.",
		}, []string{"outcome"}),
	}
}

// Noop returns a Registry registered against a private registry, for
// callers (tests, CLI runs without a /metrics endpoint) that want valid
// collectors without touching the process-wide default registry.
func Noop() *Registry {
	return NewRegistry(prometheus.NewRegistry())
}
