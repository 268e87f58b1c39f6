package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the dispatcher counters. Every failure class from the
// error taxonomy gets its own counter so poison events and schema drift are
// visible without log digging.
type Registry struct {
	reg *prometheus.Registry

	Applied            prometheus.Counter
	Duplicates         prometheus.Counter
	IllegalTransitions prometheus.Counter
	UnknownEvents      prometheus.Counter
	Conflicts          prometheus.Counter
	HandleLatencySec   prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	applied := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_events_applied_total",
		Help: "Inbound events successfully applied to an order.",
	})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_events_duplicate_total",
		Help: "Redelivered events skipped by the idempotence ledger.",
	})
	illegal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_illegal_transitions_total",
		Help: "Events rejected because their target status is unreachable.",
	})
	unknown := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_unknown_events_total",
		Help: "Events with no registered handler or an undecodable payload.",
	})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_save_conflicts_total",
		Help: "Optimistic concurrency conflicts during save.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fulfillment_handle_latency_seconds",
		Help:    "Wall time of one dispatch, including conflict retries.",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(applied, duplicates, illegal, unknown, conflicts, latency)

	return &Registry{
		reg:                r,
		Applied:            applied,
		Duplicates:         duplicates,
		IllegalTransitions: illegal,
		UnknownEvents:      unknown,
		Conflicts:          conflicts,
		HandleLatencySec:   latency,
	}
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
