// Package metrics holds the prometheus collectors shared by the sync layer
// and the HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// CacheLookups counts cache reads by outcome (hit, stale, miss).
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_lookups_total",
			Help: "Total number of query cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	// CacheInvalidations counts explicit invalidations per cache key.
	CacheInvalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_invalidations_total",
			Help: "Total number of cache key invalidations",
		},
		[]string{"key"},
	)

	// CacheRefetches counts backend fetches triggered by misses,
	// revalidation, or invalidation. Singleflight-collapsed calls count once.
	CacheRefetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_refetches_total",
			Help: "Total number of backend fetches performed by the cache",
		},
		[]string{"key"},
	)

	// IdentityResolutions counts resolver outcomes
	// (authenticated, anonymous, degraded, superseded).
	IdentityResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_resolutions_total",
			Help: "Total number of identity resolutions by outcome",
		},
		[]string{"outcome"},
	)

	// ActiveSubscriptions gauges the current realtime subscription count.
	ActiveSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_active_subscriptions",
			Help: "Number of currently established realtime subscriptions",
		},
	)

	// RealtimeEvents counts delivered change events per table.
	RealtimeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_total",
			Help: "Total number of change events delivered by table",
		},
		[]string{"table"},
	)

	// RealtimeResubscribes counts full registry rebuilds
	// (identity change or transport reconnect).
	RealtimeResubscribes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_resubscribes_total",
			Help: "Total number of full subscription set rebuilds",
		},
	)

	// GatewayCalls counts payment gateway invocations by action and result.
	GatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_calls_total",
			Help: "Total number of payment gateway calls by action and result",
		},
		[]string{"action", "result"},
	)
)

// Register installs all collectors on the given registry. Passing nil uses
// the default registerer.
func Register(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		CacheLookups,
		CacheInvalidations,
		CacheRefetches,
		IdentityResolutions,
		ActiveSubscriptions,
		RealtimeEvents,
		RealtimeResubscribes,
		GatewayCalls,
	)
}
