// Package metrics declares the Prometheus instruments exported by the
// tracker. All vectors are registered with the default registry via
// promauto and scraped through the cached /metrics handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestReportsTotal counts location reports by outcome
	// (accepted, validation_error, not_found, transient_error).
	IngestReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_ingest_reports_total",
		Help: "Number of vehicle location reports processed, by outcome",
	}, []string{"outcome"})

	// LiveQueriesTotal counts on-demand live snapshot queries by outcome.
	LiveQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_live_queries_total",
		Help: "Number of live snapshot queries served, by outcome",
	}, []string{"outcome"})
)

var (
	// GeometryCacheLookups counts geometry cache reads by result (hit/miss).
	GeometryCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_geometry_cache_lookups_total",
		Help: "Number of geometry cache lookups, by result (hit or miss)",
	}, []string{"result"})

	// TrackedVehiclesGauge reports the number of vehicles that have sent at
	// least one report since startup.
	TrackedVehiclesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_tracked_vehicles",
		Help: "Number of vehicles with live state observed by this process",
	})
)

var (
	// BroadcastEmissionsTotal counts push events emitted per route room.
	BroadcastEmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_broadcast_emissions_total",
		Help: "Number of bus:update events emitted to route rooms",
	}, []string{"route_id"})

	// PushSubscribersGauge reports currently connected push subscribers.
	PushSubscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_push_subscribers",
		Help: "Number of currently connected push channel subscribers",
	})
)

var (
	// HotStoreUp reports whether the last hot-store ping succeeded.
	HotStoreUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_hot_store_up",
		Help: "1 when the hot key/value store answered the last ping, 0 otherwise",
	})

	// DurableStoreUp reports whether the last durable-store ping succeeded.
	DurableStoreUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_durable_store_up",
		Help: "1 when the durable store answered the last ping, 0 otherwise",
	})

	// OutgoingLatency observes the latency of outbound HTTP requests made by
	// the tracker, such as remote config fetches.
	OutgoingLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tracker_outgoing_request_latency_seconds",
		Help:    "Latency of outgoing HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"url", "method", "status"})
)
