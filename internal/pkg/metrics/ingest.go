package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SpansIngested counts trace spans accepted, labeled by record kind.
	SpansIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentscope_spans_ingested_total",
			Help: "Total number of trace spans ingested",
		},
		[]string{"tenant_id", "kind"},
	)

	// MetricPointsIngested counts metric data points accepted.
	MetricPointsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentscope_metric_points_ingested_total",
			Help: "Total number of metric data points ingested",
		},
		[]string{"tenant_id", "snapshot"},
	)

	// LogRecordsIngested counts log records accepted.
	LogRecordsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentscope_log_records_ingested_total",
			Help: "Total number of log records ingested",
		},
		[]string{"tenant_id"},
	)

	// RollupsApplied counts post-batch message rollups, labeled by outcome.
	RollupsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentscope_message_rollups_total",
			Help: "Total number of agent message rollup updates",
		},
		[]string{"outcome"},
	)

	// IngestLatency observes trace batch ingestion latency.
	IngestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentscope_ingest_latency_seconds",
			Help:    "Telemetry batch ingestion latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"signal"},
	)
)
