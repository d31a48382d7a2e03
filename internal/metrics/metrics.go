// Package metrics exposes the consumer's Prometheus gauges and counters:
// broker throughput, worker pool backpressure, and per-sink outcomes.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "icad_consumer"

// Broker/consumer counters.
var (
	MQTTMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mqtt_messages_total",
		Help:      "Total MQTT messages received, by topic.",
	}, []string{"topic"})

	MQTTMessagesRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mqtt_messages_rejected_total",
		Help:      "Messages rejected before reaching the pipeline, by reason.",
	}, []string{"reason"})
)

// Worker pool backpressure gauges (spec §4.1/§5: pending, running, waiting = pending - running).
var (
	WorkerPoolPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "worker_pool_pending",
		Help:      "Jobs currently enqueued or running in the worker pool.",
	})

	WorkerPoolRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "worker_pool_running",
		Help:      "Jobs currently executing in the worker pool.",
	})

	WorkerPoolWaiting = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "worker_pool_waiting",
		Help:      "Jobs enqueued but not yet running (pending - running).",
	})
)

// Pipeline stage counters.
var (
	PipelineCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_calls_total",
		Help:      "Calls processed by the pipeline, by outcome.",
	}, []string{"outcome"}) // accepted, duplicate, dropped_unknown_system, fatal_error

	DuplicateRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "duplicate_rejected_total",
		Help:      "Calls rejected as duplicates, by system.",
	}, []string{"short_name"})
)

// Sink adapter counters.
var (
	SinkInvocationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sink_invocations_total",
		Help:      "Sink adapter invocations, by sink kind and outcome.",
	}, []string{"sink", "outcome"}) // outcome: ok, error
)

// Archive backend counters.
var (
	ArchiveUploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "archive_uploads_total",
		Help:      "Archive upload attempts, by backend and outcome.",
	}, []string{"backend", "outcome"})

	ArchiveCleanupFilesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "archive_cleanup_files_total",
		Help:      "Files removed by archive retention sweeps, by backend.",
	}, []string{"backend"})
)

func init() {
	prometheus.MustRegister(
		MQTTMessagesTotal,
		MQTTMessagesRejectedTotal,
		WorkerPoolPending,
		WorkerPoolRunning,
		WorkerPoolWaiting,
		PipelineCallsTotal,
		DuplicateRejectedTotal,
		SinkInvocationsTotal,
		ArchiveUploadsTotal,
		ArchiveCleanupFilesTotal,
	)
}
