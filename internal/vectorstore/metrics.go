package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts store operations.
	// Labels: op (ingest, search, delete), result (success, validation, authorization, persistence, provider, internal)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "projectrag",
			Subsystem: "vectorstore",
			Name:      "operations_total",
			Help:      "Total number of vector store operations by outcome",
		},
		[]string{"op", "result"},
	)

	// OperationDuration tracks end-to-end operation latency, embedding included.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "projectrag",
			Subsystem: "vectorstore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of vector store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// ChunksIngested counts chunks that were durably stored.
	ChunksIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "projectrag",
			Subsystem: "vectorstore",
			Name:      "chunks_ingested_total",
			Help:      "Total number of chunks durably ingested",
		},
	)

	// SnapshotWrites counts snapshot writes.
	// Labels: result (success, error)
	SnapshotWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "projectrag",
			Subsystem: "vectorstore",
			Name:      "snapshot_writes_total",
			Help:      "Total number of snapshot writes by result",
		},
		[]string{"result"},
	)

	// SnapshotWriteDuration tracks how long snapshot writes hold the write lock.
	SnapshotWriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "projectrag",
			Subsystem: "vectorstore",
			Name:      "snapshot_write_duration_seconds",
			Help:      "Duration of snapshot writes in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// Rollbacks counts in-memory mutations undone after a failed snapshot write.
	Rollbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "projectrag",
			Subsystem: "vectorstore",
			Name:      "rollbacks_total",
			Help:      "Total number of mutations rolled back after persistence failure",
		},
	)

	// ProjectsGauge is the current number of projects with stored vectors.
	ProjectsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "projectrag",
			Subsystem: "vectorstore",
			Name:      "projects",
			Help:      "Current number of projects with stored vectors",
		},
	)

	// VectorsGauge is the current number of stored vectors.
	VectorsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "projectrag",
			Subsystem: "vectorstore",
			Name:      "vectors",
			Help:      "Current number of stored vectors",
		},
	)
)

// recordOperation records the outcome and latency of a store operation.
func recordOperation(op string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = string(KindOf(err))
	}
	OperationsTotal.WithLabelValues(op, result).Inc()
	OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// recordSnapshotWrite records the outcome of a snapshot write.
func recordSnapshotWrite(start time.Time, err error) {
	SnapshotWriteDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		SnapshotWrites.WithLabelValues("error").Inc()
		return
	}
	SnapshotWrites.WithLabelValues("success").Inc()
}

// updateSizeGauges sets the project and vector gauges.
func updateSizeGauges(projects, vectors int) {
	ProjectsGauge.Set(float64(projects))
	VectorsGauge.Set(float64(vectors))
}
