// Package metrics exposes Prometheus instrumentation for syncs and
// connector fetches.
//
// Collectors are registered with the default registry on package load.
// Handler serves them for the daemon's /metrics endpoint.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sercha_ingest"

var (
	// syncsTotal counts finished syncs.
	// Labels: source_type, mode (full, incremental), status (completed, failed)
	syncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "total",
		Help:      "Finished syncs by source type, mode and terminal status",
	}, []string{"source_type", "mode", "status"})

	// syncDuration measures sync wall time.
	// Labels: source_type, status
	syncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "duration_seconds",
		Help:      "Sync duration in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"source_type", "status"})

	// documentsTotal counts documents handed to ingestion.
	// Labels: source_type
	documentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "documents_total",
		Help:      "Documents handed to the ingestion consumer",
	}, []string{"source_type"})

	// skippedTotal counts items connectors could not convert.
	// Labels: source_type
	skippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "skipped_total",
		Help:      "Items skipped by connectors",
	}, []string{"source_type"})

	// rejectedTotal counts syncs refused before starting.
	// Labels: reason (in_progress, forbidden, inactive, credential, not_found, other)
	rejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "rejected_total",
		Help:      "Sync requests rejected before any state change",
	}, []string{"reason"})

	// staleResetsTotal counts abandoned syncs forced to failed.
	staleResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "stale_resets_total",
		Help:      "Abandoned syncs reset to failed",
	})

	// inFlight tracks syncs currently running in this process.
	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "in_flight",
		Help:      "Syncs currently running in this process",
	})
)

// SyncStarted marks a sync as running. Call the returned func when it ends.
func SyncStarted() func() {
	inFlight.Inc()
	return inFlight.Dec
}

// RecordSync records a finished sync.
func RecordSync(sourceType, mode, status string, d time.Duration, documents, skipped int) {
	syncsTotal.WithLabelValues(sourceType, mode, status).Inc()
	syncDuration.WithLabelValues(sourceType, status).Observe(d.Seconds())
	if documents > 0 {
		documentsTotal.WithLabelValues(sourceType).Add(float64(documents))
	}
	if skipped > 0 {
		skippedTotal.WithLabelValues(sourceType).Add(float64(skipped))
	}
}

// RecordRejected records a sync refused before starting.
func RecordRejected(reason string) {
	rejectedTotal.WithLabelValues(reason).Inc()
}

// RecordStaleResets records n abandoned syncs reset to failed.
func RecordStaleResets(n int) {
	if n > 0 {
		staleResetsTotal.Add(float64(n))
	}
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
