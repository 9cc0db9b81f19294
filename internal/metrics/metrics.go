// Package metrics defines the Prometheus collectors exported by the
// turnstile server and the storage observation hook feeding them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ArrivalsTotal counts enqueued arrival requests.
	ArrivalsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "turnstile_arrivals_total",
		Help: "Total number of arrival requests enqueued",
	})
	// AdmissionsTotal counts admissions emitted by the controller.
	AdmissionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "turnstile_admissions_total",
		Help: "Total number of admissions emitted",
	})
	// ReleasesTotal counts release signals applied.
	ReleasesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "turnstile_releases_total",
		Help: "Total number of release signals received",
	})
	// ReleasesIgnoredTotal counts release signals dropped as no-ops
	// (empty key, unknown queue, or head key mismatch).
	ReleasesIgnoredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "turnstile_releases_ignored_total",
		Help: "Total number of release signals ignored as no-ops",
	})
	// WaitingGauge reports entries currently queued across all gates.
	WaitingGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "turnstile_waiting",
		Help: "Current number of queued entries across all gates",
	})
	// LockedKeysGauge reports queues whose head currently holds the lock.
	LockedKeysGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "turnstile_locked_keys",
		Help: "Current number of locked queues across all gates",
	})

	storageWriteSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "turnstile_storage_write_seconds",
		Help:    "Latency of storage writes",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})
	storageReadSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "turnstile_storage_read_seconds",
		Help:    "Latency of storage reads",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})
	storageCommitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "turnstile_storage_commit_seconds",
		Help:    "Latency of storage batch commits",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})
)

// NewRegistry creates a Prometheus registry with core metrics registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	Register(reg)
	return reg
}

// Register registers turnstile core metrics on the provided registerer.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		ArrivalsTotal, AdmissionsTotal, ReleasesTotal, ReleasesIgnoredTotal,
		WaitingGauge, LockedKeysGauge,
		storageWriteSeconds, storageReadSeconds, storageCommitSeconds,
	)
}

// StorageHook feeds storage latencies into the histograms above. It
// satisfies the Pebble store's MetricsHook interface.
type StorageHook struct{}

func (StorageHook) ObserveWrite(elapsed time.Duration, _ int) {
	storageWriteSeconds.Observe(elapsed.Seconds())
}

func (StorageHook) ObserveRead(elapsed time.Duration, _ int) {
	storageReadSeconds.Observe(elapsed.Seconds())
}

func (StorageHook) ObserveBatchCommit(elapsed time.Duration, _ int) {
	storageCommitSeconds.Observe(elapsed.Seconds())
}
