// Package metrics defines the node agent's Prometheus collectors: worker
// throughput and the watchdog's observed delay, registered against the
// default registry the way the exporter collectors in the wider codebase
// register theirs, so a single promhttp.Handler() serves everything.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ThreadsActive tracks the current worker-pool occupancy.
	ThreadsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "nodeagent",
		Subsystem: "dispatch",
		Name:      "threads_active",
		Help:      "Number of worker goroutines currently dispatching an RPC.",
	})

	// WorkersDoneTotal counts successfully completed per-target RPCs.
	WorkersDoneTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nodeagent",
		Subsystem: "dispatch",
		Name:      "workers_done_total",
		Help:      "Total number of per-target RPCs that completed successfully.",
	})

	// WorkersFailedTotal counts per-target RPCs that failed or were
	// cancelled by the watchdog.
	WorkersFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nodeagent",
		Subsystem: "dispatch",
		Name:      "workers_failed_total",
		Help:      "Total number of per-target RPCs that failed or timed out.",
	})

	// WatchdogMaxDelaySeconds records the longest per-target RPC delay
	// observed in the most recently completed dispatch.
	WatchdogMaxDelaySeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "nodeagent",
		Subsystem: "dispatch",
		Name:      "watchdog_max_delay_seconds",
		Help:      "Longest per-target RPC delay observed in the most recent dispatch.",
	})
)

// Observe folds a dispatch outcome into the collectors above: how many
// workers were active at peak, how many finished each way, and the
// slowest successful round trip.
func Observe(active int, done, failed int, maxDelaySeconds float64) {
	ThreadsActive.Set(float64(active))
	WorkersDoneTotal.Add(float64(done))
	WorkersFailedTotal.Add(float64(failed))
	WatchdogMaxDelaySeconds.Set(maxDelaySeconds)
}
