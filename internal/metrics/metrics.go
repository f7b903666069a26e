package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values for the restore and backup counters.
const (
	ResultOK        = "ok"
	ResultSkipped   = "skipped"
	ResultError     = "error"
	ResultCancelled = "cancelled"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	edges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iniguard",
			Subsystem: "monitor",
			Name:      "edges_total",
			Help:      "Presence transitions observed by the monitor.",
		}, []string{"edge"},
	)
	monitorRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "iniguard",
			Subsystem: "monitor",
			Name:      "running",
			Help:      "1 while a monitoring session is active.",
		},
	)
	targetPresent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "iniguard",
			Subsystem: "monitor",
			Name:      "target_present",
			Help:      "1 while the monitored process is reported running.",
		},
	)
	restores = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iniguard",
			Subsystem: "restore",
			Name:      "total",
			Help:      "Delayed and manual restores by result (ok, skipped, error, cancelled).",
		}, []string{"result"},
	)
	pendingRestore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "iniguard",
			Subsystem: "restore",
			Name:      "pending",
			Help:      "1 while a delayed restore is scheduled.",
		},
	)
	backups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iniguard",
			Subsystem: "backup",
			Name:      "total",
			Help:      "Backups by result (ok, error).",
		}, []string{"result"},
	)
	presetsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iniguard",
			Subsystem: "preset",
			Name:      "applied_total",
			Help:      "Presets copied over the live config.",
		}, []string{"preset"},
	)
	probeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "iniguard",
			Subsystem: "monitor",
			Name:      "probe_duration_seconds",
			Help:      "Time spent scanning the process table.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{edges, monitorRunning, targetPresent, restores, pendingRestore, backups, presetsApplied, probeDuration}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

// IncEdge counts a "started" or "stopped" transition.
func IncEdge(edge string) {
	if regOK.Load() {
		edges.WithLabelValues(edge).Inc()
	}
}

func SetMonitorRunning(on bool) {
	if regOK.Load() {
		monitorRunning.Set(b2f(on))
	}
}

func SetTargetPresent(on bool) {
	if regOK.Load() {
		targetPresent.Set(b2f(on))
	}
}

func IncRestore(result string) {
	if regOK.Load() {
		restores.WithLabelValues(result).Inc()
	}
}

func SetPendingRestore(on bool) {
	if regOK.Load() {
		pendingRestore.Set(b2f(on))
	}
}

func IncBackup(result string) {
	if regOK.Load() {
		backups.WithLabelValues(result).Inc()
	}
}

func IncPresetApplied(name string) {
	if regOK.Load() {
		presetsApplied.WithLabelValues(name).Inc()
	}
}

func ObserveProbe(seconds float64) {
	if regOK.Load() {
		probeDuration.Observe(seconds)
	}
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
