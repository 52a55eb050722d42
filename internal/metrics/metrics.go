// Package metrics exposes Prometheus collectors for the Process Manager,
// registered under the "csrunner" namespace, in the "application" subsystem
// (plus "log_pipeline" for dropped log lines). Grounded in the
// teacher's internal/metrics package shape (package-level CounterVec/
// GaugeVec/HistogramVec collectors behind an idempotent Register, plus thin
// IncX/SetX helpers that no-op until registered), relabeled from the
// teacher's single process "name" dimension to this package's
// (config_id, app_id) granularity.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	regOK atomic.Bool

	appStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "csrunner",
			Subsystem: "application",
			Name:      "starts_total",
			Help:      "Number of successful application starts.",
		}, []string{"config_id", "app_id"},
	)
	appRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "csrunner",
			Subsystem: "application",
			Name:      "restarts_total",
			Help:      "Number of auto-restarts following an unexpected exit.",
		}, []string{"config_id", "app_id"},
	)
	appStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "csrunner",
			Subsystem: "application",
			Name:      "stops_total",
			Help:      "Number of stops, graceful or killed.",
		}, []string{"config_id", "app_id"},
	)
	startDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "csrunner",
			Subsystem: "application",
			Name:      "start_duration_seconds",
			Help:      "Time from spawn to the first healthy verdict (or immediate start, with no health check).",
			Buckets:   prometheus.DefBuckets,
		}, []string{"config_id", "app_id"},
	)
	currentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "csrunner",
			Subsystem: "application",
			Name:      "current_state",
			Help:      "Current state of an application (1 = active state, 0 = inactive).",
		}, []string{"config_id", "app_id", "state"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "csrunner",
			Subsystem: "application",
			Name:      "state_transitions_total",
			Help:      "Number of state transitions an application has made.",
		}, []string{"config_id", "app_id", "from", "to"},
	)
	droppedLogLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "csrunner",
			Subsystem: "log_pipeline",
			Name:      "dropped_lines_total",
			Help:      "Log lines dropped because the bounded in-memory buffer was full.",
		}, []string{"config_id", "app_id"},
	)
)

// Register registers all collectors with r. Safe to call more than once.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{appStarts, appRestarts, appStops, startDuration, currentState, stateTransitions, droppedLogLines}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
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

// Handler serves metrics for the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

func IncStart(configID, appID string) {
	if regOK.Load() {
		appStarts.WithLabelValues(configID, appID).Inc()
	}
}

func IncRestart(configID, appID string) {
	if regOK.Load() {
		appRestarts.WithLabelValues(configID, appID).Inc()
	}
}

func IncStop(configID, appID string) {
	if regOK.Load() {
		appStops.WithLabelValues(configID, appID).Inc()
	}
}

func ObserveStartDuration(configID, appID string, seconds float64) {
	if regOK.Load() {
		startDuration.WithLabelValues(configID, appID).Observe(seconds)
	}
}

func SetCurrentState(configID, appID, state string, active bool) {
	if regOK.Load() {
		var v float64
		if active {
			v = 1
		}
		currentState.WithLabelValues(configID, appID, state).Set(v)
	}
}

func RecordStateTransition(configID, appID, from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(configID, appID, from, to).Inc()
	}
}

func IncDroppedLogLines(configID, appID string, n int) {
	if regOK.Load() && n > 0 {
		droppedLogLines.WithLabelValues(configID, appID).Add(float64(n))
	}
}
