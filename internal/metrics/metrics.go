// Package metrics exposes Prometheus instrumentation for playback sessions
// and the HTTP API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stwalsh4118/montage/internal/models"
	"github.com/stwalsh4118/montage/internal/playback"
)

// Metrics holds Prometheus counters and gauges for the montage service.
type Metrics struct {
	registry         *prometheus.Registry
	requestsTotal    prometheus.Counter
	errorsTotal      prometheus.Counter
	phaseChanges     prometheus.Counter
	segmentChanges   prometheus.Counter
	driftCorrections *prometheus.CounterVec
	driftSeconds     prometheus.Histogram
	loopRearms       prometheus.Counter
	tickPanics       prometheus.Counter
	stallsDetected   prometheus.Counter
	stallsRecovered  prometheus.Counter
	runsFinished     *prometheus.CounterVec
	circuitsOpened   prometheus.Counter
	activeSessions   prometheus.Gauge
}

// New creates and registers Prometheus metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "montage_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "montage_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		phaseChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "montage_phase_changes_total",
			Help: "Total number of phase transitions across sessions",
		}),
		segmentChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "montage_segment_changes_total",
			Help: "Total number of segment transitions across sessions",
		}),
		driftCorrections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "montage_drift_corrections_total",
			Help: "Drift corrections applied to video surfaces, by action",
		}, []string{"action"}),
		driftSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "montage_drift_seconds",
			Help:    "Absolute drift measured when a correction was applied",
			Buckets: []float64{0.15, 0.25, 0.5, 1, 2, 5, 10},
		}),
		loopRearms: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "montage_loop_rearms_total",
			Help: "Times the watchdog restarted a dead synchronization loop",
		}),
		tickPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "montage_tick_panics_total",
			Help: "Synchronization ticks that panicked",
		}),
		stallsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "montage_stalls_total",
			Help: "Surface stalls detected",
		}),
		stallsRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "montage_stall_recoveries_total",
			Help: "Stall recovery attempts that resumed the active surface",
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "montage_runs_finished_total",
			Help: "Playback runs finished, by outcome",
		}, []string{"outcome"}),
		circuitsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "montage_circuits_opened_total",
			Help: "Times a montage's restart circuit opened",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "montage_active_sessions",
			Help: "Number of montages currently playing",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.phaseChanges,
		m.segmentChanges,
		m.driftCorrections,
		m.driftSeconds,
		m.loopRearms,
		m.tickPanics,
		m.stallsDetected,
		m.stallsRecovered,
		m.runsFinished,
		m.circuitsOpened,
		m.activeSessions,
	)

	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// PhaseChanged implements playback.Observer
func (m *Metrics) PhaseChanged(int) {
	m.phaseChanges.Inc()
}

// SegmentChanged implements playback.Observer
func (m *Metrics) SegmentChanged(int) {
	m.segmentChanges.Inc()
}

// DriftCorrected implements playback.Observer
func (m *Metrics) DriftCorrected(action playback.Action, drift float64) {
	m.driftCorrections.WithLabelValues(action.String()).Inc()
	if drift < 0 {
		drift = -drift
	}
	m.driftSeconds.Observe(drift)
}

// LoopRearmed implements playback.Observer
func (m *Metrics) LoopRearmed() {
	m.loopRearms.Inc()
}

// TickPanicked implements playback.Observer
func (m *Metrics) TickPanicked() {
	m.tickPanics.Inc()
}

// StallDetected implements playback.Observer
func (m *Metrics) StallDetected(string) {
	m.stallsDetected.Inc()
}

// StallRecovered implements playback.Observer
func (m *Metrics) StallRecovered(string) {
	m.stallsRecovered.Inc()
}

// RunFinished counts a finished playback run
func (m *Metrics) RunFinished(outcome models.RunOutcome) {
	m.runsFinished.WithLabelValues(outcome.String()).Inc()
}

// CircuitOpened counts a montage's circuit opening
func (m *Metrics) CircuitOpened() {
	m.circuitsOpened.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active sessions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
