// Copyright 2025 Certen Protocol
//
// Package metrics exposes the engine's Prometheus instrumentation: a
// handful of gauges, counters, and histograms that the journal,
// producer, kill switch, and brain pipeline record into when a Registry
// is attached to them. Nothing in those packages requires a Registry —
// every recording call is a no-op against a nil *Registry, so this stays
// purely additive instrumentation, never a dependency of correctness.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns one prometheus.Registerer and every metric the engine
// records into, so cmd/engine constructs exactly one of these and hands
// it to whichever components it wires up.
type Registry struct {
	registry *prometheus.Registry

	JournalAppendsTotal   *prometheus.CounterVec
	JournalAppendDuration prometheus.Histogram

	KillSwitchLevel prometheus.Gauge

	ProducerHealth              *prometheus.GaugeVec
	ProducerConsecutiveFailures *prometheus.GaugeVec

	BrainCycleDuration *prometheus.HistogramVec
	BrainCyclesTotal   *prometheus.CounterVec
}

// New builds a Registry with every instrument registered under the
// "certen_engine" namespace.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		JournalAppendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "certen_engine",
			Subsystem: "journal",
			Name:      "appends_total",
			Help:      "Total journal events appended, by event type.",
		}, []string{"event_type"}),
		JournalAppendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "certen_engine",
			Subsystem: "journal",
			Name:      "append_duration_seconds",
			Help:      "Latency of a single journal append, including hash-chain computation.",
			Buckets:   prometheus.DefBuckets,
		}),
		KillSwitchLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "certen_engine",
			Subsystem: "kill_switch",
			Name:      "level",
			Help:      "Current kill switch level (0=Safe .. 5=Shutdown).",
		}),
		ProducerHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "certen_engine",
			Subsystem: "producer",
			Name:      "health",
			Help:      "Producer health as a number (0=healthy, 1=degraded, 2=quarantined).",
		}, []string{"producer", "domain"}),
		ProducerConsecutiveFailures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "certen_engine",
			Subsystem: "producer",
			Name:      "consecutive_failures",
			Help:      "Consecutive failed runs for a producer since its last success.",
		}, []string{"producer", "domain"}),
		BrainCycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "certen_engine",
			Subsystem: "brain",
			Name:      "cycle_duration_seconds",
			Help:      "Wall-clock duration of one brain cycle, by symbol.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"symbol"}),
		BrainCyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "certen_engine",
			Subsystem: "brain",
			Name:      "cycles_total",
			Help:      "Total completed brain cycles, by symbol and outcome.",
		}, []string{"symbol", "outcome"}),
	}

	reg.MustRegister(
		r.JournalAppendsTotal, r.JournalAppendDuration,
		r.KillSwitchLevel,
		r.ProducerHealth, r.ProducerConsecutiveFailures,
		r.BrainCycleDuration, r.BrainCyclesTotal,
	)
	return r
}

// Handler returns the /metrics HTTP handler serving this Registry's
// collectors, for cmd/engine to mount at config.Config.MetricsAddr.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve runs an HTTP server exposing Handler() on addr until ctx is
// canceled.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: r.Handler()}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// ObserveJournalAppend records one append of eventType taking d.
func (r *Registry) ObserveJournalAppend(eventType string, d time.Duration) {
	if r == nil {
		return
	}
	r.JournalAppendsTotal.WithLabelValues(eventType).Inc()
	r.JournalAppendDuration.Observe(d.Seconds())
}

// SetKillSwitchLevel records the current kill switch level.
func (r *Registry) SetKillSwitchLevel(level int) {
	if r == nil {
		return
	}
	r.KillSwitchLevel.Set(float64(level))
}

// SetProducerHealth records producer's current health (as its ordinal
// value) and consecutive failure count.
func (r *Registry) SetProducerHealth(producer, domain string, health int, consecutiveFailures int) {
	if r == nil {
		return
	}
	r.ProducerHealth.WithLabelValues(producer, domain).Set(float64(health))
	r.ProducerConsecutiveFailures.WithLabelValues(producer, domain).Set(float64(consecutiveFailures))
}

// ObserveBrainCycle records one completed cycle for symbol taking d,
// labeled with outcome (e.g. "ok", "blocked", "error").
func (r *Registry) ObserveBrainCycle(symbol, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.BrainCycleDuration.WithLabelValues(symbol).Observe(d.Seconds())
	r.BrainCyclesTotal.WithLabelValues(symbol, outcome).Inc()
}
