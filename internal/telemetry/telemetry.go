package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Telemetry holds the prometheus registry and the metric families exported
// by the middleware. A nil *Telemetry is valid and records nothing, so
// components can take it without caring whether metrics are enabled.
type Telemetry struct {
	registry *prometheus.Registry

	engineSearches       *prometheus.CounterVec
	engineSearchDuration *prometheus.HistogramVec
	fusionFallbacks      *prometheus.CounterVec
	toolCalls            *prometheus.CounterVec
	capabilityRuns       *prometheus.CounterVec
}

// New creates a telemetry instance with all metric families registered.
func New() *Telemetry {
	reg := prometheus.NewRegistry()
	t := &Telemetry{
		registry: reg,
		engineSearches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orakle_engine_searches_total",
			Help: "Search requests issued per engine.",
		}, []string{"engine", "status"}),
		engineSearchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orakle_engine_search_duration_seconds",
			Help:    "Per-engine search latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"engine"}),
		fusionFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orakle_fusion_fallback_total",
			Help: "Fusion strategy fallbacks to weighted fusion.",
		}, []string{"from"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orakle_tool_calls_total",
			Help: "MCP tool executions per server.",
		}, []string{"server", "status"}),
		capabilityRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orakle_capability_runs_total",
			Help: "Capability invocations by kind.",
		}, []string{"kind", "status"}),
	}
	reg.MustRegister(t.engineSearches, t.engineSearchDuration, t.fusionFallbacks, t.toolCalls, t.capabilityRuns)
	return t
}

// Handler returns the /metrics HTTP handler for this registry.
func (t *Telemetry) Handler() http.Handler {
	if t == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveEngineSearch records one engine search outcome.
func (t *Telemetry) ObserveEngineSearch(engine string, d time.Duration, err error) {
	if t == nil {
		return
	}
	t.engineSearches.WithLabelValues(engine, statusLabel(err)).Inc()
	t.engineSearchDuration.WithLabelValues(engine).Observe(d.Seconds())
}

// RecordFusionFallback counts a fallback from the named strategy to weighted fusion.
func (t *Telemetry) RecordFusionFallback(from string) {
	if t == nil {
		return
	}
	t.fusionFallbacks.WithLabelValues(from).Inc()
}

// RecordToolCall records one MCP tool execution outcome.
func (t *Telemetry) RecordToolCall(server string, err error) {
	if t == nil {
		return
	}
	t.toolCalls.WithLabelValues(server, statusLabel(err)).Inc()
}

// RecordCapabilityRun records one capability invocation outcome.
func (t *Telemetry) RecordCapabilityRun(kind string, err error) {
	if t == nil {
		return
	}
	t.capabilityRuns.WithLabelValues(kind, statusLabel(err)).Inc()
}
