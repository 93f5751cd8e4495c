// Package observability provides Prometheus metrics and structured logging
// for the agent runtime.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the runtime. Create one per
// process with NewMetrics and share it across sessions.
type Metrics struct {
	registry *prometheus.Registry

	// Session lifecycle
	sessionsStarted   *prometheus.CounterVec
	sessionsCompleted *prometheus.CounterVec
	sessionDuration   *prometheus.HistogramVec
	activeSessions    prometheus.Gauge

	// LLM traffic
	llmRequests   *prometheus.CounterVec
	llmTokens     *prometheus.CounterVec
	llmCostDollar *prometheus.CounterVec

	// Tool execution
	toolExecutions *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec

	// Documents
	documentsPersisted prometheus.Counter
}

// NewMetrics creates and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		sessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "draftsmith_sessions_started_total",
			Help: "Sessions started, by agent and command.",
		}, []string{"agent_id", "command"}),

		sessionsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "draftsmith_sessions_completed_total",
			Help: "Sessions finished, by agent and final status.",
		}, []string{"agent_id", "status"}),

		sessionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "draftsmith_session_duration_seconds",
			Help:    "Wall-clock session duration from start to completion.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"agent_id"}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "draftsmith_active_sessions",
			Help: "Sessions currently running or paused.",
		}),

		llmRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "draftsmith_llm_requests_total",
			Help: "LLM API calls, by provider and model.",
		}, []string{"provider", "model"}),

		llmTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "draftsmith_llm_tokens_total",
			Help: "Tokens consumed, by model and direction (input/output).",
		}, []string{"model", "direction"}),

		llmCostDollar: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "draftsmith_llm_cost_dollars_total",
			Help: "Accumulated LLM spend in dollars, by model.",
		}, []string{"model"}),

		toolExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "draftsmith_tool_executions_total",
			Help: "Tool calls serviced, by tool name and outcome.",
		}, []string{"tool", "outcome"}),

		toolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "draftsmith_tool_duration_seconds",
			Help:    "Tool execution latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),

		documentsPersisted: factory.NewCounter(prometheus.CounterOpts{
			Name: "draftsmith_documents_persisted_total",
			Help: "Documents written to the storage backend.",
		}),
	}
}

// All recorders are nil-safe so callers can hold an optional *Metrics
// without guarding every call site.

// SessionStarted records a new session and bumps the active gauge.
func (m *Metrics) SessionStarted(agentID, command string) {
	if m == nil {
		return
	}
	m.sessionsStarted.WithLabelValues(agentID, command).Inc()
	m.activeSessions.Inc()
}

// SessionEnded records a finished session with its final status.
func (m *Metrics) SessionEnded(agentID, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.sessionsCompleted.WithLabelValues(agentID, status).Inc()
	m.sessionDuration.WithLabelValues(agentID).Observe(duration.Seconds())
	m.activeSessions.Dec()
}

// RecordLLMRequest records one provider call with its token usage and cost.
func (m *Metrics) RecordLLMRequest(provider, model string, inputTokens, outputTokens int, cost float64) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(provider, model).Inc()
	m.llmTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	m.llmTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	m.llmCostDollar.WithLabelValues(model).Add(cost)
}

// RecordToolExecution records one serviced tool call.
func (m *Metrics) RecordToolExecution(tool string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.toolExecutions.WithLabelValues(tool, outcome).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// DocumentsPersisted records n documents saved to storage.
func (m *Metrics) DocumentsPersisted(n int) {
	if m == nil {
		return
	}
	m.documentsPersisted.Add(float64(n))
}

// Handler returns an HTTP handler serving the metrics in Prometheus text
// format, suitable for mounting at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
