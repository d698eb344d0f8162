// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram buckets tuned per operation class: agent runs span seconds
// to minutes, tool calls milliseconds to seconds, and so on.
var (
	agentDurationBuckets  = prometheus.ExponentialBuckets(0.01, 2, 15)  // 10ms .. ~163s
	llmDurationBuckets    = prometheus.ExponentialBuckets(0.1, 2, 12)   // 100ms .. ~204s
	toolDurationBuckets   = prometheus.ExponentialBuckets(0.001, 2, 15) // 1ms .. ~16s
	lookupDurationBuckets = prometheus.ExponentialBuckets(0.001, 2, 12) // 1ms .. ~2s
	indexDurationBuckets  = prometheus.ExponentialBuckets(0.01, 2, 12)  // 10ms .. ~20s
	byteSizeBuckets       = prometheus.ExponentialBuckets(100, 10, 7)   // 100B .. 100MB
	resultCountBuckets    = prometheus.LinearBuckets(0, 5, 11)          // 0, 5, .. 50
)

// Metrics is the Prometheus registry for the runtime, grouped into
// agent, llm, tool, memory, session, http and rag subsystems. Every
// Record* method is nil-safe.
type Metrics struct {
	config   *MetricsConfig
	registry *prometheus.Registry

	agentCalls        *prometheus.CounterVec
	agentCallDuration *prometheus.HistogramVec
	agentErrors       *prometheus.CounterVec
	agentActiveRuns   *prometheus.GaugeVec

	llmCalls        *prometheus.CounterVec
	llmCallDuration *prometheus.HistogramVec
	llmTokensInput  *prometheus.CounterVec
	llmTokensOutput *prometheus.CounterVec
	llmErrors       *prometheus.CounterVec

	toolCalls        *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	toolErrors       *prometheus.CounterVec

	memorySearches  *prometheus.CounterVec
	memorySearchDur *prometheus.HistogramVec
	memoryIndexed   *prometheus.CounterVec

	sessionsCreated    *prometheus.CounterVec
	sessionsActive     *prometheus.GaugeVec
	sessionEventsTotal *prometheus.CounterVec

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	httpRequestSize  *prometheus.HistogramVec
	httpResponseSize *prometheus.HistogramVec

	ragDocsIndexed    *prometheus.CounterVec
	ragDocsSkipped    *prometheus.CounterVec
	ragDocsErrors     *prometheus.CounterVec
	ragIndexDuration  *prometheus.HistogramVec
	ragSearches       *prometheus.CounterVec
	ragSearchDuration *prometheus.HistogramVec
	ragSearchResults  *prometheus.HistogramVec
}

// NewMetrics builds and registers the full metric set. Returns nil for
// a nil or disabled configuration.
func NewMetrics(cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	cfg.SetDefaults()

	m := &Metrics{
		config:   cfg,
		registry: prometheus.NewRegistry(),
	}

	m.agentCalls = m.counter("agent", "calls_total",
		"Total number of agent invocations", "agent_name", "agent_type")
	m.agentCallDuration = m.histogram("agent", "call_duration_seconds",
		"Agent invocation duration in seconds", agentDurationBuckets, "agent_name", "agent_type")
	m.agentErrors = m.counter("agent", "errors_total",
		"Total number of agent errors", "agent_name", "agent_type", "error_type")
	m.agentActiveRuns = m.gauge("agent", "active_runs",
		"Number of currently active agent runs", "agent_name")

	m.llmCalls = m.counter("llm", "calls_total",
		"Total number of LLM API calls", "model", "provider")
	m.llmCallDuration = m.histogram("llm", "call_duration_seconds",
		"LLM API call duration in seconds", llmDurationBuckets, "model", "provider")
	m.llmTokensInput = m.counter("llm", "tokens_input_total",
		"Total number of input tokens consumed", "model", "provider")
	m.llmTokensOutput = m.counter("llm", "tokens_output_total",
		"Total number of output tokens generated", "model", "provider")
	m.llmErrors = m.counter("llm", "errors_total",
		"Total number of LLM API errors", "model", "provider", "error_type")

	m.toolCalls = m.counter("tool", "calls_total",
		"Total number of tool invocations", "tool_name")
	m.toolCallDuration = m.histogram("tool", "call_duration_seconds",
		"Tool execution duration in seconds", toolDurationBuckets, "tool_name")
	m.toolErrors = m.counter("tool", "errors_total",
		"Total number of tool errors", "tool_name", "error_type")

	m.memorySearches = m.counter("memory", "searches_total",
		"Total number of memory searches", "index_type")
	m.memorySearchDur = m.histogram("memory", "search_duration_seconds",
		"Memory search duration in seconds", lookupDurationBuckets, "index_type")
	m.memoryIndexed = m.counter("memory", "indexed_total",
		"Total number of items indexed", "index_type")

	m.sessionsCreated = m.counter("session", "created_total",
		"Total number of sessions created", "app_name")
	m.sessionsActive = m.gauge("session", "active",
		"Number of currently active sessions", "app_name")
	m.sessionEventsTotal = m.counter("session", "events_total",
		"Total number of session events", "app_name", "event_type")

	m.httpRequests = m.counter("http", "requests_total",
		"Total number of HTTP requests", "method", "path", "status")
	m.httpDuration = m.histogram("http", "request_duration_seconds",
		"HTTP request duration in seconds", prometheus.DefBuckets, "method", "path")
	m.httpRequestSize = m.histogram("http", "request_size_bytes",
		"HTTP request size in bytes", byteSizeBuckets, "method", "path")
	m.httpResponseSize = m.histogram("http", "response_size_bytes",
		"HTTP response size in bytes", byteSizeBuckets, "method", "path")

	m.ragDocsIndexed = m.counter("rag", "documents_indexed_total",
		"Total number of documents indexed", "store_name")
	m.ragDocsSkipped = m.counter("rag", "documents_skipped_total",
		"Total number of documents skipped during indexing", "store_name")
	m.ragDocsErrors = m.counter("rag", "documents_errors_total",
		"Total number of document indexing errors", "store_name")
	m.ragIndexDuration = m.histogram("rag", "index_duration_seconds",
		"Document indexing duration in seconds", indexDurationBuckets, "store_name")
	m.ragSearches = m.counter("rag", "searches_total",
		"Total number of RAG searches", "store_name")
	m.ragSearchDuration = m.histogram("rag", "search_duration_seconds",
		"RAG search duration in seconds", lookupDurationBuckets, "store_name")
	m.ragSearchResults = m.histogram("rag", "search_results_count",
		"Number of results returned by RAG search", resultCountBuckets, "store_name")

	return m, nil
}

// counter builds and registers one CounterVec under the configured
// namespace and constant labels.
func (m *Metrics) counter(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.config.Namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: m.config.ConstLabels,
		},
		labels,
	)
	m.registry.MustRegister(vec)
	return vec
}

// histogram builds and registers one HistogramVec.
func (m *Metrics) histogram(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	vec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.config.Namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			Buckets:     buckets,
			ConstLabels: m.config.ConstLabels,
		},
		labels,
	)
	m.registry.MustRegister(vec)
	return vec
}

// gauge builds and registers one GaugeVec.
func (m *Metrics) gauge(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
	vec := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   m.config.Namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: m.config.ConstLabels,
		},
		labels,
	)
	m.registry.MustRegister(vec)
	return vec
}

// RecordAgentCall counts one agent invocation with its duration.
func (m *Metrics) RecordAgentCall(agentName, agentType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.agentCalls.WithLabelValues(agentName, agentType).Inc()
	m.agentCallDuration.WithLabelValues(agentName, agentType).Observe(duration.Seconds())
}

// RecordAgentError counts one agent failure.
func (m *Metrics) RecordAgentError(agentName, agentType, errorType string) {
	if m == nil {
		return
	}
	m.agentErrors.WithLabelValues(agentName, agentType, errorType).Inc()
}

// IncAgentActiveRuns marks an invocation started.
func (m *Metrics) IncAgentActiveRuns(agentName string) {
	if m == nil {
		return
	}
	m.agentActiveRuns.WithLabelValues(agentName).Inc()
}

// DecAgentActiveRuns marks an invocation finished.
func (m *Metrics) DecAgentActiveRuns(agentName string) {
	if m == nil {
		return
	}
	m.agentActiveRuns.WithLabelValues(agentName).Dec()
}

// RecordLLMCall counts one model request with its duration.
func (m *Metrics) RecordLLMCall(model, provider string, duration time.Duration) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(model, provider).Inc()
	m.llmCallDuration.WithLabelValues(model, provider).Observe(duration.Seconds())
}

// RecordLLMTokens adds a request's token usage.
func (m *Metrics) RecordLLMTokens(model, provider string, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.llmTokensInput.WithLabelValues(model, provider).Add(float64(inputTokens))
	m.llmTokensOutput.WithLabelValues(model, provider).Add(float64(outputTokens))
}

// RecordLLMError counts one model failure.
func (m *Metrics) RecordLLMError(model, provider, errorType string) {
	if m == nil {
		return
	}
	m.llmErrors.WithLabelValues(model, provider, errorType).Inc()
}

// RecordToolCall counts one tool invocation with its duration.
func (m *Metrics) RecordToolCall(toolName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(toolName).Inc()
	m.toolCallDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}

// RecordToolError counts one tool failure.
func (m *Metrics) RecordToolError(toolName, errorType string) {
	if m == nil {
		return
	}
	m.toolErrors.WithLabelValues(toolName, errorType).Inc()
}

// RecordMemorySearch counts one memory lookup with its duration.
func (m *Metrics) RecordMemorySearch(indexType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.memorySearches.WithLabelValues(indexType).Inc()
	m.memorySearchDur.WithLabelValues(indexType).Observe(duration.Seconds())
}

// RecordMemoryIndexed adds indexed-item counts.
func (m *Metrics) RecordMemoryIndexed(indexType string, count int) {
	if m == nil {
		return
	}
	m.memoryIndexed.WithLabelValues(indexType).Add(float64(count))
}

// RecordSessionCreated counts one session creation.
func (m *Metrics) RecordSessionCreated(appName string) {
	if m == nil {
		return
	}
	m.sessionsCreated.WithLabelValues(appName).Inc()
}

// SetSessionsActive sets the live session gauge.
func (m *Metrics) SetSessionsActive(appName string, count int) {
	if m == nil {
		return
	}
	m.sessionsActive.WithLabelValues(appName).Set(float64(count))
}

// RecordSessionEvent counts one appended session event.
func (m *Metrics) RecordSessionEvent(appName, eventType string) {
	if m == nil {
		return
	}
	m.sessionEventsTotal.WithLabelValues(appName, eventType).Inc()
}

// RecordHTTPRequest records one request's count, latency and sizes.
// Status codes collapse to class labels (2xx, 4xx, ...) to bound
// cardinality.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration, reqSize, respSize int64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, statusCodeLabel(statusCode)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	if reqSize > 0 {
		m.httpRequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	}
	if respSize > 0 {
		m.httpResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
	}
}

// statusCodeLabel collapses a status code to its class.
func statusCodeLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// RecordRAGDocIndexed counts one indexed document with its duration.
func (m *Metrics) RecordRAGDocIndexed(storeName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ragDocsIndexed.WithLabelValues(storeName).Inc()
	m.ragIndexDuration.WithLabelValues(storeName).Observe(duration.Seconds())
}

// RecordRAGDocSkipped counts one skipped document.
func (m *Metrics) RecordRAGDocSkipped(storeName string) {
	if m == nil {
		return
	}
	m.ragDocsSkipped.WithLabelValues(storeName).Inc()
}

// RecordRAGDocError counts one failed document.
func (m *Metrics) RecordRAGDocError(storeName string) {
	if m == nil {
		return
	}
	m.ragDocsErrors.WithLabelValues(storeName).Inc()
}

// RecordRAGSearch records one search's count, duration and result size.
func (m *Metrics) RecordRAGSearch(storeName string, duration time.Duration, resultCount int) {
	if m == nil {
		return
	}
	m.ragSearches.WithLabelValues(storeName).Inc()
	m.ragSearchDuration.WithLabelValues(storeName).Observe(duration.Seconds())
	m.ragSearchResults.WithLabelValues(storeName).Observe(float64(resultCount))
}

// Handler serves the registry for Prometheus scrapes.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return NoopMetrics{}.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for callers that register
// their own collectors alongside the runtime's.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
