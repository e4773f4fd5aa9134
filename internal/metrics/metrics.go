// Package metrics provides metrics collection and reporting for the gateway.
package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Prometheus metric labels
const (
	labelTool     = "tool"
	labelStatus   = "status"
	labelBackend  = "backend"
	labelChannel  = "channel"
	labelPlatform = "platform"
)

// Metrics tracks operational metrics with both internal counters and Prometheus metrics
type Metrics struct {
	// Forwarded request metrics (internal atomic counters for fast access)
	totalForwards      atomic.Uint64
	successfulForwards atomic.Uint64
	failedForwards     atomic.Uint64
	retriedForwards    atomic.Uint64

	// Latency tracking
	totalLatency atomic.Int64 // microseconds
	latencyCount atomic.Uint64
	maxLatency   atomic.Int64
	minLatency   atomic.Int64

	// Rate limiting metrics
	rateLimitHits atomic.Uint64

	// Event bus metrics
	eventsPublished atomic.Uint64
	eventsReceived  atomic.Uint64
	publishFailures atomic.Uint64

	// Routing refresh metrics
	routingRefreshes       atomic.Uint64
	routingRefreshFailures atomic.Uint64

	// Approval gate metrics
	approvalRequests atomic.Uint64

	// Error tracking by status code
	errorsMu       sync.RWMutex
	errorsByStatus map[int]uint64

	// Tool usage tracking
	toolsMu     sync.RWMutex
	toolUsage   map[string]uint64
	toolErrors  map[string]uint64
	toolLatency map[string]int64 // microseconds

	logger *zap.Logger

	// Prometheus metrics
	promForwardsTotal      prometheus.Counter
	promForwardsSuccessful prometheus.Counter
	promForwardsFailed     prometheus.Counter
	promForwardsRetried    prometheus.Counter
	promRateLimitHits      prometheus.Counter
	promForwardLatency     *prometheus.HistogramVec
	promErrorsByStatus     *prometheus.CounterVec
	promToolCalls          *prometheus.CounterVec
	promToolErrors         *prometheus.CounterVec
	promToolLatency        *prometheus.HistogramVec
	promEventsPublished    *prometheus.CounterVec
	promEventsReceived     *prometheus.CounterVec
	promPublishFailures    *prometheus.CounterVec
	promEventsIngested     *prometheus.CounterVec
	promRefreshesTotal     prometheus.Counter
	promRefreshFailures    prometheus.Counter
	promApprovalRequests   *prometheus.CounterVec
	promRoutingServers     prometheus.Gauge
	promRoutingTools       prometheus.Gauge
	promRiskScore          prometheus.Gauge
}

// New creates a new metrics tracker with Prometheus integration
func New(logger *zap.Logger) *Metrics {
	m := &Metrics{
		errorsByStatus: make(map[int]uint64),
		toolUsage:      make(map[string]uint64),
		toolErrors:     make(map[string]uint64),
		toolLatency:    make(map[string]int64),
		logger:         logger,

		// Initialize Prometheus metrics using promauto (auto-registers with default registry)
		promForwardsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "netops_gateway",
			Name:      "forwards_total",
			Help:      "Total number of tool calls forwarded to platform backends",
		}),
		promForwardsSuccessful: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "netops_gateway",
			Name:      "forwards_successful_total",
			Help:      "Total number of successful forwarded calls",
		}),
		promForwardsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "netops_gateway",
			Name:      "forwards_failed_total",
			Help:      "Total number of failed forwarded calls",
		}),
		promForwardsRetried: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "netops_gateway",
			Name:      "forwards_retried_total",
			Help:      "Total number of retried forwarded calls",
		}),
		promRateLimitHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "netops_gateway",
			Name:      "rate_limit_hits_total",
			Help:      "Total number of rate limit hits",
		}),
		promForwardLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "netops_gateway",
			Name:      "forward_latency_seconds",
			Help:      "Forwarded call latency in seconds, labeled by backend",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		}, []string{labelBackend}),
		promErrorsByStatus: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netops_gateway",
			Name:      "errors_by_status_total",
			Help:      "Backend errors by HTTP status code",
		}, []string{labelStatus}),

		// Tool-specific metrics - tracks every gateway tool call with labels for tool name
		promToolCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netops_gateway",
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls, labeled by tool name (e.g., call_platform_tool, correlate_events)",
		}, []string{labelTool}),
		promToolErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netops_gateway",
			Name:      "tool_errors_total",
			Help:      "Total number of tool errors, labeled by tool name",
		}, []string{labelTool}),
		promToolLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "netops_gateway",
			Name:      "tool_latency_seconds",
			Help:      "Tool execution latency in seconds, labeled by tool name",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		}, []string{labelTool}),

		// Event bus metrics - publish/receive volume per channel
		promEventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netops_gateway",
			Name:      "bus_events_published_total",
			Help:      "Total number of events published to the bus, labeled by channel",
		}, []string{labelChannel}),
		promEventsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netops_gateway",
			Name:      "bus_events_received_total",
			Help:      "Total number of events received from the bus, labeled by channel",
		}, []string{labelChannel}),
		promPublishFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netops_gateway",
			Name:      "bus_publish_failures_total",
			Help:      "Total number of failed bus publishes, labeled by channel",
		}, []string{labelChannel}),
		promEventsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netops_gateway",
			Name:      "events_ingested_total",
			Help:      "Total number of events accepted into the analysis buffer, labeled by source platform",
		}, []string{labelPlatform}),

		// Routing table refresh metrics
		promRefreshesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "netops_gateway",
			Name:      "routing_refreshes_total",
			Help:      "Total number of routing table refreshes",
		}),
		promRefreshFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "netops_gateway",
			Name:      "routing_refresh_failures_total",
			Help:      "Total number of failed routing table refreshes",
		}),
		promApprovalRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netops_gateway",
			Name:      "approval_requests_total",
			Help:      "Total number of approval requests published for gated tools",
		}, []string{labelTool}),
		promRoutingServers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "netops_gateway",
			Name:      "routing_servers",
			Help:      "Number of backend servers in the current routing table",
		}),
		promRoutingTools: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "netops_gateway",
			Name:      "routing_tools",
			Help:      "Number of routable tools in the current routing table",
		}),
		promRiskScore: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "netops_gateway",
			Name:      "risk_score",
			Help:      "Most recently computed network risk score (0-100)",
		}),
	}

	// Initialize min latency to max value
	m.minLatency.Store(int64(time.Hour))

	return m
}

// RecordForward records a forwarded backend call (both internal counters and Prometheus)
func (m *Metrics) RecordForward(backend string, success bool, latency time.Duration, statusCode int) {
	// Update internal counters
	m.totalForwards.Add(1)

	// Update Prometheus counters
	m.promForwardsTotal.Inc()
	m.promForwardLatency.WithLabelValues(backend).Observe(latency.Seconds())

	if success {
		m.successfulForwards.Add(1)
		m.promForwardsSuccessful.Inc()
	} else {
		m.failedForwards.Add(1)
		m.promForwardsFailed.Inc()
		m.recordErrorStatus(statusCode)
	}

	m.recordLatency(latency)
}

// RecordRetry records a retry attempt
func (m *Metrics) RecordRetry() {
	m.retriedForwards.Add(1)
	m.promForwardsRetried.Inc()
}

// RecordRateLimitHit records a rate limit hit
func (m *Metrics) RecordRateLimitHit() {
	m.rateLimitHits.Add(1)
	m.promRateLimitHits.Inc()
}

// RecordToolExecution records tool usage (both internal counters and Prometheus)
// This is called for every tool invocation, tracking:
// - Total calls per tool
// - Errors per tool
// - Latency distribution per tool
func (m *Metrics) RecordToolExecution(toolName string, success bool, latency time.Duration) {
	// Update internal counters
	m.toolsMu.Lock()
	m.toolUsage[toolName]++
	if !success {
		m.toolErrors[toolName]++
	}

	// Update average latency using rolling average to avoid integer overflow
	if latency > 0 && m.toolUsage[toolName] > 0 {
		currentLatency := m.toolLatency[toolName]
		// Use float64 for calculation to avoid integer overflow issues
		count := float64(m.toolUsage[toolName])
		avgLatency := (float64(currentLatency)*(count-1) + float64(latency.Microseconds())) / count
		m.toolLatency[toolName] = int64(avgLatency)
	}
	m.toolsMu.Unlock()

	// Update Prometheus metrics (labeled by tool name)
	m.promToolCalls.WithLabelValues(toolName).Inc()
	m.promToolLatency.WithLabelValues(toolName).Observe(latency.Seconds())
	if !success {
		m.promToolErrors.WithLabelValues(toolName).Inc()
	}
}

// RecordPublish records an event published to the bus, or a publish failure
func (m *Metrics) RecordPublish(channel string, success bool) {
	if success {
		m.eventsPublished.Add(1)
		m.promEventsPublished.WithLabelValues(channel).Inc()
		return
	}
	m.publishFailures.Add(1)
	m.promPublishFailures.WithLabelValues(channel).Inc()
}

// RecordReceive records an event received from a bus subscription
func (m *Metrics) RecordReceive(channel string) {
	m.eventsReceived.Add(1)
	m.promEventsReceived.WithLabelValues(channel).Inc()
}

// RecordIngest records an event accepted into the analysis buffer
func (m *Metrics) RecordIngest(platform string) {
	m.promEventsIngested.WithLabelValues(platform).Inc()
}

// RecordRoutingRefresh records a routing table refresh and the resulting table size
func (m *Metrics) RecordRoutingRefresh(success bool, servers, tools int) {
	m.routingRefreshes.Add(1)
	m.promRefreshesTotal.Inc()
	if !success {
		m.routingRefreshFailures.Add(1)
		m.promRefreshFailures.Inc()
		return
	}
	m.promRoutingServers.Set(float64(servers))
	m.promRoutingTools.Set(float64(tools))
}

// RecordApprovalRequest records an approval request published for a gated tool
func (m *Metrics) RecordApprovalRequest(tool string) {
	m.approvalRequests.Add(1)
	m.promApprovalRequests.WithLabelValues(tool).Inc()
}

// RecordRiskScore records the most recently computed network risk score
func (m *Metrics) RecordRiskScore(score float64) {
	m.promRiskScore.Set(score)
}

func (m *Metrics) recordLatency(latency time.Duration) {
	latencyUs := latency.Microseconds()

	m.totalLatency.Add(latencyUs)
	m.latencyCount.Add(1)

	// Update max latency
	for {
		currentMax := m.maxLatency.Load()
		if latencyUs <= currentMax {
			break
		}
		if m.maxLatency.CompareAndSwap(currentMax, latencyUs) {
			break
		}
	}

	// Update min latency
	for {
		currentMin := m.minLatency.Load()
		if latencyUs >= currentMin {
			break
		}
		if m.minLatency.CompareAndSwap(currentMin, latencyUs) {
			break
		}
	}
}

func (m *Metrics) recordErrorStatus(statusCode int) {
	if statusCode == 0 {
		return
	}

	m.errorsMu.Lock()
	m.errorsByStatus[statusCode]++
	m.errorsMu.Unlock()

	// Update Prometheus counter with status code label
	m.promErrorsByStatus.WithLabelValues(fmt.Sprintf("%d", statusCode)).Inc()
}

// GetStats returns current statistics
func (m *Metrics) GetStats() Stats {
	m.errorsMu.RLock()
	errorsByStatus := make(map[int]uint64, len(m.errorsByStatus))
	for k, v := range m.errorsByStatus {
		errorsByStatus[k] = v
	}
	m.errorsMu.RUnlock()

	m.toolsMu.RLock()
	toolUsage := make(map[string]uint64, len(m.toolUsage))
	toolErrors := make(map[string]uint64, len(m.toolErrors))
	toolLatency := make(map[string]time.Duration, len(m.toolLatency))
	for k, v := range m.toolUsage {
		toolUsage[k] = v
	}
	for k, v := range m.toolErrors {
		toolErrors[k] = v
	}
	for k, v := range m.toolLatency {
		toolLatency[k] = time.Duration(v) * time.Microsecond
	}
	m.toolsMu.RUnlock()

	totalForwards := m.totalForwards.Load()
	latencyCount := m.latencyCount.Load()

	var avgLatency time.Duration
	if latencyCount > 0 {
		// Use float64 division to avoid integer overflow issues
		avgLatencyMicros := float64(m.totalLatency.Load()) / float64(latencyCount)
		avgLatency = time.Duration(avgLatencyMicros) * time.Microsecond
	}

	return Stats{
		TotalForwards:          totalForwards,
		SuccessfulForwards:     m.successfulForwards.Load(),
		FailedForwards:         m.failedForwards.Load(),
		RetriedForwards:        m.retriedForwards.Load(),
		RateLimitHits:          m.rateLimitHits.Load(),
		EventsPublished:        m.eventsPublished.Load(),
		EventsReceived:         m.eventsReceived.Load(),
		PublishFailures:        m.publishFailures.Load(),
		RoutingRefreshes:       m.routingRefreshes.Load(),
		RoutingRefreshFailures: m.routingRefreshFailures.Load(),
		ApprovalRequests:       m.approvalRequests.Load(),
		AverageLatency:         avgLatency,
		MaxLatency:             time.Duration(m.maxLatency.Load()) * time.Microsecond,
		MinLatency:             time.Duration(m.minLatency.Load()) * time.Microsecond,
		ErrorsByStatus:         errorsByStatus,
		ToolUsage:              toolUsage,
		ToolErrors:             toolErrors,
		ToolLatency:            toolLatency,
	}
}

// LogStats logs current statistics
func (m *Metrics) LogStats() {
	stats := m.GetStats()

	var errorRate float64
	if stats.TotalForwards > 0 {
		errorRate = float64(stats.FailedForwards) / float64(stats.TotalForwards) * 100
	}

	m.logger.Info("Operational metrics",
		zap.Uint64("total_forwards", stats.TotalForwards),
		zap.Uint64("successful_forwards", stats.SuccessfulForwards),
		zap.Uint64("failed_forwards", stats.FailedForwards),
		zap.Float64("error_rate_pct", errorRate),
		zap.Uint64("retried_forwards", stats.RetriedForwards),
		zap.Uint64("rate_limit_hits", stats.RateLimitHits),
		zap.Uint64("events_published", stats.EventsPublished),
		zap.Uint64("events_received", stats.EventsReceived),
		zap.Uint64("publish_failures", stats.PublishFailures),
		zap.Uint64("routing_refreshes", stats.RoutingRefreshes),
		zap.Uint64("approval_requests", stats.ApprovalRequests),
		zap.Duration("avg_latency", stats.AverageLatency),
		zap.Duration("max_latency", stats.MaxLatency),
		zap.Duration("min_latency", stats.MinLatency),
		zap.Any("errors_by_status", stats.ErrorsByStatus),
		zap.Any("tool_usage", stats.ToolUsage),
	)
}

// Stats represents current metrics
type Stats struct {
	TotalForwards          uint64
	SuccessfulForwards     uint64
	FailedForwards         uint64
	RetriedForwards        uint64
	RateLimitHits          uint64
	EventsPublished        uint64
	EventsReceived         uint64
	PublishFailures        uint64
	RoutingRefreshes       uint64
	RoutingRefreshFailures uint64
	ApprovalRequests       uint64
	AverageLatency         time.Duration
	MaxLatency             time.Duration
	MinLatency             time.Duration
	ErrorsByStatus         map[int]uint64
	ToolUsage              map[string]uint64
	ToolErrors             map[string]uint64
	ToolLatency            map[string]time.Duration
}

// GetPrometheusRegistry returns the default Prometheus registry
// This can be used with promhttp.HandlerFor() to serve metrics
func GetPrometheusRegistry() *prometheus.Registry {
	// Return the default registry which promauto uses
	return prometheus.DefaultRegisterer.(*prometheus.Registry)
}
