package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 任务指标
	tasksTotal   *prometheus.CounterVec
	taskDuration prometheus.Histogram

	// 能力调用指标
	capabilityInvocationsTotal *prometheus.CounterVec
	capabilityDuration         *prometheus.HistogramVec

	// 后端指标
	backendRequestsTotal   *prometheus.CounterVec
	backendRequestDuration prometheus.Histogram
	backendPromptTokens    prometheus.Histogram

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// 健康指标
	healthStatus prometheus.Gauge

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 任务指标
	c.tasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Total number of routed tasks by terminal status",
		},
		[]string{"status"},
	)

	c.taskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task processing duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	// 能力调用指标
	c.capabilityInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_invocations_total",
			Help:      "Total number of capability invocations",
		},
		[]string{"provider", "outcome"},
	)

	c.capabilityDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capability_invocation_duration_seconds",
			Help:      "Capability invocation duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider"},
	)

	// 后端指标
	c.backendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Total number of backend completion requests",
		},
		[]string{"outcome"},
	)

	c.backendRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Backend completion request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	c.backendPromptTokens = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_prompt_tokens",
			Help:      "Estimated prompt tokens per backend request",
			Buckets:   prometheus.ExponentialBuckets(16, 2, 12),
		},
	)

	// 缓存指标
	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// 健康指标
	c.healthStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_status",
			Help:      "Service health status (1 healthy, 0 degraded)",
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🧭 任务指标记录
// =============================================================================

// RecordTask 记录一次任务处理
func (c *Collector) RecordTask(status string, duration time.Duration) {
	c.tasksTotal.WithLabelValues(status).Inc()
	c.taskDuration.Observe(duration.Seconds())
}

// =============================================================================
// 🔌 能力调用指标记录
// =============================================================================

// RecordCapabilityInvocation 记录一次能力调用
func (c *Collector) RecordCapabilityInvocation(provider, outcome string, duration time.Duration) {
	c.capabilityInvocationsTotal.WithLabelValues(provider, outcome).Inc()
	c.capabilityDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// =============================================================================
// 🤖 后端指标记录
// =============================================================================

// RecordBackendRequest 记录一次后端补全请求
func (c *Collector) RecordBackendRequest(outcome string, duration time.Duration) {
	c.backendRequestsTotal.WithLabelValues(outcome).Inc()
	c.backendRequestDuration.Observe(duration.Seconds())
}

// RecordBackendPromptTokens 记录后端请求的估算 prompt token 数
func (c *Collector) RecordBackendPromptTokens(tokens int) {
	c.backendPromptTokens.Observe(float64(tokens))
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// =============================================================================
// 🏥 健康指标记录
// =============================================================================

// RecordHealthStatus 记录整体健康状态
func (c *Collector) RecordHealthStatus(healthy bool) {
	if healthy {
		c.healthStatus.Set(1)
	} else {
		c.healthStatus.Set(0)
	}
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
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
