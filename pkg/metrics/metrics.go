package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Oracle 调用延迟（毫秒）
	OracleCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oracle_call_latency_ms",
			Help:    "Extraction oracle call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"endpoint", "status"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 邮件处理计数
	EmailProcessedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_processed_count",
			Help: "Total number of emails processed",
		},
		[]string{"status"}, // status: ingested, tombstoned, skipped, failed
	)

	// 去重结果计数
	ReconcileOutcomeCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_outcome_count",
			Help: "Total number of reconcile decisions by outcome",
		},
		[]string{"outcome"}, // outcome: inserted, superseded, discarded
	)

	// 事件发布计数
	EventPublishedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_published_count",
			Help: "Total number of item events published",
		},
		[]string{"routing_key", "result"}, // result: ok, error
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of slow database queries",
		},
	)
)

// RecordOracleCallLatency 记录 Oracle 调用延迟
func RecordOracleCallLatency(endpoint, status string, duration time.Duration) {
	OracleCallLatency.WithLabelValues(endpoint, status).Observe(float64(duration.Milliseconds()))
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementEmailProcessed 增加邮件处理计数
func IncrementEmailProcessed(status string) {
	EmailProcessedCount.WithLabelValues(status).Inc()
}

// IncrementReconcileOutcome 增加去重结果计数
func IncrementReconcileOutcome(outcome string) {
	ReconcileOutcomeCount.WithLabelValues(outcome).Inc()
}

// IncrementEventPublished 增加事件发布计数
func IncrementEventPublished(routingKey, result string) {
	EventPublishedCount.WithLabelValues(routingKey, result).Inc()
}

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery() {
	SlowQueryCount.Inc()
}
