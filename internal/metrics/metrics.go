package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bounded cardinality constants for metric labels.
// These ensure metrics don't have unbounded label values which can cause memory issues.
const (
	// Exchange API error categories (bounded set)
	ExchangeErrorTimeout     = "timeout"
	ExchangeErrorRateLimit   = "rate_limit"
	ExchangeErrorAuth        = "authentication"
	ExchangeErrorNetwork     = "network"
	ExchangeErrorInvalidReq  = "invalid_request"
	ExchangeErrorServerError = "server_error"
	ExchangeErrorOther       = "other"
)

// NormalizeExchangeError maps arbitrary error messages to bounded set
func NormalizeExchangeError(err error) string {
	if err == nil {
		return ""
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		return ExchangeErrorTimeout
	case strings.Contains(errStr, "rate") || strings.Contains(errStr, "429"):
		return ExchangeErrorRateLimit
	case strings.Contains(errStr, "auth") || strings.Contains(errStr, "401") || strings.Contains(errStr, "403"):
		return ExchangeErrorAuth
	case strings.Contains(errStr, "network") || strings.Contains(errStr, "connection"):
		return ExchangeErrorNetwork
	case strings.Contains(errStr, "400") || strings.Contains(errStr, "invalid"):
		return ExchangeErrorInvalidReq
	case strings.Contains(errStr, "500") || strings.Contains(errStr, "502") || strings.Contains(errStr, "503"):
		return ExchangeErrorServerError
	default:
		return ExchangeErrorOther
	}
}

// Trading Performance Metrics
var (
	// Open positions
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "engine_open_positions",
		Help: "Number of currently open positions",
	})

	// Portfolio equity
	PortfolioEquity = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "engine_portfolio_equity_usd",
		Help: "Current portfolio equity in USD (cash plus open position value)",
	})

	// Position value by symbol
	PositionValueBySymbol = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "engine_position_value_by_symbol",
		Help: "Position value in USD by trading symbol",
	}, []string{"symbol"})
)

// System Health Metrics
var (
	// Database connections
	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "engine_database_connections_active",
		Help: "Number of active database connections",
	})

	DatabaseConnectionsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "engine_database_connections_idle",
		Help: "Number of idle database connections",
	})

	// Redis cache hit rate
	RedisCacheHitRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "engine_redis_cache_hit_rate",
		Help: "Redis cache hit rate as a ratio (0.0 to 1.0)",
	})

	// Redis operations
	RedisOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_redis_operations_total",
		Help: "Total number of Redis operations by type",
	}, []string{"operation"})

	// API request duration
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engine_api_request_duration_ms",
		Help:    "API request duration in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"method", "path", "status_code"})

	// HTTP requests
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status_code"})

	// Errors
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_errors_total",
		Help: "Total number of errors by type",
	}, []string{"type", "component"})

	// Database query duration
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engine_database_query_duration_ms",
		Help:    "Database query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"query_type"})

	// NATS messages
	NATSMessagesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_nats_messages_published_total",
		Help: "Total number of NATS messages published",
	})

	NATSMessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_nats_messages_received_total",
		Help: "Total number of NATS messages received",
	})
)

// Vault Metrics
var (
	// Vault secret cache hits
	VaultCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_vault_cache_hits_total",
		Help: "Total number of Vault secret cache hits",
	})

	// Vault secret cache misses
	VaultCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_vault_cache_misses_total",
		Help: "Total number of Vault secret cache misses",
	})

	// Vault cache size
	VaultCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "engine_vault_cache_size",
		Help: "Number of secrets currently held in the Vault client cache",
	})

	// Vault request duration
	VaultRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "engine_vault_request_duration_ms",
		Help:    "Vault API request duration in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	// Vault request errors
	VaultRequestErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_vault_request_errors_total",
		Help: "Total number of failed Vault API requests",
	})
)

// Audit Metrics
var (
	// Audit log operations
	AuditLogOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_audit_log_operations_total",
		Help: "Total number of audit log operations by event type and status",
	}, []string{"event_type", "status"})

	// Audit log failures
	AuditLogFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_audit_log_failures_total",
		Help: "Total number of audit log failures by error type",
	}, []string{"error_type", "event_type"})

	// Audit log latency
	AuditLogLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "engine_audit_log_latency_ms",
		Help:    "Audit log operation latency in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})
)

// Exchange Metrics
var (
	// Exchange API latency
	ExchangeAPILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engine_exchange_api_latency_ms",
		Help:    "Exchange API latency in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"exchange", "endpoint"})

	// Exchange API errors
	ExchangeAPIErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_exchange_api_errors_total",
		Help: "Total exchange API errors",
	}, []string{"exchange", "error_type"})

	// Order execution latency
	OrderExecutionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "engine_order_execution_latency_ms",
		Help:    "Order execution latency in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2500, 5000},
	})
)

// Helper functions to update metrics

// UpdateDatabaseConnections updates database connection metrics
func UpdateDatabaseConnections(active, idle int32) {
	DatabaseConnectionsActive.Set(float64(active))
	DatabaseConnectionsIdle.Set(float64(idle))
}

// RecordAPIRequest records an API request with duration
func RecordAPIRequest(method, path, statusCode string, durationMs float64) {
	APIRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationMs)
	HTTPRequests.WithLabelValues(method, path, statusCode).Inc()
}

// RecordError records an error
func RecordError(errorType, component string) {
	Errors.WithLabelValues(errorType, component).Inc()
}

// RecordDatabaseQuery records a database query
func RecordDatabaseQuery(queryType string, durationMs float64) {
	DatabaseQueryDuration.WithLabelValues(queryType).Observe(durationMs)
}

// UpdatePositionValue updates position value for a symbol
func UpdatePositionValue(symbol string, value float64) {
	PositionValueBySymbol.WithLabelValues(symbol).Set(value)
}

// UpdatePortfolioEquity updates the portfolio equity gauge
func UpdatePortfolioEquity(equityUSD float64) {
	PortfolioEquity.Set(equityUSD)
}

// RecordRedisOperation records a Redis operation
func RecordRedisOperation(operation string) {
	RedisOperations.WithLabelValues(operation).Inc()
}

// RecordVaultCacheHit records a Vault secret cache hit
func RecordVaultCacheHit() {
	VaultCacheHits.Inc()
}

// RecordVaultCacheMiss records a Vault secret cache miss
func RecordVaultCacheMiss() {
	VaultCacheMisses.Inc()
}

// UpdateVaultCacheSize updates the Vault cache size gauge
func UpdateVaultCacheSize(size int) {
	VaultCacheSize.Set(float64(size))
}

// RecordVaultRequest records a Vault API request with duration and outcome
func RecordVaultRequest(durationMs float64, err error) {
	VaultRequestDuration.Observe(durationMs)
	if err != nil {
		VaultRequestErrors.Inc()
	}
}

// RecordExchangeAPICall records an exchange API call with normalized error category
func RecordExchangeAPICall(exchange, endpoint string, durationMs float64, err error) {
	ExchangeAPILatency.WithLabelValues(exchange, endpoint).Observe(durationMs)
	if err != nil {
		errorCategory := NormalizeExchangeError(err)
		ExchangeAPIErrors.WithLabelValues(exchange, errorCategory).Inc()
	}
}

// RecordOrderExecution records order execution latency
func RecordOrderExecution(durationMs float64) {
	OrderExecutionLatency.Observe(durationMs)
}

// RecordAuditLog records an audit log operation
func RecordAuditLog(eventType string, success bool, durationMs float64) {
	status := "success"
	if !success {
		status = "failure"
	}
	AuditLogOperations.WithLabelValues(eventType, status).Inc()
	AuditLogLatency.Observe(durationMs)
}

// RecordAuditLogFailure records an audit log failure with error type
func RecordAuditLogFailure(errorType, eventType string) {
	AuditLogFailures.WithLabelValues(errorType, eventType).Inc()
}
