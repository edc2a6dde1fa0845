package risk

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

// Circuit breaker states for Prometheus metrics
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half_open"

	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Circuit breaker thresholds - configurable per service type
const (
	// Exchange circuit breaker settings
	ExchangeMinRequests     = 5
	ExchangeFailureRatio    = 0.6
	ExchangeOpenTimeout     = 30 * time.Second
	ExchangeHalfOpenMaxReqs = 3
	ExchangeCountInterval   = 10 * time.Second

	// Database circuit breaker settings (faster recovery)
	DBMinRequests     = 10
	DBFailureRatio    = 0.6
	DBOpenTimeout     = 15 * time.Second
	DBHalfOpenMaxReqs = 5
	DBCountInterval   = 10 * time.Second
)

// CircuitBreakerManager guards the engine's two external dependencies: the
// exchange gateway and Postgres. Both open independently — an exchange
// outage must never block audit writes, and vice versa.
type CircuitBreakerManager struct {
	exchange *gobreaker.CircuitBreaker
	database *gobreaker.CircuitBreaker
	metrics  *CircuitBreakerMetrics
}

// CircuitBreakerMetrics holds Prometheus metrics for circuit breakers
type CircuitBreakerMetrics struct {
	state    *prometheus.GaugeVec
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
}

var (
	globalMetrics *CircuitBreakerMetrics
	metricsOnce   sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		globalMetrics = &CircuitBreakerMetrics{
			state: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "circuit_breaker_state",
					Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
				},
				[]string{"service"},
			),
			requests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "circuit_breaker_requests_total",
					Help: "Total number of requests through circuit breaker",
				},
				[]string{"service", "result"},
			),
			failures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "circuit_breaker_failures_total",
					Help: "Total number of failures tracked by circuit breaker",
				},
				[]string{"service"},
			),
		}
	})
}

// ServiceSettings holds circuit breaker configuration for a single service
type ServiceSettings struct {
	MinRequests     uint32
	FailureRatio    float64
	OpenTimeout     time.Duration
	HalfOpenMaxReqs uint32
	CountInterval   time.Duration
}

// ParseDuration parses a duration string and returns the duration or a default value
func ParseDuration(durationStr string, defaultValue time.Duration) time.Duration {
	if durationStr == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(durationStr)
	if err != nil {
		return defaultValue
	}
	return duration
}

// NewCircuitBreakerManager creates a manager with default settings for both breakers.
func NewCircuitBreakerManager() *CircuitBreakerManager {
	return NewCircuitBreakerManagerWithSettings(nil, nil)
}

// NewCircuitBreakerManagerWithSettings creates a manager with Prometheus metrics.
// Nil settings fall back to the package defaults.
func NewCircuitBreakerManagerWithSettings(exchangeSettings, dbSettings *ServiceSettings) *CircuitBreakerManager {
	initMetrics()

	manager := &CircuitBreakerManager{
		metrics: globalMetrics,
	}

	if exchangeSettings == nil {
		exchangeSettings = &ServiceSettings{
			MinRequests:     ExchangeMinRequests,
			FailureRatio:    ExchangeFailureRatio,
			OpenTimeout:     ExchangeOpenTimeout,
			HalfOpenMaxReqs: ExchangeHalfOpenMaxReqs,
			CountInterval:   ExchangeCountInterval,
		}
	}
	if dbSettings == nil {
		dbSettings = &ServiceSettings{
			MinRequests:     DBMinRequests,
			FailureRatio:    DBFailureRatio,
			OpenTimeout:     DBOpenTimeout,
			HalfOpenMaxReqs: DBHalfOpenMaxReqs,
			CountInterval:   DBCountInterval,
		}
	}

	manager.exchange = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "exchange",
		MaxRequests: exchangeSettings.HalfOpenMaxReqs,
		Interval:    exchangeSettings.CountInterval,
		Timeout:     exchangeSettings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= exchangeSettings.MinRequests && failureRatio >= exchangeSettings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			manager.updateMetrics("exchange", to)
		},
	})

	manager.database = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "database",
		MaxRequests: dbSettings.HalfOpenMaxReqs,
		Interval:    dbSettings.CountInterval,
		Timeout:     dbSettings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= dbSettings.MinRequests && failureRatio >= dbSettings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			manager.updateMetrics("database", to)
		},
	})

	manager.updateMetrics("exchange", manager.exchange.State())
	manager.updateMetrics("database", manager.database.State())

	return manager
}

// NewPassthroughCircuitBreakerManager creates a circuit breaker manager that never trips,
// for tests exercising other components without breaker interference.
func NewPassthroughCircuitBreakerManager() *CircuitBreakerManager {
	initMetrics()

	manager := &CircuitBreakerManager{
		metrics: globalMetrics,
	}

	neverTrip := func(counts gobreaker.Counts) bool {
		return false
	}

	manager.exchange = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "exchange_passthrough",
		MaxRequests: 1000,
		Interval:    0,
		Timeout:     1 * time.Millisecond,
		ReadyToTrip: neverTrip,
	})

	manager.database = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "database_passthrough",
		MaxRequests: 1000,
		Interval:    0,
		Timeout:     1 * time.Millisecond,
		ReadyToTrip: neverTrip,
	})

	return manager
}

// Exchange returns the exchange circuit breaker
func (m *CircuitBreakerManager) Exchange() *gobreaker.CircuitBreaker {
	return m.exchange
}

// Database returns the database circuit breaker
func (m *CircuitBreakerManager) Database() *gobreaker.CircuitBreaker {
	return m.database
}

func (m *CircuitBreakerManager) updateMetrics(service string, state gobreaker.State) {
	var stateValue float64
	switch state {
	case gobreaker.StateClosed:
		stateValue = 0
	case gobreaker.StateOpen:
		stateValue = 1
	case gobreaker.StateHalfOpen:
		stateValue = 2
	}
	m.metrics.state.WithLabelValues(service).Set(stateValue)
}

// RecordRequest records a request result for metrics
func (m *CircuitBreakerMetrics) RecordRequest(service string, success bool) {
	result := ResultSuccess
	if !success {
		result = ResultFailure
		m.failures.WithLabelValues(service).Inc()
	}
	m.requests.WithLabelValues(service, result).Inc()
}

// Metrics returns the metrics instance for manual recording
func (m *CircuitBreakerManager) Metrics() *CircuitBreakerMetrics {
	return m.metrics
}
