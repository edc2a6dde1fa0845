// Package telemetry publishes structured engine events: a pub/sub façade
// over NATS, alongside a zerolog line and a Prometheus counter per event
// kind. Delivery is never load-bearing for trading correctness — a down or
// unreachable NATS server degrades the emitter to log+metrics only.
package telemetry

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Kind enumerates the structured events the engine emits.
type Kind string

const (
	KindRankingChanged    Kind = "RankingChanged"
	KindPositionLoaded    Kind = "PositionLoaded"
	KindPositionPersisted Kind = "PositionPersisted"
	KindPositionReconciled Kind = "PositionReconciled"
	KindPositionEvicted   Kind = "PositionEvicted"
	KindProtectionMissing Kind = "ProtectionMissing"
	KindDuplicateBuyPrevented Kind = "DuplicateBuyPrevented"
	KindOrderPlaced       Kind = "OrderPlaced"
	KindOrderFilled       Kind = "OrderFilled"
	KindCycleSummary      Kind = "CycleSummary"
	KindDataAbsent        Kind = "DataAbsent"
	KindGatewayTransient  Kind = "GatewayTransient"
)

const subjectPrefix = "engine.events."

var eventCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "spotengine_telemetry_events_total",
	Help: "Count of structured engine events emitted, by kind.",
}, []string{"kind"})

// Event is the JSON envelope published on engine.events.{kind}.
type Event struct {
	Kind      Kind            `json:"kind"`
	Symbol    string          `json:"symbol,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Emitter publishes structured events to NATS, log, and metrics. The NATS
// connection is optional — a nil conn simply skips the publish step.
type Emitter struct {
	mu   sync.Mutex
	conn *nats.Conn
	log  zerolog.Logger
}

// Connect dials the given NATS URL. If the dial fails, it returns an
// Emitter with a nil connection rather than an error — per spec, NATS
// unavailability at startup degrades to log+metrics only and must never
// block engine startup.
func Connect(url string, log zerolog.Logger) *Emitter {
	conn, err := nats.Connect(url, nats.Timeout(2*time.Second), nats.MaxReconnects(5))
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("telemetry: NATS unreachable, degrading to log+metrics only")
		return &Emitter{log: log}
	}
	return &Emitter{conn: conn, log: log}
}

// Emit publishes an event of the given kind, optionally scoped to symbol,
// with an arbitrary JSON-serializable payload.
func (e *Emitter) Emit(kind Kind, symbol string, payload interface{}) {
	eventCounter.WithLabelValues(string(kind)).Inc()

	logEvent := e.log.Info().Str("event", string(kind))
	if symbol != "" {
		logEvent = logEvent.Str("symbol", symbol)
	}
	logEvent.Msg("telemetry event")

	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn == nil {
		return
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			e.log.Warn().Err(err).Str("event", string(kind)).Msg("telemetry: failed to marshal payload")
			return
		}
		raw = data
	}

	event := Event{Kind: kind, Symbol: symbol, Timestamp: time.Now(), Payload: raw}
	data, err := json.Marshal(event)
	if err != nil {
		e.log.Warn().Err(err).Str("event", string(kind)).Msg("telemetry: failed to marshal event")
		return
	}

	if err := conn.Publish(subjectPrefix+string(kind), data); err != nil {
		e.log.Warn().Err(err).Str("event", string(kind)).Msg("telemetry: publish failed")
	}
}

// Close closes the NATS connection, if any, without draining it.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		e.conn.Close()
	}
}
