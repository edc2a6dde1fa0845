package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/quantfoundry/spotengine/internal/metrics"
	"github.com/quantfoundry/spotengine/internal/risk"
)

// querier is the subset of *pgxpool.Pool the logger needs. Narrowing to an
// interface lets tests substitute pgxmock without a real database.
type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// EventType represents the type of audit event. Kept in lockstep with
// internal/telemetry.Kind — every telemetry event that matters for a
// post-incident trail also gets a best-effort audit append.
type EventType string

const (
	EventTypePositionLoaded      EventType = "POSITION_LOADED"
	EventTypePositionPersisted   EventType = "POSITION_PERSISTED"
	EventTypePositionReconciled  EventType = "POSITION_RECONCILED"
	EventTypePositionEvicted     EventType = "POSITION_EVICTED"
	EventTypeProtectionMissing   EventType = "PROTECTION_MISSING"
	EventTypeDuplicateBuyBlocked EventType = "DUPLICATE_BUY_PREVENTED"
	EventTypeOrderPlaced         EventType = "ORDER_PLACED"
	EventTypeOrderFilled         EventType = "ORDER_FILLED"
	EventTypeGatewayTransient    EventType = "GATEWAY_TRANSIENT"
	EventTypeConfigUpdated       EventType = "CONFIG_UPDATED"
)

// Event represents a single audit log entry.
type Event struct {
	ID         uuid.UUID              `json:"id"`
	OccurredAt time.Time              `json:"occurred_at"`
	EventType  EventType              `json:"event_type"`
	Symbol     string                 `json:"symbol,omitempty"`
	Detail     map[string]interface{} `json:"detail,omitempty"`
}

// Logger handles audit logging operations. It is always safe to call even
// with a nil pool — database persistence is a best-effort addition on top
// of the structured log line, never a requirement for the caller to proceed.
type Logger struct {
	db      querier
	cb      *risk.CircuitBreakerManager
	enabled bool
}

// NewLogger creates a new audit logger. db may be any querier — typically a
// *pgxpool.Pool in production and a pgxmock pool in tests — and may be nil.
// cb may be nil, in which case database writes run unprotected; pass the
// engine's shared CircuitBreakerManager to share the "database" breaker with
// internal/db.
func NewLogger(db querier, cb *risk.CircuitBreakerManager, enabled bool) *Logger {
	return &Logger{db: db, cb: cb, enabled: enabled}
}

// Log records an audit event when the logger is enabled: to the structured
// logger, and best-effort to the database if a pool is configured. A
// disabled logger records nothing. A database failure
// never propagates to the caller — audit persistence is not load-bearing
// for trading correctness.
func (l *Logger) Log(ctx context.Context, event *Event) {
	if !l.enabled {
		return
	}

	start := time.Now()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	log.Info().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.EventType)).
		Str("symbol", event.Symbol).
		Msg("audit event")

	if l.db == nil {
		return
	}

	if err := l.persistEvent(ctx, event); err != nil {
		durationMs := float64(time.Since(start).Milliseconds())
		metrics.RecordAuditLog(string(event.EventType), false, durationMs)
		metrics.RecordAuditLogFailure("persist_error", string(event.EventType))
		log.Warn().Err(err).Str("event_type", string(event.EventType)).Msg("audit: failed to persist event, log line stands alone")
		return
	}

	durationMs := float64(time.Since(start).Milliseconds())
	metrics.RecordAuditLog(string(event.EventType), true, durationMs)
}

func (l *Logger) persistEvent(ctx context.Context, event *Event) error {
	detailJSON, err := json.Marshal(event.Detail)
	if err != nil {
		detailJSON = []byte("{}")
	}

	queryStart := time.Now()
	exec := func() (interface{}, error) {
		_, err := l.db.Exec(ctx,
			`INSERT INTO audit_log (event_type, symbol, detail, occurred_at) VALUES ($1, $2, $3, $4)`,
			string(event.EventType), event.Symbol, detailJSON, event.OccurredAt,
		)
		return nil, err
	}

	if l.cb == nil {
		_, err := exec()
		metrics.RecordDatabaseQuery("insert", float64(time.Since(queryStart).Milliseconds()))
		return err
	}

	_, err = l.cb.Database().Execute(exec)
	metrics.RecordDatabaseQuery("insert", float64(time.Since(queryStart).Milliseconds()))
	if err == gobreaker.ErrOpenState {
		return err
	}
	return err
}

// Query retrieves audit events matching the given filters, most recent first.
func (l *Logger) Query(ctx context.Context, filters QueryFilters) ([]Event, error) {
	if l.db == nil {
		return nil, nil
	}

	query := `SELECT id, occurred_at, event_type, symbol, detail FROM audit_log WHERE 1=1`
	var args []interface{}

	if filters.EventType != "" {
		args = append(args, string(filters.EventType))
		query += ` AND event_type = $` + itoa(len(args))
	}
	if filters.Symbol != "" {
		args = append(args, filters.Symbol)
		query += ` AND symbol = $` + itoa(len(args))
	}
	if !filters.Since.IsZero() {
		args = append(args, filters.Since)
		query += ` AND occurred_at >= $` + itoa(len(args))
	}

	query += ` ORDER BY occurred_at DESC`
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += ` LIMIT $` + itoa(len(args))
	}

	queryStart := time.Now()
	rows, err := l.db.Query(ctx, query, args...)
	metrics.RecordDatabaseQuery("select", float64(time.Since(queryStart).Milliseconds()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var detailJSON []byte
		if err := rows.Scan(&event.ID, &event.OccurredAt, &event.EventType, &event.Symbol, &detailJSON); err != nil {
			return nil, err
		}
		if len(detailJSON) > 0 {
			_ = json.Unmarshal(detailJSON, &event.Detail)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// QueryFilters narrows an audit log query.
type QueryFilters struct {
	EventType EventType
	Symbol    string
	Since     time.Time
	Limit     int
}

func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	// Queries never carry more than a handful of filters; beyond single
	// digits the placeholder numbering still needs to be correct.
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
