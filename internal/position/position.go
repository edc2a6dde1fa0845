// Package position implements PositionStore: the authoritative in-memory
// record of every open position, atomically persisted to disk and
// reconciled against the exchange on a throttled interval.
package position

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/quantfoundry/spotengine/internal/audit"
	"github.com/quantfoundry/spotengine/internal/exchange"
	"github.com/quantfoundry/spotengine/internal/telemetry"
)

// minProvisionalUSD is the startup-load threshold below which a free
// balance is too small to synthesize a provisional position for.
const minProvisionalUSD = 1.0

// reconcileMinInterval throttles reconcile() unless force=true.
const reconcileMinInterval = 60 * time.Second

// Position is the authoritative record of one open long position.
type Position struct {
	Symbol            exchange.Symbol `json:"symbol"`
	Side              string          `json:"side"`
	Amount            decimal.Decimal `json:"amount"`
	EntryPrice        decimal.Decimal `json:"entry_price"`
	StopLoss          decimal.Decimal `json:"stop_loss"`
	TakeProfit        decimal.Decimal `json:"take_profit"`
	EntryTime         time.Time       `json:"entry_time"`
	OrderID           string          `json:"order_id"`
	ProtectionAlgoID  string          `json:"protection_algo_id,omitempty"`
	ManagedByExchange bool            `json:"managed_by_exchange"`
}

// Store owns the map of open positions, exclusively. Other components only
// ever see read-only copies via Get/All.
type Store struct {
	mu            sync.Mutex
	path          string
	gateway       exchange.Gateway
	positions     map[exchange.Symbol]Position
	lastReconcile time.Time
	audit         *audit.Logger
	emitter       *telemetry.Emitter
}

// New builds a Store backed by a JSON file at path.
func New(path string, gateway exchange.Gateway) *Store {
	return &Store{
		path:      path,
		gateway:   gateway,
		positions: make(map[exchange.Symbol]Position),
	}
}

// SetNotifier wires an audit logger and telemetry emitter so that the
// PositionLoaded/Persisted/Reconciled/Evicted and ProtectionMissing events
// this store already logs also reach the audit trail and event bus. Either
// argument may be nil; both default to nil (log-line-only) until called.
func (s *Store) SetNotifier(auditLog *audit.Logger, emitter *telemetry.Emitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = auditLog
	s.emitter = emitter
}

func (s *Store) notify(kind telemetry.Kind, eventType audit.EventType, symbol string, detail map[string]interface{}) {
	s.mu.Lock()
	auditLog, emitter := s.audit, s.emitter
	s.mu.Unlock()

	if emitter != nil {
		emitter.Emit(kind, symbol, detail)
	}
	if auditLog != nil {
		auditLog.Log(context.Background(), &audit.Event{EventType: eventType, Symbol: symbol, Detail: detail})
	}
}

// Has reports whether symbol currently has an open position.
func (s *Store) Has(symbol exchange.Symbol) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.positions[symbol]
	return ok
}

// Get returns a read-only copy of a tracked position.
func (s *Store) Get(symbol exchange.Symbol) (Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[symbol]
	return p, ok
}

// All returns a read-only snapshot of every tracked position.
func (s *Store) All() []Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out
}

// Upsert records or replaces a position. Callers must call Save afterward
// to persist it.
func (s *Store) Upsert(p Position) {
	s.mu.Lock()
	s.positions[p.Symbol] = p
	s.mu.Unlock()

	log.Info().Str("event", "PositionPersisted").Str("symbol", string(p.Symbol)).Msg("position upserted")
	s.notify(telemetry.KindPositionPersisted, audit.EventTypePositionPersisted, string(p.Symbol), map[string]interface{}{"order_id": p.OrderID})
}

// Save atomically replaces the persisted file: write to a temp file in the
// same directory, then rename, so a crash mid-write never leaves a
// truncated file behind.
func (s *Store) Save() error {
	s.mu.Lock()
	snapshot := make(map[exchange.Symbol]Position, len(s.positions))
	for k, v := range s.positions {
		snapshot[k] = v
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal positions: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".positions-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (s *Store) readPersisted() (map[exchange.Symbol]Position, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[exchange.Symbol]Position{}, nil
	}
	if err != nil {
		return nil, err
	}
	var out map[exchange.Symbol]Position
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode persisted positions: %w", err)
	}
	return out, nil
}

// Load runs the startup sequence: provisional positions from free balances,
// then open regular orders, then the persisted file matched against live
// algo orders. It replaces the in-memory map entirely.
func (s *Store) Load(ctx context.Context) error {
	loaded := make(map[exchange.Symbol]Position)

	balances, err := s.gateway.FetchBalance(ctx)
	if err != nil {
		return fmt.Errorf("fetch balance: %w", err)
	}
	for asset, bal := range balances {
		if bal.Free.IsZero() {
			continue
		}
		symbol := exchange.Symbol(asset + "/USDT")
		ticker, err := s.gateway.FetchTicker(ctx, symbol)
		if err != nil || ticker == nil {
			continue
		}
		usdValue := bal.Free.Mul(ticker.Last)
		value, _ := usdValue.Float64()
		if value < minProvisionalUSD {
			continue
		}
		loaded[symbol] = Position{
			Symbol:            symbol,
			Side:              "long",
			Amount:            bal.Free,
			EntryPrice:        ticker.Last,
			ManagedByExchange: false,
		}
	}

	orders, err := s.gateway.FetchOpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("fetch open orders: %w", err)
	}
	for _, o := range orders {
		if o.Type.IsAlgo() {
			// Regular-orders endpoint must never surface algo orders; skip
			// defensively if a gateway implementation violates that.
			continue
		}
		if _, ok := loaded[o.Symbol]; !ok {
			loaded[o.Symbol] = Position{
				Symbol:            o.Symbol,
				Side:              "long",
				Amount:            o.Quantity,
				EntryPrice:        o.Price,
				OrderID:           o.OrderID,
				ManagedByExchange: false,
			}
		}
	}

	persisted, err := s.readPersisted()
	if err != nil {
		return err
	}
	algos, err := s.gateway.FetchAlgoOrders(ctx, "oco", "")
	if err != nil {
		return fmt.Errorf("fetch algo orders: %w", err)
	}
	algosBySymbol := make(map[exchange.Symbol][]exchange.AlgoOrder)
	for _, a := range algos {
		algosBySymbol[a.Symbol] = append(algosBySymbol[a.Symbol], a)
	}

	for symbol, p := range persisted {
		live := algosBySymbol[symbol]
		bal, hasBalance := balances[baseAsset(symbol)]
		if len(live) == 0 && (!hasBalance || bal.Free.IsZero()) {
			// No live protection and no free balance: this position closed
			// while the engine was down.
			continue
		}
		if len(live) > 0 {
			p.ProtectionAlgoID = live[0].AlgoID
			p.ManagedByExchange = true
		}
		loaded[symbol] = p
	}

	s.mu.Lock()
	s.positions = loaded
	s.mu.Unlock()

	log.Info().Str("event", "PositionLoaded").Int("count", len(loaded)).Msg("position store loaded")
	s.notify(telemetry.KindPositionLoaded, audit.EventTypePositionLoaded, "", map[string]interface{}{"count": len(loaded)})
	return nil
}

func baseAsset(symbol exchange.Symbol) string {
	for i, r := range symbol {
		if r == '/' {
			return string(symbol[:i])
		}
	}
	return string(symbol)
}

// Reconcile re-checks every tracked symbol's balance and algo orders,
// evicting only when free balance is exactly zero and no algo order
// remains open. It is throttled to once per reconcileMinInterval unless
// force is true.
func (s *Store) Reconcile(ctx context.Context, force bool) error {
	s.mu.Lock()
	if !force && time.Since(s.lastReconcile) < reconcileMinInterval {
		s.mu.Unlock()
		return nil
	}
	symbols := make([]exchange.Symbol, 0, len(s.positions))
	for sym := range s.positions {
		symbols = append(symbols, sym)
	}
	s.mu.Unlock()

	balances, err := s.gateway.FetchBalance(ctx)
	if err != nil {
		return fmt.Errorf("fetch balance: %w", err)
	}
	algos, err := s.gateway.FetchAlgoOrders(ctx, "oco", "live")
	if err != nil {
		return fmt.Errorf("fetch algo orders: %w", err)
	}
	algosBySymbol := make(map[exchange.Symbol]bool)
	for _, a := range algos {
		algosBySymbol[a.Symbol] = true
	}

	var evictedSymbols, missingProtectionSymbols []exchange.Symbol
	s.mu.Lock()
	for _, symbol := range symbols {
		p, ok := s.positions[symbol]
		if !ok {
			continue
		}
		bal := balances[baseAsset(symbol)]
		hasAlgo := algosBySymbol[symbol]

		if bal.Free.IsZero() && !hasAlgo {
			delete(s.positions, symbol)
			evictedSymbols = append(evictedSymbols, symbol)
			log.Info().Str("event", "PositionEvicted").Str("symbol", string(symbol)).Msg("position reconciled away")
			continue
		}
		if !hasAlgo && p.ManagedByExchange {
			missingProtectionSymbols = append(missingProtectionSymbols, symbol)
			log.Warn().Str("event", "ProtectionMissing").Str("symbol", string(symbol)).Msg("position lost exchange-managed protection")
		}
	}
	s.lastReconcile = time.Now()
	s.mu.Unlock()

	log.Info().Str("event", "PositionReconciled").Int("tracked", len(symbols)).Msg("reconciliation complete")
	s.notify(telemetry.KindPositionReconciled, audit.EventTypePositionReconciled, "", map[string]interface{}{"tracked": len(symbols)})
	for _, symbol := range evictedSymbols {
		s.notify(telemetry.KindPositionEvicted, audit.EventTypePositionEvicted, string(symbol), nil)
	}
	for _, symbol := range missingProtectionSymbols {
		s.notify(telemetry.KindProtectionMissing, audit.EventTypeProtectionMissing, string(symbol), nil)
	}

	if len(evictedSymbols) > 0 {
		return s.Save()
	}
	return nil
}
