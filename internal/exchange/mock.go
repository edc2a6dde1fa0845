package exchange

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockGateway is a deterministic in-memory Gateway used for tests and paper
// trading. It never simulates slippage or partial fills — callers seed
// exactly the ticker/candle/book/balance state a scenario needs.
type MockGateway struct {
	mu sync.Mutex

	symbols  []Symbol
	tickers  map[Symbol]Ticker
	candles  map[Symbol]map[Timeframe][]Candle
	books    map[Symbol]OrderBookSnapshot
	balances map[string]AssetBalance
	orders   []Order
	algos    map[string]*AlgoOrder
	lotStep  map[Symbol]float64
	lotMin   map[Symbol]float64

	// FailNextOCO, when set, makes the next PlaceOCOSell return this error
	// code instead of succeeding — used to exercise the settlement-retry
	// and fallback-to-unmanaged paths.
	FailNextOCO string
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		tickers:  make(map[Symbol]Ticker),
		candles:  make(map[Symbol]map[Timeframe][]Candle),
		books:    make(map[Symbol]OrderBookSnapshot),
		balances: make(map[string]AssetBalance),
		algos:    make(map[string]*AlgoOrder),
		lotStep:  make(map[Symbol]float64),
		lotMin:   make(map[Symbol]float64),
	}
}

func (m *MockGateway) SeedSymbols(symbols ...Symbol) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.symbols = symbols
}

func (m *MockGateway) SeedTicker(symbol Symbol, t Ticker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickers[symbol] = t
}

func (m *MockGateway) SeedCandles(symbol Symbol, tf Timeframe, candles []Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.candles[symbol] == nil {
		m.candles[symbol] = make(map[Timeframe][]Candle)
	}
	m.candles[symbol][tf] = candles
}

func (m *MockGateway) SeedBook(symbol Symbol, book OrderBookSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[symbol] = book
}

func (m *MockGateway) SeedBalance(asset string, bal AssetBalance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[asset] = bal
}

func (m *MockGateway) SeedLotSize(symbol Symbol, step, minNotional float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lotStep[symbol] = step
	m.lotMin[symbol] = minNotional
}

func (m *MockGateway) SeedAlgoOrder(a AlgoOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.algos[a.AlgoID] = &a
}

func (m *MockGateway) DiscoverLiquidSymbols(ctx context.Context, minQuoteVolumeUSD float64, quote string, limit int) ([]Symbol, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Symbol, 0, len(m.symbols))
	for _, s := range m.symbols {
		out = append(out, s)
		if len(out) >= limit {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *MockGateway) FetchTicker(ctx context.Context, symbol Symbol) (*Ticker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickers[symbol]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *MockGateway) FetchCandles(ctx context.Context, symbol Symbol, tf Timeframe, limit int) ([]Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	series, ok := m.candles[symbol][tf]
	if !ok {
		return nil, nil
	}
	if len(series) > limit {
		return series[len(series)-limit:], nil
	}
	return series, nil
}

func (m *MockGateway) FetchOrderBook(ctx context.Context, symbol Symbol, depth int) (*OrderBookSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[symbol]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *MockGateway) FetchBalance(ctx context.Context) (map[string]AssetBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]AssetBalance, len(m.balances))
	for k, v := range m.balances {
		out[k] = v
	}
	return out, nil
}

func (m *MockGateway) FetchOpenOrders(ctx context.Context) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Order, 0, len(m.orders))
	for _, o := range m.orders {
		if !o.Type.IsAlgo() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *MockGateway) FetchAlgoOrders(ctx context.Context, kind, state string) ([]AlgoOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AlgoOrder, 0, len(m.algos))
	for _, a := range m.algos {
		if (kind == "" || a.Kind == kind) && (state == "" || a.State == state) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *MockGateway) PlaceMarketBuy(ctx context.Context, symbol Symbol, baseAmount float64) (*OrderAck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickers[symbol]
	if !ok {
		return nil, fmt.Errorf("no ticker seeded for %s", symbol)
	}

	orderID := uuid.New().String()
	base := decimal.NewFromFloat(baseAmount)
	m.orders = append(m.orders, Order{
		OrderID:   orderID,
		Symbol:    symbol,
		Side:      "buy",
		Type:      OrderTypeMarket,
		Quantity:  base,
		FilledQty: base,
		Status:    "filled",
		CreatedAt: time.Now(),
	})

	return &OrderAck{
		OrderID:    orderID,
		FilledBase: base,
		AvgPrice:   t.Last,
		Status:     "filled",
	}, nil
}

func (m *MockGateway) PlaceOCOSell(ctx context.Context, symbol Symbol, baseAmount, stopPrice, takeProfitPrice, entryPrice float64) (*AlgoAck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailNextOCO != "" {
		code := m.FailNextOCO
		m.FailNextOCO = ""
		return &AlgoAck{Status: "rejected", ErrorCode: code}, nil
	}

	algoID := uuid.New().String()
	m.algos[algoID] = &AlgoOrder{
		AlgoID:     algoID,
		Symbol:     symbol,
		Kind:       "oco",
		State:      "live",
		StopPrice:  decimal.NewFromFloat(stopPrice),
		TakeProfit: decimal.NewFromFloat(takeProfitPrice),
		Amount:     decimal.NewFromFloat(baseAmount),
		CreatedAt:  time.Now(),
	}

	return &AlgoAck{AlgoID: algoID, Status: "live"}, nil
}

func (m *MockGateway) CancelAlgoOrder(ctx context.Context, algoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.algos[algoID]; !ok {
		return fmt.Errorf("algo order not found: %s", algoID)
	}
	delete(m.algos, algoID)
	return nil
}

func (m *MockGateway) LotSize(ctx context.Context, symbol Symbol) (float64, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	step, ok := m.lotStep[symbol]
	if !ok {
		step = 0.00001
	}
	minNotional := m.lotMin[symbol]
	return step, minNotional, nil
}

var _ Gateway = (*MockGateway)(nil)
