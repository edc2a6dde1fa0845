// Package exchange defines the ExchangeGateway boundary — the only contract
// the engine has with a live OKX-style exchange — plus the shared market
// and order types that cross that boundary.
package exchange

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Symbol is an opaque BASE/QUOTE tag. Only the gateway boundary converts it
// to the exchange-native BASE-QUOTE form.
type Symbol string

// Gateway returns the exchange-native BASE-QUOTE form, e.g. "BTC-USDT".
func (s Symbol) Gateway() string {
	return strings.ReplaceAll(string(s), "/", "-")
}

// FromGatewaySymbol converts an exchange-native BASE-QUOTE form back to the
// engine's BASE/QUOTE Symbol.
func FromGatewaySymbol(native string) Symbol {
	return Symbol(strings.ReplaceAll(native, "-", "/"))
}

// Timeframe enumerates the candle intervals the engine consumes.
type Timeframe string

const (
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// Candle is one OHLCV bar. low <= open,close <= high and volume >= 0 hold
// for any candle the gateway is allowed to return.
type Candle struct {
	OpenTime time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
}

// Valid reports whether the candle satisfies the data-model invariants.
func (c Candle) Valid() bool {
	if c.Low.GreaterThan(c.Open) || c.Low.GreaterThan(c.Close) || c.Low.GreaterThan(c.High) {
		return false
	}
	if c.Open.GreaterThan(c.High) || c.Close.GreaterThan(c.High) {
		return false
	}
	return c.Volume.GreaterThanOrEqual(decimal.Zero)
}

// BookLevel is one (price, size) entry in an order book side.
type BookLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// OrderBookSnapshot is a point-in-time view of one symbol's book. Bids are
// ordered descending by price, asks ascending; asks[0].Price must exceed
// bids[0].Price, both strictly positive.
type OrderBookSnapshot struct {
	Bids      []BookLevel
	Asks      []BookLevel
	Timestamp time.Time
}

// Valid reports whether the snapshot satisfies the top-of-book invariant.
func (b OrderBookSnapshot) Valid() bool {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return false
	}
	bid0, ask0 := b.Bids[0].Price, b.Asks[0].Price
	if !bid0.IsPositive() || !ask0.IsPositive() {
		return false
	}
	return ask0.GreaterThan(bid0)
}

// Ticker is a 24h rolling snapshot for one symbol.
type Ticker struct {
	Last            decimal.Decimal
	High24h         decimal.Decimal
	Low24h          decimal.Decimal
	QuoteVolume24h  decimal.Decimal
	PercentChange24 decimal.Decimal
	BestBid         decimal.Decimal
	BestAsk         decimal.Decimal
}

// AssetBalance is one asset's free/total balance.
type AssetBalance struct {
	Free  decimal.Decimal
	Total decimal.Decimal
}

// OrderType distinguishes regular orders from algo (OCO/conditional/trigger)
// orders. These are returned by two different gateway endpoints and must
// never be folded into one generic list — conflating them is the single
// most common latent bug this contract guards against.
type OrderType string

const (
	OrderTypeMarket      OrderType = "market"
	OrderTypeLimit       OrderType = "limit"
	OrderTypeAlgo        OrderType = "algo"
	OrderTypeOCO         OrderType = "oco"
	OrderTypeConditional OrderType = "conditional"
	OrderTypeTrigger     OrderType = "trigger"
)

// IsAlgo reports whether a type belongs to the algo-orders endpoint rather
// than the regular orders endpoint.
func (t OrderType) IsAlgo() bool {
	switch t {
	case OrderTypeAlgo, OrderTypeOCO, OrderTypeConditional, OrderTypeTrigger:
		return true
	default:
		return false
	}
}

// Order is a regular (market/limit) order as returned by the regular open
// orders endpoint. Entries whose Type.IsAlgo() is true should never appear
// here in a correct gateway implementation, but callers still filter.
type Order struct {
	OrderID   string
	Symbol    Symbol
	Side      string
	Type      OrderType
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	FilledQty decimal.Decimal
	Status    string
	CreatedAt time.Time
}

// AlgoOrder is a conditional/trigger order (including OCO) as returned only
// by the dedicated algo-orders endpoint.
type AlgoOrder struct {
	AlgoID         string
	Symbol         Symbol
	Kind           string // "oco"
	State          string // "live", "filled", "cancelled"
	StopPrice      decimal.Decimal
	TakeProfit     decimal.Decimal
	Amount         decimal.Decimal
	CreatedAt      time.Time
}

// OrderAck is the gateway's response to a market buy submission.
type OrderAck struct {
	OrderID    string
	FilledBase decimal.Decimal
	AvgPrice   decimal.Decimal
	Status     string
}

// AlgoAck is the gateway's response to an OCO submission.
type AlgoAck struct {
	AlgoID    string
	Status    string
	ErrorCode string
}
