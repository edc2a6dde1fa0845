package exchange

import "context"

// Gateway is the engine's only boundary with a live exchange. The core
// compiles against this capability set alone; MockGateway and OKXGateway
// are the two implementations that ship with it.
type Gateway interface {
	// DiscoverLiquidSymbols returns candidate symbols quoted in quote with
	// at least minQuoteVolumeUSD of 24h quote volume, capped at limit.
	DiscoverLiquidSymbols(ctx context.Context, minQuoteVolumeUSD float64, quote string, limit int) ([]Symbol, error)

	// FetchTicker returns nil if the ticker is unavailable — callers treat
	// that as DataAbsent, never as a zero-valued Ticker.
	FetchTicker(ctx context.Context, symbol Symbol) (*Ticker, error)

	// FetchCandles returns up to limit most-recent candles, oldest first.
	FetchCandles(ctx context.Context, symbol Symbol, tf Timeframe, limit int) ([]Candle, error)

	FetchOrderBook(ctx context.Context, symbol Symbol, depth int) (*OrderBookSnapshot, error)

	FetchBalance(ctx context.Context) (map[string]AssetBalance, error)

	// FetchOpenOrders returns only regular (market/limit) orders. A correct
	// implementation must never include algo orders here.
	FetchOpenOrders(ctx context.Context) ([]Order, error)

	// FetchAlgoOrders is the only source of truth for OCO/SL-TP protection;
	// the regular open-orders endpoint does not return these.
	FetchAlgoOrders(ctx context.Context, kind, state string) ([]AlgoOrder, error)

	PlaceMarketBuy(ctx context.Context, symbol Symbol, baseAmount float64) (*OrderAck, error)

	PlaceOCOSell(ctx context.Context, symbol Symbol, baseAmount, stopPrice, takeProfitPrice, entryPrice float64) (*AlgoAck, error)

	CancelAlgoOrder(ctx context.Context, algoID string) error

	// LotSize returns the exchange lot step and minimum notional for a
	// symbol, used to round order sizes down, never up.
	LotSize(ctx context.Context, symbol Symbol) (step, minNotional float64, err error)
}
