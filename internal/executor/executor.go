// Package executor implements the buy-then-protect sequence: submit a
// market buy, confirm settlement, then submit an OCO stop-loss/take-profit
// order sized off the filled amount.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/quantfoundry/spotengine/internal/exchange"
	"github.com/quantfoundry/spotengine/internal/indicators"
	"github.com/quantfoundry/spotengine/internal/metrics"
	"github.com/quantfoundry/spotengine/internal/optimizer"
	"github.com/quantfoundry/spotengine/internal/position"
	"github.com/quantfoundry/spotengine/internal/validation"
)

// Kind distinguishes the executor's failure modes; Rejected and
// DuplicateBuyPrevented are never retried within the same cycle.
type Kind string

const (
	KindRejected             Kind = "rejected"
	KindDuplicateBuyPrevented Kind = "duplicate_buy_prevented"
	KindExchangeError         Kind = "exchange_error"
	KindTimeout               Kind = "timeout"
)

// Error is the executor's error taxonomy.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

const (
	settlementFillTolerance = 0.95
	ocoSellFraction         = 0.999
	atrCandleLimit          = 100
	atrPeriod               = 14
)

// settlementWait is how long the executor waits between balance checks
// while confirming a market buy settled. Overridable in tests.
var settlementWait = time.Second

// Executor submits BUY decisions against the gateway and protects the fill
// with an OCO order.
type Executor struct {
	gateway    exchange.Gateway
	store      *position.Store
	indicators *indicators.Service
}

// New builds an Executor over a gateway and the PositionStore it must
// consult before every buy.
func New(gateway exchange.Gateway, store *position.Store, indicatorSvc *indicators.Service) *Executor {
	return &Executor{gateway: gateway, store: store, indicators: indicatorSvc}
}

// BuyThenProtect runs the full sequence for symbol at sizeUSD. params comes
// from the DynamicOptimizer for the current regime.
func (e *Executor) BuyThenProtect(ctx context.Context, symbol exchange.Symbol, sizeUSD float64, ticker exchange.Ticker, params optimizer.Params) (err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			var execErr *Error
			if errors.As(err, &execErr) {
				metrics.RecordError(string(execErr.Kind), "executor")
			}
			return
		}
		metrics.RecordOrderExecution(float64(time.Since(start).Milliseconds()))
	}()

	v := validation.NewValidator()
	v.Symbol("symbol", string(symbol))
	v.Positive("size_usd", sizeUSD)
	if v.HasErrors() {
		return &Error{Kind: KindRejected, Message: v.Errors().Error()}
	}

	if e.store.Has(symbol) {
		return &Error{Kind: KindDuplicateBuyPrevented, Message: "position already open for " + string(symbol)}
	}

	last, _ := ticker.Last.Float64()
	if last <= 0 {
		return &Error{Kind: KindRejected, Message: "non-positive last price"}
	}

	step, minNotional, err := e.gateway.LotSize(ctx, symbol)
	if err != nil {
		return &Error{Kind: KindExchangeError, Message: err.Error()}
	}

	sizeBase := sizeUSD / last
	sizeBase = floorToStep(sizeBase, step)
	if sizeBase*last < minNotional {
		return &Error{Kind: KindRejected, Message: "size below minimum notional"}
	}

	// Defense in depth: re-check immediately before submit, since discovery
	// and scoring may have taken time since the initial pre-check.
	if e.store.Has(symbol) {
		return &Error{Kind: KindDuplicateBuyPrevented, Message: "position opened concurrently for " + string(symbol)}
	}

	buyAck, err := e.gateway.PlaceMarketBuy(ctx, symbol, sizeBase)
	if err != nil {
		return &Error{Kind: KindExchangeError, Message: err.Error()}
	}

	filledBase, avgPrice, err := e.confirmSettlement(ctx, symbol, sizeBase, buyAck)
	if err != nil {
		return err
	}
	if filledBase.IsZero() {
		log.Warn().Str("symbol", string(symbol)).Str("order_id", buyAck.OrderID).Msg("executor: zero fill after settlement wait")
		return &Error{Kind: KindTimeout, Message: "order did not settle"}
	}

	entryPrice := avgPrice
	if entryPrice.IsZero() {
		entryPrice = ticker.Last
	}

	candles, _ := e.gateway.FetchCandles(ctx, symbol, exchange.Timeframe1h, atrCandleLimit)
	stopLoss, takeProfit := computeProtectionLevels(e.indicators, entryPrice, candles, params)

	pos := position.Position{
		Symbol:            symbol,
		Side:              "long",
		Amount:            filledBase,
		EntryPrice:        entryPrice,
		StopLoss:          stopLoss,
		TakeProfit:        takeProfit,
		EntryTime:         time.Now(),
		OrderID:           buyAck.OrderID,
		ManagedByExchange: false,
	}

	sellAmount := filledBase.Mul(decimal.NewFromFloat(ocoSellFraction))
	sellAmountFloat := floorToStep(mustFloat(sellAmount), step)
	if sellAmountFloat*mustFloat(entryPrice) >= minNotional {
		stopF := mustFloat(stopLoss)
		tpF := mustFloat(takeProfit)
		entryF := mustFloat(entryPrice)

		algoAck, err := e.gateway.PlaceOCOSell(ctx, symbol, sellAmountFloat, stopF, tpF, entryF)
		if err != nil {
			log.Warn().Err(err).Str("symbol", string(symbol)).Msg("executor: OCO submission errored, falling back to unmanaged")
		} else if algoAck != nil && algoAck.Status != "rejected" {
			pos.ProtectionAlgoID = algoAck.AlgoID
			pos.ManagedByExchange = true
		} else if algoAck != nil {
			log.Warn().Str("symbol", string(symbol)).Str("error_code", algoAck.ErrorCode).
				Msg("executor: OCO rejected by exchange, falling back to unmanaged position")
		}
	} else {
		log.Warn().Str("symbol", string(symbol)).Msg("executor: OCO sell amount below minimum notional, skipping protection order")
	}

	e.store.Upsert(pos)
	if err := e.store.Save(); err != nil {
		return &Error{Kind: KindExchangeError, Message: "failed to persist position: " + err.Error()}
	}

	return nil
}

func (e *Executor) confirmSettlement(ctx context.Context, symbol exchange.Symbol, sizeBase float64, ack *exchange.OrderAck) (decimal.Decimal, decimal.Decimal, error) {
	base := baseAsset(symbol)

	if ack != nil && !ack.FilledBase.IsZero() {
		filled, _ := ack.FilledBase.Float64()
		if filled >= settlementFillTolerance*sizeBase {
			return ack.FilledBase, ack.AvgPrice, nil
		}
	}

	time.Sleep(settlementWait)
	balances, err := e.gateway.FetchBalance(ctx)
	if err != nil {
		return decimal.Zero, decimal.Zero, &Error{Kind: KindExchangeError, Message: err.Error()}
	}
	free := balances[base].Free
	freeF, _ := free.Float64()
	if freeF >= settlementFillTolerance*sizeBase {
		avg := decimal.Zero
		if ack != nil {
			avg = ack.AvgPrice
		}
		return free, avg, nil
	}

	time.Sleep(settlementWait)
	balances, err = e.gateway.FetchBalance(ctx)
	if err != nil {
		return decimal.Zero, decimal.Zero, &Error{Kind: KindExchangeError, Message: err.Error()}
	}
	free = balances[base].Free
	freeF, _ = free.Float64()
	if freeF <= 0 {
		return decimal.Zero, decimal.Zero, nil
	}

	if freeF < settlementFillTolerance*sizeBase {
		log.Warn().Str("symbol", string(symbol)).Float64("free", freeF).Float64("expected", sizeBase).
			Msg("executor: accepting under-tolerance fill after second settlement check")
	}
	avg := decimal.Zero
	if ack != nil {
		avg = ack.AvgPrice
	}
	return free, avg, nil
}

func computeProtectionLevels(svc *indicators.Service, entryPrice decimal.Decimal, candles []exchange.Candle, params optimizer.Params) (decimal.Decimal, decimal.Decimal) {
	entry := mustFloat(entryPrice)

	atr := entry * 0.02 // fallback: 2% of entry when ATR can't be computed
	if svc != nil && len(candles) >= atrPeriod+1 {
		high := make([]float64, len(candles))
		low := make([]float64, len(candles))
		closes := make([]float64, len(candles))
		for i, c := range candles {
			high[i] = mustFloat(c.High)
			low[i] = mustFloat(c.Low)
			closes[i] = mustFloat(c.Close)
		}
		if result, err := svc.CalculateATR(high, low, closes, atrPeriod); err == nil {
			atr = result.Value
		}
	}

	stopDistance := atr * params.StopLossMultiplier
	stopLoss := math.Max(entry-stopDistance, 0)
	takeProfitDistance := stopDistance * params.TakeProfitMultiplier
	takeProfit := entry + takeProfitDistance

	return decimal.NewFromFloat(stopLoss), decimal.NewFromFloat(takeProfit)
}

func floorToStep(value, step float64) float64 {
	if step <= 0 {
		return value
	}
	return math.Floor(value/step) * step
}

func mustFloat(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}

func baseAsset(symbol exchange.Symbol) string {
	for i, r := range symbol {
		if r == '/' {
			return string(symbol[:i])
		}
	}
	return string(symbol)
}
