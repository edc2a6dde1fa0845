package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/quantfoundry/spotengine/internal/exchange"
	"github.com/quantfoundry/spotengine/internal/executor"
	"github.com/quantfoundry/spotengine/internal/indicators"
	"github.com/quantfoundry/spotengine/internal/macro"
	"github.com/quantfoundry/spotengine/internal/market"
	"github.com/quantfoundry/spotengine/internal/position"
	"github.com/quantfoundry/spotengine/internal/ranker"
)

func newTestScheduler(t *testing.T) (*Scheduler, *exchange.MockGateway) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	gw := exchange.NewMockGateway()
	cache := market.New(client, gw)
	svc := indicators.NewService()
	tokenRanker := ranker.New(cache, svc, nil, nil)
	store := position.New(filepath.Join(t.TempDir(), "positions.json"), gw)
	exec := executor.New(gw, store, svc)

	sched := New(gw, cache, tokenRanker, macro.New(nil, nil, nil), store, exec, svc, Config{
		MinQuoteVolumeUSD: 0,
		Quote:             "USDT",
		DiscoverLimit:     50,
		TopN:              15,
		MinLiquidity:      0,
		MaxConcurrent:     10,
		PortfolioEquity:   func() float64 { return 10000 },
	})
	return sched, gw
}

func seedCandidate(gw *exchange.MockGateway, symbol exchange.Symbol) {
	gw.SeedTicker(symbol, exchange.Ticker{
		Last:            decimal.NewFromFloat(100),
		High24h:         decimal.NewFromFloat(104),
		Low24h:          decimal.NewFromFloat(98),
		QuoteVolume24h:  decimal.NewFromFloat(20_000_000),
		PercentChange24: decimal.NewFromFloat(3),
	})
	gw.SeedBook(symbol, exchange.OrderBookSnapshot{
		Bids:      []exchange.BookLevel{{Price: decimal.NewFromFloat(99.9), Size: decimal.NewFromFloat(100)}},
		Asks:      []exchange.BookLevel{{Price: decimal.NewFromFloat(100.1), Size: decimal.NewFromFloat(100)}},
		Timestamp: time.Now(),
	})
	gw.SeedLotSize(symbol, 0.001, 1.0)

	price := 80.0
	for _, tf := range candleTimeframes {
		candles := make([]exchange.Candle, 220)
		p := price
		for i := range candles {
			p += 0.2
			candles[i] = exchange.Candle{
				OpenTime: time.Now().Add(time.Duration(i) * time.Hour),
				Open:     decimal.NewFromFloat(p),
				High:     decimal.NewFromFloat(p + 1),
				Low:      decimal.NewFromFloat(p - 1),
				Close:    decimal.NewFromFloat(p),
				Volume:   decimal.NewFromFloat(1000),
			}
		}
		gw.SeedCandles(symbol, tf, candles)
	}
	gw.SeedSymbols(symbol)
}

func TestRunCycle_NoSymbolsDiscoveredProducesEmptyOutcomes(t *testing.T) {
	sched, _ := newTestScheduler(t)
	outcomes, err := sched.RunCycle(context.Background())
	require.NoError(t, err)
	require.Empty(t, outcomes)
}

func TestRunCycle_SkipsSymbolAlreadyHeld(t *testing.T) {
	sched, gw := newTestScheduler(t)
	symbol := exchange.Symbol("BNB/USDT")
	seedCandidate(gw, symbol)
	gw.SeedBalance("BNB", exchange.AssetBalance{Free: decimal.NewFromFloat(1)})
	sched.store.Upsert(position.Position{Symbol: symbol})

	outcomes, err := sched.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.Equal(t, "already held", outcomes[0].Reason)
}

func TestRunCycle_AnalyzesDiscoveredCandidate(t *testing.T) {
	sched, gw := newTestScheduler(t)
	symbol := exchange.Symbol("SOL/USDT")
	seedCandidate(gw, symbol)

	outcomes, err := sched.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.Equal(t, symbol, outcomes[0].Symbol)
}
