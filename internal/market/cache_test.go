package market

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/quantfoundry/spotengine/internal/exchange"
)

func newTestCache(t *testing.T) (*Cache, *exchange.MockGateway, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	gw := exchange.NewMockGateway()
	return New(client, gw), gw, mr
}

func TestCache_GetTicker_CacheMissThenHit(t *testing.T) {
	cache, gw, _ := newTestCache(t)
	ctx := context.Background()
	symbol := exchange.Symbol("BTC/USDT")

	gw.SeedTicker(symbol, exchange.Ticker{Last: decimal.NewFromInt(50000)})

	result := cache.GetTicker(ctx, symbol)
	require.True(t, result.Present())
	v, _ := result.Get()
	require.True(t, v.Last.Equal(decimal.NewFromInt(50000)))

	// Change the seeded value; the second read must come from cache, not the gateway.
	gw.SeedTicker(symbol, exchange.Ticker{Last: decimal.NewFromInt(99999)})
	result2 := cache.GetTicker(ctx, symbol)
	require.True(t, result2.Present())
	v2, _ := result2.Get()
	require.True(t, v2.Last.Equal(decimal.NewFromInt(50000)), "expected cached value, not live gateway value")
}

func TestCache_GetTicker_AbsentWhenGatewayHasNone(t *testing.T) {
	cache, _, _ := newTestCache(t)
	ctx := context.Background()

	result := cache.GetTicker(ctx, exchange.Symbol("ZZZ/USDT"))
	require.False(t, result.Present())
	require.NotEmpty(t, result.Reason())
}

func TestCache_GetBook_AbsentWhenMalformed(t *testing.T) {
	cache, gw, _ := newTestCache(t)
	ctx := context.Background()
	symbol := exchange.Symbol("ETH/USDT")

	// Crossed book: bid >= ask is invalid.
	gw.SeedBook(symbol, exchange.OrderBookSnapshot{
		Bids:      []exchange.BookLevel{{Price: decimal.NewFromInt(100), Size: decimal.NewFromInt(1)}},
		Asks:      []exchange.BookLevel{{Price: decimal.NewFromInt(90), Size: decimal.NewFromInt(1)}},
		Timestamp: time.Now(),
	})

	result := cache.GetBook(ctx, symbol, 20)
	require.False(t, result.Present())
}

func TestCache_GetBook_PresentAndCached(t *testing.T) {
	cache, gw, _ := newTestCache(t)
	ctx := context.Background()
	symbol := exchange.Symbol("ETH/USDT")

	gw.SeedBook(symbol, exchange.OrderBookSnapshot{
		Bids:      []exchange.BookLevel{{Price: decimal.NewFromInt(90), Size: decimal.NewFromInt(1)}},
		Asks:      []exchange.BookLevel{{Price: decimal.NewFromInt(100), Size: decimal.NewFromInt(1)}},
		Timestamp: time.Now(),
	})

	result := cache.GetBook(ctx, symbol, 20)
	require.True(t, result.Present())
}

func TestCache_GetCandles_EmptyIsAbsent(t *testing.T) {
	cache, _, _ := newTestCache(t)
	ctx := context.Background()

	result := cache.GetCandles(ctx, exchange.Symbol("BTC/USDT"), exchange.Timeframe1h, 200)
	require.False(t, result.Present())
}

func TestCache_GetCandles_PresentAndCached(t *testing.T) {
	cache, gw, _ := newTestCache(t)
	ctx := context.Background()
	symbol := exchange.Symbol("BTC/USDT")

	candles := []exchange.Candle{
		{OpenTime: time.Now(), Open: decimal.NewFromInt(100), High: decimal.NewFromInt(110), Low: decimal.NewFromInt(90), Close: decimal.NewFromInt(105), Volume: decimal.NewFromInt(10)},
	}
	gw.SeedCandles(symbol, exchange.Timeframe1h, candles)

	result := cache.GetCandles(ctx, symbol, exchange.Timeframe1h, 10)
	require.True(t, result.Present())
	v, _ := result.Get()
	require.Len(t, v, 1)
}

func TestCache_Health(t *testing.T) {
	cache, _, mr := newTestCache(t)
	require.NoError(t, cache.Health(context.Background()))

	mr.Close()
	require.Error(t, cache.Health(context.Background()))
}
