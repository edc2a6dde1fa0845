// Package market provides the MarketDataCache: a thin Redis layer in front
// of the exchange gateway so repeated reads of the same ticker/book/candle
// within its TTL never re-hit the network.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/quantfoundry/spotengine/internal/errs"
	"github.com/quantfoundry/spotengine/internal/exchange"
	"github.com/quantfoundry/spotengine/internal/metrics"
)

const (
	tickerTTL = 15 * time.Second
	bookTTL   = 10 * time.Second
)

var candleTTLByTimeframe = map[exchange.Timeframe]time.Duration{
	exchange.Timeframe5m:  5 * time.Minute,
	exchange.Timeframe15m: 15 * time.Minute,
	exchange.Timeframe1h:  time.Hour,
	exchange.Timeframe4h:  4 * time.Hour,
	exchange.Timeframe1d:  24 * time.Hour,
}

// Cache fronts a Gateway with Redis, keyed (symbol, kind, timeframe).
// Every accessor returns errs.Optional so a miss or malformed entry never
// silently becomes a zero value — callers always see Present or Absent.
type Cache struct {
	redis   *metrics.RedisMetrics
	gateway exchange.Gateway
}

// New builds a Cache over the given Redis client and gateway fetch fallback.
// The client is wrapped so every cache read/write is counted by operation
// type under the engine's Redis metrics.
func New(redisClient *redis.Client, gateway exchange.Gateway) *Cache {
	return &Cache{redis: metrics.NewRedisMetrics(redisClient), gateway: gateway}
}

func tickerKey(symbol exchange.Symbol) string {
	return fmt.Sprintf("md:%s:ticker", symbol)
}

func bookKey(symbol exchange.Symbol) string {
	return fmt.Sprintf("md:%s:book", symbol)
}

func candleKey(symbol exchange.Symbol, tf exchange.Timeframe) string {
	return fmt.Sprintf("md:%s:candle:%s", symbol, tf)
}

// GetTicker returns the cached ticker if fresh, otherwise fetches from the
// gateway and repopulates the cache.
func (c *Cache) GetTicker(ctx context.Context, symbol exchange.Symbol) errs.Optional[exchange.Ticker] {
	key := tickerKey(symbol)

	if cached, ok := c.readJSON(ctx, key, new(exchange.Ticker)); ok {
		return errs.Some(*cached.(*exchange.Ticker))
	}

	ticker, err := c.gateway.FetchTicker(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", string(symbol)).Msg("market cache: ticker fetch failed")
		return errs.None[exchange.Ticker](err.Error())
	}
	if ticker == nil {
		return errs.None[exchange.Ticker]("ticker unavailable")
	}

	c.writeJSON(ctx, key, ticker, tickerTTL)
	return errs.Some(*ticker)
}

// GetBook returns the cached order book if fresh, otherwise fetches from the
// gateway and repopulates the cache.
func (c *Cache) GetBook(ctx context.Context, symbol exchange.Symbol, depth int) errs.Optional[exchange.OrderBookSnapshot] {
	key := bookKey(symbol)

	if cached, ok := c.readJSON(ctx, key, new(exchange.OrderBookSnapshot)); ok {
		return errs.Some(*cached.(*exchange.OrderBookSnapshot))
	}

	book, err := c.gateway.FetchOrderBook(ctx, symbol, depth)
	if err != nil {
		log.Warn().Err(err).Str("symbol", string(symbol)).Msg("market cache: book fetch failed")
		return errs.None[exchange.OrderBookSnapshot](err.Error())
	}
	if book == nil || !book.Valid() {
		return errs.None[exchange.OrderBookSnapshot]("book malformed or unavailable")
	}

	c.writeJSON(ctx, key, book, bookTTL)
	return errs.Some(*book)
}

// GetCandles returns the cached candle series if fresh, otherwise fetches
// from the gateway and repopulates the cache. The TTL is one bar of tf.
func (c *Cache) GetCandles(ctx context.Context, symbol exchange.Symbol, tf exchange.Timeframe, limit int) errs.Optional[[]exchange.Candle] {
	key := candleKey(symbol, tf)

	var cached []exchange.Candle
	if ok := c.readRaw(ctx, key, &cached); ok {
		return errs.Some(cached)
	}

	candles, err := c.gateway.FetchCandles(ctx, symbol, tf, limit)
	if err != nil {
		log.Warn().Err(err).Str("symbol", string(symbol)).Str("timeframe", string(tf)).Msg("market cache: candle fetch failed")
		return errs.None[[]exchange.Candle](err.Error())
	}
	if len(candles) == 0 {
		return errs.None[[]exchange.Candle]("no candles available")
	}

	ttl, ok := candleTTLByTimeframe[tf]
	if !ok {
		ttl = time.Minute
	}
	c.writeRaw(ctx, key, candles, ttl)
	return errs.Some(candles)
}

// readJSON reads and decodes a cached value into out, returning (out, true)
// on a hit. redis.Nil and decode failures are both treated as a miss.
func (c *Cache) readJSON(ctx context.Context, key string, out interface{}) (interface{}, bool) {
	if ok := c.readRaw(ctx, key, out); !ok {
		return nil, false
	}
	return out, true
}

func (c *Cache) readRaw(ctx context.Context, key string, out interface{}) bool {
	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	raw, err := c.redis.Get(cacheCtx, key)
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Str("key", key).Msg("market cache: redis get error, treating as miss")
		}
		return false
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("market cache: malformed cache entry, treating as miss")
		return false
	}
	return true
}

func (c *Cache) writeJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	c.writeRaw(ctx, key, value, ttl)
}

func (c *Cache) writeRaw(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("market cache: failed to marshal value")
		return
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	if err := c.redis.Set(cacheCtx, key, data, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("market cache: failed to write cache entry")
	}
}

// Health reports whether the backing Redis connection is reachable.
func (c *Cache) Health(ctx context.Context) error {
	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.redis.Ping(cacheCtx); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
