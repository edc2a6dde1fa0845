package risk

import (
	"context"

	"golang.org/x/time/rate"
)

// EndpointFamily groups exchange endpoints that share a rate budget.
type EndpointFamily string

const (
	FamilyDiscover EndpointFamily = "discover"
	FamilyTicker   EndpointFamily = "ticker"
	FamilyCandles  EndpointFamily = "candles"
	FamilyBook     EndpointFamily = "book"
	FamilyTrade    EndpointFamily = "trade"
)

// RateLimiter gates outbound exchange calls with one token bucket per
// endpoint family, so a burst of candle fetches can never starve the trade
// endpoints a buy-then-protect sequence depends on.
type RateLimiter struct {
	buckets map[EndpointFamily]*rate.Limiter
}

// NewRateLimiter builds a limiter with OKX's documented per-family rate caps.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		buckets: map[EndpointFamily]*rate.Limiter{
			FamilyDiscover: rate.NewLimiter(rate.Limit(6), 6),   // 6 req/s, public tickers
			FamilyTicker:   rate.NewLimiter(rate.Limit(10), 10), // 10 req/s public
			FamilyCandles:  rate.NewLimiter(rate.Limit(20), 20), // 20 req/s public
			FamilyBook:     rate.NewLimiter(rate.Limit(10), 10), // 10 req/s public
			FamilyTrade:    rate.NewLimiter(rate.Limit(5), 5),   // 5 req/s private, trading
		},
	}
}

// Wait blocks until a token for family is available or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context, family EndpointFamily) error {
	limiter, ok := r.buckets[family]
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}

// Allow reports whether a request for family may proceed immediately,
// consuming a token if so. Used where blocking is undesirable.
func (r *RateLimiter) Allow(family EndpointFamily) bool {
	limiter, ok := r.buckets[family]
	if !ok {
		return true
	}
	return limiter.Allow()
}
