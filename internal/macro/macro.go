// Package macro pulls market-wide sentiment and exposure guidance through
// injectable providers, caches it for an hour, and never blocks a cycle:
// a provider outage degrades to an absent field rather than a stalled tick.
package macro

import (
	"context"
	"sync"
	"time"

	"github.com/quantfoundry/spotengine/internal/errs"
)

// Sentiment classifies the overall mood the snapshot implies.
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentNeutral Sentiment = "neutral"
	SentimentBearish Sentiment = "bearish"
)

// Phase classifies the macro risk appetite.
type Phase string

const (
	PhaseRiskOn     Phase = "risk_on"
	PhaseRiskOff    Phase = "risk_off"
	PhaseTransition Phase = "transition"
)

// Snapshot is fully optional at the field level; any combination of
// presence/absence is valid and a consumer must branch on Present() before
// reading a field rather than assuming the zero value means "neutral".
type Snapshot struct {
	FearGreed          errs.Optional[float64]
	BTCDominancePct    errs.Optional[float64]
	RecommendedExposure errs.Optional[float64]
	Sentiment          errs.Optional[Sentiment]
	Phase              errs.Optional[Phase]
}

// FearGreedProvider supplies the current fear/greed index in [0,100].
type FearGreedProvider interface {
	FearGreed(ctx context.Context) errs.Optional[float64]
}

// DominanceProvider supplies BTC's share of total market cap as a percent.
type DominanceProvider interface {
	BTCDominance(ctx context.Context) errs.Optional[float64]
}

// ExposureProvider supplies a recommended portfolio exposure fraction,
// typically derived from volatility or drawdown models external to the
// engine.
type ExposureProvider interface {
	RecommendedExposure(ctx context.Context) errs.Optional[float64]
}

const cacheTTL = time.Hour

// Context aggregates the three provider feeds into one cached Snapshot, and
// derives the per-asset macro_map the ranker's macro_sentiment component
// reads from.
type Context struct {
	fearGreed FearGreedProvider
	dominance DominanceProvider
	exposure  ExposureProvider

	mu        sync.Mutex
	cached    Snapshot
	cachedAt  time.Time
}

// New builds a Context over the given provider set. Any provider may be nil,
// in which case its Snapshot field is always absent.
func New(fearGreed FearGreedProvider, dominance DominanceProvider, exposure ExposureProvider) *Context {
	return &Context{fearGreed: fearGreed, dominance: dominance, exposure: exposure}
}

// Get returns the current Snapshot, refreshing from providers if the cache
// has aged past one hour. Provider errors/timeouts degrade individual
// fields to absent; they never fail the whole call.
func (c *Context) Get(ctx context.Context) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.cachedAt) < cacheTTL && !c.cachedAt.IsZero() {
		return c.cached
	}

	snap := Snapshot{
		FearGreed:           errs.None[float64]("no fear/greed provider configured"),
		BTCDominancePct:     errs.None[float64]("no dominance provider configured"),
		RecommendedExposure: errs.None[float64]("no exposure provider configured"),
		Sentiment:           errs.None[Sentiment]("insufficient inputs"),
		Phase:               errs.None[Phase]("insufficient inputs"),
	}

	if c.fearGreed != nil {
		snap.FearGreed = c.fearGreed.FearGreed(ctx)
	}
	if c.dominance != nil {
		snap.BTCDominancePct = c.dominance.BTCDominance(ctx)
	}
	if c.exposure != nil {
		snap.RecommendedExposure = c.exposure.RecommendedExposure(ctx)
	}

	snap.Sentiment = deriveSentiment(snap.FearGreed)
	snap.Phase = derivePhase(snap.RecommendedExposure, snap.Sentiment)

	c.cached = snap
	c.cachedAt = time.Now()
	return snap
}

func deriveSentiment(fearGreed errs.Optional[float64]) errs.Optional[Sentiment] {
	value, ok := fearGreed.Get()
	if !ok {
		return errs.None[Sentiment]("fear/greed unavailable")
	}
	switch {
	case value >= 60:
		return errs.Some(SentimentBullish)
	case value <= 40:
		return errs.Some(SentimentBearish)
	default:
		return errs.Some(SentimentNeutral)
	}
}

func derivePhase(exposure errs.Optional[float64], sentiment errs.Optional[Sentiment]) errs.Optional[Phase] {
	exp, expOK := exposure.Get()
	sent, sentOK := sentiment.Get()
	if !expOK && !sentOK {
		return errs.None[Phase]("no exposure or sentiment signal")
	}
	if expOK {
		switch {
		case exp >= 0.60:
			return errs.Some(PhaseRiskOn)
		case exp <= 0.20:
			return errs.Some(PhaseRiskOff)
		}
	}
	if sentOK && sent == SentimentBearish {
		return errs.Some(PhaseRiskOff)
	}
	return errs.Some(PhaseTransition)
}

// AssetMap returns the macro_map the ranker's macro_sentiment component
// reads: a "market" key derived from fear/greed (normalized to [0,1]), and
// for BTC specifically, a dominance-derived entry. Every other asset falls
// back to the "market" key in the ranker unless it has its own entry here.
func (c *Context) AssetMap(ctx context.Context) map[string]float64 {
	snap := c.Get(ctx)
	out := map[string]float64{}

	if fg, ok := snap.FearGreed.Get(); ok {
		out["market"] = clamp01(fg / 100)
	}
	if dom, ok := snap.BTCDominancePct.Get(); ok {
		// Rising BTC dominance historically coincides with altcoin
		// underperformance; fold it into BTC's own macro_sentiment entry.
		out["BTC"] = clamp01(dom / 100)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
