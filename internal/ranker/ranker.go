// Package ranker scores and orders candidate symbols into the TokenScore
// sequence the scheduler analyzes each cycle.
package ranker

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/quantfoundry/spotengine/internal/analysis"
	"github.com/quantfoundry/spotengine/internal/errs"
	"github.com/quantfoundry/spotengine/internal/exchange"
	"github.com/quantfoundry/spotengine/internal/indicators"
	"github.com/quantfoundry/spotengine/internal/macro"
	"github.com/quantfoundry/spotengine/internal/market"
)

// orderBookDepth is K in the spec's "top K levels" liquidity calculation.
const orderBookDepth = 20

// referenceVolumeUSD scales momentum's volume_boost component; chosen as a
// representative top-50-liquid-symbol 24h quote volume.
const referenceVolumeUSD = 50_000_000.0

const dailyCandlesForTrend = 210 // covers EMA(200) plus warmup

const minLiquidityDefault = 0.30

const cacheTTL = 5 * time.Minute

// OnchainProvider supplies an optional on-chain strength metric per base
// asset. A nil provider, or one returning absent, simply omits the
// onchain_strength component from every TokenScore.
type OnchainProvider interface {
	Strength(ctx context.Context, base string) errs.Optional[float64]
}

// TokenScore is one symbol's per-cycle score. Total is present only when
// every critical component (Liquidity, Momentum, Volatility) is present;
// the ranker never emits a TokenScore missing a critical component at all.
type TokenScore struct {
	Symbol          exchange.Symbol
	Liquidity       errs.Optional[float64]
	Momentum        errs.Optional[float64]
	Volatility      errs.Optional[float64]
	TrendStrength   errs.Optional[float64]
	MacroSentiment  errs.Optional[float64]
	OnchainStrength errs.Optional[float64]
	Risk            errs.Optional[float64]
	Total           errs.Optional[float64]
}

// Ranker implements TokenRanker: discovers candidate symbols, scores each,
// and returns the highest-total top_n.
type Ranker struct {
	cache      *market.Cache
	indicators *indicators.Service
	macro      *macro.Context
	onchain    OnchainProvider

	mu          sync.Mutex
	cachedKey   string
	cachedAt    time.Time
	cachedTotal map[exchange.Symbol]float64 // previous cycle's totals, for delta tracking
	cached      []TokenScore
}

// New builds a Ranker. onchain may be nil.
func New(cache *market.Cache, indicatorSvc *indicators.Service, macroCtx *macro.Context, onchain OnchainProvider) *Ranker {
	return &Ranker{
		cache:       cache,
		indicators:  indicatorSvc,
		macro:       macroCtx,
		onchain:     onchain,
		cachedTotal: map[exchange.Symbol]float64{},
	}
}

// Rank scores candidates and returns the top_n TokenScores by total,
// descending, filtered to liquidity >= minLiquidity. regimeKnown distinguishes
// an absent MarketRegime (no adjustment applied) from a known one.
func (r *Ranker) Rank(ctx context.Context, candidates []exchange.Symbol, regime analysis.MarketRegime, regimeKnown bool, topN int, minLiquidity float64) []TokenScore {
	if minLiquidity <= 0 {
		minLiquidity = minLiquidityDefault
	}

	key := cacheKey(candidates)
	r.mu.Lock()
	if r.cachedKey == key && time.Since(r.cachedAt) < cacheTTL {
		cached := r.cached
		r.mu.Unlock()
		return truncate(cached, topN)
	}
	r.mu.Unlock()

	scores := make([]TokenScore, 0, len(candidates))
	for _, symbol := range candidates {
		score, ok := r.score(ctx, symbol, regime, regimeKnown)
		if !ok {
			continue
		}
		total, hasTotal := score.Total.Get()
		if !hasTotal {
			continue
		}
		liquidity, _ := score.Liquidity.Get()
		if liquidity < minLiquidity {
			continue
		}
		scores = append(scores, score)
		r.trackDelta(symbol, total)
	}

	sort.Slice(scores, func(i, j int) bool {
		ti, _ := scores[i].Total.Get()
		tj, _ := scores[j].Total.Get()
		return ti > tj
	})

	r.mu.Lock()
	r.cachedKey = key
	r.cachedAt = time.Now()
	r.cached = scores
	r.mu.Unlock()

	return truncate(scores, topN)
}

func truncate(scores []TokenScore, topN int) []TokenScore {
	if topN <= 0 || topN >= len(scores) {
		return scores
	}
	return scores[:topN]
}

func cacheKey(candidates []exchange.Symbol) string {
	sorted := make([]string, len(candidates))
	for i, s := range candidates {
		sorted[i] = string(s)
	}
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func (r *Ranker) trackDelta(symbol exchange.Symbol, total float64) {
	r.mu.Lock()
	prev, hadPrev := r.cachedTotal[symbol]
	r.cachedTotal[symbol] = total
	r.mu.Unlock()

	if hadPrev && math.Abs(total-prev) > 0.10 {
		log.Info().Str("symbol", string(symbol)).Float64("previous_total", prev).Float64("total", total).
			Msg("ranker: ranking change")
	}
}

func (r *Ranker) score(ctx context.Context, symbol exchange.Symbol, regime analysis.MarketRegime, regimeKnown bool) (TokenScore, bool) {
	score := TokenScore{Symbol: symbol}

	tickerOpt := r.cache.GetTicker(ctx, symbol)
	bookOpt := r.cache.GetBook(ctx, symbol, orderBookDepth)
	candlesOpt := r.cache.GetCandles(ctx, symbol, exchange.Timeframe1d, dailyCandlesForTrend)

	score.Liquidity = computeLiquidity(bookOpt)

	ticker, hasTicker := tickerOpt.Get()
	if hasTicker {
		score.Momentum = computeMomentum(ticker)
		score.Volatility = computeVolatility(ticker)
	} else {
		score.Momentum = errs.None[float64]("ticker unavailable")
		score.Volatility = errs.None[float64]("ticker unavailable")
	}

	liquidity, liquidityOK := score.Liquidity.Get()
	momentum, momentumOK := score.Momentum.Get()
	_, volatilityOK := score.Volatility.Get()
	if !liquidityOK || !momentumOK || !volatilityOK {
		return score, false
	}

	score.TrendStrength = computeTrendStrength(r.indicators, candlesOpt)

	base := baseAsset(symbol)
	if r.macro != nil {
		macroMap := r.macro.AssetMap(ctx)
		score.MacroSentiment = computeMacroSentiment(macroMap, base, momentum)
	} else {
		score.MacroSentiment = errs.None[float64]("no macro context configured")
	}

	if r.onchain != nil {
		score.OnchainStrength = r.onchain.Strength(ctx, base)
	} else {
		score.OnchainStrength = errs.None[float64]("no on-chain provider configured")
	}

	volatilityValue, _ := score.Volatility.Get()
	score.Risk = computeRisk(liquidity, volatilityValue, ticker)

	score.Total = computeTotal(score, regime, regimeKnown)
	return score, true
}

func baseAsset(symbol exchange.Symbol) string {
	parts := strings.SplitN(string(symbol), "/", 2)
	return parts[0]
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func computeLiquidity(bookOpt errs.Optional[exchange.OrderBookSnapshot]) errs.Optional[float64] {
	book, ok := bookOpt.Get()
	if !ok || !book.Valid() {
		return errs.None[float64]("book malformed or unavailable")
	}

	bids := topLevels(book.Bids, orderBookDepth)
	asks := topLevels(book.Asks, orderBookDepth)

	bid0 := book.Bids[0].Price
	ask0 := book.Asks[0].Price
	mid := bid0.Add(ask0).Div(decimal.NewFromInt(2))
	if mid.IsZero() {
		return errs.None[float64]("zero mid price")
	}
	spread, _ := ask0.Sub(bid0).Div(mid).Float64()

	depthUSD := 0.0
	bidVol, askVol := 0.0, 0.0
	for _, l := range bids {
		usd, _ := l.Price.Mul(l.Size).Float64()
		depthUSD += usd
		size, _ := l.Size.Float64()
		bidVol += size
	}
	for _, l := range asks {
		usd, _ := l.Price.Mul(l.Size).Float64()
		depthUSD += usd
		size, _ := l.Size.Float64()
		askVol += size
	}
	if depthUSD <= 0 {
		return errs.None[float64]("zero book depth")
	}

	balance := 0.0
	if bidVol > 0 && askVol > 0 {
		if bidVol < askVol {
			balance = bidVol / askVol
		} else {
			balance = askVol / bidVol
		}
	}

	threshold := depthUSD * 0.001
	impactPrice := ask0
	cumulative := 0.0
	for _, l := range asks {
		usd, _ := l.Price.Mul(l.Size).Float64()
		cumulative += usd
		impactPrice = l.Price
		if cumulative >= threshold {
			break
		}
	}
	impact, _ := impactPrice.Sub(ask0).Abs().Div(ask0).Float64()

	score := 0.4*(1-clamp(spread*100, 0, 1)) +
		0.3*sigmoid(math.Log10(depthUSD)) +
		0.2*balance +
		0.1*(1-clamp(impact*100, 0, 1))

	return errs.Some(clamp(score, 0, 1))
}

func topLevels(levels []exchange.BookLevel, k int) []exchange.BookLevel {
	if len(levels) <= k {
		return levels
	}
	return levels[:k]
}

func computeMomentum(ticker exchange.Ticker) errs.Optional[float64] {
	closeVal, _ := ticker.Last.Float64()
	if closeVal <= 0 {
		return errs.None[float64]("non-positive last price")
	}
	pctChange, _ := ticker.PercentChange24.Float64()
	volume, _ := ticker.QuoteVolume24h.Float64()

	normalized := clamp(pctChange/20, -1, 1)
	volumeBoost := clamp(volume/referenceVolumeUSD, 0, 1)
	momentum := clamp(0.8*normalized+0.2*volumeBoost, -1, 1)
	return errs.Some(momentum)
}

func computeVolatility(ticker exchange.Ticker) errs.Optional[float64] {
	high, _ := ticker.High24h.Float64()
	low, _ := ticker.Low24h.Float64()
	closeVal, _ := ticker.Last.Float64()
	if high <= 0 || low <= 0 || closeVal <= 0 || high < low {
		return errs.None[float64]("malformed high/low/close")
	}

	rangePct := (high - low) / closeVal
	return errs.Some(volatilityTrapezoid(rangePct))
}

// volatilityTrapezoid maps a raw daily range fraction to [0,1], peaking
// across 2-8% and decaying linearly outside that band, floored at 0 and
// 20%+.
func volatilityTrapezoid(rangePct float64) float64 {
	const (
		lowRampStart  = 0.0
		lowPlateau    = 0.02
		highPlateau   = 0.08
		highRampEnd   = 0.20
	)
	switch {
	case rangePct <= lowRampStart:
		return 0
	case rangePct < lowPlateau:
		return (rangePct - lowRampStart) / (lowPlateau - lowRampStart)
	case rangePct <= highPlateau:
		return 1
	case rangePct < highRampEnd:
		return 1 - (rangePct-highPlateau)/(highRampEnd-highPlateau)
	default:
		return 0
	}
}

func computeTrendStrength(svc *indicators.Service, candlesOpt errs.Optional[[]exchange.Candle]) errs.Optional[float64] {
	candles, ok := candlesOpt.Get()
	if !ok {
		return errs.None[float64]("daily candles unavailable")
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i], _ = c.Close.Float64()
	}
	reading, ok := analysis.EMAAlignment(svc, closes)
	if !ok {
		return errs.None[float64]("fewer than 50 daily candles")
	}
	return errs.Some(reading.Strength)
}

func computeMacroSentiment(macroMap map[string]float64, base string, momentum float64) errs.Optional[float64] {
	value, ok := macroMap[base]
	if !ok {
		value, ok = macroMap["market"]
	}
	if !ok {
		return errs.None[float64]("macro_map lacks both asset and market key")
	}

	switch {
	case momentum > 0.6:
		value = math.Min(value+0.15, 0.9)
	case momentum < 0.4:
		value = math.Max(value-0.15, 0.1)
	}
	return errs.Some(clamp(value, 0, 1))
}

func computeRisk(liquidity, volatility float64, ticker exchange.Ticker) errs.Optional[float64] {
	high, _ := ticker.High24h.Float64()
	low, _ := ticker.Low24h.Float64()
	closeVal, _ := ticker.Last.Float64()
	rangeComponent := volatility
	if closeVal > 0 && high > 0 && low > 0 {
		rangeComponent = clamp((high-low)/closeVal/0.15, 0, 1)
	}
	risk := clamp(0.5*(1-liquidity)+0.5*rangeComponent, 0, 1)
	return errs.Some(risk)
}

type regimeAdjustment struct {
	momentum       float64
	trend          float64
	liquidity      float64
	macroSentiment float64
	volatility     float64
}

func adjustmentFor(kind analysis.RegimeKind) regimeAdjustment {
	switch kind {
	case analysis.RegimeTrendingUp, analysis.RegimeTrendingDown:
		return regimeAdjustment{momentum: 0.10, trend: 0.10, liquidity: -0.10, macroSentiment: -0.10}
	case analysis.RegimeVolatile:
		return regimeAdjustment{liquidity: 0.15, volatility: 0.10, momentum: -0.15, trend: -0.10}
	case analysis.RegimeSideways, analysis.RegimeRanging:
		return regimeAdjustment{macroSentiment: 0.10, volatility: 0.05, momentum: -0.10, trend: -0.05}
	default:
		return regimeAdjustment{}
	}
}

func computeTotal(score TokenScore, regime analysis.MarketRegime, regimeKnown bool) errs.Optional[float64] {
	weights := struct {
		liquidity, momentum, macroSentiment, onchain, volatility, trend float64
	}{0.25, 0.30, 0.15, 0.10, 0.10, 0.10}

	if regimeKnown {
		adj := adjustmentFor(regime.Kind)
		weights.momentum += adj.momentum
		weights.trend += adj.trend
		weights.liquidity += adj.liquidity
		weights.macroSentiment += adj.macroSentiment
		weights.volatility += adj.volatility
	}

	liquidity, _ := score.Liquidity.Get()
	momentum, _ := score.Momentum.Get()
	volatility, _ := score.Volatility.Get()
	trend := orNeutral(score.TrendStrength)
	macroSentiment := orNeutral(score.MacroSentiment)
	onchain := orNeutral(score.OnchainStrength)

	base := weights.liquidity*liquidity +
		weights.momentum*momentum +
		weights.macroSentiment*macroSentiment +
		weights.onchain*onchain +
		weights.volatility*volatility +
		weights.trend*trend

	risk := orNeutral(score.Risk)
	riskAdjustment := 1 - (risk-0.5)*0.3
	total := clamp(base*riskAdjustment, 0, 1)
	return errs.Some(total)
}

func orNeutral(o errs.Optional[float64]) float64 {
	v, ok := o.Get()
	if !ok {
		return 0.5
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
