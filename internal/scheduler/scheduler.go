// Package scheduler drives one CycleScheduler tick: reconcile, discover,
// rank, then analyze and decide on each candidate with bounded parallelism.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/quantfoundry/spotengine/internal/analysis"
	"github.com/quantfoundry/spotengine/internal/decision"
	"github.com/quantfoundry/spotengine/internal/exchange"
	"github.com/quantfoundry/spotengine/internal/executor"
	"github.com/quantfoundry/spotengine/internal/indicators"
	"github.com/quantfoundry/spotengine/internal/macro"
	"github.com/quantfoundry/spotengine/internal/market"
	"github.com/quantfoundry/spotengine/internal/optimizer"
	"github.com/quantfoundry/spotengine/internal/position"
	"github.com/quantfoundry/spotengine/internal/ranker"
	"github.com/quantfoundry/spotengine/internal/signal"
)

// maxParallelAnalysis bounds concurrent per-symbol analysis. The
// RateLimiter still governs every underlying gateway call regardless of
// how many symbols are in flight at once.
const maxParallelAnalysis = 4

// Config holds the tunables the spec exposes for one cycle.
type Config struct {
	MinQuoteVolumeUSD float64
	Quote             string
	DiscoverLimit     int
	TopN              int
	MinLiquidity      float64
	MaxConcurrent     int
	PortfolioEquity   func() float64
}

var candleTimeframes = []exchange.Timeframe{
	exchange.Timeframe5m,
	exchange.Timeframe15m,
	exchange.Timeframe1h,
	exchange.Timeframe4h,
	exchange.Timeframe1d,
}

// Scheduler ties every component together into one CycleScheduler tick.
type Scheduler struct {
	gateway    exchange.Gateway
	cache      *market.Cache
	ranker     *ranker.Ranker
	macro      *macro.Context
	store      *position.Store
	executor   *executor.Executor
	indicators *indicators.Service
	config     Config
}

// New builds a Scheduler from its fully-constructed dependencies.
func New(gateway exchange.Gateway, cache *market.Cache, tokenRanker *ranker.Ranker, macroCtx *macro.Context, store *position.Store, exec *executor.Executor, indicatorSvc *indicators.Service, config Config) *Scheduler {
	return &Scheduler{
		gateway:    gateway,
		cache:      cache,
		ranker:     tokenRanker,
		macro:      macroCtx,
		store:      store,
		executor:   exec,
		indicators: indicatorSvc,
		config:     config,
	}
}

// SymbolOutcome records what happened to one candidate symbol this cycle,
// for the cycle summary event.
type SymbolOutcome struct {
	Symbol exchange.Symbol
	Action decision.Action
	Reason string
}

// RunCycle executes one full tick: reconcile, discover, rank, analyze, and
// decide for each of the top-N candidates, executing any BUY decision while
// free position slots remain.
func (s *Scheduler) RunCycle(ctx context.Context) ([]SymbolOutcome, error) {
	if err := s.store.Reconcile(ctx, false); err != nil {
		log.Warn().Err(err).Msg("scheduler: reconciliation failed, continuing with stale state")
	}

	candidates, err := s.gateway.DiscoverLiquidSymbols(ctx, s.config.MinQuoteVolumeUSD, s.config.Quote, 50)
	if err != nil {
		return nil, err
	}

	regime, regimeKnown := s.detectRegime(ctx, candidates)
	params := optimizer.For(regime, regimeKnown)

	scores := s.ranker.Rank(ctx, candidates, regime, regimeKnown, s.config.TopN, s.config.MinLiquidity)

	outcomes := make([]SymbolOutcome, len(scores))
	var group errgroup.Group
	group.SetLimit(maxParallelAnalysis)

	for i, score := range scores {
		i, score := i, score
		group.Go(func() error {
			outcomes[i] = s.analyzeAndDecide(ctx, score, regime, regimeKnown, params)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return outcomes, err
	}

	log.Info().Str("event", "CycleSummary").Int("candidates", len(candidates)).Int("analyzed", len(scores)).Msg("cycle complete")
	return outcomes, nil
}

func (s *Scheduler) detectRegime(ctx context.Context, candidates []exchange.Symbol) (analysis.MarketRegime, bool) {
	if len(candidates) == 0 {
		return analysis.MarketRegime{}, false
	}
	// The first discovered (highest-volume) candidate stands in for
	// overall market character; a dedicated market-index feed is out of
	// scope for the core.
	candlesOpt := s.cache.GetCandles(ctx, candidates[0], exchange.Timeframe1d, 60)
	candles, ok := candlesOpt.Get()
	if !ok {
		return analysis.MarketRegime{}, false
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i], _ = c.Close.Float64()
	}
	return analysis.DetectMarketRegime(closes)
}

func (s *Scheduler) analyzeAndDecide(ctx context.Context, score ranker.TokenScore, regime analysis.MarketRegime, regimeKnown bool, params optimizer.Params) SymbolOutcome {
	symbol := score.Symbol
	if s.store.Has(symbol) {
		return SymbolOutcome{Symbol: symbol, Action: decision.ActionHold, Reason: "already held"}
	}

	tickerOpt := s.cache.GetTicker(ctx, symbol)
	ticker, hasTicker := tickerOpt.Get()
	if !hasTicker {
		return SymbolOutcome{Symbol: symbol, Action: decision.ActionHold, Reason: "ticker unavailable"}
	}

	closesByTF := make(map[exchange.Timeframe][]float64)
	for _, tf := range candleTimeframes {
		candlesOpt := s.cache.GetCandles(ctx, symbol, tf, 210)
		candles, ok := candlesOpt.Get()
		if !ok {
			continue
		}
		closes := make([]float64, len(candles))
		for i, c := range candles {
			closes[i], _ = c.Close.Float64()
		}
		closesByTF[tf] = closes
	}

	confluence := analysis.Analyze(s.indicators, closesByTF)

	hourlyCloses := closesByTF[exchange.Timeframe1h]
	baseSignal := signal.Generate(s.indicators, symbol, hourlyCloses, params.RSIPeriod, signal.DefaultWeights)

	var snapshot macro.Snapshot
	if s.macro != nil {
		snapshot = s.macro.Get(ctx)
	}

	d := decision.Evaluate(baseSignal, confluence, snapshot, regime, regimeKnown, params)
	if d.Action != decision.ActionBuy {
		return SymbolOutcome{Symbol: symbol, Action: d.Action, Reason: "decision engine held"}
	}

	openSlots := s.config.MaxConcurrent - len(s.store.All())
	if openSlots <= 0 {
		return SymbolOutcome{Symbol: symbol, Action: decision.ActionHold, Reason: "no free position slots"}
	}

	equity := 0.0
	if s.config.PortfolioEquity != nil {
		equity = s.config.PortfolioEquity()
	}

	liquidity, _ := score.Liquidity.Get()
	guard := decision.SizePosition(equity, snapshot, openSlots, liquidity)
	if guard.Reject {
		return SymbolOutcome{Symbol: symbol, Action: decision.ActionHold, Reason: "liquidity below position-size floor"}
	}

	if err := s.executor.BuyThenProtect(ctx, symbol, guard.SizeUSD, ticker, params); err != nil {
		log.Warn().Err(err).Str("symbol", string(symbol)).Msg("scheduler: buy_then_protect failed")
		return SymbolOutcome{Symbol: symbol, Action: decision.ActionHold, Reason: "executor error: " + err.Error()}
	}

	return SymbolOutcome{Symbol: symbol, Action: decision.ActionBuy, Reason: "executed"}
}

// PollingInterval is the spec's default cycle cadence.
const PollingInterval = 30 * time.Second
