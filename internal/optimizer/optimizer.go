// Package optimizer maps the current MarketRegime onto the parameters the
// rest of the engine tunes itself with: the confidence bar a decision must
// clear, the RSI lookback the ranker's trend step effectively rides on, and
// the stop-loss/take-profit multipliers the executor sizes protection with.
//
// Parameters are per-regime only; there is no per-symbol learned state.
package optimizer

import "github.com/quantfoundry/spotengine/internal/analysis"

// Params is the full set of regime-tuned knobs for one cycle.
type Params struct {
	BaseConfidenceThreshold float64
	RSIPeriod               int
	StopLossMultiplier      float64
	TakeProfitMultiplier    float64
}

var defaultParams = Params{
	BaseConfidenceThreshold: 0.55,
	RSIPeriod:               14,
	StopLossMultiplier:      1.5,
	TakeProfitMultiplier:    2.5,
}

var byRegime = map[analysis.RegimeKind]Params{
	analysis.RegimeTrendingUp: {
		BaseConfidenceThreshold: 0.55,
		RSIPeriod:               14,
		StopLossMultiplier:      1.2,
		TakeProfitMultiplier:    3.0,
	},
	analysis.RegimeTrendingDown: {
		BaseConfidenceThreshold: 0.55,
		RSIPeriod:               14,
		StopLossMultiplier:      1.2,
		TakeProfitMultiplier:    3.0,
	},
	analysis.RegimeSideways: {
		BaseConfidenceThreshold: 0.55,
		RSIPeriod:               18,
		StopLossMultiplier:      1.5,
		TakeProfitMultiplier:    2.5,
	},
	analysis.RegimeVolatile: {
		BaseConfidenceThreshold: 0.70,
		RSIPeriod:               14,
		StopLossMultiplier:      2.0,
		TakeProfitMultiplier:    1.8,
	},
	analysis.RegimeRanging: {
		BaseConfidenceThreshold: 0.60,
		RSIPeriod:               21,
		StopLossMultiplier:      1.5,
		TakeProfitMultiplier:    2.5,
	},
}

// For returns the tuned Params for a regime. An absent regime (insufficient
// data to classify) gets the conservative defaults: trending/sideways
// baseline confidence, default ATR multipliers.
func For(regime analysis.MarketRegime, regimeKnown bool) Params {
	if !regimeKnown {
		return defaultParams
	}
	if params, ok := byRegime[regime.Kind]; ok {
		return params
	}
	return defaultParams
}
