// Package decision blends the base Signal with multi-timeframe confluence
// and macro context into one executable Decision.
package decision

import (
	"github.com/quantfoundry/spotengine/internal/analysis"
	"github.com/quantfoundry/spotengine/internal/errs"
	"github.com/quantfoundry/spotengine/internal/macro"
	"github.com/quantfoundry/spotengine/internal/optimizer"
	"github.com/quantfoundry/spotengine/internal/signal"
)

// Action is the final, executable decision for a symbol this cycle.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionHold Action = "HOLD"
)

// highVolatilityPct marks a regime's observed volatility as high enough to
// widen the required confidence by the spec's 1.10x multiplier.
const highVolatilityPct = 4.0

// Decision is the DecisionEngine's output for one symbol this cycle.
type Decision struct {
	Action             Action
	CombinedConfidence float64
	RequiredConfidence float64
	RationaleTags      []string
}

// SizeGuard is the advisory position-size output; Executor does the actual
// capping.
type SizeGuard struct {
	SizeUSD float64
	Reject  bool
}

// Evaluate computes a Decision from the base Signal, ConfluenceReport,
// MacroSnapshot, and regime-tuned Params. baseSignal absent always yields
// HOLD, per spec.
func Evaluate(baseSignal errs.Optional[signal.Signal], confluence analysis.ConfluenceReport, snapshot macro.Snapshot, regime analysis.MarketRegime, regimeKnown bool, params optimizer.Params) Decision {
	base, ok := baseSignal.Get()
	if !ok {
		return Decision{Action: ActionHold, RationaleTags: []string{"base_signal_absent"}}
	}

	combined := 0.6*base.BaseConfidence + 0.4*min1(confluence.Confluence)

	required := params.BaseConfidenceThreshold
	var tags []string

	if confluence.Confluence < 0.40 {
		required *= 1.20
		tags = append(tags, "low_confluence_widened")
	}
	if exposure, ok := snapshot.RecommendedExposure.Get(); !ok {
		required *= 1.20
		tags = append(tags, "macro_absent_widened")
	} else if exposure < 0.50 {
		required *= 1.20
		tags = append(tags, "low_exposure_widened")
	}
	if regimeKnown && regime.VolatilityPct >= highVolatilityPct {
		required *= 1.10
		tags = append(tags, "high_volatility_widened")
	}
	required = clamp(required, 0.15, 0.95)

	action := ActionHold
	if base.Action == signal.ActionBuy && confluence.Dominant != analysis.DirectionDown && combined >= required {
		action = ActionBuy
		tags = append(tags, "buy_confirmed")
	}

	return Decision{
		Action:             action,
		CombinedConfidence: combined,
		RequiredConfidence: required,
		RationaleTags:      tags,
	}
}

// SizePosition computes the advisory size_usd guard from portfolio equity,
// macro exposure guidance, open-position slots, and liquidity.
func SizePosition(portfolioEquity float64, snapshot macro.Snapshot, openPositionSlots int, liquidity float64) SizeGuard {
	exposure := 0.15 // neutral default exposure when macro has no reading
	if value, ok := snapshot.RecommendedExposure.Get(); ok {
		exposure = value
	}
	exposure = clamp(exposure, 0.05, 0.30)

	slots := openPositionSlots
	if slots < 1 {
		slots = 1
	}

	sizeUSD := portfolioEquity * exposure / float64(slots)

	if liquidity < 0.3 {
		return SizeGuard{Reject: true}
	}
	if liquidity < 0.5 {
		sizeUSD /= 2
	}

	return SizeGuard{SizeUSD: sizeUSD}
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
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
