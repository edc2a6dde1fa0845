// Package signal produces the base trading Signal the DecisionEngine blends
// with multi-timeframe confluence. It votes across RSI, MACD, and Bollinger
// Bands the way the teacher's technical agent weighted those three
// indicators, but collapses the vote to the spec's {BUY, HOLD} action space
// instead of a multi-agent consensus.
package signal

import (
	"github.com/quantfoundry/spotengine/internal/errs"
	"github.com/quantfoundry/spotengine/internal/exchange"
	"github.com/quantfoundry/spotengine/internal/indicators"
)

// Action is the base signal's proposed action. SELL is out of scope:
// positions exit via exchange-managed OCO, never a base-signal sell.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionHold Action = "HOLD"
)

// Signal is the base logic's per-symbol output, before confluence or macro
// adjustment.
type Signal struct {
	Symbol         exchange.Symbol
	Action         Action
	BaseConfidence float64
}

// Weights controls how much each indicator contributes to base_confidence.
type Weights struct {
	RSI       float64
	MACD      float64
	Bollinger float64
}

// DefaultWeights mirrors the teacher's technical-agent weighting, trimmed to
// the three indicators the base signal actually uses.
var DefaultWeights = Weights{RSI: 0.40, MACD: 0.35, Bollinger: 0.25}

const (
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
	bollPeriod = 20
)

// Generate computes the base Signal from a 1h close series. rsiPeriod comes
// from the DynamicOptimizer so the lookback adapts to the current regime.
// Absent when there isn't enough history for any of the three indicators.
func Generate(svc *indicators.Service, symbol exchange.Symbol, closes []float64, rsiPeriod int, weights Weights) errs.Optional[Signal] {
	rsi, err := svc.CalculateRSI(closes, rsiPeriod)
	if err != nil {
		return errs.None[Signal]("insufficient history for RSI")
	}
	macd, err := svc.CalculateMACD(closes, macdFast, macdSlow, macdSignal)
	if err != nil {
		return errs.None[Signal]("insufficient history for MACD")
	}
	boll, err := svc.CalculateBollingerBands(closes, bollPeriod)
	if err != nil {
		return errs.None[Signal]("insufficient history for Bollinger Bands")
	}

	rsiScore := rsiBullishness(rsi.Signal)
	macdScore := macdBullishness(macd.Crossover, macd.Histogram)
	bollScore := bollingerBullishness(boll.Signal)

	combined := weights.RSI*rsiScore + weights.MACD*macdScore + weights.Bollinger*bollScore

	action := ActionHold
	if combined >= 0.5 {
		action = ActionBuy
	}

	return errs.Some(Signal{
		Symbol:         symbol,
		Action:         action,
		BaseConfidence: combined,
	})
}

func rsiBullishness(sig string) float64 {
	switch sig {
	case "oversold":
		return 1.0
	case "overbought":
		return 0.0
	default:
		return 0.5
	}
}

func macdBullishness(crossover string, histogram float64) float64 {
	switch crossover {
	case "bullish":
		return 1.0
	case "bearish":
		return 0.0
	default:
		if histogram > 0 {
			return 0.6
		}
		if histogram < 0 {
			return 0.4
		}
		return 0.5
	}
}

func bollingerBullishness(sig string) float64 {
	switch sig {
	case "buy":
		return 1.0
	case "sell":
		return 0.0
	default:
		return 0.5
	}
}
