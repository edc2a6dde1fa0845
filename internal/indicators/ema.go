package indicators

import (
	"fmt"

	"github.com/cinar/indicator/v2/trend"
)

// EMAResult is the most recent EMA reading against the latest close.
type EMAResult struct {
	Value float64
	Trend string // "bullish", "bearish", "neutral"
}

// CalculateEMA computes the exponential moving average of closes over period
// and classifies the latest close against it.
func (s *Service) CalculateEMA(closes []float64, period int) (*EMAResult, error) {
	if err := validatePeriod(period, len(closes)); err != nil {
		return nil, err
	}

	ema := drain(trend.NewEmaWithPeriod[float64](period).Compute(toChan(closes)))
	if len(ema) == 0 {
		return nil, fmt.Errorf("no EMA values calculated")
	}

	current := ema[len(ema)-1]
	last := closes[len(closes)-1]

	direction := "neutral"
	switch {
	case last > current:
		direction = "bullish"
	case last < current:
		direction = "bearish"
	}

	return &EMAResult{Value: current, Trend: direction}, nil
}

// EMASeries returns the full EMA series aligned to the tail of closes, used
// by the analyzer to compare fast/slow EMA alignment across a window.
func (s *Service) EMASeries(closes []float64, period int) ([]float64, error) {
	if err := validatePeriod(period, len(closes)); err != nil {
		return nil, err
	}
	return drain(trend.NewEmaWithPeriod[float64](period).Compute(toChan(closes))), nil
}
