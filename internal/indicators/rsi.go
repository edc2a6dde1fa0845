package indicators

import (
	"fmt"

	"github.com/cinar/indicator/v2/momentum"
)

// RSIResult is the most recent RSI reading and its qualitative signal.
type RSIResult struct {
	Value  float64
	Signal string // "oversold", "overbought", "neutral"
}

// CalculateRSI computes the relative strength index of closes over period.
func (s *Service) CalculateRSI(closes []float64, period int) (*RSIResult, error) {
	if err := validatePeriod(period, len(closes)); err != nil {
		return nil, err
	}

	rsi := drain(momentum.NewRsiWithPeriod[float64](period).Compute(toChan(closes)))
	if len(rsi) == 0 {
		return nil, fmt.Errorf("no RSI values calculated")
	}

	current := rsi[len(rsi)-1]
	signal := "neutral"
	switch {
	case current < 30:
		signal = "oversold"
	case current > 70:
		signal = "overbought"
	}

	return &RSIResult{Value: current, Signal: signal}, nil
}
