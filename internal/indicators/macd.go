package indicators

import (
	"fmt"

	"github.com/cinar/indicator/v2/trend"
)

// MACDResult is the most recent MACD reading plus whether the lines just
// crossed.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
	Crossover string // "bullish", "bearish", "none"
}

// CalculateMACD computes MACD(fast, slow, signal) over closes.
func (s *Service) CalculateMACD(closes []float64, fastPeriod, slowPeriod, signalPeriod int) (*MACDResult, error) {
	if fastPeriod < 1 || slowPeriod < 1 || signalPeriod < 1 {
		return nil, fmt.Errorf("invalid periods: fast=%d, slow=%d, signal=%d", fastPeriod, slowPeriod, signalPeriod)
	}
	if fastPeriod >= slowPeriod {
		return nil, fmt.Errorf("fast period (%d) must be less than slow period (%d)", fastPeriod, slowPeriod)
	}
	if minRequired := slowPeriod + signalPeriod; len(closes) < minRequired {
		return nil, fmt.Errorf("insufficient data: need at least %d closes, got %d", minRequired, len(closes))
	}

	macdChan, signalChan := trend.NewMacdWithPeriod[float64](fastPeriod, slowPeriod, signalPeriod).Compute(toChan(closes))

	var macdValues, signalValues []float64
	for {
		m, mok := <-macdChan
		sg, sok := <-signalChan
		if !mok || !sok {
			break
		}
		macdValues = append(macdValues, m)
		signalValues = append(signalValues, sg)
	}
	if len(macdValues) == 0 {
		return nil, fmt.Errorf("no MACD values calculated")
	}

	currentMACD := macdValues[len(macdValues)-1]
	currentSignal := signalValues[len(signalValues)-1]
	currentHistogram := currentMACD - currentSignal

	crossover := "none"
	if len(macdValues) >= 2 {
		prevHistogram := macdValues[len(macdValues)-2] - signalValues[len(signalValues)-2]
		if prevHistogram <= 0 && currentHistogram > 0 {
			crossover = "bullish"
		}
		if prevHistogram >= 0 && currentHistogram < 0 {
			crossover = "bearish"
		}
	}

	return &MACDResult{
		MACD:      currentMACD,
		Signal:    currentSignal,
		Histogram: currentHistogram,
		Crossover: crossover,
	}, nil
}
