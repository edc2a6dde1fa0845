package indicators

import (
	"fmt"

	"github.com/cinar/indicator/v2/volatility"
)

// BollingerBandsResult is the most recent band reading.
type BollingerBandsResult struct {
	Upper  float64
	Middle float64
	Lower  float64
	Width  float64 // band width as a percentage of the middle band
	Signal string  // "buy", "sell", "neutral"
}

// CalculateBollingerBands computes Bollinger Bands(period) over closes.
// cinar/indicator fixes the multiplier at 2 standard deviations.
func (s *Service) CalculateBollingerBands(closes []float64, period int) (*BollingerBandsResult, error) {
	if period < 2 || period > len(closes) {
		return nil, fmt.Errorf("invalid period: %d (must be between 2 and %d)", period, len(closes))
	}

	lowerChan, middleChan, upperChan := volatility.NewBollingerBandsWithPeriod[float64](period).Compute(toChan(closes))

	var lower, middle, upper []float64
	for {
		l, lok := <-lowerChan
		m, mok := <-middleChan
		u, uok := <-upperChan
		if !lok || !mok || !uok {
			break
		}
		lower = append(lower, l)
		middle = append(middle, m)
		upper = append(upper, u)
	}
	if len(middle) == 0 {
		return nil, fmt.Errorf("no Bollinger Bands values calculated")
	}

	currentUpper := upper[len(upper)-1]
	currentMiddle := middle[len(middle)-1]
	currentLower := lower[len(lower)-1]
	currentPrice := closes[len(closes)-1]

	bandWidth := ((currentUpper - currentLower) / currentMiddle) * 100

	signal := "neutral"
	switch {
	case currentPrice <= currentLower:
		signal = "buy"
	case currentPrice >= currentUpper:
		signal = "sell"
	}

	return &BollingerBandsResult{
		Upper:  currentUpper,
		Middle: currentMiddle,
		Lower:  currentLower,
		Width:  bandWidth,
		Signal: signal,
	}, nil
}
