// Package indicators computes technical indicators over OHLCV candle series.
package indicators

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Service provides technical indicator calculations shared by the ranker,
// the multi-timeframe analyzer, and the dynamic optimizer.
type Service struct{}

// NewService creates a new indicator service.
func NewService() *Service {
	return &Service{}
}

func toChan(values []float64) chan float64 {
	ch := make(chan float64, len(values))
	for _, v := range values {
		ch <- v
	}
	close(ch)
	return ch
}

func drain(ch <-chan float64) []float64 {
	var out []float64
	for v := range ch {
		out = append(out, v)
	}
	return out
}

func validatePeriod(period, n int) error {
	if period < 1 || period > n {
		return fmt.Errorf("invalid period: %d (must be between 1 and %d)", period, n)
	}
	return nil
}

func init() {
	log.Debug().Msg("indicator service package loaded")
}
