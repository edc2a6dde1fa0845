// Package analysis turns raw candle series into the directional signals the
// ranker and decision engine consume: per-timeframe trend, multi-timeframe
// confluence, and market regime.
package analysis

import (
	"github.com/quantfoundry/spotengine/internal/indicators"
)

// emaAlignmentPeriods are checked in order; the 200-period EMA is only used
// when enough history exists. This mirrors the ranker's trend_strength step
// and the analyzer's per-timeframe trend step — they are the same
// computation applied to different close series.
var emaAlignmentPeriods = []int{8, 21, 50}

const emaAlignmentLongPeriod = 200

// minClosesForTrend is the minimum series length below which trend_strength
// is absent, per the spec's EMA-alignment rule.
const minClosesForTrend = 50

// Direction is the sign of a trend reading.
type Direction string

const (
	DirectionUp       Direction = "up"
	DirectionDown     Direction = "down"
	DirectionSideways Direction = "sideways"
)

// TrendReading is the result of comparing the latest close against a stack
// of EMAs: how many agree on direction, out of how many were checked.
type TrendReading struct {
	Direction Direction
	Strength  float64 // alignment count / periods checked, in [0,1]
}

// EMAAlignment scores trend direction/strength over closes by comparing the
// latest close against EMA(8), EMA(21), EMA(50), and EMA(200) when available.
// Requires at least minClosesForTrend closes; ok is false otherwise.
func EMAAlignment(svc *indicators.Service, closes []float64) (TrendReading, bool) {
	if len(closes) < minClosesForTrend {
		return TrendReading{}, false
	}

	periods := append([]int{}, emaAlignmentPeriods...)
	if len(closes) >= emaAlignmentLongPeriod {
		periods = append(periods, emaAlignmentLongPeriod)
	}

	last := closes[len(closes)-1]
	above, below, checked := 0, 0, 0
	for _, period := range periods {
		series, err := svc.EMASeries(closes, period)
		if err != nil || len(series) == 0 {
			continue
		}
		checked++
		current := series[len(series)-1]
		switch {
		case last > current:
			above++
		case last < current:
			below++
		}
	}
	if checked == 0 {
		return TrendReading{}, false
	}

	alignment := above
	direction := DirectionUp
	if below > above {
		alignment = below
		direction = DirectionDown
	} else if below == above {
		direction = DirectionSideways
	}

	return TrendReading{
		Direction: direction,
		Strength:  float64(alignment) / float64(checked),
	}, true
}
