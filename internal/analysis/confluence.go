package analysis

import (
	"github.com/quantfoundry/spotengine/internal/exchange"
	"github.com/quantfoundry/spotengine/internal/indicators"
)

// TimeframeWeight is each timeframe's share of the confluence vote. A
// timeframe absent from the input candle set simply drops its weight out of
// the total rather than being scored as neutral.
var TimeframeWeight = map[exchange.Timeframe]float64{
	exchange.Timeframe5m:  0.10,
	exchange.Timeframe15m: 0.15,
	exchange.Timeframe1h:  0.25,
	exchange.Timeframe4h:  0.30,
	exchange.Timeframe1d:  0.20,
}

// TimeframeReport is one timeframe's trend reading plus the weight it
// contributed to the confluence vote.
type TimeframeReport struct {
	Timeframe exchange.Timeframe
	Weight    float64
	Trend     TrendReading
}

// ConfluenceReport is the multi-timeframe analyzer's output: how much of the
// total available weight agrees on each direction, and which direction
// dominates.
//
// Confluence is NOT an average of per-timeframe strengths — it is the
// weighted fraction of timeframes agreeing on the winning direction.
type ConfluenceReport struct {
	PerTimeframe []TimeframeReport
	Bullish      float64
	Bearish      float64
	TotalWeight  float64
	Confluence   float64
	Dominant     Direction
}

// Analyze scores trend per timeframe from closesByTimeframe and combines
// them into a ConfluenceReport. Timeframes with fewer than
// minClosesForTrend closes, or not present in the map, are excluded
// entirely — their weight is removed from TotalWeight rather than scored.
func Analyze(svc *indicators.Service, closesByTimeframe map[exchange.Timeframe][]float64) ConfluenceReport {
	report := ConfluenceReport{}

	for tf, weight := range TimeframeWeight {
		closes, ok := closesByTimeframe[tf]
		if !ok {
			continue
		}
		trend, ok := EMAAlignment(svc, closes)
		if !ok {
			continue
		}

		report.PerTimeframe = append(report.PerTimeframe, TimeframeReport{
			Timeframe: tf,
			Weight:    weight,
			Trend:     trend,
		})
		report.TotalWeight += weight

		switch trend.Direction {
		case DirectionUp:
			report.Bullish += weight
		case DirectionDown:
			report.Bearish += weight
		}
	}

	if report.TotalWeight == 0 {
		report.Confluence = 0
		report.Dominant = DirectionSideways
		return report
	}

	max := report.Bullish
	if report.Bearish > max {
		max = report.Bearish
	}
	report.Confluence = max / report.TotalWeight

	switch {
	case report.Bullish > report.Bearish:
		report.Dominant = DirectionUp
	case report.Bearish > report.Bullish:
		report.Dominant = DirectionDown
	default:
		report.Dominant = DirectionSideways
	}

	return report
}
