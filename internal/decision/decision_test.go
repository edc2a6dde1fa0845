package decision

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantfoundry/spotengine/internal/analysis"
	"github.com/quantfoundry/spotengine/internal/errs"
	"github.com/quantfoundry/spotengine/internal/macro"
	"github.com/quantfoundry/spotengine/internal/optimizer"
	"github.com/quantfoundry/spotengine/internal/signal"
)

func TestEvaluate_AbsentBaseSignalHolds(t *testing.T) {
	d := Evaluate(errs.None[signal.Signal]("no data"), analysis.ConfluenceReport{}, macro.Snapshot{}, analysis.MarketRegime{}, false, optimizer.Params{BaseConfidenceThreshold: 0.55})
	require.Equal(t, ActionHold, d.Action)
}

func TestEvaluate_StrongBuyWithHighConfluence(t *testing.T) {
	baseSignal := errs.Some(signal.Signal{Action: signal.ActionBuy, BaseConfidence: 0.75})
	confluence := analysis.ConfluenceReport{Confluence: 0.692, Dominant: analysis.DirectionUp, TotalWeight: 1}
	snapshot := macro.Snapshot{RecommendedExposure: errs.Some(0.6)}

	d := Evaluate(baseSignal, confluence, snapshot, analysis.MarketRegime{}, false, optimizer.Params{BaseConfidenceThreshold: 0.55})
	require.Equal(t, ActionBuy, d.Action)
	require.InDelta(t, 0.6*0.75+0.4*0.692, d.CombinedConfidence, 1e-9)
}

func TestEvaluate_BearishDominantNeverBuys(t *testing.T) {
	baseSignal := errs.Some(signal.Signal{Action: signal.ActionBuy, BaseConfidence: 0.95})
	confluence := analysis.ConfluenceReport{Confluence: 0.90, Dominant: analysis.DirectionDown, TotalWeight: 1}

	d := Evaluate(baseSignal, confluence, macro.Snapshot{}, analysis.MarketRegime{}, false, optimizer.Params{BaseConfidenceThreshold: 0.55})
	require.Equal(t, ActionHold, d.Action)
}

func TestEvaluate_LowConfluenceWidensRequirement(t *testing.T) {
	baseSignal := errs.Some(signal.Signal{Action: signal.ActionBuy, BaseConfidence: 0.60})
	confluence := analysis.ConfluenceReport{Confluence: 0.35, Dominant: analysis.DirectionUp, TotalWeight: 1}

	// Confluence of 0.35 is below the 0.40 low-confluence threshold, so the
	// requirement widens once for it and once more for the empty snapshot's
	// macro multiplier.
	d := Evaluate(baseSignal, confluence, macro.Snapshot{}, analysis.MarketRegime{}, false, optimizer.Params{BaseConfidenceThreshold: 0.55})
	require.Equal(t, ActionHold, d.Action)
	require.InDelta(t, 0.55*1.20*1.20, d.RequiredConfidence, 1e-9)
}

func TestEvaluate_EmptyMacroSnapshotWidensRequirementExactlyOnce(t *testing.T) {
	baseSignal := errs.Some(signal.Signal{Action: signal.ActionBuy, BaseConfidence: 0.60})
	confluence := analysis.ConfluenceReport{Confluence: 0.80, Dominant: analysis.DirectionUp, TotalWeight: 1}

	d := Evaluate(baseSignal, confluence, macro.Snapshot{}, analysis.MarketRegime{}, false, optimizer.Params{BaseConfidenceThreshold: 0.55})
	require.Contains(t, d.RationaleTags, "macro_absent_widened")
	require.NotContains(t, d.RationaleTags, "low_exposure_widened")
	require.InDelta(t, 0.55*1.20, d.RequiredConfidence, 1e-9)
}

func TestEvaluate_RequiredConfidenceClampedToCeiling(t *testing.T) {
	baseSignal := errs.Some(signal.Signal{Action: signal.ActionBuy, BaseConfidence: 0.99})
	confluence := analysis.ConfluenceReport{Confluence: 0.10, Dominant: analysis.DirectionUp, TotalWeight: 1}
	snapshot := macro.Snapshot{RecommendedExposure: errs.Some(0.1)}

	d := Evaluate(baseSignal, confluence, snapshot, analysis.MarketRegime{VolatilityPct: 10}, true, optimizer.Params{BaseConfidenceThreshold: 0.70})
	require.LessOrEqual(t, d.RequiredConfidence, 0.95)
}

func TestSizePosition_HalvedBelowHalfLiquidity(t *testing.T) {
	guard := SizePosition(10000, macro.Snapshot{RecommendedExposure: errs.Some(0.20)}, 5, 0.4)
	require.False(t, guard.Reject)
	full := 10000 * 0.20 / 5
	require.InDelta(t, full/2, guard.SizeUSD, 1e-9)
}

func TestSizePosition_RejectedBelowLiquidityFloor(t *testing.T) {
	guard := SizePosition(10000, macro.Snapshot{RecommendedExposure: errs.Some(0.20)}, 5, 0.2)
	require.True(t, guard.Reject)
}
