package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectMarketRegime_AbsentBelowMinimum(t *testing.T) {
	_, ok := DetectMarketRegime(risingCloses(19, 100, 0.1))
	require.False(t, ok)
}

func TestDetectMarketRegime_StrongUptrend(t *testing.T) {
	regime, ok := DetectMarketRegime(risingCloses(30, 100, 0.5))
	require.True(t, ok)
	require.Equal(t, RegimeTrendingUp, regime.Kind)
}

func TestDetectMarketRegime_StrongDowntrend(t *testing.T) {
	regime, ok := DetectMarketRegime(risingCloses(30, 200, -0.5))
	require.True(t, ok)
	require.Equal(t, RegimeTrendingDown, regime.Kind)
}

func TestDetectMarketRegime_Volatile(t *testing.T) {
	closes := make([]float64, 30)
	base := 100.0
	for i := range closes {
		if i%2 == 0 {
			closes[i] = base * 1.08
		} else {
			closes[i] = base * 0.92
		}
	}
	regime, ok := DetectMarketRegime(closes)
	require.True(t, ok)
	require.Equal(t, RegimeVolatile, regime.Kind)
}

func TestDetectMarketRegime_SidewaysWhenFlat(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100.0
	}
	regime, ok := DetectMarketRegime(closes)
	require.True(t, ok)
	require.Equal(t, RegimeSideways, regime.Kind)
}
