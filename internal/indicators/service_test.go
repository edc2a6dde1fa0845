package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func risingCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return closes
}

func TestCalculateEMA_Bullish(t *testing.T) {
	svc := NewService()
	result, err := svc.CalculateEMA(risingCloses(30), 10)
	require.NoError(t, err)
	assert.Equal(t, "bullish", result.Trend)
}

func TestCalculateEMA_InvalidPeriod(t *testing.T) {
	svc := NewService()
	_, err := svc.CalculateEMA(risingCloses(5), 10)
	assert.Error(t, err)
}

func TestCalculateRSI_Overbought(t *testing.T) {
	svc := NewService()
	result, err := svc.CalculateRSI(risingCloses(30), 14)
	require.NoError(t, err)
	assert.Equal(t, "overbought", result.Signal)
	assert.Greater(t, result.Value, 70.0)
}

func TestCalculateMACD_RequiresFastBeforeSlow(t *testing.T) {
	svc := NewService()
	_, err := svc.CalculateMACD(risingCloses(60), 26, 12, 9)
	assert.Error(t, err)
}

func TestCalculateMACD_Bullish(t *testing.T) {
	svc := NewService()
	result, err := svc.CalculateMACD(risingCloses(60), 12, 26, 9)
	require.NoError(t, err)
	assert.Greater(t, result.MACD, 0.0)
}

func TestCalculateADX_MismatchedLengths(t *testing.T) {
	svc := NewService()
	_, err := svc.CalculateADX([]float64{1, 2}, []float64{1}, []float64{1, 2}, 14)
	assert.Error(t, err)
}

func TestCalculateADX_TrendingMarket(t *testing.T) {
	svc := NewService()
	n := 60
	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		base := 100 + float64(i)
		high[i] = base + 1
		low[i] = base - 1
		closes[i] = base
	}
	result, err := svc.CalculateADX(high, low, closes, 14)
	require.NoError(t, err)
	assert.Greater(t, result.Value, 0.0)
}

func TestCalculateBollingerBands_UpperAboveLower(t *testing.T) {
	svc := NewService()
	result, err := svc.CalculateBollingerBands(risingCloses(30), 20)
	require.NoError(t, err)
	assert.Greater(t, result.Upper, result.Lower)
}
