package macro

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantfoundry/spotengine/internal/errs"
)

type fixedFearGreed struct{ value errs.Optional[float64] }

func (f fixedFearGreed) FearGreed(context.Context) errs.Optional[float64] { return f.value }

type fixedDominance struct{ value errs.Optional[float64] }

func (f fixedDominance) BTCDominance(context.Context) errs.Optional[float64] { return f.value }

type fixedExposure struct{ value errs.Optional[float64] }

func (f fixedExposure) RecommendedExposure(context.Context) errs.Optional[float64] { return f.value }

func TestContext_AllAbsentWhenNoProviders(t *testing.T) {
	ctx := New(nil, nil, nil)
	snap := ctx.Get(context.Background())
	require.False(t, snap.FearGreed.Present())
	require.False(t, snap.BTCDominancePct.Present())
	require.False(t, snap.RecommendedExposure.Present())
	require.False(t, snap.Sentiment.Present())
	require.False(t, snap.Phase.Present())
}

func TestContext_BullishSentimentFromHighFearGreed(t *testing.T) {
	ctx := New(fixedFearGreed{errs.Some(80.0)}, nil, nil)
	snap := ctx.Get(context.Background())
	sentiment, ok := snap.Sentiment.Get()
	require.True(t, ok)
	require.Equal(t, SentimentBullish, sentiment)
}

func TestContext_BearishSentimentFromLowFearGreed(t *testing.T) {
	ctx := New(fixedFearGreed{errs.Some(10.0)}, nil, nil)
	snap := ctx.Get(context.Background())
	sentiment, ok := snap.Sentiment.Get()
	require.True(t, ok)
	require.Equal(t, SentimentBearish, sentiment)
}

func TestContext_CachesWithinTTL(t *testing.T) {
	calls := 0
	provider := countingFearGreed{count: &calls}
	ctx := New(provider, nil, nil)

	ctx.Get(context.Background())
	ctx.Get(context.Background())
	require.Equal(t, 1, calls)
}

type countingFearGreed struct{ count *int }

func (c countingFearGreed) FearGreed(context.Context) errs.Optional[float64] {
	*c.count++
	return errs.Some(50.0)
}

func TestContext_AssetMapIncludesMarketAndBTC(t *testing.T) {
	ctx := New(fixedFearGreed{errs.Some(70.0)}, fixedDominance{errs.Some(55.0)}, nil)
	m := ctx.AssetMap(context.Background())
	require.InDelta(t, 0.70, m["market"], 1e-9)
	require.InDelta(t, 0.55, m["BTC"], 1e-9)
}

func TestContext_AssetMapEmptyWithoutProviders(t *testing.T) {
	ctx := New(nil, nil, nil)
	m := ctx.AssetMap(context.Background())
	require.Empty(t, m)
}
