package macro

import (
	"context"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/quantfoundry/spotengine/internal/errs"
)

// alternativeMeFearGreedProvider fetches the public alternative.me fear/greed
// index. It is the shipped default; a deployment without network access to
// it simply sees every FearGreed call come back absent.
type alternativeMeFearGreedProvider struct {
	http *resty.Client
}

// NewAlternativeMeFearGreedProvider builds a FearGreedProvider against the
// public alternative.me API.
func NewAlternativeMeFearGreedProvider(client *resty.Client) FearGreedProvider {
	return &alternativeMeFearGreedProvider{http: client}
}

type fearGreedResponse struct {
	Data []struct {
		Value string `json:"value"`
	} `json:"data"`
}

func (p *alternativeMeFearGreedProvider) FearGreed(ctx context.Context) errs.Optional[float64] {
	var body fearGreedResponse
	resp, err := p.http.R().SetContext(ctx).SetResult(&body).Get("https://api.alternative.me/fng/?limit=1")
	if err != nil {
		log.Warn().Err(err).Msg("macro: fear/greed fetch failed")
		return errs.None[float64](err.Error())
	}
	if resp.IsError() || len(body.Data) == 0 {
		return errs.None[float64]("fear/greed response empty")
	}

	value, err := strconv.ParseFloat(body.Data[0].Value, 64)
	if err != nil {
		return errs.None[float64]("fear/greed response malformed")
	}
	return errs.Some(value)
}

// stubDominanceProvider always reports absent: no BTC dominance feed ships
// by default. Wiring a real one (e.g. CoinGecko global market data) means
// implementing DominanceProvider and passing it to macro.New instead.
type stubDominanceProvider struct{}

// NewStubDominanceProvider returns a DominanceProvider that is always
// absent, matching the spec's "never blocks a cycle" contract when no real
// feed is configured.
func NewStubDominanceProvider() DominanceProvider { return stubDominanceProvider{} }

func (stubDominanceProvider) BTCDominance(context.Context) errs.Optional[float64] {
	return errs.None[float64]("no dominance provider configured")
}

// stubExposureProvider always reports absent, leaving recommended exposure
// to degrade the DecisionEngine's confidence requirement per spec.
type stubExposureProvider struct{}

// NewStubExposureProvider returns an ExposureProvider that is always absent.
func NewStubExposureProvider() ExposureProvider { return stubExposureProvider{} }

func (stubExposureProvider) RecommendedExposure(context.Context) errs.Optional[float64] {
	return errs.None[float64]("no exposure provider configured")
}
