package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/quantfoundry/spotengine/internal/metrics"
	"github.com/quantfoundry/spotengine/internal/risk"
)

const exchangeName = "okx"

// OKXGateway implements Gateway against an OKX-shaped REST API. Every
// request is signed per OKX's documented scheme: base64(hmac_sha256(secret,
// timestamp+method+requestPath+body)), rate-limited per endpoint family and
// wrapped in the exchange circuit breaker.
type OKXGateway struct {
	http       *resty.Client
	apiKey     string
	secretKey  string
	passphrase string
	log        zerolog.Logger
	limiter    *risk.RateLimiter
	breaker    *risk.CircuitBreakerManager
}

// NewOKXGateway builds a gateway against baseURL, signing every request
// with the given credentials.
func NewOKXGateway(baseURL, apiKey, secretKey, passphrase string, limiter *risk.RateLimiter, breaker *risk.CircuitBreakerManager, log zerolog.Logger) *OKXGateway {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})

	return &OKXGateway{
		http:       client,
		apiKey:     apiKey,
		secretKey:  secretKey,
		passphrase: passphrase,
		log:        log,
		limiter:    limiter,
		breaker:    breaker,
	}
}

func (g *OKXGateway) sign(method, path, body string) map[string]string {
	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	mac := hmac.New(sha256.New, []byte(g.secretKey))
	mac.Write([]byte(ts + method + path + body))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"OK-ACCESS-KEY":        g.apiKey,
		"OK-ACCESS-SIGN":       sig,
		"OK-ACCESS-TIMESTAMP":  ts,
		"OK-ACCESS-PASSPHRASE": g.passphrase,
		"Content-Type":         "application/json",
	}
}

type okxEnvelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (g *OKXGateway) get(ctx context.Context, family risk.EndpointFamily, path string, query map[string]string, out interface{}) error {
	if err := g.limiter.Wait(ctx, family); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	start := time.Now()
	_, err := g.breaker.Exchange().Execute(func() (interface{}, error) {
		req := g.http.R().SetContext(ctx).SetHeaders(g.sign("GET", path, ""))
		if query != nil {
			req.SetQueryParams(query)
		}
		resp, err := req.Get(path)
		if err != nil {
			return nil, fmt.Errorf("GET %s: %w", path, err)
		}
		return nil, decodeEnvelope(resp, out)
	})
	metrics.RecordExchangeAPICall(exchangeName, path, float64(time.Since(start).Milliseconds()), err)
	if err != nil {
		return wrapGatewayErr(err)
	}
	return nil
}

func (g *OKXGateway) post(ctx context.Context, family risk.EndpointFamily, path string, body interface{}, out interface{}) error {
	if err := g.limiter.Wait(ctx, family); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}

	start := time.Now()
	_, err = g.breaker.Exchange().Execute(func() (interface{}, error) {
		resp, err := g.http.R().
			SetContext(ctx).
			SetHeaders(g.sign("POST", path, string(raw))).
			SetBody(raw).
			Post(path)
		if err != nil {
			return nil, fmt.Errorf("POST %s: %w", path, err)
		}
		return nil, decodeEnvelope(resp, out)
	})
	metrics.RecordExchangeAPICall(exchangeName, path, float64(time.Since(start).Milliseconds()), err)
	if err != nil {
		return wrapGatewayErr(err)
	}
	return nil
}

func wrapGatewayErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("gateway breaker open: %w", err)
	}
	return err
}

func decodeEnvelope(resp *resty.Response, out interface{}) error {
	if resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500 {
		return fmt.Errorf("gateway transient: status %d: %s", resp.StatusCode(), resp.String())
	}
	var env okxEnvelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.Code != "0" {
		return fmt.Errorf("gateway rejected [%s]: %s", env.Code, env.Msg)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

type okxTicker struct {
	InstID  string `json:"instId"`
	Last    string `json:"last"`
	High24h string `json:"high24h"`
	Low24h  string `json:"low24h"`
	VolCcy  string `json:"volCcy24h"`
	BidPx   string `json:"bidPx"`
	AskPx   string `json:"askPx"`
	Open24h string `json:"open24h"`
}

// DiscoverLiquidSymbols lists every SPOT ticker, keeps instruments quoted in
// quote with at least minQuoteVolumeUSD of 24h quote volume, and returns the
// top limit by volume descending.
func (g *OKXGateway) DiscoverLiquidSymbols(ctx context.Context, minQuoteVolumeUSD float64, quote string, limit int) ([]Symbol, error) {
	var tickers []okxTicker
	if err := g.get(ctx, risk.FamilyDiscover, "/api/v5/market/tickers", map[string]string{"instType": "SPOT"}, &tickers); err != nil {
		return nil, err
	}

	suffix := "-" + quote
	minVol := decimal.NewFromFloat(minQuoteVolumeUSD)

	type candidate struct {
		symbol Symbol
		volume decimal.Decimal
	}
	var candidates []candidate
	for _, t := range tickers {
		if !strings.HasSuffix(t.InstID, suffix) {
			continue
		}
		vol := parseDecimalOrZero(t.VolCcy)
		if vol.LessThan(minVol) {
			continue
		}
		candidates = append(candidates, candidate{symbol: FromGatewaySymbol(t.InstID), volume: vol})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].volume.GreaterThan(candidates[j].volume)
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]Symbol, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.symbol)
	}
	return out, nil
}

func (g *OKXGateway) FetchTicker(ctx context.Context, symbol Symbol) (*Ticker, error) {
	var tickers []okxTicker
	if err := g.get(ctx, risk.FamilyTicker, "/api/v5/market/ticker", map[string]string{"instId": symbol.Gateway()}, &tickers); err != nil {
		return nil, err
	}
	if len(tickers) == 0 {
		return nil, nil
	}
	t := tickers[0]

	last := parseDecimalOrZero(t.Last)
	open := parseDecimalOrZero(t.Open24h)
	var pctChange decimal.Decimal
	if open.IsPositive() {
		pctChange = last.Sub(open).Div(open).Mul(decimal.NewFromInt(100))
	}

	return &Ticker{
		Last:            last,
		High24h:         parseDecimalOrZero(t.High24h),
		Low24h:          parseDecimalOrZero(t.Low24h),
		QuoteVolume24h:  parseDecimalOrZero(t.VolCcy),
		PercentChange24: pctChange,
		BestBid:         parseDecimalOrZero(t.BidPx),
		BestAsk:         parseDecimalOrZero(t.AskPx),
	}, nil
}

func parseDecimalOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var okxBarByTimeframe = map[Timeframe]string{
	Timeframe5m:  "5m",
	Timeframe15m: "15m",
	Timeframe1h:  "1H",
	Timeframe4h:  "4H",
	Timeframe1d:  "1D",
}

func (g *OKXGateway) FetchCandles(ctx context.Context, symbol Symbol, tf Timeframe, limit int) ([]Candle, error) {
	bar, ok := okxBarByTimeframe[tf]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe: %s", tf)
	}

	var rows [][]string
	err := g.get(ctx, risk.FamilyCandles, "/api/v5/market/candles", map[string]string{
		"instId": symbol.Gateway(),
		"bar":    bar,
		"limit":  strconv.Itoa(limit),
	}, &rows)
	if err != nil {
		return nil, err
	}

	candles := make([]Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) < 6 {
			continue
		}
		ms, _ := strconv.ParseInt(row[0], 10, 64)
		candles = append(candles, Candle{
			OpenTime: time.UnixMilli(ms),
			Open:     parseDecimalOrZero(row[1]),
			High:     parseDecimalOrZero(row[2]),
			Low:      parseDecimalOrZero(row[3]),
			Close:    parseDecimalOrZero(row[4]),
			Volume:   parseDecimalOrZero(row[5]),
		})
	}
	return candles, nil
}

func (g *OKXGateway) FetchOrderBook(ctx context.Context, symbol Symbol, depth int) (*OrderBookSnapshot, error) {
	var books []struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
		Ts   string     `json:"ts"`
	}
	err := g.get(ctx, risk.FamilyBook, "/api/v5/market/books", map[string]string{
		"instId": symbol.Gateway(),
		"sz":     strconv.Itoa(depth),
	}, &books)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, nil
	}
	b := books[0]

	toLevels := func(rows [][]string) []BookLevel {
		levels := make([]BookLevel, 0, len(rows))
		for _, r := range rows {
			if len(r) < 2 {
				continue
			}
			levels = append(levels, BookLevel{Price: parseDecimalOrZero(r[0]), Size: parseDecimalOrZero(r[1])})
		}
		return levels
	}

	ms, _ := strconv.ParseInt(b.Ts, 10, 64)
	return &OrderBookSnapshot{
		Bids:      toLevels(b.Bids),
		Asks:      toLevels(b.Asks),
		Timestamp: time.UnixMilli(ms),
	}, nil
}

func (g *OKXGateway) FetchBalance(ctx context.Context) (map[string]AssetBalance, error) {
	var resp []struct {
		Details []struct {
			Ccy     string `json:"ccy"`
			AvailBal string `json:"availBal"`
			CashBal  string `json:"cashBal"`
		} `json:"details"`
	}
	if err := g.get(ctx, risk.FamilyTrade, "/api/v5/account/balance", nil, &resp); err != nil {
		return nil, err
	}

	out := make(map[string]AssetBalance)
	if len(resp) == 0 {
		return out, nil
	}
	for _, d := range resp[0].Details {
		out[d.Ccy] = AssetBalance{
			Free:  parseDecimalOrZero(d.AvailBal),
			Total: parseDecimalOrZero(d.CashBal),
		}
	}
	return out, nil
}

func (g *OKXGateway) FetchOpenOrders(ctx context.Context) ([]Order, error) {
	var rows []struct {
		OrdID     string `json:"ordId"`
		InstID    string `json:"instId"`
		Side      string `json:"side"`
		OrdType   string `json:"ordType"`
		Sz        string `json:"sz"`
		Px        string `json:"px"`
		FillSz    string `json:"fillSz"`
		State     string `json:"state"`
		CTime     string `json:"cTime"`
	}
	if err := g.get(ctx, risk.FamilyTrade, "/api/v5/trade/orders-pending", map[string]string{"instType": "SPOT"}, &rows); err != nil {
		return nil, err
	}

	out := make([]Order, 0, len(rows))
	for _, r := range rows {
		ms, _ := strconv.ParseInt(r.CTime, 10, 64)
		out = append(out, Order{
			OrderID:   r.OrdID,
			Symbol:    FromGatewaySymbol(r.InstID),
			Side:      r.Side,
			Type:      mapOKXOrdType(r.OrdType),
			Quantity:  parseDecimalOrZero(r.Sz),
			Price:     parseDecimalOrZero(r.Px),
			FilledQty: parseDecimalOrZero(r.FillSz),
			Status:    r.State,
			CreatedAt: time.UnixMilli(ms),
		})
	}
	return out, nil
}

func mapOKXOrdType(t string) OrderType {
	switch t {
	case "market":
		return OrderTypeMarket
	case "limit", "post_only", "fok", "ioc", "optimal_limit_ioc":
		return OrderTypeLimit
	case "oco":
		return OrderTypeOCO
	case "conditional":
		return OrderTypeConditional
	case "trigger":
		return OrderTypeTrigger
	default:
		return OrderTypeAlgo
	}
}

func (g *OKXGateway) FetchAlgoOrders(ctx context.Context, kind, state string) ([]AlgoOrder, error) {
	params := map[string]string{"ordType": "oco", "instType": "SPOT"}
	if state != "" {
		params["state"] = state
	}

	var rows []struct {
		AlgoID    string `json:"algoId"`
		InstID    string `json:"instId"`
		State     string `json:"state"`
		SlTriggerPx string `json:"slTriggerPx"`
		TpTriggerPx string `json:"tpTriggerPx"`
		Sz        string `json:"sz"`
		CTime     string `json:"cTime"`
	}
	if err := g.get(ctx, risk.FamilyTrade, "/api/v5/trade/orders-algo-pending", params, &rows); err != nil {
		return nil, err
	}

	out := make([]AlgoOrder, 0, len(rows))
	for _, r := range rows {
		ms, _ := strconv.ParseInt(r.CTime, 10, 64)
		out = append(out, AlgoOrder{
			AlgoID:     r.AlgoID,
			Symbol:     FromGatewaySymbol(r.InstID),
			Kind:       "oco",
			State:      r.State,
			StopPrice:  parseDecimalOrZero(r.SlTriggerPx),
			TakeProfit: parseDecimalOrZero(r.TpTriggerPx),
			Amount:     parseDecimalOrZero(r.Sz),
			CreatedAt:  time.UnixMilli(ms),
		})
	}
	return out, nil
}

func (g *OKXGateway) PlaceMarketBuy(ctx context.Context, symbol Symbol, baseAmount float64) (*OrderAck, error) {
	body := map[string]string{
		"instId":  symbol.Gateway(),
		"tdMode":  "cash",
		"side":    "buy",
		"ordType": "market",
		"sz":      decimal.NewFromFloat(baseAmount).String(),
	}

	var rows []struct {
		OrdID   string `json:"ordId"`
		SCode   string `json:"sCode"`
		SMsg    string `json:"sMsg"`
	}
	if err := g.post(ctx, risk.FamilyTrade, "/api/v5/trade/order", body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty order response")
	}
	if rows[0].SCode != "" && rows[0].SCode != "0" {
		return nil, fmt.Errorf("gateway rejected [%s]: %s", rows[0].SCode, rows[0].SMsg)
	}

	// OKX's order-placement ack does not carry fill data; the caller polls
	// fills/balance during settlement confirmation, matching the spec.
	return &OrderAck{OrderID: rows[0].OrdID, Status: "pending"}, nil
}

func (g *OKXGateway) PlaceOCOSell(ctx context.Context, symbol Symbol, baseAmount, stopPrice, takeProfitPrice, entryPrice float64) (*AlgoAck, error) {
	body := map[string]string{
		"instId":      symbol.Gateway(),
		"tdMode":      "cash",
		"side":        "sell",
		"ordType":     "oco",
		"sz":          decimal.NewFromFloat(baseAmount).String(),
		"tpTriggerPx": decimal.NewFromFloat(takeProfitPrice).String(),
		"tpOrdPx":     "-1",
		"slTriggerPx": decimal.NewFromFloat(stopPrice).String(),
		"slOrdPx":     "-1",
	}

	var rows []struct {
		AlgoID string `json:"algoId"`
		SCode  string `json:"sCode"`
		SMsg   string `json:"sMsg"`
	}
	if err := g.post(ctx, risk.FamilyTrade, "/api/v5/trade/order-algo", body, &rows); err != nil {
		// A failed OCO is a soft outcome the Executor handles by falling
		// back to managed_by_exchange=false, not a hard error — every post
		// failure (transport, breaker or business rejection) is surfaced
		// through the ack instead of the error return.
		return &AlgoAck{Status: "rejected", ErrorCode: err.Error()}, nil
	}
	if len(rows) == 0 {
		return &AlgoAck{Status: "rejected", ErrorCode: "empty_response"}, nil
	}
	if rows[0].SCode != "" && rows[0].SCode != "0" {
		return &AlgoAck{Status: "rejected", ErrorCode: rows[0].SCode}, nil
	}

	return &AlgoAck{AlgoID: rows[0].AlgoID, Status: "live"}, nil
}

func (g *OKXGateway) CancelAlgoOrder(ctx context.Context, algoID string) error {
	body := []map[string]string{{"algoId": algoID}}
	return g.post(ctx, risk.FamilyTrade, "/api/v5/trade/cancel-algos", body, nil)
}

func (g *OKXGateway) LotSize(ctx context.Context, symbol Symbol) (float64, float64, error) {
	var rows []struct {
		InstID  string `json:"instId"`
		LotSz   string `json:"lotSz"`
		MinSz   string `json:"minSz"`
	}
	err := g.get(ctx, risk.FamilyDiscover, "/api/v5/public/instruments", map[string]string{
		"instType": "SPOT",
		"instId":   symbol.Gateway(),
	}, &rows)
	if err != nil {
		return 0, 0, err
	}
	if len(rows) == 0 {
		return 0, 0, fmt.Errorf("instrument not found: %s", symbol)
	}

	step, _ := strconv.ParseFloat(rows[0].LotSz, 64)
	minSz, _ := strconv.ParseFloat(rows[0].MinSz, 64)

	// OKX publishes the minimum as a base-unit size; convert it to quote
	// notional at the last price.
	ticker, err := g.FetchTicker(ctx, symbol)
	if err != nil {
		return 0, 0, err
	}
	if ticker == nil {
		return 0, 0, fmt.Errorf("ticker unavailable: %s", symbol)
	}
	last, _ := ticker.Last.Float64()
	return step, minSz * last, nil
}

var _ Gateway = (*OKXGateway)(nil)
