package position

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/quantfoundry/spotengine/internal/exchange"
)

func newTestStore(t *testing.T) (*Store, *exchange.MockGateway) {
	t.Helper()
	gw := exchange.NewMockGateway()
	path := filepath.Join(t.TempDir(), "positions.json")
	return New(path, gw), gw
}

func TestSaveAndLoad_RoundTrips(t *testing.T) {
	store, gw := newTestStore(t)
	symbol := exchange.Symbol("SOL/USDT")

	gw.SeedTicker(symbol, exchange.Ticker{Last: decimal.NewFromFloat(150)})
	gw.SeedBalance("SOL", exchange.AssetBalance{Free: decimal.NewFromFloat(10), Total: decimal.NewFromFloat(10)})
	gw.SeedAlgoOrder(exchange.AlgoOrder{AlgoID: "algo-1", Symbol: symbol, Kind: "oco", State: "live"})

	store.Upsert(Position{
		Symbol:            symbol,
		Side:              "long",
		Amount:            decimal.NewFromFloat(10),
		EntryPrice:        decimal.NewFromFloat(145),
		EntryTime:         time.Now(),
		ManagedByExchange: true,
	})
	require.NoError(t, store.Save())

	fresh := New(store.path, gw)
	require.NoError(t, fresh.Load(context.Background()))
	require.True(t, fresh.Has(symbol))
	p, _ := fresh.Get(symbol)
	require.True(t, p.ManagedByExchange)
	require.Equal(t, "algo-1", p.ProtectionAlgoID)
}

func TestLoad_SkipsClosedPersistedPosition(t *testing.T) {
	store, gw := newTestStore(t)
	symbol := exchange.Symbol("ADA/USDT")

	store.Upsert(Position{Symbol: symbol, Side: "long", Amount: decimal.NewFromFloat(100)})
	require.NoError(t, store.Save())

	gw.SeedBalance("ADA", exchange.AssetBalance{Free: decimal.Zero, Total: decimal.Zero})

	fresh := New(store.path, gw)
	require.NoError(t, fresh.Load(context.Background()))
	require.False(t, fresh.Has(symbol))
}

func TestLoad_SynthesizesProvisionalPositionFromBalance(t *testing.T) {
	store, gw := newTestStore(t)
	symbol := exchange.Symbol("BTC/USDT")
	gw.SeedBalance("BTC", exchange.AssetBalance{Free: decimal.NewFromFloat(0.01), Total: decimal.NewFromFloat(0.01)})
	gw.SeedTicker(symbol, exchange.Ticker{Last: decimal.NewFromFloat(60000)})

	require.NoError(t, store.Load(context.Background()))
	require.True(t, store.Has(symbol))
}

func TestLoad_SkipsDustBelowOneUSD(t *testing.T) {
	store, gw := newTestStore(t)
	symbol := exchange.Symbol("DOGE/USDT")
	gw.SeedBalance("DOGE", exchange.AssetBalance{Free: decimal.NewFromFloat(0.5), Total: decimal.NewFromFloat(0.5)})
	gw.SeedTicker(symbol, exchange.Ticker{Last: decimal.NewFromFloat(0.1)})

	require.NoError(t, store.Load(context.Background()))
	require.False(t, store.Has(symbol))
}

func TestReconcile_EvictsOnlyWhenNoBalanceAndNoAlgo(t *testing.T) {
	store, gw := newTestStore(t)
	symbol := exchange.Symbol("ADA/USDT")
	store.Upsert(Position{Symbol: symbol, ManagedByExchange: true})

	gw.SeedBalance("ADA", exchange.AssetBalance{Free: decimal.Zero, Total: decimal.Zero})

	require.NoError(t, store.Reconcile(context.Background(), true))
	require.False(t, store.Has(symbol))
}

func TestReconcile_KeepsPositionWithDustBalance(t *testing.T) {
	store, gw := newTestStore(t)
	symbol := exchange.Symbol("ADA/USDT")
	store.Upsert(Position{Symbol: symbol, ManagedByExchange: true})

	gw.SeedBalance("ADA", exchange.AssetBalance{Free: decimal.NewFromFloat(0.0001), Total: decimal.NewFromFloat(0.0001)})

	require.NoError(t, store.Reconcile(context.Background(), true))
	require.True(t, store.Has(symbol))
}

func TestReconcile_ThrottledWithoutForce(t *testing.T) {
	store, gw := newTestStore(t)
	symbol := exchange.Symbol("BNB/USDT")
	store.Upsert(Position{Symbol: symbol})
	gw.SeedBalance("BNB", exchange.AssetBalance{Free: decimal.Zero, Total: decimal.Zero})

	require.NoError(t, store.Reconcile(context.Background(), true))
	require.False(t, store.Has(symbol))

	store.Upsert(Position{Symbol: symbol})
	require.NoError(t, store.Reconcile(context.Background(), false))
	require.True(t, store.Has(symbol), "second reconcile within 60s without force must be a no-op")
}
