package pricestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/binstatement/internal/domain"
	"github.com/vadiminshakov/binstatement/internal/pricecache"
)

var _ pricecache.Store = (*Store)(nil)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Prices(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, ok, err := s.GetPrice(ctx, 30_000, "BTC", "USDT")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.PutPrice(ctx, 30_000, "BTC", "USDT", domain.KnownPrice(decimal.RequireFromString("20000.125"))))
	require.NoError(t, s.PutPrice(ctx, 30_000, "AAA", "BBB", domain.UnavailablePrice()))

	p, ok, err := s.GetPrice(ctx, 30_000, "BTC", "USDT")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, p.IsKnown())
	assert.Equal(t, "20000.125", p.Value.String())

	p, ok, err = s.GetPrice(ctx, 30_000, "AAA", "BBB")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, p.IsUnavailable())

	// reverse direction is a distinct key
	_, ok, err = s.GetPrice(ctx, 30_000, "USDT", "BTC")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_PutPriceOverwrites(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutPrice(ctx, 90_000, "ETH", "BTC", domain.UnavailablePrice()))
	require.NoError(t, s.PutPrice(ctx, 90_000, "ETH", "BTC", domain.KnownPrice(decimal.RequireFromString("0.05"))))

	p, ok, err := s.GetPrice(ctx, 90_000, "ETH", "BTC")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "0.05", p.String())
}

func TestStore_RejectsPending(t *testing.T) {
	s := openStore(t)
	assert.Error(t, s.PutPrice(context.Background(), 30_000, "BTC", "USDT", domain.PendingPrice()))
}

func TestStore_Candles(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	c := domain.Candle{
		Symbol:     "BTCUSDT",
		Interval:   domain.CandleInterval1m,
		OpenTime:   0,
		CloseTime:  59_999,
		Open:       decimal.NewFromInt(1),
		High:       decimal.NewFromInt(3),
		Low:        decimal.NewFromInt(1),
		Close:      decimal.NewFromInt(2),
		BaseVolume: decimal.RequireFromString("10.5"),
		TradeCount: 42,
	}
	require.NoError(t, s.PutCandle(ctx, 30_000, c))

	got, ok, err := s.GetCandle(ctx, 30_000, "BTCUSDT", domain.CandleInterval1m)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(59_999), got.CloseTime)
	assert.Equal(t, int64(42), got.TradeCount)
	assert.True(t, decimal.NewFromInt(2).Equal(got.Mid()))
	assert.True(t, decimal.RequireFromString("10.5").Equal(got.BaseVolume))

	_, ok, err = s.GetCandle(ctx, 90_000, "BTCUSDT", domain.CandleInterval1m)
	require.NoError(t, err)
	assert.False(t, ok)
}
