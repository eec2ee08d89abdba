package candles

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/binstatement/internal/clients"
	"github.com/vadiminshakov/binstatement/internal/domain"
	"github.com/vadiminshakov/binstatement/internal/pricecache"
)

var _ pricecache.CandleSource = (*BinanceSource)(nil)

func newSource(t *testing.T, handler http.HandlerFunc) *BinanceSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := clients.NewBinanceClient("key", "secret")
	client.BaseURL = srv.URL
	return NewBinanceSource(client, clients.NewPacer(clients.MaxSpeed), zap.NewNop())
}

func TestBinanceSource_FetchCandle(t *testing.T) {
	source := newSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1m", r.URL.Query().Get("interval"))
		assert.Equal(t, "90000", r.URL.Query().Get("endTime"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[[60000,"1.0","3.0","1.0","2.0","10.5",119999,"21.0",7,"5","10","0"]]`))
	})

	c, err := source.FetchCandle(context.Background(), "BTCUSDT", domain.CandleInterval1m, 90_000)
	require.NoError(t, err)
	assert.Equal(t, int64(60_000), c.OpenTime)
	assert.Equal(t, int64(119_999), c.CloseTime)
	assert.Equal(t, int64(7), c.TradeCount)
	assert.True(t, decimal.NewFromInt(2).Equal(c.Mid()))
	assert.True(t, decimal.RequireFromString("21").Equal(c.QuoteVolume))
}

func TestBinanceSource_InvalidSymbol(t *testing.T) {
	calls := 0
	source := newSource(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	})

	_, err := source.FetchCandle(context.Background(), "AAABBB", domain.CandleInterval1m, 90_000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSymbolNotFound))
	assert.Equal(t, 1, calls)
}

func TestBinanceSource_NoKlines(t *testing.T) {
	source := newSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := source.FetchCandle(context.Background(), "NEWUSDT", domain.CandleInterval1m, 90_000)
	assert.True(t, errors.Is(err, domain.ErrSymbolNotFound))
}

func TestBinanceSource_MalformedKline(t *testing.T) {
	source := newSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[60000,"x","3.0","1.0","2.0","10.5",119999,"21.0",7,"5","10","0"]]`))
	})

	_, err := source.FetchCandle(context.Background(), "BTCUSDT", domain.CandleInterval1m, 90_000)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrSymbolNotFound))
}

func TestBinanceSource_RetriesRateLimit(t *testing.T) {
	calls := 0
	source := newSource(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"code":-1003,"msg":"Too many requests."}`))
			return
		}
		_, _ = w.Write([]byte(`[[60000,"1.0","3.0","1.0","2.0","10.5",119999,"21.0",7,"5","10","0"]]`))
	})

	c, err := source.FetchCandle(context.Background(), "BTCUSDT", domain.CandleInterval1m, 90_000)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "BTCUSDT", c.Symbol)
}
