package pricecache

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/binstatement/internal/domain"
	cacheMock "github.com/vadiminshakov/binstatement/mocks/pricecache"
)

const testTS = int64(1_600_000_012_345)

func closedCandle(symbol string, high, low int64) domain.Candle {
	b := Bucket(testTS)
	return domain.Candle{
		Symbol:    symbol,
		Interval:  domain.CandleInterval1m,
		OpenTime:  b - 30_000,
		CloseTime: b + 29_999,
		High:      decimal.NewFromInt(high),
		Low:       decimal.NewFromInt(low),
	}
}

func fixedClock() time.Time {
	return domain.MillisToTime(testTS).Add(time.Hour)
}

func newTestCache(t *testing.T, store Store, opts ...Option) (*Cache, *cacheMock.CandleSource) {
	source := cacheMock.NewCandleSource(t)
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	return New(store, source, opts...), source
}

func TestBucket(t *testing.T) {
	assert.Equal(t, int64(30_000), Bucket(0))
	assert.Equal(t, int64(30_000), Bucket(59_999))
	assert.Equal(t, int64(90_000), Bucket(60_000))
	assert.Equal(t, int64(-30_000), Bucket(-1))
}

func TestGetPrice_SameAsset(t *testing.T) {
	cache, _ := newTestCache(t, NewMemoryStore())

	price, err := cache.GetPrice(context.Background(), testTS, "usdt", "USDT")
	require.NoError(t, err)
	require.True(t, price.IsKnown())
	assert.True(t, decimal.NewFromInt(1).Equal(price.Value))
}

func TestGetPrice_DirectCandleIsMemoized(t *testing.T) {
	store := NewMemoryStore()
	cache, source := newTestCache(t, store)
	source.On("FetchCandle", mock.Anything, "BTCUSDT", domain.CandleInterval1m, Bucket(testTS)).
		Return(closedCandle("BTCUSDT", 110, 90), nil).Once()

	for i := 0; i < 2; i++ {
		price, err := cache.GetPrice(context.Background(), testTS+int64(i), "btc", "usdt")
		require.NoError(t, err)
		require.True(t, price.IsKnown())
		assert.True(t, decimal.NewFromInt(100).Equal(price.Value))
	}
	assert.Equal(t, 1, store.Len())
}

func TestGetPrice_OpenCandleIsPendingAndNotCached(t *testing.T) {
	store := NewMemoryStore()
	cache, source := newTestCache(t, store)
	open := closedCandle("BTCUSDT", 110, 90)
	open.CloseTime = fixedClock().UnixMilli() + 1
	source.On("FetchCandle", mock.Anything, "BTCUSDT", domain.CandleInterval1m, Bucket(testTS)).
		Return(open, nil).Twice()

	for i := 0; i < 2; i++ {
		price, err := cache.GetPrice(context.Background(), testTS, "BTC", "USDT")
		require.NoError(t, err)
		assert.True(t, price.IsPending())
	}
	assert.Equal(t, 0, store.Len())
}

func TestGetPrice_Inverse(t *testing.T) {
	cache, source := newTestCache(t, NewMemoryStore())
	source.On("FetchCandle", mock.Anything, "USDTBTC", mock.Anything, mock.Anything).Return(domain.Candle{}, domain.ErrSymbolNotFound)
	source.On("FetchCandle", mock.Anything, "BTCUSDT", mock.Anything, mock.Anything).Return(closedCandle("BTCUSDT", 4, 4), nil)

	price, err := cache.GetPrice(context.Background(), testTS, "USDT", "BTC")
	require.NoError(t, err)
	require.True(t, price.IsKnown())
	assert.True(t, decimal.RequireFromString("0.25").Equal(price.Value))
}

func TestGetPrice_Triangulation(t *testing.T) {
	store := NewMemoryStore()
	cache, source := newTestCache(t, store, WithReferenceAsset("ref"))
	source.On("FetchCandle", mock.Anything, "AAABBB", mock.Anything, mock.Anything).Return(domain.Candle{}, domain.ErrSymbolNotFound)
	source.On("FetchCandle", mock.Anything, "BBBAAA", mock.Anything, mock.Anything).Return(domain.Candle{}, domain.ErrSymbolNotFound)
	source.On("FetchCandle", mock.Anything, "AAAREF", mock.Anything, mock.Anything).Return(closedCandle("AAAREF", 2, 2), nil)
	source.On("FetchCandle", mock.Anything, "BBBREF", mock.Anything, mock.Anything).Return(closedCandle("BBBREF", 4, 4), nil)

	price, err := cache.GetPrice(context.Background(), testTS, "AAA", "BBB")
	require.NoError(t, err)
	require.True(t, price.IsKnown())
	assert.True(t, decimal.RequireFromString("0.5").Equal(price.Value))

	// an inverse market miss must not be memoized as unavailable
	_, ok, _ := store.GetPrice(context.Background(), Bucket(testTS), "BBB", "AAA")
	assert.False(t, ok)

	reverse, err := cache.GetPrice(context.Background(), testTS, "BBB", "AAA")
	require.NoError(t, err)
	require.True(t, reverse.IsKnown())
	assert.True(t, decimal.NewFromInt(2).Equal(reverse.Value))
}

func TestGetPrice_TriangulationLegUnavailable(t *testing.T) {
	store := NewMemoryStore()
	cache, source := newTestCache(t, store, WithReferenceAsset("REF"))
	source.On("FetchCandle", mock.Anything, mock.MatchedBy(func(s string) bool { return s != "BBBREF" }), mock.Anything, mock.Anything).
		Return(domain.Candle{}, domain.ErrSymbolNotFound)
	source.On("FetchCandle", mock.Anything, "BBBREF", mock.Anything, mock.Anything).Return(closedCandle("BBBREF", 4, 4), nil)

	price, err := cache.GetPrice(context.Background(), testTS, "AAA", "BBB")
	require.NoError(t, err)
	assert.True(t, price.IsUnavailable())

	stored, ok, _ := store.GetPrice(context.Background(), Bucket(testTS), "AAA", "BBB")
	require.True(t, ok)
	assert.True(t, stored.IsUnavailable())

	// a leg is only final once triangulation was tried for it as well
	_, ok, _ = store.GetPrice(context.Background(), Bucket(testTS), "AAA", "REF")
	assert.False(t, ok)
}

func TestGetPrice_TriangulationThroughInvertedLeg(t *testing.T) {
	store := NewMemoryStore()
	cache, source := newTestCache(t, store)
	source.On("FetchCandle", mock.Anything, "XXXBTC", mock.Anything, mock.Anything).Return(closedCandle("XXXBTC", 2, 2), nil)
	source.On("FetchCandle", mock.Anything, "BTCUSDT", mock.Anything, mock.Anything).Return(closedCandle("BTCUSDT", 10000, 10000), nil)
	source.On("FetchCandle", mock.Anything, mock.MatchedBy(func(s string) bool { return s != "XXXBTC" && s != "BTCUSDT" }), mock.Anything, mock.Anything).
		Return(domain.Candle{}, domain.ErrSymbolNotFound)

	price, err := cache.GetPrice(context.Background(), testTS, "XXX", "USDT")
	require.NoError(t, err)
	require.True(t, price.IsKnown())
	assert.True(t, decimal.NewFromInt(20000).Equal(price.Value))

	stored, ok, _ := store.GetPrice(context.Background(), Bucket(testTS), "XXX", "USDT")
	require.True(t, ok)
	require.True(t, stored.IsKnown())
	assert.True(t, decimal.NewFromInt(20000).Equal(stored.Value))

	leg, ok, _ := store.GetPrice(context.Background(), Bucket(testTS), "USDT", "BTC")
	require.True(t, ok)
	require.True(t, leg.IsKnown())
	assert.True(t, decimal.RequireFromString("0.0001").Equal(leg.Value))
}

func TestGetPrice_TriangulationLegPending(t *testing.T) {
	store := NewMemoryStore()
	cache, source := newTestCache(t, store, WithReferenceAsset("REF"))
	open := closedCandle("AAAREF", 2, 2)
	open.CloseTime = fixedClock().UnixMilli()
	source.On("FetchCandle", mock.Anything, "AAABBB", mock.Anything, mock.Anything).Return(domain.Candle{}, domain.ErrSymbolNotFound)
	source.On("FetchCandle", mock.Anything, "BBBAAA", mock.Anything, mock.Anything).Return(domain.Candle{}, domain.ErrSymbolNotFound)
	source.On("FetchCandle", mock.Anything, "AAAREF", mock.Anything, mock.Anything).Return(open, nil)
	source.On("FetchCandle", mock.Anything, "BBBREF", mock.Anything, mock.Anything).Return(closedCandle("BBBREF", 4, 4), nil)

	price, err := cache.GetPrice(context.Background(), testTS, "AAA", "BBB")
	require.NoError(t, err)
	assert.True(t, price.IsPending())

	_, ok, _ := store.GetPrice(context.Background(), Bucket(testTS), "AAA", "BBB")
	assert.False(t, ok)
}

func TestGetPrice_SourceErrorIsFatal(t *testing.T) {
	cache, source := newTestCache(t, NewMemoryStore())
	boom := errors.New("rate limited")
	source.On("FetchCandle", mock.Anything, "BTCUSDT", mock.Anything, mock.Anything).Return(domain.Candle{}, boom)

	_, err := cache.GetPrice(context.Background(), testTS, "BTC", "USDT")
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
}

func TestGetPrice_StoreHitSkipsSource(t *testing.T) {
	store := cacheMock.NewStore(t)
	store.On("GetPrice", mock.Anything, Bucket(testTS), "ETH", "BTC").Return(domain.UnavailablePrice(), true, nil)
	cache, _ := newTestCache(t, store)

	price, err := cache.GetPrice(context.Background(), testTS, "eth", "btc")
	require.NoError(t, err)
	assert.True(t, price.IsUnavailable())
}

func TestGetPrice_StoreWriteErrorIsFatal(t *testing.T) {
	store := cacheMock.NewStore(t)
	store.On("GetPrice", mock.Anything, mock.Anything, "BTC", "USDT").Return(domain.Price{}, false, nil)
	store.On("GetCandle", mock.Anything, mock.Anything, "BTCUSDT", domain.CandleInterval1m).Return(domain.Candle{}, false, nil)
	store.On("PutCandle", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	store.On("PutPrice", mock.Anything, mock.Anything, "BTC", "USDT", mock.Anything).Return(errors.New("disk full"))
	cache, source := newTestCache(t, store)
	source.On("FetchCandle", mock.Anything, "BTCUSDT", mock.Anything, mock.Anything).Return(closedCandle("BTCUSDT", 1, 1), nil)

	_, err := cache.GetPrice(context.Background(), testTS, "BTC", "USDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
