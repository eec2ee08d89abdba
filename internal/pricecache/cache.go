// Package pricecache resolves asset prices at a point in time from one-minute
// candles, memoizing results in a persistent store and falling back to the
// inverse pair or triangulation through a reference asset.
package pricecache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vadiminshakov/binstatement/internal/domain"
	"github.com/vadiminshakov/binstatement/internal/metrics"
)

const (
	bucketSize = int64(time.Minute / time.Millisecond)
	// DefaultReferenceAsset asset used for triangulation.
	DefaultReferenceAsset = "BTC"
)

// strategy set of fallbacks a lookup may take after the direct market.
type strategy uint8

const (
	viaInverse strategy = 1 << iota
	viaReference

	// directOnly inverse market lookups.
	directOnly strategy = 0
	// legStrategies triangulation legs may invert but never triangulate again.
	legStrategies = viaInverse
	allStrategies = viaInverse | viaReference
)

// Store persistent memo of resolved prices and fetched candles.
type Store interface {
	// GetPrice returns the stored price and whether one was stored.
	GetPrice(ctx context.Context, bucket int64, base, quote string) (domain.Price, bool, error)
	// PutPrice stores a known or unavailable price.
	PutPrice(ctx context.Context, bucket int64, base, quote string, price domain.Price) error
	// GetCandle returns the stored candle and whether one was stored.
	GetCandle(ctx context.Context, bucket int64, symbol, interval string) (domain.Candle, bool, error)
	// PutCandle stores a closed candle.
	PutCandle(ctx context.Context, bucket int64, candle domain.Candle) error
}

// CandleSource fetches the candle enclosing endTime. It returns
// domain.ErrSymbolNotFound when no candle for the symbol exists.
type CandleSource interface {
	FetchCandle(ctx context.Context, symbol, interval string, endTime int64) (domain.Candle, error)
}

// Cache price resolution cache.
type Cache struct {
	store     Store
	source    CandleSource
	reference string
	now       func() time.Time
	l         *zap.Logger
	inflight  singleflight.Group
}

// Option configures the Cache.
type Option func(*Cache)

// WithReferenceAsset sets the asset used for triangulation.
func WithReferenceAsset(asset string) Option {
	return func(c *Cache) {
		c.reference = domain.NormalizeAsset(asset)
	}
}

// WithClock sets the clock used to decide whether a candle has closed.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		c.l = l
	}
}

// New creates a price cache over the given store and candle source.
func New(store Store, source CandleSource, opts ...Option) *Cache {
	c := &Cache{
		store:     store,
		source:    source,
		reference: DefaultReferenceAsset,
		now:       time.Now,
		l:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bucket returns the midpoint of the one-minute interval enclosing ts.
func Bucket(ts int64) int64 {
	start := ts - ts%bucketSize
	if ts%bucketSize < 0 {
		start -= bucketSize
	}
	return start + bucketSize/2
}

// GetPrice returns the price of base in quote at ts. Errors other than a
// missing symbol are fatal for the caller.
func (c *Cache) GetPrice(ctx context.Context, ts int64, base, quote string) (domain.Price, error) {
	return c.resolve(ctx, Bucket(ts), domain.NewPair(base, quote), allStrategies)
}

func (c *Cache) resolve(ctx context.Context, bucket int64, pair domain.Pair, allowed strategy) (domain.Price, error) {
	if pair.Base == pair.Quote {
		return domain.KnownPrice(decimal.NewFromInt(1)), nil
	}

	// allowed shrinks on every nested call, so a lookup never waits on its own key
	key := fmt.Sprintf("%d|%s|%s|%d", bucket, pair.Base, pair.Quote, allowed)
	v, err, _ := c.inflight.Do(key, func() (any, error) {
		return c.lookup(ctx, bucket, pair, allowed)
	})
	if err != nil {
		return domain.Price{}, err
	}
	return v.(domain.Price), nil
}

func (c *Cache) lookup(ctx context.Context, bucket int64, pair domain.Pair, allowed strategy) (domain.Price, error) {
	cached, ok, err := c.store.GetPrice(ctx, bucket, pair.Base, pair.Quote)
	if err != nil {
		return domain.Price{}, errors.Wrapf(err, "read cached price %s", pair.String())
	}
	if ok {
		metrics.PriceCacheLookups.WithLabelValues(metrics.ResultHit).Inc()
		return cached, nil
	}
	metrics.PriceCacheLookups.WithLabelValues(metrics.ResultMiss).Inc()

	price, err := c.direct(ctx, bucket, pair)
	if err != nil {
		return domain.Price{}, err
	}
	if price.IsUnavailable() && allowed&viaInverse != 0 {
		if price, err = c.inverse(ctx, bucket, pair); err != nil {
			return domain.Price{}, err
		}
	}
	if price.IsUnavailable() && allowed&viaReference != 0 {
		if price, err = c.triangulate(ctx, bucket, pair); err != nil {
			return domain.Price{}, err
		}
	}

	if price.IsPending() {
		return price, nil
	}
	// partial answer: a lookup with more strategies may still derive it.
	if price.IsUnavailable() && allowed != allStrategies {
		return price, nil
	}

	if err := c.store.PutPrice(ctx, bucket, pair.Base, pair.Quote, price); err != nil {
		return domain.Price{}, errors.Wrapf(err, "store price %s", pair.String())
	}
	return price, nil
}

func (c *Cache) direct(ctx context.Context, bucket int64, pair domain.Pair) (domain.Price, error) {
	candle, state, err := c.candle(ctx, bucket, pair.Symbol())
	if err != nil {
		return domain.Price{}, err
	}
	if state != domain.PriceKnown {
		return domain.Price{State: state}, nil
	}
	return domain.KnownPrice(candle.Mid()), nil
}

func (c *Cache) candle(ctx context.Context, bucket int64, symbol string) (domain.Candle, domain.PriceState, error) {
	cached, ok, err := c.store.GetCandle(ctx, bucket, symbol, domain.CandleInterval1m)
	if err != nil {
		return domain.Candle{}, 0, errors.Wrapf(err, "read cached candle %s", symbol)
	}
	if ok {
		return cached, domain.PriceKnown, nil
	}

	candle, err := c.source.FetchCandle(ctx, symbol, domain.CandleInterval1m, bucket)
	if err != nil {
		if errors.Is(err, domain.ErrSymbolNotFound) {
			metrics.CandleFetches.WithLabelValues(metrics.OutcomeMissing).Inc()
			c.l.Debug("candle does not exist", zap.String("symbol", symbol), zap.Int64("bucket", bucket))
			return domain.Candle{}, domain.PriceUnavailable, nil
		}
		metrics.CandleFetches.WithLabelValues(metrics.OutcomeError).Inc()
		return domain.Candle{}, 0, errors.Wrapf(err, "fetch candle %s at %d", symbol, bucket)
	}

	if !candle.ClosedBefore(c.now().UnixMilli()) {
		metrics.CandleFetches.WithLabelValues(metrics.OutcomeOpen).Inc()
		c.l.Debug("candle still open", zap.String("symbol", symbol), zap.Int64("bucket", bucket))
		return domain.Candle{}, domain.PricePending, nil
	}
	metrics.CandleFetches.WithLabelValues(metrics.OutcomeClosed).Inc()

	if err := c.store.PutCandle(ctx, bucket, candle); err != nil {
		return domain.Candle{}, 0, errors.Wrapf(err, "store candle %s", symbol)
	}
	return candle, domain.PriceKnown, nil
}

// inverse prices pair as the reciprocal of its inverse market.
func (c *Cache) inverse(ctx context.Context, bucket int64, pair domain.Pair) (domain.Price, error) {
	inverse, err := c.resolve(ctx, bucket, pair.Inverse(), directOnly)
	if err != nil {
		return domain.Price{}, err
	}
	if inverse.IsKnown() {
		if inverse.Value.IsZero() {
			return domain.UnavailablePrice(), nil
		}
		return domain.KnownPrice(decimal.NewFromInt(1).Div(inverse.Value)), nil
	}
	return inverse, nil
}

// triangulate prices pair through the reference asset. Each leg may use its
// direct or inverse market.
func (c *Cache) triangulate(ctx context.Context, bucket int64, pair domain.Pair) (domain.Price, error) {
	base, err := c.resolve(ctx, bucket, domain.Pair{Base: pair.Base, Quote: c.reference}, legStrategies)
	if err != nil {
		return domain.Price{}, err
	}
	quote, err := c.resolve(ctx, bucket, domain.Pair{Base: pair.Quote, Quote: c.reference}, legStrategies)
	if err != nil {
		return domain.Price{}, err
	}

	switch {
	case base.IsUnavailable() || quote.IsUnavailable():
		return domain.UnavailablePrice(), nil
	case base.IsPending() || quote.IsPending():
		return domain.PendingPrice(), nil
	case quote.Value.IsZero():
		return domain.UnavailablePrice(), nil
	}
	return domain.KnownPrice(base.Value.Div(quote.Value)), nil
}
