// Package candles fetches one-minute candles from Binance for the price cache.
package candles

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/binstatement/internal/clients"
	"github.com/vadiminshakov/binstatement/internal/domain"
	"github.com/vadiminshakov/binstatement/pkg/retrier"
)

// BinanceSource candle source backed by the Binance klines endpoint.
type BinanceSource struct {
	client  *binance.Client
	pacer   *clients.Pacer
	retrier *retrier.Retrier
	l       *zap.Logger
}

// NewBinanceSource creates a candle source. Transient exchange errors are
// retried with backoff; an unknown symbol is reported as domain.ErrSymbolNotFound.
func NewBinanceSource(client *binance.Client, pacer *clients.Pacer, l *zap.Logger) *BinanceSource {
	s := &BinanceSource{client: client, pacer: pacer, l: l}
	s.retrier = retrier.New(
		retrier.WithRetryIf(clients.IsRetryable),
		retrier.WithOnRetry(func(attempt int, err error, wait time.Duration) {
			l.Warn("retrying klines request", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
		}),
	)
	return s
}

// FetchCandle returns the latest candle of symbol opening at or before endTime.
func (s *BinanceSource) FetchCandle(ctx context.Context, symbol, interval string, endTime int64) (domain.Candle, error) {
	klines, err := retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) ([]*binance.Kline, error) {
		if err := s.pacer.Wait(ctx); err != nil {
			return nil, err
		}
		return s.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			EndTime(endTime).
			Limit(1).
			Do(ctx)
	})
	if err != nil {
		if clients.IsInvalidSymbol(err) {
			return domain.Candle{}, errors.Wrapf(domain.ErrSymbolNotFound, "klines %s", symbol)
		}
		return domain.Candle{}, errors.Wrapf(err, "failed to fetch klines from Binance for %s", symbol)
	}
	if len(klines) == 0 {
		return domain.Candle{}, errors.Wrapf(domain.ErrSymbolNotFound, "no klines for %s before %d", symbol, endTime)
	}

	return toCandle(symbol, interval, klines[len(klines)-1])
}

func toCandle(symbol, interval string, k *binance.Kline) (domain.Candle, error) {
	c := domain.Candle{
		Symbol:     symbol,
		Interval:   interval,
		OpenTime:   k.OpenTime,
		CloseTime:  k.CloseTime,
		TradeCount: k.TradeNum,
	}

	fields := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"open", k.Open, &c.Open},
		{"high", k.High, &c.High},
		{"low", k.Low, &c.Low},
		{"close", k.Close, &c.Close},
		{"volume", k.Volume, &c.BaseVolume},
		{"quote volume", k.QuoteAssetVolume, &c.QuoteVolume},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.value)
		if err != nil {
			return domain.Candle{}, errors.Wrapf(err, "failed to parse %s of %s kline at %d", f.name, symbol, k.OpenTime)
		}
		*f.dst = v
	}
	return c, nil
}
