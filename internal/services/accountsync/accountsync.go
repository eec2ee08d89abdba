// Package accountsync copies the account history from Binance into the local record store.
package accountsync

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/binstatement/internal/clients"
	"github.com/vadiminshakov/binstatement/internal/domain"
	"github.com/vadiminshakov/binstatement/internal/metrics"
	"github.com/vadiminshakov/binstatement/pkg/retrier"
)

const (
	// balances are filed under one record per day
	recordingInterval = 24 * time.Hour
	applyTimeLayout   = "2006-01-02 15:04:05"
)

// RecordStore persists raw account records.
type RecordStore interface {
	LogFill(ctx context.Context, f *domain.Fill) error
	LogDeposit(ctx context.Context, d *domain.Deposit) error
	LogWithdrawal(ctx context.Context, w *domain.Withdrawal) error
	LogBalanceSnapshot(ctx context.Context, checkpoints []domain.BalanceCheckpoint) error
	MostRecentFillID(ctx context.Context, symbol string) (int64, error)
	MostRecentDepositTime(ctx context.Context) (int64, error)
	MostRecentWithdrawalTime(ctx context.Context) (int64, error)
}

// Synchronizer pulls balances, transfers and fills from Binance.
type Synchronizer struct {
	client  *binance.Client
	store   RecordStore
	pacer   *clients.Pacer
	retrier *retrier.Retrier
	clock   func() time.Time
	l       *zap.Logger
}

// Option configures the Synchronizer.
type Option func(*Synchronizer)

// WithClock sets the time source used for balance snapshots.
func WithClock(clock func() time.Time) Option {
	return func(s *Synchronizer) {
		s.clock = clock
	}
}

// WithRetrier replaces the retry policy for exchange calls.
func WithRetrier(r *retrier.Retrier) Option {
	return func(s *Synchronizer) {
		s.retrier = r
	}
}

// New creates a synchronizer.
func New(client *binance.Client, store RecordStore, pacer *clients.Pacer, l *zap.Logger, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		client: client,
		store:  store,
		pacer:  pacer,
		clock:  time.Now,
		l:      l,
	}
	s.retrier = retrier.New(
		retrier.WithRetryIf(clients.IsRetryable),
		retrier.WithOnRetry(func(attempt int, err error, wait time.Duration) {
			l.Warn("retrying Binance request", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
		}),
	)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// call paces and retries one exchange request.
func call[T any](ctx context.Context, s *Synchronizer, fn func(ctx context.Context) (T, error)) (T, error) {
	return retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) (T, error) {
		if err := s.pacer.Wait(ctx); err != nil {
			var zero T
			return zero, err
		}
		return fn(ctx)
	})
}

// Run takes a balance snapshot, synchronizes deposits and withdrawals and,
// when withFills is set, the trade history of every listed symbol. It returns
// the display precision derived from the exchange filters.
func (s *Synchronizer) Run(ctx context.Context, withFills bool) (domain.Precision, error) {
	if err := s.TakeBalanceSnapshot(ctx); err != nil {
		return domain.Precision{}, err
	}
	if err := s.SyncDeposits(ctx); err != nil {
		return domain.Precision{}, err
	}
	if err := s.SyncWithdrawals(ctx); err != nil {
		return domain.Precision{}, err
	}

	info, err := call(ctx, s, func(ctx context.Context) (*binance.ExchangeInfo, error) {
		return s.client.NewExchangeInfoService().Do(ctx)
	})
	if err != nil {
		return domain.Precision{}, errors.Wrap(err, "failed to get exchange info")
	}
	if withFills {
		if err := s.SyncFills(ctx, info.Symbols); err != nil {
			return domain.Precision{}, err
		}
	}
	return PrecisionTable(info.Symbols), nil
}

// TakeBalanceSnapshot stores the current balances under today's record timestamp.
func (s *Synchronizer) TakeBalanceSnapshot(ctx context.Context) error {
	now := s.clock().UTC()
	collectionTime := now.UnixMilli()
	day := recordingInterval.Milliseconds()
	recordTimestamp := (collectionTime + day/2) / day * day

	account, err := call(ctx, s, func(ctx context.Context) (*binance.Account, error) {
		return s.client.NewGetAccountService().Do(ctx)
	})
	if err != nil {
		return errors.Wrap(err, "failed to get account info")
	}

	checkpoints := make([]domain.BalanceCheckpoint, 0, len(account.Balances))
	for _, b := range account.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			return errors.Wrapf(err, "failed to parse free balance of %s", b.Asset)
		}
		locked, err := decimal.NewFromString(b.Locked)
		if err != nil {
			return errors.Wrapf(err, "failed to parse locked balance of %s", b.Asset)
		}
		checkpoints = append(checkpoints, domain.BalanceCheckpoint{
			RecordTimestamp: recordTimestamp,
			CollectionTime:  collectionTime,
			Asset:           b.Asset,
			Free:            free,
			Locked:          locked,
		})
	}

	s.l.Debug("taking balance snapshot",
		zap.Int64("record_timestamp", recordTimestamp),
		zap.Int64("collection_time", collectionTime),
		zap.Int("assets", len(checkpoints)))
	if err := s.store.LogBalanceSnapshot(ctx, checkpoints); err != nil {
		return err
	}
	metrics.RecordsSynced.WithLabelValues(domain.RecordKindBalanceCheckpoint.String()).Add(float64(len(checkpoints)))
	return nil
}

// SyncDeposits stores deposits newer than the most recent stored one.
func (s *Synchronizer) SyncDeposits(ctx context.Context) error {
	mostRecent, err := s.store.MostRecentDepositTime(ctx)
	if err != nil {
		return err
	}

	for {
		list, err := call(ctx, s, func(ctx context.Context) ([]*binance.Deposit, error) {
			return s.client.NewListDepositsService().StartTime(mostRecent).Do(ctx)
		})
		if err != nil {
			return errors.Wrap(err, "failed to list deposits")
		}

		newRecords := false
		for _, rec := range list {
			amount, err := decimal.NewFromString(rec.Amount)
			if err != nil {
				return errors.Wrapf(err, "failed to parse deposit amount %q", rec.Amount)
			}
			if rec.InsertTime > mostRecent {
				mostRecent = rec.InsertTime
				newRecords = true
			}

			s.l.Debug("logging deposit", zap.String("amount", rec.Amount), zap.String("asset", rec.Coin), zap.Int64("ts", rec.InsertTime))
			if err := s.store.LogDeposit(ctx, &domain.Deposit{
				UTCTimestamp: rec.InsertTime,
				Asset:        rec.Coin,
				Amount:       amount,
				Status:       rec.Status,
			}); err != nil {
				return err
			}
			metrics.RecordsSynced.WithLabelValues(domain.RecordKindDeposit.String()).Inc()
		}
		if !newRecords {
			return nil
		}
	}
}

// SyncWithdrawals stores withdrawals newer than the most recent stored one.
func (s *Synchronizer) SyncWithdrawals(ctx context.Context) error {
	mostRecent, err := s.store.MostRecentWithdrawalTime(ctx)
	if err != nil {
		return err
	}

	for {
		list, err := call(ctx, s, func(ctx context.Context) ([]*binance.Withdraw, error) {
			return s.client.NewListWithdrawsService().StartTime(mostRecent).Do(ctx)
		})
		if err != nil {
			return errors.Wrap(err, "failed to list withdrawals")
		}

		newRecords := false
		for _, rec := range list {
			applied, err := time.ParseInLocation(applyTimeLayout, rec.ApplyTime, time.UTC)
			if err != nil {
				return errors.Wrapf(err, "failed to parse withdrawal time %q", rec.ApplyTime)
			}
			amount, err := decimal.NewFromString(rec.Amount)
			if err != nil {
				return errors.Wrapf(err, "failed to parse withdrawal amount %q", rec.Amount)
			}
			ts := applied.UnixMilli()
			if ts > mostRecent {
				mostRecent = ts
				newRecords = true
			}

			s.l.Debug("logging withdrawal", zap.String("amount", rec.Amount), zap.String("asset", rec.Coin), zap.Int64("ts", ts))
			if err := s.store.LogWithdrawal(ctx, &domain.Withdrawal{
				UTCTimestamp: ts,
				Asset:        rec.Coin,
				Amount:       amount,
				Address:      rec.Address,
				Status:       rec.Status,
			}); err != nil {
				return err
			}
			metrics.RecordsSynced.WithLabelValues(domain.RecordKindWithdrawal.String()).Inc()
		}
		if !newRecords {
			return nil
		}
	}
}

// SyncFills stores the trade history of each symbol, resuming after the most recent stored trade id.
func (s *Synchronizer) SyncFills(ctx context.Context, symbols []binance.Symbol) error {
	for i, sym := range symbols {
		s.l.Debug("synchronizing fills",
			zap.String("symbol", sym.Symbol),
			zap.Int("progress_pct", i*100/len(symbols)))

		if err := s.syncSymbolFills(ctx, sym); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synchronizer) syncSymbolFills(ctx context.Context, sym binance.Symbol) error {
	mostRecent, err := s.store.MostRecentFillID(ctx, sym.Symbol)
	if err != nil {
		return err
	}

	for {
		trades, err := call(ctx, s, func(ctx context.Context) ([]*binance.TradeV3, error) {
			return s.client.NewListTradesService().Symbol(sym.Symbol).FromID(mostRecent).Do(ctx)
		})
		if err != nil {
			return errors.Wrapf(err, "failed to list trades of %s", sym.Symbol)
		}

		newRecords := false
		for _, t := range trades {
			fill, err := toFill(sym, t)
			if err != nil {
				return err
			}
			if t.ID > mostRecent {
				mostRecent = t.ID
				newRecords = true
			}

			s.l.Debug("logging fill",
				zap.String("symbol", sym.Symbol),
				zap.String("qty", t.Quantity),
				zap.String("price", t.Price),
				zap.Int64("ts", t.Time))
			if err := s.store.LogFill(ctx, fill); err != nil {
				return err
			}
			metrics.RecordsSynced.WithLabelValues(domain.RecordKindFill.String()).Inc()
		}
		if !newRecords {
			return nil
		}
	}
}

func toFill(sym binance.Symbol, t *binance.TradeV3) (*domain.Fill, error) {
	price, err := decimal.NewFromString(t.Price)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse price of %s trade %d", sym.Symbol, t.ID)
	}
	qty, err := decimal.NewFromString(t.Quantity)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse quantity of %s trade %d", sym.Symbol, t.ID)
	}
	commission, err := decimal.NewFromString(t.Commission)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse commission of %s trade %d", sym.Symbol, t.ID)
	}

	return &domain.Fill{
		ID:              t.ID,
		BaseAsset:       sym.BaseAsset,
		QuoteAsset:      sym.QuoteAsset,
		Symbol:          sym.Symbol,
		OrderID:         t.OrderID,
		Price:           price,
		Quantity:        qty,
		Commission:      commission,
		CommissionAsset: t.CommissionAsset,
		UTCTimestamp:    t.Time,
		IsBuyer:         t.IsBuyer,
		IsMaker:         t.IsMaker,
	}, nil
}

// PrecisionTable derives display precision from LOT_SIZE step sizes (base asset
// quantities) and PRICE_FILTER tick sizes (quote asset prices).
func PrecisionTable(symbols []binance.Symbol) domain.Precision {
	p := domain.NewPrecision()
	for _, sym := range symbols {
		if f := sym.LotSizeFilter(); f != nil {
			domain.ObserveStep(p.Quantity, sym.BaseAsset, f.StepSize)
		}
		if f := sym.PriceFilter(); f != nil {
			domain.ObserveStep(p.Price, sym.QuoteAsset, f.TickSize)
		}
	}
	return p
}
