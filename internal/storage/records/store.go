// Package records stores raw account records in SQLite and serves them as
// time-ordered streams for replay.
package records

import (
	"context"
	"iter"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vadiminshakov/binstatement/internal/domain"
	"github.com/vadiminshakov/binstatement/internal/merger"
	"github.com/vadiminshakov/binstatement/internal/storage/sqlitedb"
)

const defaultPageSize = 500

// Store SQLite-backed record store.
type Store struct {
	db       *gorm.DB
	pageSize int
}

// Option configures the Store.
type Option func(*Store)

// WithPageSize sets how many rows a stream reads per query.
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// Open opens the record database at path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sqlitedb.Open(path, &fillRow{}, &depositRow{}, &withdrawalRow{}, &balanceRow{})
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, pageSize: defaultPageSize}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return sqlitedb.Close(s.db)
}

// Streams returns the four per-kind streams for merging.
func (s *Store) Streams(ctx context.Context) merger.Streams {
	return merger.Streams{
		Fills:       s.Fills(ctx),
		Deposits:    s.Deposits(ctx),
		Withdrawals: s.Withdrawals(ctx),
		Balances:    s.Balances(ctx),
	}
}

// Fills streams fills ascending by timestamp.
func (s *Store) Fills(ctx context.Context) iter.Seq2[domain.Record, error] {
	return paged(ctx, s.db, s.pageSize, "fills", func(tx *gorm.DB, last *fillRow) *gorm.DB {
		tx = tx.Order("utc_timestamp, symbol, id")
		if last != nil {
			tx = tx.Where("(utc_timestamp, symbol, id) > (?, ?, ?)", last.UTCTimestamp, last.Symbol, last.ID)
		}
		return tx
	})
}

// Deposits streams deposits ascending by timestamp.
func (s *Store) Deposits(ctx context.Context) iter.Seq2[domain.Record, error] {
	return paged(ctx, s.db, s.pageSize, "deposits", func(tx *gorm.DB, last *depositRow) *gorm.DB {
		tx = tx.Order("utc_timestamp, asset, amount")
		if last != nil {
			tx = tx.Where("(utc_timestamp, asset, amount) > (?, ?, ?)", last.UTCTimestamp, last.Asset, last.Amount)
		}
		return tx
	})
}

// Withdrawals streams withdrawals ascending by timestamp.
func (s *Store) Withdrawals(ctx context.Context) iter.Seq2[domain.Record, error] {
	return paged(ctx, s.db, s.pageSize, "withdrawals", func(tx *gorm.DB, last *withdrawalRow) *gorm.DB {
		tx = tx.Order("utc_timestamp, asset, amount, address")
		if last != nil {
			tx = tx.Where("(utc_timestamp, asset, amount, address) > (?, ?, ?, ?)",
				last.UTCTimestamp, last.Asset, last.Amount, last.Address)
		}
		return tx
	})
}

// Balances streams balance checkpoints ascending by collection time.
func (s *Store) Balances(ctx context.Context) iter.Seq2[domain.Record, error] {
	return paged(ctx, s.db, s.pageSize, "balances", func(tx *gorm.DB, last *balanceRow) *gorm.DB {
		tx = tx.Order("collection_time, record_timestamp, asset")
		if last != nil {
			tx = tx.Where("(collection_time, record_timestamp, asset) > (?, ?, ?)",
				last.CollectionTime, last.RecordTimestamp, last.Asset)
		}
		return tx
	})
}

type row interface {
	record() domain.Record
}

// paged reads a table page by page with keyset pagination, so no cursor stays
// open between yields and the single connection stays free for other queries.
func paged[R any, P interface {
	*R
	row
}](ctx context.Context, db *gorm.DB, size int, table string, query func(tx *gorm.DB, last *R) *gorm.DB) iter.Seq2[domain.Record, error] {
	return func(yield func(domain.Record, error) bool) {
		var last *R
		for {
			var rows []R
			if err := query(db.WithContext(ctx), last).Limit(size).Find(&rows).Error; err != nil {
				yield(nil, errors.Wrapf(err, "select %s", table))
				return
			}
			for i := range rows {
				if !yield(P(&rows[i]).record(), nil) {
					return
				}
			}
			if len(rows) < size {
				return
			}
			last = &rows[len(rows)-1]
		}
	}
}

// LogFill stores a fill, replacing a previous copy.
func (s *Store) LogFill(ctx context.Context, f *domain.Fill) error {
	row := fillRow{
		Symbol:          domain.NormalizeAsset(f.Symbol),
		ID:              f.ID,
		BaseAsset:       domain.NormalizeAsset(f.BaseAsset),
		QuoteAsset:      domain.NormalizeAsset(f.QuoteAsset),
		OrderID:         f.OrderID,
		Price:           f.Price,
		Quantity:        f.Quantity,
		Commission:      f.Commission,
		CommissionAsset: domain.NormalizeAsset(f.CommissionAsset),
		UTCTimestamp:    f.UTCTimestamp,
		IsBuyer:         f.IsBuyer,
		IsMaker:         f.IsMaker,
	}
	return errors.Wrap(s.upsert(ctx, &row), "store fill")
}

// LogDeposit stores a deposit, replacing a previous copy (status may change).
func (s *Store) LogDeposit(ctx context.Context, d *domain.Deposit) error {
	row := depositRow{
		UTCTimestamp: d.UTCTimestamp,
		Asset:        domain.NormalizeAsset(d.Asset),
		Amount:       d.Amount,
		Status:       d.Status,
	}
	return errors.Wrap(s.upsert(ctx, &row), "store deposit")
}

// LogWithdrawal stores a withdrawal, replacing a previous copy (status may change).
func (s *Store) LogWithdrawal(ctx context.Context, w *domain.Withdrawal) error {
	row := withdrawalRow{
		UTCTimestamp: w.UTCTimestamp,
		Asset:        domain.NormalizeAsset(w.Asset),
		Amount:       w.Amount,
		Address:      w.Address,
		Status:       w.Status,
	}
	return errors.Wrap(s.upsert(ctx, &row), "store withdrawal")
}

// LogBalanceSnapshot stores one balance snapshot of all assets in a single transaction.
func (s *Store) LogBalanceSnapshot(ctx context.Context, checkpoints []domain.BalanceCheckpoint) error {
	if len(checkpoints) == 0 {
		return nil
	}
	rows := make([]balanceRow, 0, len(checkpoints))
	for _, c := range checkpoints {
		rows = append(rows, balanceRow{
			RecordTimestamp: c.RecordTimestamp,
			Asset:           domain.NormalizeAsset(c.Asset),
			CollectionTime:  c.CollectionTime,
			Free:            c.Free,
			Locked:          c.Locked,
		})
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
	})
	return errors.Wrap(err, "store balance snapshot")
}

func (s *Store) upsert(ctx context.Context, row any) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
}

// MostRecentFillID returns the highest stored trade id of symbol, 0 when none.
func (s *Store) MostRecentFillID(ctx context.Context, symbol string) (int64, error) {
	var id int64
	err := s.db.WithContext(ctx).Model(&fillRow{}).
		Select("COALESCE(MAX(id), 0)").
		Where("symbol = ?", domain.NormalizeAsset(symbol)).
		Scan(&id).Error
	return id, errors.Wrap(err, "select most recent fill id")
}

// MostRecentDepositTime returns the latest stored deposit timestamp, 0 when none.
func (s *Store) MostRecentDepositTime(ctx context.Context) (int64, error) {
	return s.maxTimestamp(ctx, &depositRow{}, "deposits")
}

// MostRecentWithdrawalTime returns the latest stored withdrawal timestamp, 0 when none.
func (s *Store) MostRecentWithdrawalTime(ctx context.Context) (int64, error) {
	return s.maxTimestamp(ctx, &withdrawalRow{}, "withdrawals")
}

func (s *Store) maxTimestamp(ctx context.Context, model any, table string) (int64, error) {
	var ts int64
	err := s.db.WithContext(ctx).Model(model).
		Select("COALESCE(MAX(utc_timestamp), 0)").
		Scan(&ts).Error
	return ts, errors.Wrapf(err, "select most recent %s time", table)
}

// Symbols returns every symbol with stored fills.
func (s *Store) Symbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := s.db.WithContext(ctx).Model(&fillRow{}).
		Distinct("symbol").
		Order("symbol").
		Pluck("symbol", &symbols).Error
	return symbols, errors.Wrap(err, "select symbols")
}
