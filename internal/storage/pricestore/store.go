// Package pricestore persists resolved prices and fetched candles in SQLite.
package pricestore

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vadiminshakov/binstatement/internal/domain"
	"github.com/vadiminshakov/binstatement/internal/storage/sqlitedb"
)

// priceRow memoized price; a null Price marks a never-known price.
type priceRow struct {
	Bucket int64               `gorm:"primaryKey;autoIncrement:false"`
	Base   string              `gorm:"primaryKey;size:32"`
	Quote  string              `gorm:"primaryKey;size:32"`
	Price  decimal.NullDecimal `gorm:"type:text"`
}

func (priceRow) TableName() string { return "prices" }

type candleRow struct {
	Bucket      int64  `gorm:"primaryKey;autoIncrement:false"`
	Symbol      string `gorm:"primaryKey;size:32"`
	Interval    string `gorm:"primaryKey;size:8"`
	OpenTime    int64
	CloseTime   int64
	Open        decimal.Decimal `gorm:"type:text"`
	High        decimal.Decimal `gorm:"type:text"`
	Low         decimal.Decimal `gorm:"type:text"`
	Close       decimal.Decimal `gorm:"type:text"`
	QuoteVolume decimal.Decimal `gorm:"type:text"`
	BaseVolume  decimal.Decimal `gorm:"type:text"`
	TradeCount  int64
}

func (candleRow) TableName() string { return "candles" }

// Store SQLite-backed price cache store.
type Store struct {
	db *gorm.DB
}

// Open opens the price cache database at path.
func Open(path string) (*Store, error) {
	db, err := sqlitedb.Open(path, &priceRow{}, &candleRow{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// GetPrice returns the memoized price for the bucket and pair.
func (s *Store) GetPrice(ctx context.Context, bucket int64, base, quote string) (domain.Price, bool, error) {
	var row priceRow
	err := s.db.WithContext(ctx).
		Where("bucket = ? AND base = ? AND quote = ?", bucket, base, quote).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Price{}, false, nil
	}
	if err != nil {
		return domain.Price{}, false, errors.Wrap(err, "select price")
	}

	if !row.Price.Valid {
		return domain.UnavailablePrice(), true, nil
	}
	return domain.KnownPrice(row.Price.Decimal), true, nil
}

// PutPrice memoizes a known or never-known price. Pending prices are rejected.
func (s *Store) PutPrice(ctx context.Context, bucket int64, base, quote string, price domain.Price) error {
	if price.IsPending() {
		return errors.Errorf("refusing to store pending price %s/%s", base, quote)
	}
	row := priceRow{
		Bucket: bucket,
		Base:   base,
		Quote:  quote,
		Price:  price.Nullable(),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	return errors.Wrap(err, "upsert price")
}

// GetCandle returns the stored candle for the bucket.
func (s *Store) GetCandle(ctx context.Context, bucket int64, symbol, interval string) (domain.Candle, bool, error) {
	var row candleRow
	err := s.db.WithContext(ctx).
		Where("bucket = ? AND symbol = ? AND interval = ?", bucket, symbol, interval).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Candle{}, false, nil
	}
	if err != nil {
		return domain.Candle{}, false, errors.Wrap(err, "select candle")
	}

	return domain.Candle{
		Symbol:      row.Symbol,
		Interval:    row.Interval,
		OpenTime:    row.OpenTime,
		CloseTime:   row.CloseTime,
		Open:        row.Open,
		High:        row.High,
		Low:         row.Low,
		Close:       row.Close,
		QuoteVolume: row.QuoteVolume,
		BaseVolume:  row.BaseVolume,
		TradeCount:  row.TradeCount,
	}, true, nil
}

// PutCandle stores a closed candle under the bucket.
func (s *Store) PutCandle(ctx context.Context, bucket int64, c domain.Candle) error {
	row := candleRow{
		Bucket:      bucket,
		Symbol:      c.Symbol,
		Interval:    c.Interval,
		OpenTime:    c.OpenTime,
		CloseTime:   c.CloseTime,
		Open:        c.Open,
		High:        c.High,
		Low:         c.Low,
		Close:       c.Close,
		QuoteVolume: c.QuoteVolume,
		BaseVolume:  c.BaseVolume,
		TradeCount:  c.TradeCount,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	return errors.Wrap(err, "upsert candle")
}

// Close closes the database.
func (s *Store) Close() error {
	return sqlitedb.Close(s.db)
}
