package records

import (
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/binstatement/internal/domain"
)

type fillRow struct {
	Symbol          string          `gorm:"column:symbol;primaryKey;size:32"`
	ID              int64           `gorm:"column:id;primaryKey;autoIncrement:false"`
	BaseAsset       string          `gorm:"column:base_asset;size:32"`
	QuoteAsset      string          `gorm:"column:quote_asset;size:32"`
	OrderID         int64           `gorm:"column:order_id"`
	Price           decimal.Decimal `gorm:"column:price;type:text"`
	Quantity        decimal.Decimal `gorm:"column:quantity;type:text"`
	Commission      decimal.Decimal `gorm:"column:commission;type:text"`
	CommissionAsset string          `gorm:"column:commission_asset;size:32"`
	UTCTimestamp    int64           `gorm:"column:utc_timestamp;index"`
	IsBuyer         bool            `gorm:"column:is_buyer"`
	IsMaker         bool            `gorm:"column:is_maker"`
}

func (fillRow) TableName() string { return "fills" }

func (r *fillRow) record() domain.Record {
	return &domain.Fill{
		ID:              r.ID,
		BaseAsset:       r.BaseAsset,
		QuoteAsset:      r.QuoteAsset,
		Symbol:          r.Symbol,
		OrderID:         r.OrderID,
		Price:           r.Price,
		Quantity:        r.Quantity,
		Commission:      r.Commission,
		CommissionAsset: r.CommissionAsset,
		UTCTimestamp:    r.UTCTimestamp,
		IsBuyer:         r.IsBuyer,
		IsMaker:         r.IsMaker,
	}
}

type depositRow struct {
	UTCTimestamp int64           `gorm:"column:utc_timestamp;primaryKey;autoIncrement:false"`
	Asset        string          `gorm:"column:asset;primaryKey;size:32"`
	Amount       decimal.Decimal `gorm:"column:amount;primaryKey;type:text"`
	Status       int             `gorm:"column:status"`
}

func (depositRow) TableName() string { return "deposits" }

func (r *depositRow) record() domain.Record {
	return &domain.Deposit{
		UTCTimestamp: r.UTCTimestamp,
		Asset:        r.Asset,
		Amount:       r.Amount,
		Status:       r.Status,
	}
}

type withdrawalRow struct {
	UTCTimestamp int64           `gorm:"column:utc_timestamp;primaryKey;autoIncrement:false"`
	Asset        string          `gorm:"column:asset;primaryKey;size:32"`
	Amount       decimal.Decimal `gorm:"column:amount;primaryKey;type:text"`
	Address      string          `gorm:"column:address;primaryKey"`
	Status       int             `gorm:"column:status"`
}

func (withdrawalRow) TableName() string { return "withdrawals" }

func (r *withdrawalRow) record() domain.Record {
	return &domain.Withdrawal{
		UTCTimestamp: r.UTCTimestamp,
		Asset:        r.Asset,
		Amount:       r.Amount,
		Address:      r.Address,
		Status:       r.Status,
	}
}

// balanceRow one asset of a daily balance snapshot; a later collection replaces the day's row.
type balanceRow struct {
	RecordTimestamp int64           `gorm:"column:record_timestamp;primaryKey;autoIncrement:false"`
	Asset           string          `gorm:"column:asset;primaryKey;size:32"`
	CollectionTime  int64           `gorm:"column:collection_time;index"`
	Free            decimal.Decimal `gorm:"column:free;type:text"`
	Locked          decimal.Decimal `gorm:"column:locked;type:text"`
}

func (balanceRow) TableName() string { return "balances" }

func (r *balanceRow) record() domain.Record {
	return &domain.BalanceCheckpoint{
		RecordTimestamp: r.RecordTimestamp,
		CollectionTime:  r.CollectionTime,
		Asset:           r.Asset,
		Free:            r.Free,
		Locked:          r.Locked,
	}
}
