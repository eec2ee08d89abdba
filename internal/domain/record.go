package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordKind identifies a raw account record stream. The numeric order is the
// merge priority used when records of different streams share a timestamp.
type RecordKind int

const (
	RecordKindFill RecordKind = iota
	RecordKindDeposit
	RecordKindWithdrawal
	RecordKindBalanceCheckpoint
)

// String returns the string representation of the record kind.
func (k RecordKind) String() string {
	switch k {
	case RecordKindFill:
		return "fill"
	case RecordKindDeposit:
		return "deposit"
	case RecordKindWithdrawal:
		return "withdrawal"
	case RecordKindBalanceCheckpoint:
		return "balance"
	default:
		return "unknown"
	}
}

const (
	// DepositStatusPending marks a deposit that has not been credited yet.
	DepositStatusPending = 0
	// WithdrawalStatusCompleted marks a withdrawal that left the account.
	WithdrawalStatusCompleted = 6
)

// Record raw account record. Implementations: *Fill, *Deposit, *Withdrawal, *BalanceCheckpoint.
type Record interface {
	// Kind returns the stream the record belongs to.
	Kind() RecordKind
	// EffectiveTimestamp returns the UTC epoch milliseconds used for ordering.
	EffectiveTimestamp() int64

	isRecord()
}

// Fill single execution of an order.
type Fill struct {
	ID              int64
	BaseAsset       string
	QuoteAsset      string
	Symbol          string
	OrderID         int64
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	Commission      decimal.Decimal
	CommissionAsset string
	UTCTimestamp    int64
	IsBuyer         bool
	IsMaker         bool
}

// Deposit asset credited from outside the exchange.
type Deposit struct {
	UTCTimestamp int64
	Asset        string
	Amount       decimal.Decimal
	Status       int
}

// Withdrawal asset sent out of the exchange.
type Withdrawal struct {
	UTCTimestamp int64
	Asset        string
	Amount       decimal.Decimal
	Address      string
	Status       int
}

// BalanceCheckpoint exchange-reported balance of one asset.
type BalanceCheckpoint struct {
	// RecordTimestamp day bucket the checkpoint was filed under.
	RecordTimestamp int64
	// CollectionTime moment the balance was read, used as the effective timestamp.
	CollectionTime int64
	Asset          string
	Free           decimal.Decimal
	Locked         decimal.Decimal
}

func (*Fill) Kind() RecordKind              { return RecordKindFill }
func (*Deposit) Kind() RecordKind           { return RecordKindDeposit }
func (*Withdrawal) Kind() RecordKind        { return RecordKindWithdrawal }
func (*BalanceCheckpoint) Kind() RecordKind { return RecordKindBalanceCheckpoint }

func (f *Fill) EffectiveTimestamp() int64              { return f.UTCTimestamp }
func (d *Deposit) EffectiveTimestamp() int64           { return d.UTCTimestamp }
func (w *Withdrawal) EffectiveTimestamp() int64        { return w.UTCTimestamp }
func (b *BalanceCheckpoint) EffectiveTimestamp() int64 { return b.CollectionTime }

func (*Fill) isRecord()              {}
func (*Deposit) isRecord()           {}
func (*Withdrawal) isRecord()        {}
func (*BalanceCheckpoint) isRecord() {}

// Total returns free plus locked.
func (b *BalanceCheckpoint) Total() decimal.Decimal {
	return b.Free.Add(b.Locked)
}

// MillisToTime converts UTC epoch milliseconds to time.Time.
func MillisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
