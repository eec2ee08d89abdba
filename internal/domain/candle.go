package domain

import "github.com/shopspring/decimal"

// CandleInterval1m one-minute candle interval.
const CandleInterval1m = "1m"

// Candle OHLC summary for one interval of a symbol.
type Candle struct {
	Symbol   string
	Interval string
	// OpenTime and CloseTime are UTC epoch milliseconds.
	OpenTime    int64
	CloseTime   int64
	Open        decimal.Decimal
	High        decimal.Decimal
	Low         decimal.Decimal
	Close       decimal.Decimal
	QuoteVolume decimal.Decimal
	BaseVolume  decimal.Decimal
	TradeCount  int64
}

// Mid returns the midpoint of high and low.
func (c Candle) Mid() decimal.Decimal {
	return c.High.Add(c.Low).Div(decimal.NewFromInt(2))
}

// ClosedBefore reports whether the candle closed strictly before nowMs.
func (c Candle) ClosedBefore(nowMs int64) bool {
	return c.CloseTime < nowMs
}
