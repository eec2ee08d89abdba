package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// EventType kind of statement event.
type EventType int

const (
	EventSnapshot EventType = iota
	EventBuy
	EventSell
	EventDeposit
	EventWithdrawal
	EventCredit
	EventDebit
	EventBuyAggregation
	EventSellAggregation
)

var eventTypeNames = map[EventType]string{
	EventSnapshot:        "snapshot",
	EventBuy:             "buy",
	EventSell:            "sell",
	EventDeposit:         "deposit",
	EventWithdrawal:      "withdrawal",
	EventCredit:          "credit",
	EventDebit:           "debit",
	EventBuyAggregation:  "buy_aggregation",
	EventSellAggregation: "sell_aggregation",
}

// String returns the string representation of the event type.
func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (t EventType) MarshalText() ([]byte, error) {
	if _, ok := eventTypeNames[t]; !ok {
		return nil, errors.Errorf("unknown event type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *EventType) UnmarshalText(text []byte) error {
	for k, name := range eventTypeNames {
		if name == string(text) {
			*t = k
			return nil
		}
	}
	return errors.Errorf("unknown event type %q", string(text))
}

// IsFill reports whether the type is a single buy or sell fill.
func (t EventType) IsFill() bool {
	return t == EventBuy || t == EventSell
}

// Event statement event. Exactly one payload matches the type:
// Trade for buy/sell, Transfer for deposit/withdrawal/credit/debit,
// Aggregation for buy/sell aggregations; snapshots carry none.
type Event struct {
	Timestamp int64     `json:"ts"`
	Type      EventType `json:"type"`
	// TotalPortfolioValue is null when some held asset's price is not known yet.
	TotalPortfolioValue decimal.NullDecimal `json:"total_portfolio_value"`
	// Composition value per positively-balanced asset.
	Composition map[string]Price `json:"composition"`

	Trade       *TradeDetails       `json:"trade,omitempty"`
	Transfer    *TransferDetails    `json:"transfer,omitempty"`
	Aggregation *AggregationDetails `json:"aggregation,omitempty"`
}

// TradeDetails payload of buy and sell events.
type TradeDetails struct {
	FillID          int64           `json:"fill_id"`
	BaseAsset       string          `json:"base_asset"`
	QuoteAsset      string          `json:"quote_asset"`
	Market          string          `json:"market"`
	OrderID         int64           `json:"order_id"`
	Price           decimal.Decimal `json:"price"`
	Quantity        decimal.Decimal `json:"quantity"`
	Commission      decimal.Decimal `json:"commission"`
	CommissionAsset string          `json:"commission_asset"`
	// CommissionDebitedFromProceeds is false when the commission came from a separate holding.
	CommissionDebitedFromProceeds bool                `json:"commission_debited_from_proceeds"`
	IsMaker                       bool                `json:"is_maker"`
	CommissionValue               decimal.NullDecimal `json:"commission_value"`
	CommissionCost                decimal.NullDecimal `json:"commission_cost"`
	Value                         decimal.NullDecimal `json:"value"`
	Lots                          []LotSlice          `json:"lots"`
}

// TransferDetails payload of deposit, withdrawal, credit and debit events.
type TransferDetails struct {
	Asset   string              `json:"asset"`
	Amount  decimal.Decimal     `json:"amount"`
	Value   decimal.NullDecimal `json:"value"`
	Address string              `json:"address,omitempty"`
	Lots    []LotSlice          `json:"lots,omitempty"`
}

// AggregationDetails payload of an order aggregated from consecutive fills.
type AggregationDetails struct {
	BaseAsset       string              `json:"base_asset"`
	QuoteAsset      string              `json:"quote_asset"`
	Market          string              `json:"market"`
	OrderID         int64               `json:"order_id"`
	Quantity        decimal.Decimal     `json:"quantity"`
	Price           decimal.Decimal     `json:"price"`
	CommissionValue decimal.NullDecimal `json:"commission_value"`
	CommissionCost  decimal.NullDecimal `json:"commission_cost"`
	Value           decimal.NullDecimal `json:"value"`
	Fills           []Event             `json:"fills"`
}

// Asset returns the primary asset of the event, empty for snapshots.
func (e Event) Asset() string {
	switch {
	case e.Trade != nil:
		return e.Trade.BaseAsset
	case e.Transfer != nil:
		return e.Transfer.Asset
	case e.Aggregation != nil:
		return e.Aggregation.BaseAsset
	}
	return ""
}
