// Package combiner folds consecutive fills of one order into a single aggregated trade event.
package combiner

import (
	"iter"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/binstatement/internal/domain"
)

// Combine groups consecutive buy/sell events sharing an order id into one
// buy/sell aggregation. Other events pass through after any pending flush.
func Combine(events iter.Seq2[domain.Event, error]) iter.Seq2[domain.Event, error] {
	return func(yield func(domain.Event, error) bool) {
		var buffer []domain.Event

		flush := func() bool {
			if len(buffer) == 0 {
				return true
			}
			ev := aggregate(buffer)
			buffer = nil
			return yield(ev, nil)
		}

		for ev, err := range events {
			if err != nil {
				if flush() {
					yield(domain.Event{}, err)
				}
				return
			}

			if ev.Type.IsFill() && ev.Trade != nil {
				if len(buffer) > 0 && buffer[0].Trade.OrderID != ev.Trade.OrderID {
					if !flush() {
						return
					}
				}
				buffer = append(buffer, ev)
				continue
			}

			if !flush() || !yield(ev, nil) {
				return
			}
		}
		flush()
	}
}

// aggregate builds the aggregation event of a non-empty buffer of fills.
func aggregate(fills []domain.Event) domain.Event {
	first, last := fills[0], fills[len(fills)-1]

	typ := domain.EventBuyAggregation
	if first.Type == domain.EventSell {
		typ = domain.EventSellAggregation
	}

	quantity := decimal.Zero
	spend := decimal.Zero
	commissionValue := known(decimal.Zero)
	commissionCost := known(decimal.Zero)
	value := known(decimal.Zero)
	for _, f := range fills {
		quantity = quantity.Add(f.Trade.Quantity)
		spend = spend.Add(f.Trade.Price.Mul(f.Trade.Quantity))
		commissionValue = add(commissionValue, f.Trade.CommissionValue)
		commissionCost = add(commissionCost, f.Trade.CommissionCost)
		value = add(value, f.Trade.Value)
	}

	price := decimal.Zero
	if !quantity.IsZero() {
		price = spend.Div(quantity)
	}

	legs := make([]domain.Event, len(fills))
	copy(legs, fills)

	return domain.Event{
		Timestamp:           last.Timestamp,
		Type:                typ,
		TotalPortfolioValue: last.TotalPortfolioValue,
		Composition:         last.Composition,
		Aggregation: &domain.AggregationDetails{
			BaseAsset:       first.Trade.BaseAsset,
			QuoteAsset:      first.Trade.QuoteAsset,
			Market:          first.Trade.Market,
			OrderID:         first.Trade.OrderID,
			Quantity:        quantity,
			Price:           price,
			CommissionValue: commissionValue,
			CommissionCost:  commissionCost,
			Value:           value,
			Fills:           legs,
		},
	}
}

func known(v decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(v)
}

// add sums nullable values; a null leg makes the sum null.
func add(sum, v decimal.NullDecimal) decimal.NullDecimal {
	if !sum.Valid || !v.Valid {
		return decimal.NullDecimal{}
	}
	return known(sum.Decimal.Add(v.Decimal))
}
