// Package ledger keeps per-asset balances and FIFO lot queues for one replay.
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/binstatement/internal/domain"
)

// Ledger running balances and cost-basis lots. It performs no I/O and is not
// safe for concurrent use; one replay owns one ledger.
type Ledger struct {
	balances map[string]decimal.Decimal
	lots     map[string]*lotQueue
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		balances: make(map[string]decimal.Decimal),
		lots:     make(map[string]*lotQueue),
	}
}

// AdjustBalance adds delta to the asset balance. Balances may go negative.
func (l *Ledger) AdjustBalance(asset string, delta decimal.Decimal) {
	l.balances[asset] = l.balances[asset].Add(delta)
}

// Balance returns the tracked balance of the asset.
func (l *Ledger) Balance(asset string) decimal.Decimal {
	return l.balances[asset]
}

// AssetBalance balance of a single asset.
type AssetBalance struct {
	Asset  string
	Amount decimal.Decimal
}

// PositiveBalances returns every positively-balanced asset sorted by name.
func (l *Ledger) PositiveBalances() []AssetBalance {
	result := make([]AssetBalance, 0, len(l.balances))
	for asset, amount := range l.balances {
		if amount.IsPositive() {
			result = append(result, AssetBalance{Asset: asset, Amount: amount})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Asset < result[j].Asset })
	return result
}

// AddLot appends a lot to the tail of the asset queue. Non-positive quantities are ignored.
func (l *Ledger) AddLot(asset string, quantity decimal.Decimal, costBasisPrice decimal.NullDecimal, source string, acquiredAt int64) {
	if !quantity.IsPositive() {
		return
	}
	q, ok := l.lots[asset]
	if !ok {
		q = &lotQueue{}
		l.lots[asset] = q
	}
	q.push(domain.Lot{
		Quantity:       quantity,
		CostBasisPrice: costBasisPrice,
		Source:         source,
		AcquiredAt:     acquiredAt,
	})
}

// MatchLots consumes amount of the asset oldest lot first. A head lot larger than
// the remaining amount is reduced in place by the consumed portion. When the queue
// runs dry the residual is reported as a slice of unknown source and cost basis.
// The returned slices are copies and sum to amount.
func (l *Ledger) MatchLots(asset string, amount decimal.Decimal) []domain.LotSlice {
	var result []domain.LotSlice
	remaining := amount
	q := l.lots[asset]

	for remaining.IsPositive() {
		if q == nil || q.empty() {
			result = append(result, domain.LotSlice{
				Asset: asset,
				Lot:   domain.Lot{Quantity: remaining, Source: domain.UnknownSource},
			})
			break
		}

		head := q.front()
		if head.Quantity.GreaterThan(remaining) {
			slice := *head
			slice.Quantity = remaining
			result = append(result, domain.LotSlice{Asset: asset, Lot: slice})
			head.Quantity = head.Quantity.Sub(remaining)
			break
		}

		result = append(result, domain.LotSlice{Asset: asset, Lot: *head})
		remaining = remaining.Sub(head.Quantity)
		q.pop()
	}

	return result
}

// Lots returns a copy of the asset queue, oldest first.
func (l *Ledger) Lots(asset string) []domain.Lot {
	q, ok := l.lots[asset]
	if !ok {
		return nil
	}
	return q.snapshot()
}

// LotQuantity returns the summed quantity of the asset queue.
func (l *Ledger) LotQuantity(asset string) decimal.Decimal {
	total := decimal.Zero
	if q, ok := l.lots[asset]; ok {
		for _, lot := range q.items[q.head:] {
			total = total.Add(lot.Quantity)
		}
	}
	return total
}

// Assets returns every asset that has a balance or lots, sorted.
func (l *Ledger) Assets() []string {
	seen := make(map[string]struct{}, len(l.balances))
	for a := range l.balances {
		seen[a] = struct{}{}
	}
	for a := range l.lots {
		seen[a] = struct{}{}
	}
	assets := make([]string, 0, len(seen))
	for a := range seen {
		assets = append(assets, a)
	}
	sort.Strings(assets)
	return assets
}
