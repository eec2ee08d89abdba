package domain

import "github.com/shopspring/decimal"

// Lot quantity of an asset acquired at one time with its cost basis.
type Lot struct {
	Quantity decimal.Decimal `json:"quantity"`
	// CostBasisPrice cost per unit in the unit of account, null when unknown.
	CostBasisPrice decimal.NullDecimal `json:"cost_basis_price"`
	Source         string              `json:"source"`
	// AcquiredAt UTC epoch milliseconds, 0 when unknown.
	AcquiredAt int64 `json:"acquired_at,omitempty"`
}

// LotSlice part of a lot consumed by a disposal.
type LotSlice struct {
	Asset string `json:"asset"`
	Lot
}

// UnknownSource describes inventory consumed beyond every tracked lot.
const UnknownSource = "unknown source"

// CostBasis returns quantity times cost basis price, null when the price is unknown.
func (l Lot) CostBasis() decimal.NullDecimal {
	if !l.CostBasisPrice.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(l.CostBasisPrice.Decimal.Mul(l.Quantity))
}

// TotalCostBasis sums the cost basis of slices, null when any slice is unknown.
func TotalCostBasis(slices []LotSlice) decimal.NullDecimal {
	total := decimal.Zero
	for _, s := range slices {
		cb := s.CostBasis()
		if !cb.Valid {
			return decimal.NullDecimal{}
		}
		total = total.Add(cb.Decimal)
	}
	return decimal.NewNullDecimal(total)
}
