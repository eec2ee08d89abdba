package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Precision number of decimal places used to display quantities and prices per asset.
type Precision struct {
	Quantity map[string]int32
	Price    map[string]int32
}

// NewPrecision creates an empty precision table.
func NewPrecision() Precision {
	return Precision{Quantity: map[string]int32{}, Price: map[string]int32{}}
}

// ObserveStep records the decimal places of an exchange step (for example "0.00100000")
// into table, keeping the finest step seen for asset.
func ObserveStep(table map[string]int32, asset, step string) {
	places := int32(0)
	if i := strings.IndexByte(step, '.'); i >= 0 {
		places = int32(len(strings.TrimRight(step[i+1:], "0")))
	}
	asset = NormalizeAsset(asset)
	table[asset] = max(table[asset], places)
}

// FormatQuantity formats an amount of asset with its quantity precision.
func (p Precision) FormatQuantity(asset string, v decimal.Decimal) string {
	return format(p.Quantity, asset, v)
}

// FormatPrice formats a value denominated in asset with its price precision.
func (p Precision) FormatPrice(asset string, v decimal.Decimal) string {
	return format(p.Price, asset, v)
}

func format(table map[string]int32, asset string, v decimal.Decimal) string {
	places, ok := table[NormalizeAsset(asset)]
	if !ok {
		return v.String()
	}
	return v.StringFixed(places)
}
