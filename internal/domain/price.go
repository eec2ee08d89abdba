package domain

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// PriceState tri-state outcome of a price resolution.
type PriceState int

const (
	// PriceKnown the value is resolved.
	PriceKnown PriceState = iota
	// PricePending the value cannot be determined yet; retry later.
	PricePending
	// PriceUnavailable the value will never be determined.
	PriceUnavailable
)

// String returns the string representation of the state.
func (s PriceState) String() string {
	switch s {
	case PriceKnown:
		return "known"
	case PricePending:
		return "pending"
	case PriceUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Price price (or value) that is known, not yet known, or never known.
type Price struct {
	State PriceState
	Value decimal.Decimal
}

// KnownPrice returns a resolved price.
func KnownPrice(v decimal.Decimal) Price {
	return Price{State: PriceKnown, Value: v}
}

// PendingPrice returns a not-yet-known price.
func PendingPrice() Price {
	return Price{State: PricePending}
}

// UnavailablePrice returns a never-known price.
func UnavailablePrice() Price {
	return Price{State: PriceUnavailable}
}

// IsKnown reports whether the price is resolved.
func (p Price) IsKnown() bool { return p.State == PriceKnown }

// IsPending reports whether the price may become known later.
func (p Price) IsPending() bool { return p.State == PricePending }

// IsUnavailable reports whether the price will never be known.
func (p Price) IsUnavailable() bool { return p.State == PriceUnavailable }

// Mul returns the price multiplied by amount, keeping the state.
func (p Price) Mul(amount decimal.Decimal) Price {
	if !p.IsKnown() {
		return p
	}
	return KnownPrice(p.Value.Mul(amount))
}

// Nullable converts the price to a NullDecimal that is valid only when known.
func (p Price) Nullable() decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: p.Value, Valid: p.IsKnown()}
}

// String returns the value or the state name.
func (p Price) String() string {
	if p.IsKnown() {
		return p.Value.String()
	}
	return p.State.String()
}

const unavailableJSON = `"unavailable"`

// MarshalJSON encodes known prices as decimal strings, pending as null and
// unavailable as the "unavailable" marker.
func (p Price) MarshalJSON() ([]byte, error) {
	switch p.State {
	case PriceKnown:
		return p.Value.MarshalJSON()
	case PricePending:
		return []byte("null"), nil
	default:
		return []byte(unavailableJSON), nil
	}
}

// UnmarshalJSON decodes the representation written by MarshalJSON.
func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*p = PendingPrice()
		return nil
	case bytes.Equal(data, []byte(unavailableJSON)):
		*p = UnavailablePrice()
		return nil
	}

	var v decimal.Decimal
	if err := json.Unmarshal(data, &v); err != nil {
		return errors.Wrap(err, "decode price")
	}
	*p = KnownPrice(v)
	return nil
}
