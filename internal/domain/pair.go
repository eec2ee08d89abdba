// Package domain defines the records, lots, prices and statement events shared by the replay pipeline.
package domain

import (
	"fmt"
	"strings"
)

// Pair trading pair on the exchange.
type Pair struct {
	// Base asset symbol.
	Base string
	// Quote asset symbol.
	Quote string
}

// NewPair builds a pair with normalized asset symbols.
func NewPair(base, quote string) Pair {
	return Pair{Base: NormalizeAsset(base), Quote: NormalizeAsset(quote)}
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.Base, p.Quote)
}

// Symbol returns the concatenated exchange symbol.
func (p Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.Base, p.Quote)
}

// Inverse returns the pair with base and quote swapped.
func (p Pair) Inverse() Pair {
	return Pair{Base: p.Quote, Quote: p.Base}
}

// NormalizeAsset upper-cases an asset or symbol name.
func NormalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
