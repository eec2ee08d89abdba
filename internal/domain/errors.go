package domain

import "github.com/pkg/errors"

var (
	// ErrSymbolNotFound is returned by candle sources when the exchange does not list a symbol.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrOutOfOrder is returned when a record stream violates its ascending timestamp order.
	ErrOutOfOrder = errors.New("record stream is out of order")
)
