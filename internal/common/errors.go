package common

import "errors"

// Invalid orders are rejected before any book mutation; no partial
// state is ever produced for them.
var (
	ErrMissingPrice        = errors.New("limit-priced order requires a price")
	ErrNonPositiveQuantity = errors.New("quantity must be positive")
	ErrUnknownOrderType    = errors.New("unknown order type")
	ErrUnknownSide         = errors.New("unknown order side")
	ErrMalformedDecimal    = errors.New("malformed decimal value")
	ErrSymbolNotFound      = errors.New("symbol not found")
)
