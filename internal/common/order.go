package common

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Order describes a trading intent. Quantity is the remaining quantity
// and is mutated downward while the order matches; price and side are
// immutable once the order has been accepted.
type Order struct {
	OrderID   string           // Caller-supplied or minted uuid, unique for the engine's lifetime
	Symbol    string           // Venue symbol, e.g. "BTC-USDT"
	OrderType OrderType        //
	Side      Side             //
	Quantity  decimal.Decimal  // Remaining quantity
	Price     *decimal.Decimal // Limit price; optional for market orders, which ignore it
	Timestamp time.Time        // Caller-supplied arrival instant; not read by matching or trades
	UserID    string           // Opaque owner tag, unused by matching
}

// Validate rejects orders that must never reach a book. Arrival order,
// not the Timestamp field, defines time priority, so the timestamp is
// not checked here.
func (o *Order) Validate() error {
	if !o.Quantity.IsPositive() {
		return ErrNonPositiveQuantity
	}
	if o.OrderType.RequiresPrice() && o.Price == nil {
		return ErrMissingPrice
	}
	return nil
}

func (o Order) String() string {
	price := "-"
	if o.Price != nil {
		price = o.Price.String()
	}
	return fmt.Sprintf("%s %s %s %s %s@%s",
		o.OrderID, o.Symbol, o.OrderType, o.Side, o.Quantity, price)
}
