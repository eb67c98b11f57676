package engine

import (
	"github.com/shopspring/decimal"

	"vidar/internal/common"
)

// PriceLevel holds all resting orders at one price on one side of one
// symbol, queued in arrival order. TotalQuantity caches the sum of the
// remaining quantities of the queued orders and must equal that sum at
// all times; it is zero iff the queue is empty.
type PriceLevel struct {
	Price         decimal.Decimal
	Orders        []*common.Order
	TotalQuantity decimal.Decimal
}

// NewPriceLevel creates an empty level at the given price.
func NewPriceLevel(price decimal.Decimal) *PriceLevel {
	return &PriceLevel{Price: price, TotalQuantity: decimal.Zero}
}

// Append adds an order to the tail of the queue. Appending an order
// with a non-positive remaining quantity is a precondition violation.
func (l *PriceLevel) Append(order *common.Order) {
	l.Orders = append(l.Orders, order)
	l.TotalQuantity = l.TotalQuantity.Add(order.Quantity)
}

// PeekFront returns the head of the queue, or nil if empty.
func (l *PriceLevel) PeekFront() *common.Order {
	if len(l.Orders) == 0 {
		return nil
	}
	return l.Orders[0]
}

// PopFront removes and returns the head of the queue, decrementing
// TotalQuantity by the head's remaining quantity as recorded at pop
// time. Returns nil if the queue is empty.
func (l *PriceLevel) PopFront() *common.Order {
	if len(l.Orders) == 0 {
		return nil
	}
	order := l.Orders[0]
	l.Orders = l.Orders[1:]
	l.TotalQuantity = l.TotalQuantity.Sub(order.Quantity)
	return order
}

// DecrementFront subtracts delta from the head order's remaining
// quantity and from TotalQuantity. The caller must ensure delta does
// not exceed the head's remaining quantity, and must pop the head
// before the next match iteration if its remainder reaches zero.
func (l *PriceLevel) DecrementFront(delta decimal.Decimal) {
	head := l.Orders[0]
	head.Quantity = head.Quantity.Sub(delta)
	l.TotalQuantity = l.TotalQuantity.Sub(delta)
}

// Empty reports whether no orders rest at this level.
func (l *PriceLevel) Empty() bool {
	return len(l.Orders) == 0
}
