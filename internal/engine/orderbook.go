package engine

import (
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"vidar/internal/common"
)

// PriceLevels is ordered best-price-first: descending for bids,
// ascending for asks, so Min is always the top of book on either side.
type PriceLevels = btree.BTreeG[*PriceLevel]

// OrderBook is one symbol's book. All mutations must be serialized by
// the caller; the engine holds one lock per book for the duration of a
// match call.
type OrderBook struct {
	symbol string

	bids *PriceLevels
	asks *PriceLevels

	// Top-of-book cache, refreshed after every AddOrder.
	bestBid *decimal.Decimal
	bestAsk *decimal.Decimal
}

func NewOrderBook(symbol string) *OrderBook {
	// Sorted greatest first.
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.GreaterThan(b.Price)
	})
	// Sorted least first.
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.LessThan(b.Price)
	})
	return &OrderBook{
		symbol: symbol,
		bids:   bids,
		asks:   asks,
	}
}

// AddOrder runs the incoming taker against the opposite side in
// price-time priority and returns the trades produced, in the order
// they were produced. A limit residual rests on the taker's own side;
// market/IOC/FOK residuals are dropped. The book is never left crossed.
func (book *OrderBook) AddOrder(order *common.Order) []common.Trade {
	var opposite, own *PriceLevels
	switch order.Side {
	case common.Buy:
		opposite, own = book.asks, book.bids
	case common.Sell:
		opposite, own = book.bids, book.asks
	}

	trades := book.match(order, opposite)

	// A limit residual becomes a resting order at its own price.
	if order.OrderType == common.Limit && order.Quantity.IsPositive() {
		book.rest(order, own)
	}

	book.updateBBO()
	return trades
}

// eligible reports whether a maker level at the given price may match
// the taker. Market takers match any price; limit-priced takers need
// the maker price at or better than their limit.
func eligible(taker *common.Order, makerPrice decimal.Decimal) bool {
	if taker.OrderType == common.Market {
		return true
	}
	if taker.Side == common.Buy {
		return taker.Price.GreaterThanOrEqual(makerPrice)
	}
	return taker.Price.LessThanOrEqual(makerPrice)
}

// match consumes eligible opposite liquidity best price first, FIFO
// within a price. IOC and FOK run their feasibility checks before any
// mutation; an infeasible order leaves the book untouched.
func (book *OrderBook) match(taker *common.Order, opposite *PriceLevels) []common.Trade {
	switch taker.OrderType {
	case common.IOC:
		if !book.hasEligibleMaker(taker, opposite) {
			return nil
		}
	case common.FOK:
		if !book.canFillFully(taker, opposite) {
			return nil
		}
	}

	var trades []common.Trade
	for taker.Quantity.IsPositive() {
		level, ok := opposite.MinMut()
		if !ok || !eligible(taker, level.Price) {
			break
		}

		for !level.Empty() && taker.Quantity.IsPositive() {
			maker := level.PeekFront()
			quantity := decimal.Min(taker.Quantity, maker.Quantity)

			trades = append(trades, common.NewTrade(
				book.symbol, level.Price, quantity,
				taker.Side, maker.OrderID, taker.OrderID,
			))

			taker.Quantity = taker.Quantity.Sub(quantity)
			level.DecrementFront(quantity)
			if maker.Quantity.IsZero() {
				level.PopFront()
			}
		}

		if level.Empty() {
			opposite.Delete(level)
		}
	}
	return trades
}

// hasEligibleMaker is the IOC feasibility check: at least one maker at
// the best opposite price must be eligible against the taker's limit.
func (book *OrderBook) hasEligibleMaker(taker *common.Order, opposite *PriceLevels) bool {
	best, ok := opposite.Min()
	return ok && eligible(taker, best.Price)
}

// canFillFully is the FOK feasibility check: the cumulative quantity of
// all eligible opposite levels must cover the taker's full remaining
// quantity. Read-only; the walk stops as soon as the sum is reached or
// an ineligible price is seen.
func (book *OrderBook) canFillFully(taker *common.Order, opposite *PriceLevels) bool {
	available := decimal.Zero
	opposite.Scan(func(level *PriceLevel) bool {
		if !eligible(taker, level.Price) {
			return false
		}
		available = available.Add(level.TotalQuantity)
		return available.LessThan(taker.Quantity)
	})
	return available.GreaterThanOrEqual(taker.Quantity)
}

// rest places the residual of a limit taker at its price on its own
// side, creating the level if absent.
func (book *OrderBook) rest(order *common.Order, own *PriceLevels) {
	// The comparator only looks at prices, so a bare level works as the
	// search key.
	level, ok := own.GetMut(&PriceLevel{Price: *order.Price})
	if !ok {
		level = NewPriceLevel(*order.Price)
		own.Set(level)
	}
	level.Append(order)
}

func (book *OrderBook) updateBBO() {
	book.bestBid, book.bestAsk = nil, nil
	if best, ok := book.bids.Min(); ok {
		price := best.Price
		book.bestBid = &price
	}
	if best, ok := book.asks.Min(); ok {
		price := best.Price
		book.bestAsk = &price
	}
}

// BBO returns the cached best bid and best ask; either may be nil.
func (book *OrderBook) BBO() (*decimal.Decimal, *decimal.Decimal) {
	return book.bestBid, book.bestAsk
}

// DepthLevel is one aggregated price level of a depth view.
type DepthLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Depth returns the top `levels` price levels per side: bids in
// descending price order, asks ascending. No trades are produced.
func (book *OrderBook) Depth(levels int) (bids, asks []DepthLevel) {
	collect := func(side *PriceLevels) []DepthLevel {
		if levels <= 0 {
			return []DepthLevel{}
		}
		out := make([]DepthLevel, 0, levels)
		side.Scan(func(level *PriceLevel) bool {
			out = append(out, DepthLevel{Price: level.Price, Quantity: level.TotalQuantity})
			return len(out) < levels
		})
		return out
	}
	return collect(book.bids), collect(book.asks)
}

// Levels reports the number of live price levels per side.
func (book *OrderBook) Levels() (bids, asks int) {
	return book.bids.Len(), book.asks.Len()
}
