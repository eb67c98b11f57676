package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidar/internal/common"
)

// --- Setup & Helpers --------------------------------------------------------

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func dp(value string) *decimal.Decimal {
	parsed := decimal.RequireFromString(value)
	return &parsed
}

var orderSeq int

func newOrder(orderType common.OrderType, side common.Side, qty string, price *decimal.Decimal) *common.Order {
	orderSeq++
	return &common.Order{
		OrderID:   fmt.Sprintf("ord-%d", orderSeq),
		Symbol:    "BTC-USDT",
		OrderType: orderType,
		Side:      side,
		Quantity:  d(qty),
		Price:     price,
		Timestamp: time.Now().UTC(),
	}
}

func limit(side common.Side, qty, price string) *common.Order {
	return newOrder(common.Limit, side, qty, dp(price))
}

func market(side common.Side, qty string) *common.Order {
	return newOrder(common.Market, side, qty, nil)
}

func ioc(side common.Side, qty, price string) *common.Order {
	return newOrder(common.IOC, side, qty, dp(price))
}

func fok(side common.Side, qty, price string) *common.Order {
	return newOrder(common.FOK, side, qty, dp(price))
}

// checkBookInvariants asserts the structural invariants that must hold
// after every AddOrder: cached level totals match the queued orders, no
// empty levels survive, no price sits on both sides, and the book is
// never crossed.
func checkBookInvariants(t *testing.T, book *OrderBook) {
	t.Helper()

	prices := map[string]int{}
	for _, side := range []*PriceLevels{book.bids, book.asks} {
		side.Scan(func(level *PriceLevel) bool {
			require.NotEmpty(t, level.Orders, "no empty level may remain in the tree")
			sum := decimal.Zero
			for _, order := range level.Orders {
				assert.True(t, order.Quantity.IsPositive(), "resting orders keep positive remainder")
				sum = sum.Add(order.Quantity)
			}
			assert.True(t, sum.Equal(level.TotalQuantity),
				"level %s total %s != order sum %s", level.Price, level.TotalQuantity, sum)
			prices[level.Price.String()]++
			return true
		})
	}
	for price, count := range prices {
		assert.Equal(t, 1, count, "price %s appears on both sides", price)
	}

	bid, ask := book.BBO()
	if bid != nil && ask != nil {
		assert.True(t, bid.LessThan(*ask), "book crossed: bid %s >= ask %s", bid, ask)
	}
}

// levelQuantity returns the cached total at a price, or zero.
func levelQuantity(side *PriceLevels, price string) decimal.Decimal {
	level, ok := side.Get(&PriceLevel{Price: d(price)})
	if !ok {
		return decimal.Zero
	}
	return level.TotalQuantity
}

// --- Tests ------------------------------------------------------------------

func TestAddOrder_ExactLimitCross(t *testing.T) {
	book := NewOrderBook("BTC-USDT")

	maker := limit(common.Buy, "1.0", "50000")
	trades := book.AddOrder(maker)
	assert.Empty(t, trades)
	assert.Equal(t, 1, book.bids.Len())

	bid, ask := book.BBO()
	require.NotNil(t, bid)
	assert.Nil(t, ask)
	assert.True(t, bid.Equal(d("50000")))

	taker := limit(common.Sell, "1.0", "50000")
	trades = book.AddOrder(taker)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Price.Equal(d("50000")))
	assert.True(t, trades[0].Quantity.Equal(d("1.0")))
	assert.Equal(t, common.Sell, trades[0].AggressorSide)
	assert.Equal(t, maker.OrderID, trades[0].MakerOrderID)
	assert.Equal(t, taker.OrderID, trades[0].TakerOrderID)

	// Both sides fully consumed.
	assert.Equal(t, 0, book.bids.Len())
	assert.Equal(t, 0, book.asks.Len())
	bid, ask = book.BBO()
	assert.Nil(t, bid)
	assert.Nil(t, ask)
	checkBookInvariants(t, book)
}

func TestAddOrder_PartialFillRestingResidual(t *testing.T) {
	book := NewOrderBook("BTC-USDT")

	book.AddOrder(limit(common.Sell, "2.0", "51000"))
	trades := book.AddOrder(market(common.Buy, "1.5"))

	require.Len(t, trades, 1)
	assert.True(t, trades[0].Price.Equal(d("51000")))
	assert.True(t, trades[0].Quantity.Equal(d("1.5")))
	assert.Equal(t, common.Buy, trades[0].AggressorSide)

	assert.True(t, levelQuantity(book.asks, "51000").Equal(d("0.5")))
	checkBookInvariants(t, book)
}

func TestAddOrder_MarketSweepsMultipleLevels(t *testing.T) {
	book := NewOrderBook("BTC-USDT")

	book.AddOrder(limit(common.Sell, "1.0", "50100"))
	book.AddOrder(limit(common.Sell, "1.0", "50200"))
	book.AddOrder(limit(common.Sell, "1.0", "50300"))

	trades := book.AddOrder(market(common.Buy, "2.5"))
	require.Len(t, trades, 3)

	// Trades come out best price first, FIFO within a price.
	assert.True(t, trades[0].Price.Equal(d("50100")))
	assert.True(t, trades[0].Quantity.Equal(d("1.0")))
	assert.True(t, trades[1].Price.Equal(d("50200")))
	assert.True(t, trades[1].Quantity.Equal(d("1.0")))
	assert.True(t, trades[2].Price.Equal(d("50300")))
	assert.True(t, trades[2].Quantity.Equal(d("0.5")))

	// Swept levels are gone; the touched level keeps its remainder.
	assert.Equal(t, 1, book.asks.Len())
	assert.True(t, levelQuantity(book.asks, "50300").Equal(d("0.5")))
	checkBookInvariants(t, book)
}

func TestAddOrder_MarketIntoEmptyBook(t *testing.T) {
	book := NewOrderBook("BTC-USDT")

	trades := book.AddOrder(market(common.Buy, "1.0"))
	assert.Empty(t, trades)
	assert.Equal(t, 0, book.bids.Len())
	assert.Equal(t, 0, book.asks.Len())
}

func TestAddOrder_MarketWithPriceIgnoresIt(t *testing.T) {
	book := NewOrderBook("BTC-USDT")
	book.AddOrder(limit(common.Sell, "1.0", "50000"))

	// A price on a market order does not cap the crossing.
	taker := market(common.Buy, "1.0")
	taker.Price = dp("1")
	trades := book.AddOrder(taker)

	require.Len(t, trades, 1)
	assert.True(t, trades[0].Price.Equal(d("50000")))
	checkBookInvariants(t, book)
}

func TestAddOrder_IOCCancelsResidual(t *testing.T) {
	book := NewOrderBook("BTC-USDT")

	book.AddOrder(limit(common.Sell, "1.0", "50000"))
	trades := book.AddOrder(ioc(common.Buy, "5.0", "50000"))

	require.Len(t, trades, 1)
	assert.True(t, trades[0].Quantity.Equal(d("1.0")))

	// Remaining 4.0 is dropped, nothing rests.
	assert.Equal(t, 0, book.bids.Len())
	assert.Equal(t, 0, book.asks.Len())
	checkBookInvariants(t, book)
}

func TestAddOrder_IOCNoEligibleMaker(t *testing.T) {
	book := NewOrderBook("BTC-USDT")

	trades := book.AddOrder(ioc(common.Buy, "1.0", "49000"))
	assert.Empty(t, trades)
	assert.Equal(t, 0, book.bids.Len())

	// Same with a resting ask above the limit.
	book.AddOrder(limit(common.Sell, "1.0", "50000"))
	trades = book.AddOrder(ioc(common.Buy, "1.0", "49000"))
	assert.Empty(t, trades)
	assert.True(t, levelQuantity(book.asks, "50000").Equal(d("1.0")))
	checkBookInvariants(t, book)
}

func TestAddOrder_FOKAllOrNothing(t *testing.T) {
	book := NewOrderBook("BTC-USDT")

	book.AddOrder(limit(common.Sell, "1.0", "50000"))
	book.AddOrder(limit(common.Sell, "1.0", "50100"))

	// Insufficient eligible depth: 2.0 < 3.0. Book untouched.
	trades := book.AddOrder(fok(common.Buy, "3.0", "50200"))
	assert.Empty(t, trades)
	assert.Equal(t, 2, book.asks.Len())
	assert.True(t, levelQuantity(book.asks, "50000").Equal(d("1.0")))
	assert.True(t, levelQuantity(book.asks, "50100").Equal(d("1.0")))

	// Exactly enough depth fills across both levels.
	trades = book.AddOrder(fok(common.Buy, "2.0", "50200"))
	require.Len(t, trades, 2)
	assert.True(t, trades[0].Price.Equal(d("50000")))
	assert.True(t, trades[1].Price.Equal(d("50100")))
	assert.Equal(t, 0, book.asks.Len())
	checkBookInvariants(t, book)
}

func TestAddOrder_FOKOnlyCountsEligibleLevels(t *testing.T) {
	book := NewOrderBook("BTC-USDT")

	book.AddOrder(limit(common.Sell, "1.0", "50000"))
	book.AddOrder(limit(common.Sell, "5.0", "60000"))

	// Deep liquidity exists but is beyond the limit; only 1.0 is
	// eligible, so a 2.0 FOK must not fill.
	trades := book.AddOrder(fok(common.Buy, "2.0", "50500"))
	assert.Empty(t, trades)
	assert.Equal(t, 2, book.asks.Len())
	checkBookInvariants(t, book)
}

func TestAddOrder_PriceTimePriority(t *testing.T) {
	book := NewOrderBook("BTC-USDT")

	first := limit(common.Buy, "1.0", "50000")
	second := limit(common.Buy, "1.0", "50000")
	book.AddOrder(first)
	book.AddOrder(second)

	trades := book.AddOrder(limit(common.Sell, "1.0", "50000"))
	require.Len(t, trades, 1)
	assert.Equal(t, first.OrderID, trades[0].MakerOrderID)

	// The later arrival remains, untouched.
	assert.True(t, levelQuantity(book.bids, "50000").Equal(d("1.0")))
	level, ok := book.bids.Get(&PriceLevel{Price: d("50000")})
	require.True(t, ok)
	require.Len(t, level.Orders, 1)
	assert.Equal(t, second.OrderID, level.Orders[0].OrderID)
	checkBookInvariants(t, book)
}

func TestAddOrder_BetterPriceBeatsEarlierArrival(t *testing.T) {
	book := NewOrderBook("BTC-USDT")

	early := limit(common.Sell, "1.0", "50100")
	late := limit(common.Sell, "1.0", "50000")
	book.AddOrder(early)
	book.AddOrder(late)

	trades := book.AddOrder(limit(common.Buy, "1.0", "50200"))
	require.Len(t, trades, 1)
	assert.Equal(t, late.OrderID, trades[0].MakerOrderID)
	assert.True(t, trades[0].Price.Equal(d("50000")))
	checkBookInvariants(t, book)
}

func TestAddOrder_TakerAdoptsMakerPrice(t *testing.T) {
	book := NewOrderBook("BTC-USDT")

	book.AddOrder(limit(common.Sell, "1.0", "50000"))

	// Buyer willing to pay more still trades at the maker's price.
	trades := book.AddOrder(limit(common.Buy, "1.0", "50500"))
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Price.Equal(d("50000")))
}

func TestAddOrder_LimitRestsWhenNotCrossing(t *testing.T) {
	book := NewOrderBook("BTC-USDT")

	book.AddOrder(limit(common.Buy, "1.0", "49000"))
	book.AddOrder(limit(common.Sell, "1.0", "51000"))

	bid, ask := book.BBO()
	require.NotNil(t, bid)
	require.NotNil(t, ask)
	assert.True(t, bid.Equal(d("49000")))
	assert.True(t, ask.Equal(d("51000")))
	checkBookInvariants(t, book)
}

func TestAddOrder_PartialCrossRestsResidual(t *testing.T) {
	book := NewOrderBook("BTC-USDT")

	book.AddOrder(limit(common.Sell, "1.0", "50000"))
	trades := book.AddOrder(limit(common.Buy, "3.0", "50000"))

	require.Len(t, trades, 1)
	assert.True(t, trades[0].Quantity.Equal(d("1.0")))

	// Residual 2.0 rests on the bid side at the taker's own price.
	assert.Equal(t, 0, book.asks.Len())
	assert.True(t, levelQuantity(book.bids, "50000").Equal(d("2.0")))
	checkBookInvariants(t, book)
}

func TestAddOrder_ExactDecimalAccumulation(t *testing.T) {
	book := NewOrderBook("BTC-USDT")

	// 0.1 x 10 must sum to exactly 1.0; drift here would be a binary
	// float artifact.
	for i := 0; i < 10; i++ {
		book.AddOrder(limit(common.Sell, "0.1", "50000"))
	}
	assert.True(t, levelQuantity(book.asks, "50000").Equal(d("1.0")))

	trades := book.AddOrder(market(common.Buy, "1.0"))
	assert.Len(t, trades, 10)
	assert.Equal(t, 0, book.asks.Len())
	checkBookInvariants(t, book)
}

func TestDepth_OrderingAndAggregation(t *testing.T) {
	book := NewOrderBook("BTC-USDT")

	book.AddOrder(limit(common.Buy, "1.0", "49900"))
	book.AddOrder(limit(common.Buy, "2.0", "49800"))
	book.AddOrder(limit(common.Buy, "0.5", "49900"))
	book.AddOrder(limit(common.Sell, "1.0", "50100"))
	book.AddOrder(limit(common.Sell, "3.0", "50200"))

	bids, asks := book.Depth(10)
	require.Len(t, bids, 2)
	require.Len(t, asks, 2)

	// Bids descending, asks ascending; quantities aggregated per level.
	assert.True(t, bids[0].Price.Equal(d("49900")))
	assert.True(t, bids[0].Quantity.Equal(d("1.5")))
	assert.True(t, bids[1].Price.Equal(d("49800")))
	assert.True(t, asks[0].Price.Equal(d("50100")))
	assert.True(t, asks[1].Price.Equal(d("50200")))

	// Truncation honors the requested number of levels.
	bids, asks = book.Depth(1)
	assert.Len(t, bids, 1)
	assert.Len(t, asks, 1)
}

func TestAddOrder_InfeasibleOrdersLeaveBookUntouched(t *testing.T) {
	book := NewOrderBook("BTC-USDT")
	book.AddOrder(limit(common.Sell, "1.5", "50000"))

	before := func() ([]DepthLevel, []DepthLevel) { return book.Depth(100) }
	beforeBids, beforeAsks := before()

	// IOC with no eligible maker, FOK without depth, market with no
	// opposite liquidity: all must be no-ops.
	assert.Empty(t, book.AddOrder(ioc(common.Buy, "1.0", "40000")))
	assert.Empty(t, book.AddOrder(fok(common.Buy, "2.0", "50000")))
	assert.Empty(t, book.AddOrder(market(common.Sell, "1.0")))

	afterBids, afterAsks := before()
	assert.Equal(t, beforeBids, afterBids)
	assert.Equal(t, beforeAsks, afterAsks)
	checkBookInvariants(t, book)
}
