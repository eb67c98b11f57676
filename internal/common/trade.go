package common

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Trade pairs exactly one resting maker with one incoming taker. The
// price is always the maker's resting price at the time of the match.
type Trade struct {
	TradeID       string          `json:"trade_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Quantity      decimal.Decimal `json:"quantity"`
	AggressorSide Side            `json:"aggressor_side"`
	MakerOrderID  string          `json:"maker_order_id"`
	TakerOrderID  string          `json:"taker_order_id"`
}

// NewTrade mints a trade with a fresh uuid and a wall-clock timestamp.
// The id must never be derived from the inputs.
func NewTrade(symbol string, price, quantity decimal.Decimal, aggressor Side, makerID, takerID string) Trade {
	return Trade{
		TradeID:       uuid.New().String(),
		Timestamp:     time.Now().UTC(),
		Symbol:        symbol,
		Price:         price,
		Quantity:      quantity,
		AggressorSide: aggressor,
		MakerOrderID:  makerID,
		TakerOrderID:  takerID,
	}
}

func (t Trade) String() string {
	return fmt.Sprintf("%s %s %s@%s %s maker=%s taker=%s",
		t.TradeID, t.Symbol, t.Quantity, t.Price, t.AggressorSide,
		t.MakerOrderID, t.TakerOrderID)
}
