package engine

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is a point-in-time view of one symbol's book. Absent best
// prices serialize as null; depth levels serialize as [price, quantity]
// pairs of decimal strings.
type Snapshot struct {
	Symbol    string           `json:"symbol"`
	BestBid   *decimal.Decimal `json:"best_bid"`
	BestAsk   *decimal.Decimal `json:"best_ask"`
	Bids      []DepthLevel     `json:"bids"`
	Asks      []DepthLevel     `json:"asks"`
	Timestamp time.Time        `json:"timestamp"`
}

func (l DepthLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]decimal.Decimal{l.Price, l.Quantity})
}

func (l *DepthLevel) UnmarshalJSON(data []byte) error {
	var pair [2]decimal.Decimal
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	l.Price, l.Quantity = pair[0], pair[1]
	return nil
}

// snapshotLocked builds a snapshot; the caller must hold the book lock.
func snapshotLocked(book *OrderBook, depth int) Snapshot {
	bids, asks := book.Depth(depth)
	bestBid, bestAsk := book.BBO()
	return Snapshot{
		Symbol:    book.symbol,
		BestBid:   bestBid,
		BestAsk:   bestAsk,
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.Now().UTC(),
	}
}
