package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"vidar/internal/common"
	"vidar/internal/metrics"
)

// Reporter receives post-trade and book-update events. Submit returns
// to its caller only after every hook for that submit has been
// dispatched.
type Reporter interface {
	PublishTrade(trade common.Trade)
	PublishBookUpdate(snapshot Snapshot)
}

// Engine owns all order books and trade histories. Matching is strictly
// serial per book; distinct symbols may match in parallel. The books
// map is read-mostly: entries are created once per symbol and live for
// the process lifetime.
type Engine struct {
	mu    sync.RWMutex
	books map[string]*bookEntry

	historyMu sync.RWMutex
	history   map[string][]common.Trade

	processed atomic.Int64
	start     time.Time

	reporter  Reporter
	collector *metrics.Collector

	// Depth of the snapshot carried by book-update events.
	updateDepth int
}

// bookEntry pairs a book with the mutex serializing its match calls.
type bookEntry struct {
	mu   sync.Mutex
	book *OrderBook
}

func New(collector *metrics.Collector) *Engine {
	return &Engine{
		books:       make(map[string]*bookEntry),
		history:     make(map[string][]common.Trade),
		start:       time.Now(),
		collector:   collector,
		updateDepth: 10,
	}
}

// SetReporter registers the market-data fabric. Must be called before
// the first Submit; there is no hook ordering guarantee across a swap.
func (e *Engine) SetReporter(reporter Reporter) {
	e.reporter = reporter
}

// bookFor returns the entry for a symbol, creating it on first use.
func (e *Engine) bookFor(symbol string) *bookEntry {
	e.mu.RLock()
	entry, ok := e.books[symbol]
	e.mu.RUnlock()
	if ok {
		return entry
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// Re-check after acquiring the write lock.
	if entry, ok = e.books[symbol]; !ok {
		entry = &bookEntry{book: NewOrderBook(symbol)}
		e.books[symbol] = entry
		if e.collector != nil {
			e.collector.ActiveSymbols.Inc()
		}
		log.Info().Str("symbol", symbol).Msg("order book created")
	}
	return entry
}

// Submit validates the order, matches it on its symbol's book and
// returns the trades produced. Invalid orders are rejected before any
// book mutation. The processed-order counter counts every order that
// completed dispatch, whether or not it traded.
func (e *Engine) Submit(order *common.Order) ([]common.Trade, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	entry := e.bookFor(order.Symbol)

	entry.mu.Lock()
	started := time.Now()
	trades := entry.book.AddOrder(order)
	elapsed := time.Since(started)

	// The book changed iff liquidity was consumed or a limit residual
	// rested. Infeasible IOC/FOK and market orders into an empty book
	// leave it untouched.
	rested := order.OrderType == common.Limit && order.Quantity.IsPositive()
	changed := len(trades) > 0 || rested

	var update Snapshot
	if changed && e.reporter != nil {
		update = snapshotLocked(entry.book, e.updateDepth)
	}
	bidLevels, askLevels := entry.book.Levels()
	entry.mu.Unlock()

	if len(trades) > 0 {
		e.historyMu.Lock()
		e.history[order.Symbol] = append(e.history[order.Symbol], trades...)
		e.historyMu.Unlock()
	}

	e.processed.Add(1)
	e.observe(order, trades, elapsed, bidLevels, askLevels)

	// Hooks run before the caller sees the result.
	if e.reporter != nil {
		for _, trade := range trades {
			e.reporter.PublishTrade(trade)
		}
		if changed {
			e.reporter.PublishBookUpdate(update)
		}
	}

	log.Debug().
		Str("symbol", order.Symbol).
		Str("orderId", order.OrderID).
		Stringer("type", order.OrderType).
		Stringer("side", order.Side).
		Int("trades", len(trades)).
		Msg("order processed")
	return trades, nil
}

func (e *Engine) observe(order *common.Order, trades []common.Trade, elapsed time.Duration, bidLevels, askLevels int) {
	if e.collector == nil {
		return
	}
	e.collector.OrdersProcessed.
		WithLabelValues(order.Symbol, order.OrderType.String(), order.Side.String()).Inc()
	e.collector.MatchLatency.Observe(elapsed.Seconds())
	for _, trade := range trades {
		e.collector.TradesTotal.WithLabelValues(trade.Symbol).Inc()
		volume, _ := trade.Quantity.Float64()
		e.collector.TradeVolume.WithLabelValues(trade.Symbol).Add(volume)
	}
	e.collector.BookDepth.WithLabelValues(order.Symbol, common.Buy.String()).Set(float64(bidLevels))
	e.collector.BookDepth.WithLabelValues(order.Symbol, common.Sell.String()).Set(float64(askLevels))
}

// Snapshot returns the top-`depth` view of a symbol's book, observed
// between match operations. Unknown symbols yield ErrSymbolNotFound.
func (e *Engine) Snapshot(symbol string, depth int) (Snapshot, error) {
	e.mu.RLock()
	entry, ok := e.books[symbol]
	e.mu.RUnlock()
	if !ok {
		return Snapshot{}, common.ErrSymbolNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return snapshotLocked(entry.book, depth), nil
}

// TradeHistory returns up to `limit` most recent trades for a symbol,
// oldest first. Unknown symbols yield ErrSymbolNotFound.
//
// TODO: the underlying history is append-only and unbounded; add a
// retention policy before long-running production use.
func (e *Engine) TradeHistory(symbol string, limit int) ([]common.Trade, error) {
	e.mu.RLock()
	_, ok := e.books[symbol]
	e.mu.RUnlock()
	if !ok {
		return nil, common.ErrSymbolNotFound
	}

	e.historyMu.RLock()
	defer e.historyMu.RUnlock()
	trades := e.history[symbol]
	if limit > 0 && len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}
	out := make([]common.Trade, len(trades))
	copy(out, trades)
	return out, nil
}

// Stats are the engine-level performance counters.
type Stats struct {
	ProcessedOrders int64   `json:"processed_orders"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
	OrdersPerSecond float64 `json:"orders_per_second"`
	ActiveSymbols   int     `json:"active_symbols"`
}

func (e *Engine) Stats() Stats {
	e.mu.RLock()
	symbols := len(e.books)
	e.mu.RUnlock()

	processed := e.processed.Load()
	uptime := time.Since(e.start).Seconds()
	perSecond := 0.0
	if uptime > 0 {
		perSecond = float64(processed) / uptime
	}
	return Stats{
		ProcessedOrders: processed,
		UptimeSeconds:   uptime,
		OrdersPerSecond: perSecond,
		ActiveSymbols:   symbols,
	}
}
