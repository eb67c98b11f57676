package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"vidar/internal/common"
	"vidar/internal/config"
	"vidar/internal/engine"
	"vidar/internal/metrics"
	"vidar/internal/utils"
)

var ErrImproperConversion = errors.New("improper type conversion")

// session is one connected market-data client. Outbound messages go
// through a bounded queue; a slow client drops messages rather than
// stalling the matching path.
type session struct {
	conn *websocket.Conn
	send chan []byte

	mu        sync.Mutex
	bookSubs  map[string]struct{}
	tradeSubs map[string]struct{}
}

func (s *session) subscribe(channel string, symbols []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.bookSubs
	if channel == "trades" {
		target = s.tradeSubs
	}
	for _, symbol := range symbols {
		target[symbol] = struct{}{}
	}
}

func (s *session) unsubscribe(channel string, symbols []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.bookSubs
	if channel == "trades" {
		target = s.tradeSubs
	}
	for _, symbol := range symbols {
		delete(target, symbol)
	}
}

func (s *session) wantsBook(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.bookSubs[symbol]
	return ok
}

func (s *session) wantsTrades(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tradeSubs[symbol]
	return ok
}

func (s *session) subscriptions() (books, trades []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	books = make([]string, 0, len(s.bookSubs))
	for symbol := range s.bookSubs {
		books = append(books, symbol)
	}
	trades = make([]string, 0, len(s.tradeSubs))
	for symbol := range s.tradeSubs {
		trades = append(trades, symbol)
	}
	return books, trades
}

// enqueue never blocks; a full client queue drops the message.
func (s *session) enqueue(payload []byte) {
	select {
	case s.send <- payload:
	default:
	}
}

func (s *session) enqueueJSON(message any) {
	payload, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Msg("error marshaling outbound message")
		return
	}
	s.enqueue(payload)
}

// broadcast is a fan-out task handed to the worker pool.
type broadcast struct {
	symbol  string
	trades  bool // trade channel vs orderbook channel
	payload []byte
}

// Hub is the market-data push fabric. It implements engine.Reporter:
// every trade and book update produced by a submit is fanned out to
// the subscribed websocket clients through the worker pool.
type Hub struct {
	cfg       config.Config
	engine    *engine.Engine
	collector *metrics.Collector
	upgrader  websocket.Upgrader
	pool      utils.WorkerPool

	t *tomb.Tomb

	sessionsLock sync.Mutex
	sessions     map[*session]struct{}
}

func NewHub(cfg config.Config, eng *engine.Engine, collector *metrics.Collector) *Hub {
	return &Hub{
		cfg:       cfg,
		engine:    eng,
		collector: collector,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pool:     utils.NewWorkerPool(cfg.BroadcastWorkers),
		sessions: make(map[*session]struct{}),
	}
}

// Run serves the websocket endpoint until the context is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)
	h.t = t

	h.pool.Setup(t, h.dispatch)

	router := http.NewServeMux()
	router.HandleFunc("/ws", h.handleWS)
	srv := &http.Server{Addr: h.cfg.WSAddr, Handler: router}

	t.Go(func() error {
		log.Info().Str("address", h.cfg.WSAddr).Msg("market data hub running")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), h.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("market data hub shutdown")
	}
	h.closeAllSessions()
	t.Kill(nil)
	return t.Wait()
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	sess := &session{
		conn:      conn,
		send:      make(chan []byte, h.cfg.ClientQueueSize),
		bookSubs:  make(map[string]struct{}),
		tradeSubs: make(map[string]struct{}),
	}
	h.addSession(sess)
	sess.enqueueJSON(newWelcome())

	h.t.Go(func() error {
		h.writer(sess)
		return nil
	})
	h.t.Go(func() error {
		h.reader(sess)
		return nil
	})
}

// reader consumes subscription commands until the client goes away.
func (h *Hub) reader(sess *session) {
	defer h.removeSession(sess)
	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}

		var message clientMessage
		if err := json.Unmarshal(raw, &message); err != nil {
			sess.enqueueJSON(newError("invalid json message"))
			continue
		}
		h.handleAction(sess, message)
	}
}

func (h *Hub) handleAction(sess *session, message clientMessage) {
	switch message.Action {
	case actionSubscribeOrderbook:
		sess.subscribe("orderbook", message.Symbols)
		sess.enqueueJSON(newSubscriptionAck("subscribed", "orderbook", message.Symbols))
		// Seed new subscribers with the current book state.
		for _, symbol := range message.Symbols {
			if snapshot, err := h.engine.Snapshot(symbol, h.cfg.DefaultDepth); err == nil {
				sess.enqueueJSON(bookEvent{Type: "order_book_snapshot", Data: snapshot})
			}
		}
	case actionUnsubscribeOrderbook:
		sess.unsubscribe("orderbook", message.Symbols)
		sess.enqueueJSON(newSubscriptionAck("unsubscribed", "orderbook", message.Symbols))
	case actionSubscribeTrades:
		sess.subscribe("trades", message.Symbols)
		sess.enqueueJSON(newSubscriptionAck("subscribed", "trades", message.Symbols))
	case actionUnsubscribeTrades:
		sess.unsubscribe("trades", message.Symbols)
		sess.enqueueJSON(newSubscriptionAck("unsubscribed", "trades", message.Symbols))
	case actionListSubscriptions:
		books, trades := sess.subscriptions()
		sess.enqueueJSON(subscriptionListMessage{
			Type:             "subscription_list",
			OrderbookSymbols: books,
			TradeSymbols:     trades,
			Timestamp:        time.Now().UTC(),
		})
	default:
		sess.enqueueJSON(newError("unknown action: " + message.Action))
	}
}

// writer drains the session queue onto the wire.
func (h *Hub) writer(sess *session) {
	defer h.removeSession(sess)
	for {
		select {
		case <-h.t.Dying():
			return
		case payload := <-sess.send:
			if err := sess.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

// PublishTrade implements engine.Reporter.
func (h *Hub) PublishTrade(trade common.Trade) {
	payload, err := json.Marshal(tradeEvent{Type: "trade_execution", Data: trade})
	if err != nil {
		log.Error().Err(err).Msg("error marshaling trade event")
		return
	}
	h.pool.AddTask(broadcast{symbol: trade.Symbol, trades: true, payload: payload})
}

// PublishBookUpdate implements engine.Reporter.
func (h *Hub) PublishBookUpdate(snapshot engine.Snapshot) {
	payload, err := json.Marshal(bookEvent{Type: "order_book_update", Data: snapshot})
	if err != nil {
		log.Error().Err(err).Msg("error marshaling book update")
		return
	}
	h.pool.AddTask(broadcast{symbol: snapshot.Symbol, payload: payload})
}

// dispatch is the worker-pool task: fan one event out to the sessions
// subscribed to its symbol and channel.
func (h *Hub) dispatch(_ *tomb.Tomb, task any) error {
	bc, ok := task.(broadcast)
	if !ok {
		return ErrImproperConversion
	}

	h.sessionsLock.Lock()
	defer h.sessionsLock.Unlock()
	for sess := range h.sessions {
		if bc.trades && sess.wantsTrades(bc.symbol) {
			sess.enqueue(bc.payload)
		} else if !bc.trades && sess.wantsBook(bc.symbol) {
			sess.enqueue(bc.payload)
		}
	}
	return nil
}

// addSession is an atomic map add.
func (h *Hub) addSession(sess *session) {
	h.sessionsLock.Lock()
	defer h.sessionsLock.Unlock()
	h.sessions[sess] = struct{}{}
	if h.collector != nil {
		h.collector.WSClients.Inc()
	}
	log.Info().Str("address", sess.conn.RemoteAddr().String()).Msg("market data client connected")
}

// removeSession is an atomic map remove; safe to call twice.
func (h *Hub) removeSession(sess *session) {
	h.sessionsLock.Lock()
	defer h.sessionsLock.Unlock()
	if _, ok := h.sessions[sess]; !ok {
		return
	}
	delete(h.sessions, sess)
	if h.collector != nil {
		h.collector.WSClients.Dec()
	}
	if err := sess.conn.Close(); err != nil {
		log.Debug().Err(err).Msg("error closing client connection")
	}
}

func (h *Hub) closeAllSessions() {
	h.sessionsLock.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.sessionsLock.Unlock()
	for _, sess := range sessions {
		h.removeSession(sess)
	}
}
