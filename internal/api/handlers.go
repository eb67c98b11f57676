package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"vidar/internal/common"
)

// orderRequest is the submit-order wire contract. Prices and quantities
// travel as decimal strings; no binary-float rounding on the way in.
type orderRequest struct {
	Symbol    string  `json:"symbol"`
	OrderType string  `json:"order_type"`
	Side      string  `json:"side"`
	Quantity  string  `json:"quantity"`
	Price     *string `json:"price,omitempty"`
	UserID    string  `json:"user_id,omitempty"`
	OrderID   string  `json:"order_id,omitempty"`
}

type orderResponse struct {
	OrderID string         `json:"order_id"`
	Status  string         `json:"status"`
	Trades  []common.Trade `json:"trades"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// order builds the engine order, minting an order id when the caller
// gave none.
func (r orderRequest) order() (*common.Order, error) {
	orderType, err := common.ParseOrderType(r.OrderType)
	if err != nil {
		return nil, err
	}
	side, err := common.ParseSide(r.Side)
	if err != nil {
		return nil, err
	}
	quantity, err := decimal.NewFromString(r.Quantity)
	if err != nil {
		return nil, common.ErrMalformedDecimal
	}

	var price *decimal.Decimal
	if r.Price != nil {
		parsed, err := decimal.NewFromString(*r.Price)
		if err != nil {
			return nil, common.ErrMalformedDecimal
		}
		price = &parsed
	}

	orderID := r.OrderID
	if orderID == "" {
		orderID = uuid.New().String()
	}

	return &common.Order{
		OrderID:   orderID,
		Symbol:    r.Symbol,
		OrderType: orderType,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		Timestamp: time.Now().UTC(),
		UserID:    r.UserID,
	}, nil
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Symbol == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing required field: symbol"))
		return
	}

	order, err := req.order()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	trades, err := s.engine.Submit(order)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if trades == nil {
		trades = []common.Trade{}
	}

	writeJSON(w, http.StatusOK, orderResponse{
		OrderID: order.OrderID,
		Status:  "accepted",
		Trades:  trades,
	})
}

func (s *Server) handleOrderBook(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	depth := queryInt(r, "depth", s.cfg.DefaultDepth)

	snapshot, err := s.engine.Snapshot(symbol, depth)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	limit := queryInt(r, "limit", s.cfg.TradeTailLimit)

	trades, err := s.engine.TradeHistory(symbol, limit)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if trades == nil {
		trades = []common.Trade{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"trades": trades,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("error writing response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
