package marketdata

import (
	"encoding/json"
	"time"

	"vidar/internal/common"
	"vidar/internal/engine"
)

const (
	actionSubscribeOrderbook   = "subscribe_orderbook"
	actionUnsubscribeOrderbook = "unsubscribe_orderbook"
	actionSubscribeTrades      = "subscribe_trades"
	actionUnsubscribeTrades    = "unsubscribe_trades"
	actionListSubscriptions    = "list_subscriptions"
)

// symbolList accepts either a single symbol string or a list of them.
type symbolList []string

func (l *symbolList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = symbolList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// clientMessage is an inbound subscription command.
type clientMessage struct {
	Action  string     `json:"action"`
	Symbols symbolList `json:"symbols"`
}

type welcomeMessage struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type subscriptionMessage struct {
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Channel   string    `json:"channel"`
	Symbols   []string  `json:"symbols"`
	Timestamp time.Time `json:"timestamp"`
}

type subscriptionListMessage struct {
	Type             string    `json:"type"`
	OrderbookSymbols []string  `json:"orderbook_symbols"`
	TradeSymbols     []string  `json:"trade_symbols"`
	Timestamp        time.Time `json:"timestamp"`
}

type errorMessage struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type tradeEvent struct {
	Type string       `json:"type"`
	Data common.Trade `json:"data"`
}

type bookEvent struct {
	Type string          `json:"type"`
	Data engine.Snapshot `json:"data"`
}

func newWelcome() welcomeMessage {
	return welcomeMessage{
		Type:      "welcome",
		Message:   "connected to vidar market data",
		Timestamp: time.Now().UTC(),
	}
}

func newSubscriptionAck(status, channel string, symbols []string) subscriptionMessage {
	return subscriptionMessage{
		Type:      "subscription",
		Status:    status,
		Channel:   channel,
		Symbols:   symbols,
		Timestamp: time.Now().UTC(),
	}
}

func newError(message string) errorMessage {
	return errorMessage{
		Type:      "error",
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}
