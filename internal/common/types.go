package common

import "encoding/json"

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return "unknown"
}

// Opposite returns the side a taker consumes liquidity from.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Side) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	side, err := ParseSide(raw)
	if err != nil {
		return err
	}
	*s = side
	return nil
}

// ParseSide converts the wire representation of an order side.
func ParseSide(raw string) (Side, error) {
	switch raw {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	}
	return 0, ErrUnknownSide
}

type OrderType int

const (
	// Limit orders rest on the book at the given price until matched.
	Limit OrderType = iota
	// Market orders consume opposite-side liquidity at any price; any
	// unfilled residual is cancelled.
	Market
	// IOC orders fill what is immediately possible at the given limit
	// and cancel the rest.
	IOC
	// FOK orders fill their entire quantity immediately at or better
	// than the limit, or do not fill at all.
	FOK
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "limit"
	case Market:
		return "market"
	case IOC:
		return "ioc"
	case FOK:
		return "fok"
	}
	return "unknown"
}

// RequiresPrice reports whether the order type is limit-priced.
// Market orders may carry a price but it is ignored during matching.
func (t OrderType) RequiresPrice() bool {
	return t != Market
}

func (t OrderType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *OrderType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	typ, err := ParseOrderType(raw)
	if err != nil {
		return err
	}
	*t = typ
	return nil
}

// ParseOrderType converts the wire representation of an order type.
func ParseOrderType(raw string) (OrderType, error) {
	switch raw {
	case "limit":
		return Limit, nil
	case "market":
		return Market, nil
	case "ioc":
		return IOC, nil
	case "fok":
		return FOK, nil
	}
	return 0, ErrUnknownOrderType
}
