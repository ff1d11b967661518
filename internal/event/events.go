package event

import "time"

// Type defines the type of event.
type Type uint16

const (
	EvMarket Type = iota + 1
	EvSignal
	EvOrder
	EvFill
)

func (t Type) String() string {
	switch t {
	case EvMarket:
		return "MARKET"
	case EvSignal:
		return "SIGNAL"
	case EvOrder:
		return "ORDER"
	case EvFill:
		return "FILL"
	default:
		return "UNKNOWN"
	}
}

// SignalType is the strategy's stated intent.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalExit SignalType = "EXIT"
)

// Side is an order/fill direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType distinguishes market from limit orders.
type OrderType string

const (
	OrderMarket OrderType = "MKT"
	OrderLimit  OrderType = "LMT"
)

// Event is the interface for everything routed through the engine queue.
// The concrete set is closed: Market, Signal, Order, Fill.
type Event interface {
	GetType() Type
	GetSymbol() string
	GetTs() time.Time
}

// BaseEvent contains fields common to all events.
type BaseEvent struct {
	Symbol string    `json:"symbol"`
	Ts     time.Time `json:"ts"`
}

func (e BaseEvent) GetSymbol() string { return e.Symbol }
func (e BaseEvent) GetTs() time.Time  { return e.Ts }

// MarketEvent carries one tick/quote/bar observation.
// A zero Bid, Ask, Last or Volume means the field was not supplied.
type MarketEvent struct {
	BaseEvent
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Last   float64 `json:"last"`
	Volume int64   `json:"volume"`
}

func (e MarketEvent) GetType() Type { return EvMarket }

// Mid returns the usable mark price for this event: the bid/ask midpoint
// when both sides are present, otherwise Last. Zero means no price.
func (e MarketEvent) Mid() float64 {
	if e.Bid != 0 && e.Ask != 0 {
		return (e.Bid + e.Ask) / 2
	}
	return e.Last
}

// SignalEvent is a strategy-generated trading intent.
// Strength scales the portfolio's base order quantity.
type SignalEvent struct {
	BaseEvent
	SignalType SignalType `json:"signal_type"`
	Strength   float64    `json:"strength"`
}

func (e SignalEvent) GetType() Type { return EvSignal }

// OrderEvent is a sized order bound for the execution layer.
// Price is only meaningful for limit orders.
type OrderEvent struct {
	BaseEvent
	ID        string    `json:"id"`
	OrderType OrderType `json:"order_type"`
	Direction Side      `json:"direction"`
	Quantity  int64     `json:"quantity"`
	Price     float64   `json:"price,omitempty"`
}

func (e OrderEvent) GetType() Type { return EvOrder }

// FillEvent is the terminal event of one cascade: the simulated execution
// outcome of an order.
type FillEvent struct {
	BaseEvent
	OrderID    string  `json:"order_id"`
	Direction  Side    `json:"direction"`
	Quantity   int64   `json:"quantity"`
	FillPrice  float64 `json:"fill_price"`
	Commission float64 `json:"commission"`
}

func (e FillEvent) GetType() Type { return EvFill }
