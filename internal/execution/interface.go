package execution

import "backtest_go/internal/event"

// Simulator converts an order intent into a fill at a resolved price.
// The engine resolves the price from its market-state cache before calling.
type Simulator interface {
	// OnOrder fills the order at fillPrice and returns the resulting fill.
	OnOrder(order *event.OrderEvent, fillPrice float64) *event.FillEvent
}
