// Package execution simulates order execution for backtest runs.
package execution

import (
	"fmt"

	"backtest_go/internal/event"
)

// ImmediateFill is the simplest possible execution model: every order is
// filled in full, immediately, at the price the engine resolved from the
// book. No partial fills, no slippage, no queue position. Those are
// deliberate simplifications; a richer simulator plugs in behind the
// Simulator interface.
type ImmediateFill struct {
	commissionPerShare float64
}

// NewImmediateFill creates a simulator charging the given commission per
// share. A negative commission is a fatal configuration error.
func NewImmediateFill(commissionPerShare float64) *ImmediateFill {
	if commissionPerShare < 0 {
		panic(fmt.Sprintf("execution: commission per share must be >= 0, got %f", commissionPerShare))
	}
	return &ImmediateFill{commissionPerShare: commissionPerShare}
}

// OnOrder fills the entire requested quantity at fillPrice. The fill keeps
// the order's simulation timestamp so that downstream records stay on the
// bar that produced them.
func (s *ImmediateFill) OnOrder(order *event.OrderEvent, fillPrice float64) *event.FillEvent {
	commission := s.commissionPerShare * float64(order.Quantity)

	return &event.FillEvent{
		BaseEvent:  event.BaseEvent{Symbol: order.Symbol, Ts: order.Ts},
		OrderID:    order.ID,
		Direction:  order.Direction,
		Quantity:   order.Quantity,
		FillPrice:  fillPrice,
		Commission: commission,
	}
}
