package strategy

import "backtest_go/internal/event"

// Strategy defines the interface for trading logic.
// Implementations are stateful, deterministic, and driven by exactly one
// engine goroutine.
type Strategy interface {
	// OnMarketEvent is called for every market observation.
	// It returns at most one signal, or nil when there is nothing to do.
	OnMarketEvent(ev *event.MarketEvent) *event.SignalEvent
}

// PositionReader exposes the portfolio's live position to a strategy, so
// a decision can consult actual inventory instead of trusting its own
// regime flag alone.
type PositionReader interface {
	Position(symbol string) int64
}
