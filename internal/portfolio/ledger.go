// Package portfolio owns the cash/position ledger of a simulated run:
// signal sizing, fill accounting, mark-to-market and the NAV history.
package portfolio

import (
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"backtest_go/internal/event"
)

// Snapshot is one immutable mark-to-market record. The Positions and
// AvgCost maps are copies taken at append time and must not be mutated.
type Snapshot struct {
	Ts              time.Time          `json:"ts"`
	Symbol          string             `json:"symbol"`
	Price           float64            `json:"price"`
	Cash            float64            `json:"cash"`
	Positions       map[string]int64   `json:"positions"`
	AvgCost         map[string]float64 `json:"avg_cost"`
	UnrealizedPnL   float64            `json:"unrealized_pnl"`
	RealizedPnL     float64            `json:"realized_pnl"`
	NAV             float64            `json:"nav"`
	TotalCommission float64            `json:"total_commission"`
}

// EquityPoint is one point of the equity curve.
type EquityPoint struct {
	Ts  time.Time `json:"ts"`
	NAV float64   `json:"nav"`
}

// View is a read-only display rendering of the current ledger state.
// Numeric values are rounded for presentation; the rounded figures never
// flow back into the ledger's accumulators.
type View struct {
	Cash            float64            `json:"cash"`
	Positions       map[string]int64   `json:"positions"`
	AvgCost         map[string]float64 `json:"avg_cost"`
	LastPrices      map[string]float64 `json:"last_prices"`
	UnrealizedPnL   float64            `json:"unrealized_pnl"`
	RealizedPnL     float64            `json:"realized_pnl"`
	NAV             float64            `json:"nav"`
	TotalCommission float64            `json:"total_commission"`
}

// Ledger tracks cash, positions, cost basis and PnL for one run.
// It is mutated only by the engine's single dispatch goroutine.
type Ledger struct {
	baseQuantity   int64
	initialCapital float64

	cash            float64
	positions       map[string]int64
	avgCost         map[string]float64
	lastPrices      map[string]float64
	realizedPnL     float64
	unrealizedPnL   float64
	nav             float64
	totalCommission float64
	history         []Snapshot
}

// NewLedger creates a ledger holding the configured starting capital.
func NewLedger(baseQuantity int64, initialCapital float64) *Ledger {
	return &Ledger{
		baseQuantity:   baseQuantity,
		initialCapital: initialCapital,
		cash:           initialCapital,
		positions:      make(map[string]int64),
		avgCost:        make(map[string]float64),
		lastPrices:     make(map[string]float64),
		nav:            initialCapital,
	}
}

// OnSignal sizes a signal into a market order, or returns nil when the
// signal is not actionable: non-BUY/SELL signal types are ignored, and a
// computed quantity of zero or less produces no order. Fractional sizing
// truncates toward zero (whole shares only).
func (l *Ledger) OnSignal(sig *event.SignalEvent) *event.OrderEvent {
	if sig.SignalType != event.SignalBuy && sig.SignalType != event.SignalSell {
		return nil
	}

	qty := int64(math.Trunc(float64(l.baseQuantity) * sig.Strength))
	if qty <= 0 {
		return nil
	}

	return &event.OrderEvent{
		BaseEvent: event.BaseEvent{Symbol: sig.Symbol, Ts: sig.Ts},
		OrderType: event.OrderMarket,
		Direction: event.Side(sig.SignalType),
		Quantity:  qty,
	}
}

// OnFill applies an executed fill to cash, position, cost basis and PnL.
//
// Accounting assumes long-only inventory: a SELL reduces an existing long
// position, and realized PnL is quantity x (fill price - average cost).
// Selling into or through zero is not validated here.
func (l *Ledger) OnFill(fill *event.FillEvent) {
	sym := fill.Symbol
	qty := fill.Quantity
	px := fill.FillPrice
	comm := fill.Commission

	l.totalCommission += comm

	pos := l.positions[sym]
	avg := l.avgCost[sym]

	switch fill.Direction {
	case event.SideBuy:
		newPos := pos + qty

		// Weighted average entry price over the combined position.
		// newPos can only be zero here if the prior position was short,
		// which the accounting does not support; the guard keeps the
		// division defined regardless.
		var newAvg float64
		if newPos != 0 {
			newAvg = (float64(pos)*avg + float64(qty)*px) / float64(newPos)
		}

		l.positions[sym] = newPos
		l.avgCost[sym] = newAvg
		l.cash -= float64(qty)*px + comm

	case event.SideSell:
		newPos := pos - qty

		l.realizedPnL += float64(qty) * (px - avg)
		l.positions[sym] = newPos
		if newPos == 0 {
			l.avgCost[sym] = 0
		}
		l.cash += float64(qty)*px - comm

	default:
		slog.Warn("ledger ignoring fill with unknown direction",
			slog.String("symbol", sym),
			slog.String("direction", string(fill.Direction)))
	}
}

// MarkToMarket re-prices the book at the given mark and appends one
// snapshot to the history. Unrealized PnL and NAV are recomputed from
// scratch on every call, never updated incrementally. Callers must invoke
// this in non-decreasing timestamp order; the snapshots are the equity curve.
func (l *Ledger) MarkToMarket(symbol string, price float64, ts time.Time) {
	l.lastPrices[symbol] = price

	var unreal, mktValue float64
	for sym, qty := range l.positions {
		px, ok := l.lastPrices[sym]
		if !ok {
			continue
		}
		mktValue += float64(qty) * px
		unreal += float64(qty) * (px - l.avgCost[sym])
	}

	l.unrealizedPnL = unreal
	l.nav = l.cash + mktValue

	l.history = append(l.history, Snapshot{
		Ts:              ts,
		Symbol:          symbol,
		Price:           price,
		Cash:            l.cash,
		Positions:       copyPositions(l.positions),
		AvgCost:         copyPrices(l.avgCost),
		UnrealizedPnL:   l.unrealizedPnL,
		RealizedPnL:     l.realizedPnL,
		NAV:             l.nav,
		TotalCommission: l.totalCommission,
	})
}

// Position returns the current signed share count for a symbol.
func (l *Ledger) Position(symbol string) int64 {
	return l.positions[symbol]
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 { return l.cash }

// NAV returns the net asset value as of the latest mark-to-market call.
func (l *Ledger) NAV() float64 { return l.nav }

// History returns the accumulated mark-to-market snapshots in append order.
func (l *Ledger) History() []Snapshot { return l.history }

// EquityCurve returns the ordered (timestamp, nav) sequence drawn from the
// history. It is a read of the full accumulated record, not a live cursor.
func (l *Ledger) EquityCurve() []EquityPoint {
	curve := make([]EquityPoint, len(l.history))
	for i, h := range l.history {
		curve[i] = EquityPoint{Ts: h.Ts, NAV: h.NAV}
	}
	return curve
}

// Snapshot materializes a display view of the current ledger state with
// values rounded to two decimal places.
func (l *Ledger) Snapshot() View {
	return View{
		Cash:            round2(l.cash),
		Positions:       copyPositions(l.positions),
		AvgCost:         roundPrices(l.avgCost),
		LastPrices:      roundPrices(l.lastPrices),
		UnrealizedPnL:   round2(l.unrealizedPnL),
		RealizedPnL:     round2(l.realizedPnL),
		NAV:             round2(l.nav),
		TotalCommission: round2(l.totalCommission),
	}
}

// round2 rounds for display through decimal to avoid binary-float
// artifacts like 0.099999999 in reports.
func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

func roundPrices(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = round2(v)
	}
	return out
}

func copyPrices(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyPositions(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
