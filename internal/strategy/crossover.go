// Package strategy holds the signal-generating trading logic.
package strategy

import (
	"backtest_go/internal/event"
	"backtest_go/internal/indicator"
)

// Regime is the per-symbol state of the crossover strategy.
type Regime string

const (
	RegimeFlat Regime = "FLAT"
	RegimeLong Regime = "LONG"
)

// Crossover is an EMA/SMA crossover strategy.
//
// Per symbol it keeps one rolling mean (window W), one exponential mean
// (period P) and a regime flag. Signals are edge-triggered: one BUY when
// the EMA first sits above the SMA, one SELL when it first falls below —
// never one per bar while the condition merely persists. The slower SMA
// gates trading: no signal is produced until it is warmed up.
type Crossover struct {
	positions PositionReader
	smaWindow int
	emaPeriod int

	sma    map[string]*indicator.SMA
	ema    map[string]*indicator.EMA
	regime map[string]Regime
}

// NewCrossover creates the strategy. Indicator construction validates the
// window and period; non-positive values panic there.
func NewCrossover(positions PositionReader, smaWindow, emaPeriod int) *Crossover {
	// Validate eagerly rather than on first symbol observation.
	indicator.NewSMA(smaWindow)
	indicator.NewEMA(emaPeriod)

	return &Crossover{
		positions: positions,
		smaWindow: smaWindow,
		emaPeriod: emaPeriod,
		sma:       make(map[string]*indicator.SMA),
		ema:       make(map[string]*indicator.EMA),
		regime:    make(map[string]Regime),
	}
}

// price extracts the decision price: last if present, else the bid/ask mid.
// Zero means no usable price.
func (c *Crossover) price(ev *event.MarketEvent) float64 {
	if ev.Last != 0 {
		return ev.Last
	}
	if ev.Bid != 0 && ev.Ask != 0 {
		return (ev.Bid + ev.Ask) / 2
	}
	return 0
}

func (c *Crossover) indicators(symbol string) (*indicator.SMA, *indicator.EMA) {
	sma, ok := c.sma[symbol]
	if !ok {
		sma = indicator.NewSMA(c.smaWindow)
		c.sma[symbol] = sma
	}
	ema, ok := c.ema[symbol]
	if !ok {
		ema = indicator.NewEMA(c.emaPeriod)
		c.ema[symbol] = ema
	}
	return sma, ema
}

// OnMarketEvent updates both indicators with the new price and emits at
// most one signal on a regime change.
func (c *Crossover) OnMarketEvent(ev *event.MarketEvent) *event.SignalEvent {
	symbol := ev.Symbol
	px := c.price(ev)
	if px == 0 {
		return nil
	}

	sma, ema := c.indicators(symbol)
	smaVal, smaReady := sma.Update(px)
	emaVal := ema.Update(px)

	if !smaReady {
		return nil
	}

	prev, ok := c.regime[symbol]
	if !ok {
		prev = RegimeFlat
	}
	pos := c.positions.Position(symbol)

	// Cross up: FLAT -> LONG. On the first ready comparison "is above"
	// counts as a cross.
	if emaVal > smaVal && prev != RegimeLong {
		c.regime[symbol] = RegimeLong

		// Only enter when not already long; the regime flag alone cannot
		// be trusted if the position was altered independently.
		if pos <= 0 {
			return &event.SignalEvent{
				BaseEvent:  event.BaseEvent{Symbol: symbol, Ts: ev.Ts},
				SignalType: event.SignalBuy,
				Strength:   1.0,
			}
		}
	}

	// Cross down: LONG -> FLAT.
	if emaVal < smaVal && prev != RegimeFlat {
		c.regime[symbol] = RegimeFlat

		if pos > 0 {
			return &event.SignalEvent{
				BaseEvent:  event.BaseEvent{Symbol: symbol, Ts: ev.Ts},
				SignalType: event.SignalSell,
				Strength:   1.0,
			}
		}
	}

	return nil
}
