package strategy_test

import (
	"testing"
	"time"

	"backtest_go/internal/event"
	"backtest_go/internal/strategy"
)

// stubPositions is a PositionReader backed by a plain map.
type stubPositions map[string]int64

func (s stubPositions) Position(symbol string) int64 { return s[symbol] }

func market(sym string, bar int, last float64) *event.MarketEvent {
	return &event.MarketEvent{
		BaseEvent: event.BaseEvent{
			Symbol: sym,
			Ts:     time.Date(2025, 11, 25, 9, 30, bar, 0, time.UTC),
		},
		Last: last,
	}
}

func TestCrossoverWarmupGatesTrading(t *testing.T) {
	// SMA window 3 gates trading even though EMA(2) is ready from bar 1.
	pos := stubPositions{}
	strat := strategy.NewCrossover(pos, 3, 2)

	for bar, px := range []float64{1, 2} {
		if sig := strat.OnMarketEvent(market("X", bar, px)); sig != nil {
			t.Errorf("bar %d: signal during warm-up: %+v", bar, sig)
		}
	}
}

func TestCrossoverEdgeTriggeredBuyOnce(t *testing.T) {
	// Rising series: SMA(3) ready at bar 3, EMA(2) already above it ->
	// exactly one BUY at the first ready comparison, none after while
	// the regime persists.
	pos := stubPositions{}
	strat := strategy.NewCrossover(pos, 3, 2)

	var buys int
	for bar := 1; bar <= 10; bar++ {
		sig := strat.OnMarketEvent(market("X", bar, float64(bar)))
		if sig == nil {
			continue
		}
		if sig.SignalType != event.SignalBuy {
			t.Fatalf("bar %d: expected BUY, got %s", bar, sig.SignalType)
		}
		if sig.Strength != 1.0 {
			t.Errorf("bar %d: expected strength 1.0, got %f", bar, sig.Strength)
		}
		if bar != 3 {
			t.Errorf("expected the BUY at bar 3, got bar %d", bar)
		}
		buys++
	}
	if buys != 1 {
		t.Errorf("expected exactly one BUY across the rising series, got %d", buys)
	}
}

func TestCrossoverSellOnCrossDown(t *testing.T) {
	pos := stubPositions{}
	strat := strategy.NewCrossover(pos, 3, 2)

	// Rise into LONG...
	for bar := 1; bar <= 5; bar++ {
		if sig := strat.OnMarketEvent(market("X", bar, float64(bar))); sig != nil {
			pos["X"] = 10 // simulate the resulting fill
		}
	}
	if pos["X"] != 10 {
		t.Fatal("setup: expected an entry during the rising leg")
	}

	// ...then fall until the EMA drops below the SMA: exactly one SELL.
	var sells int
	for bar := 6; bar <= 12; bar++ {
		sig := strat.OnMarketEvent(market("X", bar, float64(13-bar)))
		if sig == nil {
			continue
		}
		if sig.SignalType != event.SignalSell {
			t.Fatalf("bar %d: expected SELL, got %s", bar, sig.SignalType)
		}
		pos["X"] = 0
		sells++
	}
	if sells != 1 {
		t.Errorf("expected exactly one SELL on the falling leg, got %d", sells)
	}
}

func TestCrossoverConsultsLivePosition(t *testing.T) {
	// The position was altered independently: already long at cross-up.
	// The regime flips but no duplicate entry is signalled.
	pos := stubPositions{"X": 5}
	strat := strategy.NewCrossover(pos, 3, 2)

	for bar := 1; bar <= 6; bar++ {
		if sig := strat.OnMarketEvent(market("X", bar, float64(bar))); sig != nil {
			t.Errorf("bar %d: signalled entry while already long: %+v", bar, sig)
		}
	}
}

func TestCrossoverPriceExtraction(t *testing.T) {
	pos := stubPositions{}
	strat := strategy.NewCrossover(pos, 1, 1)

	// No last, no bid/ask: no usable price, no signal ever.
	ev := &event.MarketEvent{BaseEvent: event.BaseEvent{Symbol: "X", Ts: time.Now()}}
	if sig := strat.OnMarketEvent(ev); sig != nil {
		t.Errorf("expected no signal without a price, got %+v", sig)
	}

	// Bid/ask mid substitutes for a missing last.
	ev = &event.MarketEvent{
		BaseEvent: event.BaseEvent{Symbol: "X", Ts: time.Now()},
		Bid:       10,
		Ask:       12,
	}
	// Window 1: first priced event is already a ready comparison with
	// EMA == SMA == 11, which is not a cross. No signal, no panic.
	if sig := strat.OnMarketEvent(ev); sig != nil {
		t.Errorf("EMA == SMA must not signal, got %+v", sig)
	}
}

func TestCrossoverDeterminism(t *testing.T) {
	// Identical inputs, identical instances -> identical signal sequence.
	prices := []float64{5, 4, 6, 7, 9, 8, 6, 5, 4, 7, 10, 11}

	run := func() []string {
		pos := stubPositions{}
		strat := strategy.NewCrossover(pos, 3, 2)
		var out []string
		for bar, px := range prices {
			sig := strat.OnMarketEvent(market("X", bar, px))
			if sig == nil {
				out = append(out, "-")
				continue
			}
			out = append(out, string(sig.SignalType))
			if sig.SignalType == event.SignalBuy {
				pos["X"] = 10
			} else {
				pos["X"] = 0
			}
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("bar %d: run A emitted %s, run B emitted %s", i, a[i], b[i])
		}
	}
}

func TestCrossoverPerSymbolIsolation(t *testing.T) {
	// Two symbols warm up and trade independently.
	pos := stubPositions{}
	strat := strategy.NewCrossover(pos, 3, 2)

	var xSignals, ySignals int
	for bar := 1; bar <= 6; bar++ {
		if sig := strat.OnMarketEvent(market("X", bar, float64(bar))); sig != nil {
			xSignals++
		}
		// Y is flat-priced: never crosses.
		if sig := strat.OnMarketEvent(market("Y", bar, 100)); sig != nil {
			ySignals++
		}
	}
	if xSignals != 1 {
		t.Errorf("expected one X signal, got %d", xSignals)
	}
	if ySignals != 0 {
		t.Errorf("expected no Y signals, got %d", ySignals)
	}
}
