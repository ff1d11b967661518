// Package engine is the core event dispatcher: a FIFO queue, a per-symbol
// market-state cache, and the routing that sequences the cascade
// Market -> Strategy -> Signal -> Portfolio -> Order -> Execution -> Fill.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"backtest_go/internal/event"
	"backtest_go/internal/execution"
	"backtest_go/internal/feed"
	"backtest_go/internal/portfolio"
	"backtest_go/internal/strategy"
)

// ErrQueueFull is returned when an event cannot be admitted.
var ErrQueueFull = errors.New("engine: event queue full")

// drainBudget bounds one bar's cascade in source-driven mode. A single
// market event can only ever fan out to a handful of derived events, so
// hitting this budget means a routing bug, not a big bar.
const drainBudget = 1000

// Quote is the cached top-of-book state for one symbol.
// Zero fields mean the side was never observed.
type Quote struct {
	Bid  float64
	Ask  float64
	Last float64
}

// Sink receives observability records for every signal, order and fill the
// engine processes. Formatting and destination are the sink's concern.
type Sink interface {
	RecordSignal(ctx context.Context, sig *event.SignalEvent) error
	RecordOrder(ctx context.Context, ord *event.OrderEvent, fillPrice float64) error
	RecordFill(ctx context.Context, fill *event.FillEvent) error
}

// Engine owns the event queue and market-state cache. All routing and all
// ledger/strategy mutation happens on the single goroutine that calls Run,
// RunFromSource or Drain; producers may enqueue from anywhere.
type Engine struct {
	queue    chan event.Event
	markets  map[string]Quote
	strategy strategy.Strategy
	ledger   *portfolio.Ledger
	sim      execution.Simulator
	sink     Sink // optional

	// PollWait bounds how long Run blocks waiting for the next event
	// before counting an idle poll.
	PollWait time.Duration
}

// New creates an engine. sink may be nil when no observability recording
// is wanted.
func New(queueSize int, strat strategy.Strategy, ledger *portfolio.Ledger, sim execution.Simulator, sink Sink) *Engine {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Engine{
		queue:    make(chan event.Event, queueSize),
		markets:  make(map[string]Quote),
		strategy: strat,
		ledger:   ledger,
		sim:      sim,
		sink:     sink,
		PollWait: time.Second,
	}
}

// Enqueue admits an event without blocking.
func (e *Engine) Enqueue(ev event.Event) error {
	select {
	case e.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// EnqueueMarket synthesizes and admits one market event.
func (e *Engine) EnqueueMarket(symbol string, ts time.Time, bid, ask, last float64, volume int64) error {
	return e.Enqueue(&event.MarketEvent{
		BaseEvent: event.BaseEvent{Symbol: symbol, Ts: ts},
		Bid:       bid,
		Ask:       ask,
		Last:      last,
		Volume:    volume,
	})
}

// Run drains the queue until maxEvents have been processed, maxIdle
// consecutive empty polls have elapsed, or the context is cancelled.
// The idle counter is the termination signal for an exhausted feed.
func (e *Engine) Run(ctx context.Context, maxEvents, maxIdle int) int {
	processed := 0
	idle := 0

	for processed < maxEvents {
		select {
		case <-ctx.Done():
			return processed
		case ev := <-e.queue:
			idle = 0
			processed++
			e.dispatch(ctx, ev)
		case <-time.After(e.PollWait):
			idle++
			if idle >= maxIdle {
				slog.Debug("no new events, stopping engine",
					slog.Int("processed", processed))
				return processed
			}
		}
	}
	return processed
}

// Drain processes queued events until the queue is structurally empty or
// the budget is exhausted. Unlike Run it never waits: quiescence is
// detected by the queue being empty, not by a timeout.
func (e *Engine) Drain(ctx context.Context, budget int) int {
	processed := 0
	for processed < budget {
		select {
		case <-ctx.Done():
			return processed
		case ev := <-e.queue:
			processed++
			e.dispatch(ctx, ev)
		default:
			return processed
		}
	}
	slog.Warn("drain budget exhausted with events still queued",
		slog.Int("budget", budget))
	return processed
}

// RunFromSource pulls rows from src one at a time. Each row becomes one
// market event whose entire cascade — strategy reaction, order, fill,
// ledger update — is resolved before the next row is admitted. This is
// the no-look-ahead guarantee: bar N is fully settled before bar N+1.
// maxRows <= 0 means no row limit.
func (e *Engine) RunFromSource(ctx context.Context, src feed.Source, maxRows int) (int, error) {
	rows := 0

	for {
		if err := ctx.Err(); err != nil {
			return rows, err
		}

		row, ok, err := src.Next(ctx)
		if err != nil {
			return rows, err
		}
		if !ok {
			return rows, nil
		}

		if err := e.EnqueueMarket(row.Symbol, row.Ts, row.Bid, row.Ask, row.Last, row.Volume); err != nil {
			return rows, err
		}
		e.Drain(ctx, drainBudget)

		rows++
		if maxRows > 0 && rows >= maxRows {
			return rows, nil
		}
	}
}

// Quote returns the cached market state for a symbol. Only the dispatch
// goroutine may call this while a run is in progress.
func (e *Engine) Quote(symbol string) (Quote, bool) {
	q, ok := e.markets[symbol]
	return q, ok
}

func (e *Engine) dispatch(ctx context.Context, ev event.Event) {
	switch ev := ev.(type) {
	case *event.MarketEvent:
		e.handleMarket(ev)
	case *event.SignalEvent:
		e.handleSignal(ctx, ev)
	case *event.OrderEvent:
		e.handleOrder(ctx, ev)
	case *event.FillEvent:
		e.handleFill(ctx, ev)
	default:
		slog.Warn("unknown event type", slog.Any("type", ev.GetType()))
	}
}

func (e *Engine) handleMarket(ev *event.MarketEvent) {
	e.markets[ev.Symbol] = Quote{Bid: ev.Bid, Ask: ev.Ask, Last: ev.Last}

	// Mark the book before the strategy reacts, on this event's timestamp.
	if mid := ev.Mid(); mid != 0 {
		e.ledger.MarkToMarket(ev.Symbol, mid, ev.Ts)
	}

	if sig := e.strategy.OnMarketEvent(ev); sig != nil {
		if err := e.Enqueue(sig); err != nil {
			slog.Error("dropping signal", slog.String("symbol", sig.Symbol), slog.Any("error", err))
		}
	}
}

func (e *Engine) handleSignal(ctx context.Context, ev *event.SignalEvent) {
	if order := e.ledger.OnSignal(ev); order != nil {
		order.ID = uuid.NewString()
		if err := e.Enqueue(order); err != nil {
			slog.Error("dropping order", slog.String("symbol", order.Symbol), slog.Any("error", err))
		}
	}

	slog.Info("signal",
		slog.Time("ts", ev.Ts),
		slog.String("symbol", ev.Symbol),
		slog.String("type", string(ev.SignalType)),
		slog.Float64("strength", ev.Strength))

	e.record(func() error { return e.sink.RecordSignal(ctx, ev) })
}

func (e *Engine) handleOrder(ctx context.Context, ev *event.OrderEvent) {
	fillPrice := e.resolveFillPrice(ev)
	if fillPrice == 0 {
		// No cached price for this symbol: the order is dropped, the
		// cascade for this bar simply produces no fill.
		slog.Warn("order skipped, no resolvable price",
			slog.String("symbol", ev.Symbol),
			slog.String("id", ev.ID))
		return
	}

	fill := e.sim.OnOrder(ev, fillPrice)
	if err := e.Enqueue(fill); err != nil {
		slog.Error("dropping fill", slog.String("symbol", fill.Symbol), slog.Any("error", err))
	}

	slog.Info("order",
		slog.Time("ts", ev.Ts),
		slog.String("symbol", ev.Symbol),
		slog.String("direction", string(ev.Direction)),
		slog.Int64("qty", ev.Quantity),
		slog.String("type", string(ev.OrderType)),
		slog.Float64("fill_px", fillPrice))

	e.record(func() error { return e.sink.RecordOrder(ctx, ev, fillPrice) })
}

func (e *Engine) handleFill(ctx context.Context, ev *event.FillEvent) {
	e.ledger.OnFill(ev)

	slog.Info("fill",
		slog.Time("ts", ev.Ts),
		slog.String("symbol", ev.Symbol),
		slog.String("direction", string(ev.Direction)),
		slog.Int64("qty", ev.Quantity),
		slog.Float64("px", ev.FillPrice),
		slog.Float64("commission", ev.Commission))

	e.record(func() error { return e.sink.RecordFill(ctx, ev) })
}

// resolveFillPrice picks the execution price for a market order from the
// cached book: BUY at ask, SELL at bid, mid for an unknown side. With no
// full book it falls back to last. Zero means no price is resolvable.
func (e *Engine) resolveFillPrice(ord *event.OrderEvent) float64 {
	q, ok := e.markets[ord.Symbol]
	if !ok {
		return 0
	}

	if q.Bid != 0 && q.Ask != 0 {
		switch ord.Direction {
		case event.SideBuy:
			return q.Ask
		case event.SideSell:
			return q.Bid
		}
		return (q.Bid + q.Ask) / 2
	}

	return q.Last
}

// record runs one sink call, tolerating both a nil sink and sink errors;
// a failing recorder must never stall the dispatch loop.
func (e *Engine) record(fn func() error) {
	if e.sink == nil {
		return
	}
	if err := fn(); err != nil {
		slog.Error("observability sink failed", slog.Any("error", err))
	}
}
