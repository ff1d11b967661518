// Package app orchestrates run startup: configuration, logging, the data
// source, the recorder, and the engine wiring.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"backtest_go/internal/engine"
	"backtest_go/internal/execution"
	"backtest_go/internal/feed"
	"backtest_go/internal/infra"
	"backtest_go/internal/portfolio"
	"backtest_go/internal/storage"
	"backtest_go/internal/strategy"
)

// Bootstrap assembles one simulation run from its configuration.
type Bootstrap struct {
	Config   *infra.Config
	Engine   *engine.Engine
	Ledger   *portfolio.Ledger
	Recorder *storage.Recorder // nil when recording is disabled
	Source   feed.Source

	wsSource *feed.WSSource
}

// New loads configuration from path and wires the full pipeline.
func New(path string) (*Bootstrap, error) {
	cfg, err := infra.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return FromConfig(cfg)
}

// FromConfig wires the pipeline from an already-validated configuration.
func FromConfig(cfg *infra.Config) (*Bootstrap, error) {
	slog.SetDefault(infra.NewLogger(cfg))

	b := &Bootstrap{Config: cfg}

	if cfg.Recorder.Enabled {
		rec, err := storage.NewRecorder(cfg.Recorder.DBPath)
		if err != nil {
			return nil, fmt.Errorf("recorder init: %w", err)
		}
		b.Recorder = rec
		slog.Info("run recorder initialized", slog.String("path", cfg.Recorder.DBPath))
	}

	b.Ledger = portfolio.NewLedger(cfg.Portfolio.BaseQuantity, cfg.Portfolio.InitialCapital)
	strat := strategy.NewCrossover(b.Ledger, cfg.Strategy.SMAWindow, cfg.Strategy.EMAPeriod)
	sim := execution.NewImmediateFill(cfg.Portfolio.CommissionPerShare)

	var sink engine.Sink
	if b.Recorder != nil {
		sink = b.Recorder
	}
	b.Engine = engine.New(1024, strat, b.Ledger, sim, sink)

	switch cfg.Data.Source {
	case "csv":
		src, err := feed.NewCSVSource(cfg.Data.CSVPath)
		if err != nil {
			return nil, fmt.Errorf("csv source: %w", err)
		}
		b.Source = src
		slog.Info("csv source loaded",
			slog.String("path", cfg.Data.CSVPath),
			slog.Int("rows", src.Len()))
	case "ws":
		ws := feed.NewWSSource(cfg.Data.WSURL, 256)
		b.wsSource = ws
		b.Source = ws
		slog.Info("ws source configured", slog.String("url", cfg.Data.WSURL))
	default:
		return nil, fmt.Errorf("unknown data source: %q", cfg.Data.Source)
	}

	return b, nil
}

// Run drives the engine from the configured source until it is exhausted
// or ctx is cancelled, then flushes the run record.
func (b *Bootstrap) Run(ctx context.Context) error {
	if b.wsSource != nil {
		b.wsSource.Start(ctx)
		defer b.wsSource.Stop()
	}

	rows, err := b.Engine.RunFromSource(ctx, b.Source, b.Config.Data.MaxRows)
	slog.Info("run finished", slog.Int("rows", rows))
	if err != nil && err != context.Canceled {
		return err
	}

	return b.flush(context.Background())
}

// flush writes the equity curve and final snapshot to the recorder.
func (b *Bootstrap) flush(ctx context.Context) error {
	if b.Recorder == nil {
		return nil
	}
	if err := b.Recorder.RecordEquityCurve(ctx, b.Ledger.EquityCurve()); err != nil {
		return err
	}
	return b.Recorder.SaveSummary(ctx, b.Ledger.Snapshot())
}

// Close releases run resources.
func (b *Bootstrap) Close() error {
	if b.Recorder != nil {
		return b.Recorder.Close()
	}
	return nil
}
