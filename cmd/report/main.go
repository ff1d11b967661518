package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"backtest_go/internal/storage"
)

// report prints the stored record of a finished run: fill count, equity
// curve and final snapshot.
func main() {
	dbPath := flag.String("db", "run.db", "path to the run record database")
	flag.Parse()

	rec, err := storage.NewRecorder(*dbPath)
	if err != nil {
		slog.Error("open run record failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer rec.Close()

	ctx := context.Background()

	fills, err := rec.CountFills(ctx, "")
	if err != nil {
		slog.Error("read fills failed", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Printf("fills: %d\n", fills)

	curve, err := rec.ReadEquityCurve(ctx)
	if err != nil {
		slog.Error("read equity curve failed", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Printf("equity points: %d\n", len(curve))
	for _, p := range curve {
		fmt.Printf("  %s  %.2f\n", p.Ts.Format("2006-01-02 15:04:05"), p.NAV)
	}

	view, ok, err := rec.LoadSummary(ctx)
	if err != nil {
		slog.Error("read summary failed", slog.Any("error", err))
		os.Exit(1)
	}
	if !ok {
		fmt.Println("no final snapshot stored")
		return
	}
	fmt.Printf("final: cash=%.2f nav=%.2f realized=%.2f commission=%.2f\n",
		view.Cash, view.NAV, view.RealizedPnL, view.TotalCommission)
}
