package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"backtest_go/internal/app"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the run configuration")
	flag.Parse()

	bootstrap, err := app.New(*configPath)
	if err != nil {
		slog.Error("bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bootstrap.Run(ctx); err != nil {
		slog.Error("run failed", slog.Any("error", err))
		os.Exit(1)
	}

	curve := bootstrap.Ledger.EquityCurve()
	fmt.Println("\nLast NAV points:")
	tail := curve
	if len(tail) > 3 {
		tail = tail[len(tail)-3:]
	}
	for _, p := range tail {
		fmt.Printf("  %s  %.2f\n", p.Ts.Format("2006-01-02 15:04:05"), p.NAV)
	}

	view := bootstrap.Ledger.Snapshot()
	fmt.Println("\nFinal snapshot:")
	fmt.Printf("  cash=%.2f nav=%.2f realized=%.2f unrealized=%.2f commission=%.2f\n",
		view.Cash, view.NAV, view.RealizedPnL, view.UnrealizedPnL, view.TotalCommission)
	for sym, qty := range view.Positions {
		fmt.Printf("  %s qty=%d avg_cost=%.2f last=%.2f\n",
			sym, qty, view.AvgCost[sym], view.LastPrices[sym])
	}
}
