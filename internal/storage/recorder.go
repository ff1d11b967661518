// Package storage persists the observability output of a run: every
// signal, order and fill the engine processed, the equity curve, and the
// final portfolio snapshot. The ledger itself stays in memory; what is
// stored here is the run record, not recoverable trading state.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"backtest_go/internal/event"
	"backtest_go/internal/portfolio"
)

// Recorder writes run records to a SQLite database.
type Recorder struct {
	db *sql.DB
}

// NewRecorder opens (creating if needed) the run database at dbPath with
// WAL mode enabled.
func NewRecorder(dbPath string) (*Recorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			signal_type TEXT NOT NULL,
			strength REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			ts INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			order_type TEXT NOT NULL,
			direction TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			fill_price REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS fills (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			direction TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			fill_price REAL NOT NULL,
			commission REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS equity (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			nav REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &Recorder{db: db}, nil
}

// RecordSignal stores one processed signal.
func (r *Recorder) RecordSignal(ctx context.Context, sig *event.SignalEvent) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO signals (ts, symbol, signal_type, strength) VALUES (?, ?, ?, ?)",
		sig.Ts.UnixMicro(), sig.Symbol, string(sig.SignalType), sig.Strength,
	)
	if err != nil {
		return fmt.Errorf("failed to insert signal: %w", err)
	}
	return nil
}

// RecordOrder stores one routed order alongside its resolved fill price.
func (r *Recorder) RecordOrder(ctx context.Context, ord *event.OrderEvent, fillPrice float64) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO orders (id, ts, symbol, order_type, direction, quantity, fill_price) VALUES (?, ?, ?, ?, ?, ?, ?)",
		ord.ID, ord.Ts.UnixMicro(), ord.Symbol, string(ord.OrderType), string(ord.Direction), ord.Quantity, fillPrice,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// RecordFill stores one executed fill.
func (r *Recorder) RecordFill(ctx context.Context, fill *event.FillEvent) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO fills (order_id, ts, symbol, direction, quantity, fill_price, commission) VALUES (?, ?, ?, ?, ?, ?, ?)",
		fill.OrderID, fill.Ts.UnixMicro(), fill.Symbol, string(fill.Direction), fill.Quantity, fill.FillPrice, fill.Commission,
	)
	if err != nil {
		return fmt.Errorf("failed to insert fill: %w", err)
	}
	return nil
}

// RecordEquityCurve stores the full NAV series of a finished run.
func (r *Recorder) RecordEquityCurve(ctx context.Context, curve []portfolio.EquityPoint) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO equity (ts, nav) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare equity insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range curve {
		if _, err := stmt.ExecContext(ctx, p.Ts.UnixMicro(), p.NAV); err != nil {
			return fmt.Errorf("failed to insert equity point: %w", err)
		}
	}

	return tx.Commit()
}

// SaveSummary stores the final portfolio snapshot as JSON under the
// "final_snapshot" metadata key.
func (r *Recorder) SaveSummary(ctx context.Context, view portfolio.View) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		"final_snapshot", string(payload), time.Now().UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert summary: %w", err)
	}
	return nil
}

// LoadSummary reads back the stored final snapshot, if any.
func (r *Recorder) LoadSummary(ctx context.Context) (portfolio.View, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		"SELECT value FROM metadata WHERE key = ?", "final_snapshot").Scan(&value)
	if err == sql.ErrNoRows {
		return portfolio.View{}, false, nil
	}
	if err != nil {
		return portfolio.View{}, false, fmt.Errorf("failed to load summary: %w", err)
	}

	var view portfolio.View
	if err := json.Unmarshal([]byte(value), &view); err != nil {
		return portfolio.View{}, false, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	return view, true, nil
}

// ReadEquityCurve loads the stored NAV series back in time order.
func (r *Recorder) ReadEquityCurve(ctx context.Context) ([]portfolio.EquityPoint, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT ts, nav FROM equity ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query equity: %w", err)
	}
	defer rows.Close()

	var curve []portfolio.EquityPoint
	for rows.Next() {
		var tsMicros int64
		var nav float64
		if err := rows.Scan(&tsMicros, &nav); err != nil {
			return nil, err
		}
		curve = append(curve, portfolio.EquityPoint{
			Ts:  time.UnixMicro(tsMicros).UTC(),
			NAV: nav,
		})
	}
	return curve, rows.Err()
}

// CountFills returns the number of recorded fills, optionally filtered by
// symbol ("" counts all).
func (r *Recorder) CountFills(ctx context.Context, symbol string) (int64, error) {
	var n int64
	var err error
	if symbol == "" {
		err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fills").Scan(&n)
	} else {
		err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fills WHERE symbol = ?", symbol).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count fills: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (r *Recorder) Close() error {
	return r.db.Close()
}
