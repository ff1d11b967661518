package feed_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"backtest_go/internal/feed"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCSVSourceStreamsInTimestampOrder(t *testing.T) {
	// Rows arrive unsorted; the source must stream them by timestamp.
	path := writeCSV(t,
		"timestamp,symbol,last,bid,ask,volume\n"+
			"2025-11-25 09:32:00,X,102,101.9,102.1,300\n"+
			"2025-11-25 09:30:00,X,100,99.9,100.1,100\n"+
			"2025-11-25 09:31:00,X,101,100.9,101.1,200\n")

	src, err := feed.NewCSVSource(path)
	if err != nil {
		t.Fatal(err)
	}
	if src.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", src.Len())
	}

	ctx := context.Background()
	var lasts []float64
	for {
		row, ok, err := src.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		lasts = append(lasts, row.Last)
	}

	want := []float64{100, 101, 102}
	for i := range want {
		if lasts[i] != want[i] {
			t.Errorf("row %d: expected last %f, got %f", i, want[i], lasts[i])
		}
	}
}

func TestCSVSourceDefaultsBidAskToLast(t *testing.T) {
	path := writeCSV(t,
		"timestamp,symbol,last\n"+
			"2025-11-25 09:30:00,X,100\n")

	src, err := feed.NewCSVSource(path)
	if err != nil {
		t.Fatal(err)
	}

	row, ok, err := src.Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected a row, ok=%v err=%v", ok, err)
	}
	if row.Bid != 100 || row.Ask != 100 {
		t.Errorf("bid/ask must default to last: bid=%f ask=%f", row.Bid, row.Ask)
	}
	if row.Volume != 0 {
		t.Errorf("absent volume must be zero, got %d", row.Volume)
	}
}

func TestCSVSourceEpochTimestamps(t *testing.T) {
	path := writeCSV(t,
		"timestamp,symbol,last\n"+
			"1764062400,X,100\n")

	src, err := feed.NewCSVSource(path)
	if err != nil {
		t.Fatal(err)
	}

	row, ok, _ := src.Next(context.Background())
	if !ok {
		t.Fatal("expected a row")
	}
	if row.Ts.Unix() != 1764062400 {
		t.Errorf("expected epoch 1764062400, got %d", row.Ts.Unix())
	}
}

func TestCSVSourceMissingColumn(t *testing.T) {
	path := writeCSV(t, "timestamp,symbol\n2025-11-25 09:30:00,X\n")

	if _, err := feed.NewCSVSource(path); err == nil {
		t.Error("expected an error for a csv without the last column")
	}
}

func TestCSVSourceEndOfStream(t *testing.T) {
	path := writeCSV(t,
		"timestamp,symbol,last\n"+
			"2025-11-25 09:30:00,X,100\n")

	src, err := feed.NewCSVSource(path)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, ok, _ := src.Next(ctx); !ok {
		t.Fatal("expected the first row")
	}
	if _, ok, _ := src.Next(ctx); ok {
		t.Error("expected end of stream")
	}
	// Exhaustion is stable, not an error.
	if _, ok, err := src.Next(ctx); ok || err != nil {
		t.Errorf("end of stream must repeat cleanly, ok=%v err=%v", ok, err)
	}
}
