package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"
)

// CSVSource loads tabular market data from a CSV file and streams it row
// by row. Required columns: timestamp, symbol, last. Optional: bid, ask,
// volume — bid/ask default to last when absent. Rows are sorted by
// timestamp on load so the stream is always in ascending time order.
type CSVSource struct {
	rows []Row
	next int
}

// NewCSVSource reads and parses the whole file up front.
func NewCSVSource(path string) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("feed: open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("feed: read csv: %w", err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("feed: csv %s is empty", path)
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[name] = i
	}
	for _, required := range []string{"timestamp", "symbol", "last"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("feed: csv missing required column %q", required)
		}
	}

	rows := make([]Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		row, err := parseRow(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("feed: csv row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Ts.Before(rows[j].Ts) })

	return &CSVSource{rows: rows}, nil
}

// Next returns the next row in timestamp order, or ok=false at end of data.
func (s *CSVSource) Next(ctx context.Context) (Row, bool, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, false, err
	}
	if s.next >= len(s.rows) {
		return Row{}, false, nil
	}
	row := s.rows[s.next]
	s.next++
	return row, true, nil
}

// Len returns the total number of loaded rows.
func (s *CSVSource) Len() int { return len(s.rows) }

func parseRow(rec []string, cols map[string]int) (Row, error) {
	get := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(rec) {
			return ""
		}
		return rec[idx]
	}

	ts, err := parseTimestamp(get("timestamp"))
	if err != nil {
		return Row{}, err
	}

	last, err := strconv.ParseFloat(get("last"), 64)
	if err != nil {
		return Row{}, fmt.Errorf("bad last price %q: %w", get("last"), err)
	}

	row := Row{
		Ts:     ts,
		Symbol: get("symbol"),
		Last:   last,
		Bid:    last,
		Ask:    last,
	}

	if v := get("bid"); v != "" {
		if row.Bid, err = strconv.ParseFloat(v, 64); err != nil {
			return Row{}, fmt.Errorf("bad bid %q: %w", v, err)
		}
	}
	if v := get("ask"); v != "" {
		if row.Ask, err = strconv.ParseFloat(v, 64); err != nil {
			return Row{}, fmt.Errorf("bad ask %q: %w", v, err)
		}
	}
	if v := get("volume"); v != "" {
		if row.Volume, err = strconv.ParseInt(v, 10, 64); err != nil {
			return Row{}, fmt.Errorf("bad volume %q: %w", v, err)
		}
	}

	return row, nil
}

// parseTimestamp accepts epoch seconds or a "2006-01-02 15:04:05" style
// string (date-only also works).
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if epoch, err := strconv.ParseFloat(s, 64); err == nil {
		sec := int64(epoch)
		nsec := int64((epoch - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC(), nil
	}

	for _, layout := range []string{
		"2006-01-02 15:04:05",
		time.RFC3339,
		"2006-01-02",
	} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
