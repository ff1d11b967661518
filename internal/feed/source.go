// Package feed supplies market observations to the engine, one row at a
// time, in ascending timestamp order.
package feed

import (
	"context"
	"time"
)

// Row is one market observation pulled from a data source.
// Timestamp, Symbol and Last are mandatory; sources default Bid and Ask
// to Last when the input does not carry them. Volume may be zero.
type Row struct {
	Ts     time.Time
	Symbol string
	Bid    float64
	Ask    float64
	Last   float64
	Volume int64
}

// Source produces ordered market rows. Next returns the next row, or
// ok=false once the stream is exhausted. A non-nil error means the source
// failed mid-stream, not that it ended.
type Source interface {
	Next(ctx context.Context) (row Row, ok bool, err error)
}
