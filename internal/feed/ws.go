package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"backtest_go/internal/infra"
)

// wsTick is the wire format of one streamed observation.
type wsTick struct {
	TsMillis int64   `json:"ts"`
	Symbol   string  `json:"symbol"`
	Bid      float64 `json:"bid"`
	Ask      float64 `json:"ask"`
	Last     float64 `json:"last"`
	Volume   int64   `json:"volume"`
}

// WSSource adapts a live WebSocket tick stream to the Source interface.
// A background goroutine owns the connection (reconnecting with backoff)
// and feeds decoded rows into a bounded channel; Next pulls from it. The
// stream ends when Stop is called or the Start context is cancelled —
// that is the engine's "stop admitting new external rows" boundary.
type WSSource struct {
	url  string
	rows chan Row

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	conn *websocket.Conn

	ReadTimeout      time.Duration
	HandshakeTimeout time.Duration
}

// NewWSSource creates a source reading from the given ws:// or wss:// URL.
func NewWSSource(url string, buffer int) *WSSource {
	if buffer <= 0 {
		buffer = 256
	}
	return &WSSource{
		url:              url,
		rows:             make(chan Row, buffer),
		ReadTimeout:      60 * time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

// Start launches the connection loop.
func (s *WSSource) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.runLoop(ctx)
}

// Stop terminates the connection loop and ends the stream.
func (s *WSSource) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.closeConn()
	s.wg.Wait()
}

// Next returns the next streamed row. ok=false means the stream has ended.
func (s *WSSource) Next(ctx context.Context) (Row, bool, error) {
	select {
	case <-ctx.Done():
		return Row{}, false, ctx.Err()
	case row, open := <-s.rows:
		if !open {
			return Row{}, false, nil
		}
		return row, true, nil
	}
}

func (s *WSSource) runLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.rows)

	retry := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.connect(ctx); err != nil {
			delay := infra.Backoff(retry)
			retry++
			slog.Warn("ws feed connect failed",
				slog.String("url", s.url),
				slog.Any("error", err),
				slog.Duration("retry_in", delay))

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retry = 0
		s.readLoop(ctx)
	}
}

func (s *WSSource) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: s.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.url, http.Header{})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	slog.Info("ws feed connected", slog.String("url", s.url))
	return nil
}

func (s *WSSource) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("ws feed read error", slog.Any("error", err))
			s.closeConn()
			return
		}

		row, err := decodeTick(msg)
		if err != nil {
			slog.Warn("ws feed skipping malformed tick", slog.Any("error", err))
			continue
		}

		select {
		case <-ctx.Done():
			return
		case s.rows <- row:
		}
	}
}

func (s *WSSource) closeConn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func decodeTick(msg []byte) (Row, error) {
	var tick wsTick
	if err := json.Unmarshal(msg, &tick); err != nil {
		return Row{}, err
	}

	row := Row{
		Ts:     time.UnixMilli(tick.TsMillis).UTC(),
		Symbol: tick.Symbol,
		Bid:    tick.Bid,
		Ask:    tick.Ask,
		Last:   tick.Last,
		Volume: tick.Volume,
	}
	if row.Bid == 0 {
		row.Bid = row.Last
	}
	if row.Ask == 0 {
		row.Ask = row.Last
	}
	return row, nil
}
