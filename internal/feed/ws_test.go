package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newTickServer serves one WebSocket connection and runs handler on it.
func newTickServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func httpToWS(url string) string {
	return strings.Replace(url, "http://", "ws://", 1)
}

func TestWSSourceStreamsTicks(t *testing.T) {
	server := newTickServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"ts":1764062400000,"symbol":"X","bid":99.9,"ask":100.1,"last":100}`))
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"ts":1764062460000,"symbol":"X","last":101}`))
		time.Sleep(200 * time.Millisecond)
	})
	defer server.Close()

	src := NewWSSource(httpToWS(server.URL), 16)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	src.Start(ctx)
	defer src.Stop()

	row, ok, err := src.Next(ctx)
	if err != nil || !ok {
		t.Fatalf("expected first tick, ok=%v err=%v", ok, err)
	}
	if row.Symbol != "X" || row.Last != 100 || row.Bid != 99.9 || row.Ask != 100.1 {
		t.Errorf("first tick mismatch: %+v", row)
	}
	if row.Ts.UnixMilli() != 1764062400000 {
		t.Errorf("timestamp mismatch: %v", row.Ts)
	}

	// Absent bid/ask default to last, as with the CSV source.
	row, ok, err = src.Next(ctx)
	if err != nil || !ok {
		t.Fatalf("expected second tick, ok=%v err=%v", ok, err)
	}
	if row.Bid != 101 || row.Ask != 101 {
		t.Errorf("bid/ask must default to last: %+v", row)
	}
}

func TestWSSourceStopEndsStream(t *testing.T) {
	server := newTickServer(t, func(conn *websocket.Conn) {
		// Keep the connection open without sending anything.
		time.Sleep(2 * time.Second)
	})
	defer server.Close()

	src := NewWSSource(httpToWS(server.URL), 16)
	src.Start(context.Background())

	time.Sleep(100 * time.Millisecond)
	src.Stop()

	_, ok, err := src.Next(context.Background())
	if ok || err != nil {
		t.Errorf("expected clean end of stream after Stop, ok=%v err=%v", ok, err)
	}
}

func TestWSSourceSkipsMalformedTicks(t *testing.T) {
	server := newTickServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"ts":1764062400000,"symbol":"X","last":100}`))
		time.Sleep(200 * time.Millisecond)
	})
	defer server.Close()

	src := NewWSSource(httpToWS(server.URL), 16)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	src.Start(ctx)
	defer src.Stop()

	row, ok, err := src.Next(ctx)
	if err != nil || !ok {
		t.Fatalf("expected the valid tick, ok=%v err=%v", ok, err)
	}
	if row.Symbol != "X" || row.Last != 100 {
		t.Errorf("expected the well-formed tick, got %+v", row)
	}
}
