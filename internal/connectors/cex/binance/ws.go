package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Ticker is one streaming price update.
type Ticker struct {
	Symbol string
	Price  float64
	TS     time.Time
}

type WS struct {
	URL    string
	Dialer *websocket.Dialer
	conn   *websocket.Conn
	mu     sync.Mutex
}

// NewWS wraps a stream URL that already carries the subscription path,
// e.g. wss://stream.binance.com:9443/ws/!miniTicker@arr.
func NewWS(url string) *WS {
	return &WS{
		URL: strings.TrimRight(url, "/"),
		Dialer: &websocket.Dialer{
			HandshakeTimeout:  15 * time.Second,
			EnableCompression: true,
		},
	}
}

func (w *WS) connect(ctx context.Context) (*websocket.Conn, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		return w.conn, nil
	}
	c, _, err := w.Dialer.DialContext(ctx, w.URL, http.Header{})
	if err != nil {
		return nil, err
	}

	// The server pings every few minutes; every control frame extends the
	// read deadline so a dead peer surfaces as a read error.
	_ = c.SetReadDeadline(time.Now().Add(5 * time.Minute))
	c.SetPingHandler(func(payload string) error {
		_ = c.SetReadDeadline(time.Now().Add(5 * time.Minute))
		return c.WriteControl(websocket.PongMessage, []byte(payload), time.Now().Add(10*time.Second))
	})
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(5 * time.Minute))
	})
	w.conn = c
	return c, nil
}

func (w *WS) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}

// closeConn tears down one specific connection; a connection established
// after it stays untouched.
func (w *WS) closeConn(c *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = c.Close()
	if w.conn == c {
		w.conn = nil
	}
}

type miniTickerMsg struct {
	Event  string `json:"e"`
	Symbol string `json:"s"`
	Close  string `json:"c"`
	Time   int64  `json:"E"`
}

// SubscribeMiniTickers connects and decodes the rolling mini-ticker array
// stream into per-symbol updates. The returned channels close when the
// read loop ends; callers reconnect by calling again after Close.
func (w *WS) SubscribeMiniTickers(ctx context.Context) (<-chan Ticker, <-chan error, error) {
	conn, err := w.connect(ctx)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan Ticker, 2048)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)
		defer w.closeConn(conn)

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			_, data, err := conn.ReadMessage()
			if err != nil {
				errc <- err
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))

			var batch []miniTickerMsg
			if err := json.Unmarshal(data, &batch); err != nil {
				// Single-object frames arrive on per-symbol streams.
				var one miniTickerMsg
				if json.Unmarshal(data, &one) != nil {
					continue
				}
				batch = []miniTickerMsg{one}
			}

			for _, m := range batch {
				price, err := strconv.ParseFloat(m.Close, 64)
				if err != nil || price <= 0 || m.Symbol == "" {
					continue
				}
				ts := time.Now()
				if m.Time > 0 {
					ts = time.UnixMilli(m.Time)
				}
				select {
				case out <- Ticker{Symbol: strings.ToUpper(m.Symbol), Price: price, TS: ts}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, errc, nil
}
