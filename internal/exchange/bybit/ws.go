package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultStreamURL is the public linear ticker stream endpoint.
const DefaultStreamURL = "wss://stream.bybit.com/v5/public/linear"

// StreamConfig configures ticker stream behavior.
type StreamConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending protocol pings.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultStreamConfig returns default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      20 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// TickerStream maintains a last-price cache fed by the public ticker
// topic of each subscribed symbol. The cache only ever grows fresher: a
// reconnect keeps the previous prices until new ticks arrive.
type TickerStream struct {
	endpoint string
	symbols  []string
	config   StreamConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	prices   map[string]float64
	pricesMu sync.RWMutex

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewTickerStream connects and subscribes to the ticker topic for each
// symbol. A nil config uses defaults.
func NewTickerStream(ctx context.Context, endpoint string, symbols []string, config *StreamConfig) (*TickerStream, error) {
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}

	s := &TickerStream{
		endpoint: endpoint,
		symbols:  append([]string(nil), symbols...),
		config:   cfg,
		prices:   make(map[string]float64),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	if err := s.subscribe(); err != nil {
		s.Close()
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

// LastPrice returns the freshest streamed price for a symbol.
func (s *TickerStream) LastPrice(symbol string) (float64, bool) {
	s.pricesMu.RLock()
	defer s.pricesMu.RUnlock()

	price, ok := s.prices[symbol]
	return price, ok
}

// Close shuts the stream down.
func (s *TickerStream) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	return nil
}

// connect establishes the WebSocket connection.
func (s *TickerStream) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

// subscribe sends the ticker subscription for all symbols.
func (s *TickerStream) subscribe() error {
	args := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		args = append(args, "tickers."+sym)
	}

	req := wsCommand{Op: "subscribe", Args: args}

	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

// readLoop reads messages and updates the price cache.
func (s *TickerStream) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			if !s.reconnecting.Swap(true) {
				go s.reconnect(reconnectDelay)
			}

			reconnectDelay *= 2
			if reconnectDelay > s.config.MaxReconnectDelay {
				reconnectDelay = s.config.MaxReconnectDelay
			}

			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = s.config.ReconnectDelay

		s.handleMessage(message)
	}
}

// reconnect re-establishes the connection and resubscribes.
func (s *TickerStream) reconnect(delay time.Duration) {
	defer s.reconnecting.Store(false)

	if s.closed.Load() {
		return
	}

	select {
	case <-s.done:
		return
	case <-time.After(delay):
	}

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		// Reconnect failed, will retry on next read error
		return
	}

	// Subscription failure surfaces as a read error and retriggers reconnect.
	_ = s.subscribe()
}

// handleMessage updates the cache from a ticker push. Snapshot messages
// carry every field; delta messages only the changed ones, so an absent
// lastPrice leaves the cache untouched.
func (s *TickerStream) handleMessage(message []byte) {
	var push struct {
		Topic string `json:"topic"`
		Data  struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
		} `json:"data"`
	}
	if err := json.Unmarshal(message, &push); err != nil {
		return
	}
	if !strings.HasPrefix(push.Topic, "tickers.") || push.Data.LastPrice == "" {
		return
	}

	price, err := strconv.ParseFloat(push.Data.LastPrice, 64)
	if err != nil || price <= 0 {
		return
	}

	symbol := push.Data.Symbol
	if symbol == "" {
		symbol = push.Topic[len("tickers."):]
	}

	s.pricesMu.Lock()
	s.prices[symbol] = price
	s.pricesMu.Unlock()
}

// pingLoop sends the protocol-level ping Bybit expects.
func (s *TickerStream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				if err := s.conn.WriteJSON(wsCommand{Op: "ping"}); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			s.connMu.Unlock()
		}
	}
}

type wsCommand struct {
	Op   string   `json:"op"`
	Args []string `json:"args,omitempty"`
}
