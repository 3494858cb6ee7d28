package push

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/davidyun/swoon/go/internal/signal"
)

// WSConfig holds configuration for the WebSocket transport.
type WSConfig struct {
	URL             string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	ReconnectWait   time.Duration
	MaxReconnects   int // -1 for infinite
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
}

// DefaultWSConfig returns default WebSocket transport configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		URL:             "ws://localhost:8081/ws/events",
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		ReconnectWait:   2 * time.Second,
		MaxReconnects:   -1,
		MaxMessageSize:  64 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// WSTransport is the production push transport: a WebSocket client that
// dials the event gateway, decodes frames into events, and fans them
// out to registered handlers. Each (re)connect emits transport-ready on
// the signal bus so late subscribers can attach.
type WSTransport struct {
	*dispatcher

	config WSConfig
	bus    *signal.Bus

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
}

// NewWSTransport creates a WebSocket transport. Call Run to connect.
func NewWSTransport(config WSConfig, bus *signal.Bus) *WSTransport {
	return &WSTransport{
		dispatcher: newDispatcher(),
		config:     config,
		bus:        bus,
	}
}

// IsConnected reports whether the socket is currently open.
func (t *WSTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// Run dials the gateway and keeps the connection alive until ctx is
// cancelled, reconnecting with a fixed wait between attempts. It blocks
// and always returns nil on shutdown.
func (t *WSTransport) Run(ctx context.Context) error {
	attempts := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.config.URL, nil)
		if err != nil {
			attempts++
			if t.config.MaxReconnects >= 0 && attempts > t.config.MaxReconnects {
				log.Error().
					Err(err).
					Int("attempts", attempts).
					Msg("push transport giving up, running in degraded mode")
				return nil
			}
			log.Warn().
				Err(err).
				Str("url", t.config.URL).
				Msg("push transport dial failed, retrying")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(t.config.ReconnectWait):
			}
			continue
		}
		attempts = 0

		t.setConn(conn)
		log.Info().Str("url", t.config.URL).Msg("push transport connected")
		t.bus.Emit(signal.TopicTransportReady, nil)

		t.readLoop(ctx, conn)
		t.setConn(nil)

		if ctx.Err() != nil {
			return nil
		}
		log.Warn().Msg("push transport disconnected, reconnecting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(t.config.ReconnectWait):
		}
	}
}

func (t *WSTransport) setConn(conn *websocket.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil && conn == nil {
		t.conn.Close()
	}
	t.conn = conn
	t.connected = conn != nil
}

// readLoop pumps frames off one connection until it breaks or ctx ends.
func (t *WSTransport) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)

	// Ping loop keeps the read deadline honest.
	go func() {
		ticker := time.NewTicker(t.config.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					log.Debug().Err(err).Msg("push transport ping failed")
					return
				}
			}
		}
	}()

	conn.SetReadLimit(t.config.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(t.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(t.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("push transport read error")
			}
			return
		}

		evt, err := ParseEvent(message)
		if err != nil {
			log.Warn().Err(err).Msg("dropping malformed push event")
			continue
		}
		t.dispatch(evt)
		conn.SetReadDeadline(time.Now().Add(t.config.ReadTimeout))
	}
}
