package push

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/davidyun/swoon/go/internal/signal"
)

// NATSConfig holds configuration for the NATS transport.
type NATSConfig struct {
	URL           string
	SubjectPrefix string // e.g. "swoon.entity"
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns default NATS transport configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "swoon.entity",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// NATSTransport is the alternative push transport for deployments where
// the backend publishes entity updates over NATS instead of a socket
// gateway. Subjects are <prefix>.<entityID>; payloads are Event JSON.
type NATSTransport struct {
	*dispatcher

	config NATSConfig
	bus    *signal.Bus
	nc     *nats.Conn
	sub    *nats.Subscription
}

// NewNATSTransport connects to NATS and subscribes to entity updates.
func NewNATSTransport(config NATSConfig, bus *signal.Bus) (*NATSTransport, error) {
	t := &NATSTransport{
		dispatcher: newDispatcher(),
		config:     config,
		bus:        bus,
	}

	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
			bus.Emit(signal.TopicTransportReady, nil)
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	t.nc = nc

	sub, err := nc.Subscribe(config.SubjectPrefix+".>", t.handleMessage)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe to entity updates: %w", err)
	}
	t.sub = sub

	bus.Emit(signal.TopicTransportReady, nil)
	return t, nil
}

func (t *NATSTransport) handleMessage(msg *nats.Msg) {
	evt, err := ParseEvent(msg.Data)
	if err != nil {
		log.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping malformed push event")
		return
	}
	t.dispatch(evt)
}

// IsConnected reports whether the NATS connection is live.
func (t *NATSTransport) IsConnected() bool {
	return t.nc != nil && t.nc.IsConnected()
}

// Close unsubscribes and closes the connection.
func (t *NATSTransport) Close() {
	if t.sub != nil {
		if err := t.sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Msg("failed to unsubscribe")
		}
	}
	if t.nc != nil {
		t.nc.Close()
	}
}
