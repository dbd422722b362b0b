package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/streamspace/streamspace/api/internal/events"
)

// RelayConfig configures the optional cross-instance relay.
type RelayConfig struct {
	URL      string
	User     string
	Password string
}

// Relay best-effort fans avatar-changed events out to every other API
// instance over NATS, so a subscriber connected to instance B still sees
// a publish that happened on instance A. If NATS is unreachable at
// startup the relay runs disabled: local delivery through the Notifier
// still works, only cross-instance propagation is lost.
type Relay struct {
	conn    *nats.Conn
	enabled bool
	log     *zerolog.Logger
}

// NewRelay connects to NATS if cfg.URL is set, returning a disabled relay
// (never an error) if the broker cannot be reached.
func NewRelay(cfg RelayConfig, log *zerolog.Logger) *Relay {
	if cfg.URL == "" {
		if log != nil {
			log.Info().Msg("notify: NATS_URL not configured, cross-instance relay disabled")
		}
		return &Relay{enabled: false, log: log}
	}

	opts := []nats.Option{
		nats.Name("streamspace-avatar-relay"),
		nats.NoEcho(),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil && log != nil {
				log.Warn().Err(err).Msg("notify: relay disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			if log != nil {
				log.Info().Str("url", nc.ConnectedUrl()).Msg("notify: relay reconnected to NATS")
			}
		}),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		if log != nil {
			log.Warn().Err(err).Str("url", cfg.URL).Msg("notify: failed to connect relay to NATS, disabling cross-instance propagation")
		}
		return &Relay{enabled: false, log: log}
	}

	if log != nil {
		log.Info().Str("url", conn.ConnectedUrl()).Msg("notify: relay connected to NATS")
	}
	return &Relay{conn: conn, enabled: true, log: log}
}

// Publish announces id changed to other instances. A no-op when disabled.
func (r *Relay) Publish(id uuid.UUID) {
	if !r.enabled {
		return
	}
	if err := r.conn.Publish(events.SubjectAvatarChanged, id[:]); err != nil && r.log != nil {
		r.log.Debug().Err(err).Msg("notify: relay publish failed")
	}
}

// Subscribe registers onEvent to run for every avatar-changed message
// received from other instances. A no-op (returning a no-op unsubscribe
// func) when disabled.
func (r *Relay) Subscribe(onEvent func(uuid.UUID)) (unsubscribe func(), err error) {
	if !r.enabled {
		return func() {}, nil
	}

	sub, err := r.conn.Subscribe(events.SubjectAvatarChanged, func(msg *nats.Msg) {
		id, parseErr := uuid.FromBytes(msg.Data)
		if parseErr != nil {
			if r.log != nil {
				r.log.Debug().Err(parseErr).Msg("notify: relay received malformed avatar-changed message")
			}
			return
		}
		onEvent(id)
	})
	if err != nil {
		return nil, fmt.Errorf("notify: subscribing to relay subject: %w", err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// Close shuts down the NATS connection, if one was established.
func (r *Relay) Close() {
	if r.enabled && r.conn != nil {
		r.conn.Close()
	}
}
