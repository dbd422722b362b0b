// Package notify implements the event notifier (C6): emitting an
// "avatar changed" event to a user's own session and to everyone
// subscribed to that user's topic, whenever avatar blob storage mutates.
package notify

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/streamspace/streamspace/api/internal/session"
	"github.com/streamspace/streamspace/api/internal/topic"
	"github.com/streamspace/streamspace/api/internal/wire"
)

// Notifier emits avatar-changed events. It holds no state of its own
// beyond references to the topic registry and session map it publishes
// through, plus an optional cross-instance Relay.
type Notifier struct {
	topics   *topic.Registry
	sessions *session.Map
	relay    *Relay
	log      *zerolog.Logger
}

// New builds a Notifier. log may be nil.
func New(topics *topic.Registry, sessions *session.Map, log *zerolog.Logger) *Notifier {
	return &Notifier{topics: topics, sessions: sessions, log: log}
}

// SetRelay attaches the cross-instance relay; every local SendEvent is
// additionally fanned out to it. Called once during startup, after both
// the Notifier and the Relay have been constructed.
func (n *Notifier) SetRelay(r *Relay) {
	n.relay = r
}

// SendEvent announces that id's avatar changed: every subscriber of id's
// topic receives an Event frame, and if id has a live session of its own,
// that session receives one too so its client can refresh immediately.
// Both deliveries are best-effort; a missing subscriber or session is not
// an error. If a relay is attached, the event is also fanned out to other
// API instances.
func (n *Notifier) SendEvent(id uuid.UUID) {
	n.deliverLocal(id)
	if n.relay != nil {
		n.relay.Publish(id)
	}
}

// deliverLocal delivers an Event frame to id's topic subscribers and own
// session without touching the relay, used both by SendEvent and by the
// relay's inbound subscription so a remote-origin event isn't re-published
// back out and bounced between instances forever.
func (n *Notifier) deliverLocal(id uuid.UUID) {
	frame := wire.EncodeEvent(id)

	n.topics.GetOrCreate(id).Publish(frame)

	if !n.sessions.Send(id, frame) {
		if n.log != nil {
			n.log.Debug().Str("id", id.String()).Msg("notify: no live session to deliver own-session event")
		}
	}
}

// HandleRemoteEvent is the callback passed to Relay.Subscribe: it delivers
// an avatar-changed event that originated on another API instance to this
// instance's local subscribers only.
func (n *Notifier) HandleRemoteEvent(id uuid.UUID) {
	n.deliverLocal(id)
}
