// Package session implements the per-connection WebSocket state machine
// (C5): an Unauthenticated/Authenticated cycle that reads bespoke binary
// frames, drives the authentication handshake's token into an identity,
// publishes ping frames to the owner's topic, and manages subscription
// relays that forward another user's topic into this connection's
// outbound queue.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/streamspace/streamspace/api/internal/registry"
	"github.com/streamspace/streamspace/api/internal/topic"
	"github.com/streamspace/streamspace/api/internal/wire"
)

// outboundBufferSize bounds the per-session outbound queue; a session that
// cannot keep up with its own deliveries has each new message dropped
// while the queue is full, rather than stalling the relays feeding it.
const outboundBufferSize = 64

// banToastSleep is how long a banned connection is held open after being
// toasted, before the terminating close frame is sent. It exists purely
// so the client has time to render the toast before the socket dies.
const banToastSleep = 6 * time.Second

const (
	closeReauth = 4000
	closeBanned = 4001
)

// conn is the subset of *websocket.Conn the session loop needs; it exists
// so tests can drive the loop against a fake transport.
type conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// owner identifies the authenticated user bound to a session, once known.
type owner struct {
	id       uuid.UUID
	nickname string
	token    string
}

// Session drives one WebSocket connection end to end.
type Session struct {
	conn      conn
	reg       *registry.Registry
	topics    *topic.Registry
	sessions  *Map
	log       *zerolog.Logger

	outbound chan []byte
	writeMu  sync.Mutex

	owner *owner

	subsMu  sync.Mutex
	subs    map[uuid.UUID]*topic.Subscription
	relayWG sync.WaitGroup

	ownTopic *topic.Topic
}

// New builds a Session around an established WebSocket connection. log may
// be nil.
func New(c *websocket.Conn, reg *registry.Registry, topics *topic.Registry, sessions *Map, log *zerolog.Logger) *Session {
	return newSession(c, reg, topics, sessions, log)
}

func newSession(c conn, reg *registry.Registry, topics *topic.Registry, sessions *Map, log *zerolog.Logger) *Session {
	return &Session{
		conn:     c,
		reg:      reg,
		topics:   topics,
		sessions: sessions,
		log:      log,
		outbound: make(chan []byte, outboundBufferSize),
		subs:     make(map[uuid.UUID]*topic.Subscription),
	}
}

// Run drives the session until the connection terminates, then tears down
// every subscription relay, the SessionMap entry, and the registry record
// for the authenticated owner, if any. Teardown completes, and every relay
// goroutine that might still send on s.outbound has exited, before
// s.outbound is closed: a relay or a Notifier delivery racing the close
// would otherwise select on a closed channel and panic instead of taking
// the intended default branch (send on a closed channel is always ready).
func (s *Session) Run() {
	writerDone := make(chan struct{})
	go s.writeLoop(writerDone)

	s.readLoop()

	s.cleanup()

	close(s.outbound)
	<-writerDone
}

func (s *Session) writeLoop(done chan struct{}) {
	defer close(done)
	for msg := range s.outbound {
		if err := s.writeMessage(websocket.BinaryMessage, msg); err != nil {
			if s.log != nil {
				s.log.Warn().Err(err).Msg("session: send error, terminating connection")
			}
			return
		}
	}
}

// writeMessage serializes all writes to the connection: gorilla/websocket
// permits only one concurrent writer, and both the write loop and the
// read loop's ban/re-auth close frames write to the same conn.
func (s *Session) writeMessage(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

func (s *Session) readLoop() {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType == websocket.CloseMessage {
			return
		}
		if len(data) == 0 {
			continue
		}

		if s.owner != nil && s.reg.IsBanned(s.owner.id) {
			s.sendDirect(wire.EncodeToast(2, "You're banned!", ""))
			time.Sleep(banToastSleep)
			s.closeWithCode(closeBanned, "You're banned!")
			continue
		}

		msg, err := wire.DecodeC2S(data)
		if err != nil {
			if s.log != nil {
				s.log.Debug().Err(err).Msg("session: discarding malformed frame")
			}
			continue
		}

		if s.handleFrame(msg) == loopBreak {
			return
		}
	}
}

type loopSignal int

const (
	loopContinue loopSignal = iota
	loopBreak
)

func (s *Session) handleFrame(msg *wire.C2SMessage) loopSignal {
	switch msg.Opcode {
	case wire.OpToken:
		s.handleToken(msg.Token)
	case wire.OpPing:
		s.handlePing(msg)
	case wire.OpSub:
		s.handleSub(msg.Target)
	case wire.OpUnsub:
		s.handleUnsub(msg.Target)
	}
	return loopContinue
}

func (s *Session) handleToken(token string) {
	info, ok := s.reg.Get(token)
	if !ok {
		if s.log != nil {
			s.log.Debug().Msg("session: token not recognized, re-auth required")
		}
		s.closeWithCode(closeReauth, "Re-auth")
		return
	}

	s.owner = &owner{id: info.ID, nickname: info.Nickname, token: info.Token}
	s.sessions.Insert(info.ID, s.outbound)
	s.ownTopic = s.topics.GetOrCreate(info.ID)
	s.sendDirect(wire.EncodeAuth())
}

func (s *Session) handlePing(msg *wire.C2SMessage) {
	if s.owner == nil || s.ownTopic == nil {
		return
	}
	raw := wire.EncodePing(msg.PingID, msg.Sync, msg.Data)
	transformed, err := wire.TransformPing(raw, s.owner.id)
	if err != nil {
		if s.log != nil {
			s.log.Debug().Err(err).Msg("session: failed to transform ping")
		}
		return
	}
	s.ownTopic.Publish(transformed)
}

func (s *Session) handleSub(target uuid.UUID) {
	if s.owner == nil || target == s.owner.id {
		return
	}

	s.subsMu.Lock()
	if old, exists := s.subs[target]; exists {
		old.Cancel()
		delete(s.subs, target)
	}
	sub := s.topics.GetOrCreate(target).Subscribe()
	s.subs[target] = sub
	s.subsMu.Unlock()

	s.relayWG.Add(1)
	go s.relay(sub)
}

func (s *Session) handleUnsub(target uuid.UUID) {
	if s.owner == nil || target == s.owner.id {
		return
	}

	s.subsMu.Lock()
	sub, exists := s.subs[target]
	if exists {
		delete(s.subs, target)
	}
	s.subsMu.Unlock()

	if exists {
		sub.Cancel()
	}
}

// relay forwards messages from a subscribed topic into the session's
// outbound queue until the subscription is canceled or the topic closes
// it. It must exit before s.outbound is closed (see Run); cleanup waits
// on relayWG for exactly that reason.
func (s *Session) relay(sub *topic.Subscription) {
	defer s.relayWG.Done()
	for msg := range sub.Recv() {
		select {
		case s.outbound <- msg:
		default:
			if s.log != nil {
				s.log.Debug().Msg("session: dropping relayed message, outbound queue full")
			}
		}
	}
}

// sendDirect enqueues msg on the outbound queue without blocking; used for
// responses generated synchronously within the read loop.
func (s *Session) sendDirect(msg []byte) {
	select {
	case s.outbound <- msg:
	default:
		if s.log != nil {
			s.log.Debug().Msg("session: dropping direct send, outbound queue full")
		}
	}
}

func (s *Session) closeWithCode(code int, reason string) {
	_ = s.writeMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}

// cleanup cancels every subscription relay and waits for each one to exit,
// then removes this session's SessionMap and registry entries. It must run
// to completion before Run closes s.outbound: until every relay has
// returned, one could still be mid-select on s.outbound, and until the
// SessionMap entry is gone, a concurrent Notifier delivery (including one
// arriving from the NATS relay's own goroutine, which runs outside gin's
// recovery middleware) could still hold that channel too.
func (s *Session) cleanup() {
	s.subsMu.Lock()
	for target, sub := range s.subs {
		sub.Cancel()
		delete(s.subs, target)
	}
	s.subsMu.Unlock()

	s.relayWG.Wait()

	if s.owner != nil {
		s.sessions.RemoveIfCurrent(s.owner.id, s.outbound)
		s.reg.RemoveIfToken(s.owner.id, s.owner.token)
	}
}
