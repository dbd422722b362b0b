// Package topic implements the per-user broadcast fabric (C3): one Topic
// per UserIdentifier, created lazily on first publish or first subscribe,
// living for the lifetime of the process. The broadcast pattern (bounded
// channel per consumer, non-blocking send, drop-on-overflow for slow
// readers) follows the same shape as the teacher's websocket Hub, adapted
// from one global hub fan-out to one lazily-created channel set per key.
package topic

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// bufferSize is the bounded capacity of every subscriber channel; a slow
// consumer has messages dropped rather than back-pressuring the publisher.
const bufferSize = 64

// Topic is a multi-producer/multi-consumer broadcast channel for one
// user's ping/event stream.
type Topic struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
	log  *zerolog.Logger
}

type subscriber struct {
	ch     chan []byte
	cancel chan struct{}
}

func newTopic(log *zerolog.Logger) *Topic {
	return &Topic{subs: make(map[*subscriber]struct{}), log: log}
}

// Publish sends msg to every currently-subscribed receiver. Delivery is
// non-blocking per subscriber; a full subscriber buffer causes that one
// message to be dropped for that subscriber, logged at debug, without
// affecting other subscribers or the publisher.
func (t *Topic) Publish(msg []byte) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for s := range t.subs {
		select {
		case s.ch <- msg:
		default:
			if t.log != nil {
				t.log.Debug().Msg("topic: dropping message, subscriber buffer full")
			}
		}
	}
}

// Subscription is a live subscription to a Topic. Recv yields messages
// published after the subscription was created; Cancel tears it down.
type Subscription struct {
	topic *Topic
	sub   *subscriber
}

// Subscribe attaches a new receiver to the topic. The returned
// Subscription observes only messages published after this call.
func (t *Topic) Subscribe() *Subscription {
	s := &subscriber{ch: make(chan []byte, bufferSize), cancel: make(chan struct{})}
	t.mu.Lock()
	t.subs[s] = struct{}{}
	t.mu.Unlock()
	return &Subscription{topic: t, sub: s}
}

// Recv returns the subscription's channel of incoming messages. It is
// closed when Cancel is called.
func (s *Subscription) Recv() <-chan []byte {
	return s.sub.ch
}

// Cancel detaches the subscription from its topic and closes its channel.
// Safe to call more than once.
func (s *Subscription) Cancel() {
	s.topic.mu.Lock()
	if _, ok := s.topic.subs[s.sub]; ok {
		delete(s.topic.subs, s.sub)
		close(s.sub.ch)
	}
	s.topic.mu.Unlock()
}

// Registry maps UserIdentifier to Topic. Topics are never removed once
// created (see design notes on topic lifetime): this matches the source's
// behavior of leaking process-lifetime topics rather than reference
// counting them, which keeps subscriber relays from racing a topic's
// removal out from under them.
type Registry struct {
	mu     sync.Mutex
	topics map[uuid.UUID]*Topic
	log    *zerolog.Logger
}

// NewRegistry creates an empty topic registry.
func NewRegistry(log *zerolog.Logger) *Registry {
	return &Registry{topics: make(map[uuid.UUID]*Topic), log: log}
}

// GetOrCreate returns the topic for id, creating it if this is the first
// caller (publisher or subscriber) to reference it. Safe under concurrent
// first-writers.
func (r *Registry) GetOrCreate(id uuid.UUID) *Topic {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.topics[id]
	if !ok {
		t = newTopic(r.log)
		r.topics[id] = t
	}
	return t
}

// Get returns the topic for id if one has already been created. Callers
// that need a guaranteed topic should fall back to GetOrCreate.
func (r *Registry) Get(id uuid.UUID) (*Topic, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.topics[id]
	return t, ok
}

// Count reports the number of distinct topics created so far (used only
// by diagnostics/tests).
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics)
}
