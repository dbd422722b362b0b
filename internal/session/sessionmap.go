package session

import (
	"sync"

	"github.com/google/uuid"
)

// Map is the SessionMap of the design: UserIdentifier -> a handle to that
// user's own outbound queue, valid for exactly the lifetime of their
// authenticated connection. It lets the event notifier (C6) push directly
// to a user's own client without going through their topic.
type Map struct {
	mu sync.RWMutex
	m  map[uuid.UUID]chan<- []byte
}

// NewMap creates an empty SessionMap.
func NewMap() *Map {
	return &Map{m: make(map[uuid.UUID]chan<- []byte)}
}

// Insert records the outbound queue for id, replacing any prior entry.
func (m *Map) Insert(id uuid.UUID, outbound chan<- []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[id] = outbound
}

// Remove deletes the entry for id, if present.
func (m *Map) Remove(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.m, id)
}

// RemoveIfCurrent deletes the entry for id only if it still points at
// outbound. A session that was superseded by a takeover (second login for
// the same identifier) must not clobber the replacing session's entry when
// its own connection eventually tears down; comparing the channel handle
// makes removal a no-op in that case instead of evicting the new session.
func (m *Map) RemoveIfCurrent(id uuid.UUID, outbound chan<- []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.m[id]; ok && ch == outbound {
		delete(m.m, id)
	}
}

// Send delivers msg to id's outbound queue without blocking. It reports
// false if there is no live session for id or its queue is full. The read
// lock is held across the non-blocking send, so once Remove or
// RemoveIfCurrent returns no Send can still be delivering to that channel.
func (m *Map) Send(id uuid.UUID, msg []byte) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.m[id]
	if !ok {
		return false
	}
	select {
	case ch <- msg:
		return true
	default:
		return false
	}
}
