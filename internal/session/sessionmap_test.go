package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSessionMapRemoveIfCurrentSkipsWhenSuperseded(t *testing.T) {
	m := NewMap()
	id := uuid.New()
	oldCh := make(chan []byte, 1)
	newCh := make(chan []byte, 1)

	m.Insert(id, oldCh)
	m.Insert(id, newCh) // a takeover replaces the entry

	// A stale cleanup holding the old channel handle must not evict the
	// entry now pointing at the new session's channel.
	m.RemoveIfCurrent(id, oldCh)

	assert.True(t, m.Send(id, []byte("x")))
	select {
	case got := <-newCh:
		assert.Equal(t, []byte("x"), got)
	default:
		t.Fatal("expected message delivered to the current channel")
	}
}

func TestSessionMapRemoveIfCurrentRemovesWhenCurrent(t *testing.T) {
	m := NewMap()
	id := uuid.New()
	ch := make(chan []byte, 1)
	m.Insert(id, ch)

	m.RemoveIfCurrent(id, ch)

	assert.False(t, m.Send(id, []byte("x")))
}
