package notify

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamspace/streamspace/api/internal/session"
	"github.com/streamspace/streamspace/api/internal/topic"
	"github.com/streamspace/streamspace/api/internal/wire"
)

func TestSendEventReachesSubscriberAndOwnSession(t *testing.T) {
	topics := topic.NewRegistry(nil)
	sessions := session.NewMap()
	n := New(topics, sessions, nil)

	id := uuid.New()
	sub := topics.GetOrCreate(id).Subscribe()
	defer sub.Cancel()

	ownOutbound := make(chan []byte, 1)
	sessions.Insert(id, ownOutbound)

	n.SendEvent(id)

	want := wire.EncodeEvent(id)

	select {
	case msg := <-sub.Recv():
		assert.Equal(t, want, msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for topic delivery")
	}

	select {
	case msg := <-ownOutbound:
		assert.Equal(t, want, msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for own-session delivery")
	}
}

func TestSendEventWithoutSubscribersOrSessionIsNonFatal(t *testing.T) {
	topics := topic.NewRegistry(nil)
	sessions := session.NewMap()
	n := New(topics, sessions, nil)

	require.NotPanics(t, func() { n.SendEvent(uuid.New()) })
}

func TestRelayDisabledWhenURLEmpty(t *testing.T) {
	r := NewRelay(RelayConfig{}, nil)
	require.NotPanics(t, func() { r.Publish(uuid.New()) })

	unsub, err := r.Subscribe(func(uuid.UUID) {})
	require.NoError(t, err)
	require.NotPanics(t, unsub)

	require.NotPanics(t, r.Close)
}
