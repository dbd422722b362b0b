package handshake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamspace/streamspace/api/internal/registry"
)

func TestPendingStoreInMemoryInsertRemove(t *testing.T) {
	p := NewPendingStore(nil, registry.New(), nil)
	ctx := context.Background()

	p.Insert(ctx, "tok1", "alice")
	nickname, err := p.Remove(ctx, "tok1")
	require.NoError(t, err)
	assert.Equal(t, "alice", nickname)

	_, err = p.Remove(ctx, "tok1")
	assert.Error(t, err)
}

func TestPendingStoreSweepExpiresOldEntries(t *testing.T) {
	reg := registry.New()
	p := NewPendingStore(nil, reg, nil)
	p.Insert(context.Background(), "tok1", "alice")

	p.mu.Lock()
	p.insertedAt["tok1"] = time.Now().Add(-2 * pendingTTL)
	p.mu.Unlock()

	p.Sweep()
	_, err := p.Remove(context.Background(), "tok1")
	assert.Error(t, err)
}

func TestPendingStoreSweepLeavesFreshEntries(t *testing.T) {
	reg := registry.New()
	p := NewPendingStore(nil, reg, nil)
	p.Insert(context.Background(), "tok1", "alice")

	p.Sweep()
	nickname, err := p.Remove(context.Background(), "tok1")
	require.NoError(t, err)
	assert.Equal(t, "alice", nickname)
}
