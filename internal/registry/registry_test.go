package registry

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingInsertRemove(t *testing.T) {
	r := New()
	r.PendingInsert("tok1", "alice")

	nickname, err := r.PendingRemove("tok1")
	require.NoError(t, err)
	assert.Equal(t, "alice", nickname)

	_, err = r.PendingRemove("tok1")
	assert.ErrorIs(t, err, ErrPendingNotFound)
}

func TestInsertEstablishesR1(t *testing.T) {
	r := New()
	id := uuid.New()
	err := r.Insert(id, "tok1", UserInfo{Nickname: "alice"})
	require.NoError(t, err)

	byToken, ok := r.Get("tok1")
	require.True(t, ok)
	byID, ok := r.GetByUUID(id)
	require.True(t, ok)
	assert.Equal(t, byToken, byID)
}

func TestInsertConflictOnDuplicateToken(t *testing.T) {
	r := New()
	id1 := uuid.New()
	id2 := uuid.New()
	require.NoError(t, r.Insert(id1, "tok1", UserInfo{}))
	err := r.Insert(id2, "tok1", UserInfo{})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestInsertConflictOnDuplicateID(t *testing.T) {
	r := New()
	id := uuid.New()
	require.NoError(t, r.Insert(id, "tok1", UserInfo{}))
	err := r.Insert(id, "tok2", UserInfo{})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRemoveDropsBothIndices(t *testing.T) {
	r := New()
	id := uuid.New()
	require.NoError(t, r.Insert(id, "tok1", UserInfo{}))
	r.Remove(id)

	_, ok := r.Get("tok1")
	assert.False(t, ok)
	_, ok = r.GetByUUID(id)
	assert.False(t, ok)
}

func TestSecondSessionTakeover(t *testing.T) {
	r := New()
	id := uuid.New()
	require.NoError(t, r.Insert(id, "tok1", UserInfo{Nickname: "alice"}))

	err := r.Insert(id, "tok2", UserInfo{Nickname: "alice"})
	require.ErrorIs(t, err, ErrConflict)

	r.Remove(id)
	require.NoError(t, r.Insert(id, "tok2", UserInfo{Nickname: "alice"}))

	_, ok := r.Get("tok1")
	assert.False(t, ok)
	info, ok := r.GetByUUID(id)
	require.True(t, ok)
	assert.Equal(t, "tok2", info.Token)
}

func TestRemoveIfTokenSkipsWhenSuperseded(t *testing.T) {
	r := New()
	id := uuid.New()
	require.NoError(t, r.Insert(id, "tok1", UserInfo{Nickname: "alice"}))

	r.Remove(id)
	require.NoError(t, r.Insert(id, "tok2", UserInfo{Nickname: "alice"}))

	// A stale cleanup for the superseded tok1 session must not evict the
	// tok2 record that has since taken its place.
	r.RemoveIfToken(id, "tok1")

	info, ok := r.GetByUUID(id)
	require.True(t, ok)
	assert.Equal(t, "tok2", info.Token)
}

func TestRemoveIfTokenRemovesWhenCurrent(t *testing.T) {
	r := New()
	id := uuid.New()
	require.NoError(t, r.Insert(id, "tok1", UserInfo{Nickname: "alice"}))

	r.RemoveIfToken(id, "tok1")

	_, ok := r.GetByUUID(id)
	assert.False(t, ok)
	_, ok = r.Get("tok1")
	assert.False(t, ok)
}

func TestBanSet(t *testing.T) {
	r := New()
	id := uuid.New()
	assert.False(t, r.IsBanned(id))
	r.Ban(id)
	assert.True(t, r.IsBanned(id))
	r.Unban(id)
	assert.False(t, r.IsBanned(id))
}

func TestUploadStateDefaultsAndOverrides(t *testing.T) {
	r := New()
	id := uuid.New()
	assert.True(t, r.UploadState(id, true))
	assert.False(t, r.UploadState(id, false))

	r.PutUploadState(id, false)
	assert.False(t, r.UploadState(id, true))
}

func TestRequestTempStateConsumes(t *testing.T) {
	r := New()
	id := uuid.New()
	assert.False(t, r.RequestTempState(id, false))

	r.PutRequestTempState(id, true)
	assert.True(t, r.RequestTempState(id, false))
	assert.True(t, r.RequestTempState(id, true))
	assert.False(t, r.RequestTempState(id, false))
}
