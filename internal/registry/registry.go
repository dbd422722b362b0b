// Package registry implements the user registry (token/identifier lookups,
// the pending-auth table, the ban set, and per-user upload/temp-avatar
// flags) behind a single guarded table, as recommended by the design notes:
// a multi-index registry benefits from one mutex-guarded struct rather than
// several independently-locked maps, so invariant R1 (token-> and id->
// lookups always agree) is established by construction instead of by
// convention.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrPendingNotFound is returned by PendingRemove when the token is not in
// the pending table.
var ErrPendingNotFound = errors.New("registry: pending auth not found")

// ErrConflict is returned by Insert when either the token or the identifier
// is already present.
var ErrConflict = errors.New("registry: token or identifier already in use")

// UserInfo is the authoritative record for one authenticated user.
type UserInfo struct {
	Nickname     string
	ID           uuid.UUID
	Token        string
	AuthProvider string
	Rank         int
	LastUsed     time.Time
	Version      string
	Banned       bool
}

// Registry is the single guarded multi-index table described in C2.
type Registry struct {
	mu sync.RWMutex

	pending map[string]string // token -> nickname

	byToken map[string]*UserInfo
	byID    map[uuid.UUID]*UserInfo

	uploadOverride map[uuid.UUID]bool
	tempRequest    map[uuid.UUID]bool

	banned map[uuid.UUID]struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		pending:        make(map[string]string),
		byToken:        make(map[string]*UserInfo),
		byID:           make(map[uuid.UUID]*UserInfo),
		uploadOverride: make(map[uuid.UUID]bool),
		tempRequest:    make(map[uuid.UUID]bool),
		banned:         make(map[uuid.UUID]struct{}),
	}
}

// PendingInsert records a server_id -> nickname mapping created at stage 1
// of the handshake.
func (r *Registry) PendingInsert(token, nickname string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[token] = nickname
}

// PendingRemove removes and returns the nickname for token, failing if the
// entry is absent (per R3, it must also not be present in the
// authenticated table, but that invariant holds by construction since
// Insert always removes its own pending entry).
func (r *Registry) PendingRemove(token string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nickname, ok := r.pending[token]
	if !ok {
		return "", ErrPendingNotFound
	}
	delete(r.pending, token)
	return nickname, nil
}

// PendingRemoveIfPresent deletes a pending entry without error if absent;
// used by the TTL sweep to expire abandoned handshakes.
func (r *Registry) PendingRemoveIfPresent(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, token)
}

// Insert adds info across all indices keyed by id and token. It fails with
// ErrConflict if either the token or the id is already present; the caller
// is responsible for the "second session" remove-then-retry flow.
func (r *Registry) Insert(id uuid.UUID, token string, info UserInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byToken[token]; exists {
		return ErrConflict
	}
	if _, exists := r.byID[id]; exists {
		return ErrConflict
	}

	info.ID = id
	info.Token = token
	stored := info
	r.byToken[token] = &stored
	r.byID[id] = &stored
	return nil
}

// Remove deletes all indices keyed by id, including the token view.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	delete(r.byToken, info.Token)
}

// RemoveIfToken deletes the record for id only if it is still the one
// bearing token. A session that was superseded by a takeover (second
// login for the same identifier, §4.4) must not evict the replacing
// session's record when its own connection eventually tears down and
// calls Remove; comparing the token the session was authenticated with
// makes removal a no-op in that case instead.
func (r *Registry) RemoveIfToken(id uuid.UUID, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.byID[id]
	if !ok || info.Token != token {
		return
	}
	delete(r.byID, id)
	delete(r.byToken, info.Token)
}

// Get looks up a user by session token.
func (r *Registry) Get(token string) (UserInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.byToken[token]
	if !ok {
		return UserInfo{}, false
	}
	return *info, true
}

// GetByUUID looks up a user by identifier.
func (r *Registry) GetByUUID(id uuid.UUID) (UserInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.byID[id]
	if !ok {
		return UserInfo{}, false
	}
	return *info, true
}

// Ban adds id to the ban set. Taking effect is immediate for future
// lookups; an already-connected session observes it on its next frame
// (see session loop design).
func (r *Registry) Ban(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.banned[id] = struct{}{}
}

// Unban removes id from the ban set.
func (r *Registry) Unban(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.banned, id)
}

// IsBanned reports whether id is in the ban set.
func (r *Registry) IsBanned(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.banned[id]
	return ok
}

// UploadState returns the per-user upload-allowed override, falling back
// to def if unset.
func (r *Registry) UploadState(id uuid.UUID, def bool) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.uploadOverride[id]; ok {
		return v
	}
	return def
}

// PutUploadState sets the per-user upload-allowed override.
func (r *Registry) PutUploadState(id uuid.UUID, allowed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploadOverride[id] = allowed
}

// PutRequestTempState sets the one-shot temp-avatar-request flag.
func (r *Registry) PutRequestTempState(id uuid.UUID, v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tempRequest[id] = v
}

// RequestTempState returns the temp-avatar-request flag; if consume is
// true, it is reset to false after reading (one-shot semantics).
func (r *Registry) RequestTempState(id uuid.UUID, consume bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.tempRequest[id]
	if consume {
		r.tempRequest[id] = false
	}
	return v
}
