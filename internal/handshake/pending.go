package handshake

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamspace/streamspace/api/internal/cache"
	"github.com/streamspace/streamspace/api/internal/registry"
)

// pendingTTL is how long a stage-1 token remains redeemable before the
// handshake must be restarted.
const pendingTTL = 30 * time.Second

// PendingStore tracks the server_id -> nickname mapping created at stage 1
// and consumed at stage 2. When a Redis cache is configured it is used so
// the two stages can land on different instances behind a load balancer;
// otherwise entries live in the registry's in-memory pending table and are
// expired by a periodic sweep, since that table carries no TTL of its own.
type PendingStore struct {
	cache *cache.Cache
	reg   *registry.Registry
	log   *zerolog.Logger

	mu       sync.Mutex
	insertedAt map[string]time.Time
}

// NewPendingStore builds a PendingStore. c may be nil or disabled, in
// which case the in-memory fallback path is used exclusively.
func NewPendingStore(c *cache.Cache, reg *registry.Registry, log *zerolog.Logger) *PendingStore {
	return &PendingStore{
		cache:      c,
		reg:        reg,
		log:        log,
		insertedAt: make(map[string]time.Time),
	}
}

// usesCache reports whether the Redis-backed path is active.
func (p *PendingStore) usesCache() bool {
	return p.cache != nil && p.cache.IsEnabled()
}

// Insert records token -> nickname, redeemable until the TTL lapses.
func (p *PendingStore) Insert(ctx context.Context, token, nickname string) {
	if p.usesCache() {
		if err := p.cache.Set(ctx, cache.PendingAuthKey(token), nickname, pendingTTL); err != nil {
			if p.log != nil {
				p.log.Warn().Err(err).Msg("handshake: falling back to in-memory pending store for this token")
			}
			p.insertLocal(token, nickname)
		}
		return
	}
	p.insertLocal(token, nickname)
}

func (p *PendingStore) insertLocal(token, nickname string) {
	p.reg.PendingInsert(token, nickname)
	p.mu.Lock()
	p.insertedAt[token] = time.Now()
	p.mu.Unlock()
}

// Remove consumes and returns the nickname claimed for token, failing if
// the token is unknown or already expired.
func (p *PendingStore) Remove(ctx context.Context, token string) (string, error) {
	if p.usesCache() {
		var nickname string
		if err := p.cache.Get(ctx, cache.PendingAuthKey(token), &nickname); err == nil {
			_ = p.cache.Delete(ctx, cache.PendingAuthKey(token))
			return nickname, nil
		}
		// Not in Redis: the token may have been stored in memory by
		// Insert's fallback path.
	}
	nickname, err := p.reg.PendingRemove(token)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	delete(p.insertedAt, token)
	p.mu.Unlock()
	return nickname, nil
}

// Sweep expires any in-memory pending entries older than the TTL. It is a
// no-op when the Redis-backed path is active, since Redis expires keys
// itself. Intended to be invoked on a schedule (cmd/server drives it from
// a 10-second ticker).
func (p *PendingStore) Sweep() {
	if p.usesCache() {
		return
	}
	cutoff := time.Now().Add(-pendingTTL)
	p.mu.Lock()
	expired := make([]string, 0)
	for token, t := range p.insertedAt {
		if t.Before(cutoff) {
			expired = append(expired, token)
		}
	}
	for _, token := range expired {
		delete(p.insertedAt, token)
	}
	p.mu.Unlock()

	for _, token := range expired {
		p.reg.PendingRemoveIfPresent(token)
	}
	if len(expired) > 0 && p.log != nil {
		p.log.Debug().Int("count", len(expired)).Msg("handshake: swept expired pending auth entries")
	}
}
