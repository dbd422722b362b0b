// Package cache provides Redis-based caching for the avatar relay API.
//
// This file defines the cache key naming convention this service actually
// uses: a pending-auth entry (stage 1 handshake) and the version-info
// response, both namespaced by a resource-type prefix.
package cache

import "fmt"

// Key prefixes for the resource types this service caches.
const (
	PrefixPendingAuth = "pendingauth"
	PrefixVersion     = "version"
)

// PendingAuthKey is the cache key holding the nickname claimed at stage 1
// of the authentication handshake, keyed by the token minted for that
// attempt.
func PendingAuthKey(token string) string {
	return fmt.Sprintf("%s:%s", PrefixPendingAuth, token)
}

// VersionInfoKey is the cache key the /version handler stores its cached
// response body under, shared across every API instance behind the
// load balancer.
func VersionInfoKey() string {
	return fmt.Sprintf("%s:info", PrefixVersion)
}
