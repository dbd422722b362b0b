// Package handshake implements the two-stage authentication flow (C4):
// Stage 1 mints an opaque session token against a pending-auth table;
// Stage 2 exchanges that token with an external identity oracle and, on
// success, promotes the caller into the user registry.
package handshake

import (
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // legacy 160-bit digest used only to spread random bytes into a token, not for integrity
	"encoding/hex"
	"fmt"
)

// NewToken generates a session token: 20 cryptographically random bytes
// run through the legacy 160-bit digest and hex-encoded, producing a
// 40-character string. Uniqueness is probabilistic; the registry treats a
// collision against an existing token or identifier as a conflict for the
// caller to handle (see registry.ErrConflict), not as a retry target here.
func NewToken() (string, error) {
	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("handshake: generating random bytes: %w", err)
	}
	sum := sha1.Sum(raw)
	return hex.EncodeToString(sum[:]), nil
}
