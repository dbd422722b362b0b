// Package avatarstore implements the avatar blob storage described in §6:
// a plain filesystem put/get/delete keyed by UserIdentifier, with a
// separate "temp" variant used by the equip-preview flow.
package avatarstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get/GetTemp/Hash when no blob exists for the
// requested identifier.
var ErrNotFound = errors.New("avatarstore: blob not found")

// tempExpiry is how long a temp blob remains eligible for the
// equip-preview path before it is treated as stale.
const tempExpiry = 60 * time.Second

// Store puts avatar blobs on disk under dir, in the layout
// <dir>/<uuid>.moon and <dir>/temp/<uuid>.moon.
type Store struct {
	dir string
}

// New builds a Store rooted at dir, creating the temp subdirectory if
// it does not already exist.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "temp"), 0o755); err != nil {
		return nil, fmt.Errorf("avatarstore: preparing %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+".moon")
}

func (s *Store) tempPath(id uuid.UUID) string {
	return filepath.Join(s.dir, "temp", id.String()+".moon")
}

// Put writes the live avatar blob for id, replacing any prior blob.
func (s *Store) Put(id uuid.UUID, data []byte) error {
	return writeFile(s.path(id), data)
}

// PutTemp writes the temp avatar blob for id, replacing any prior one and
// resetting its expiry clock.
func (s *Store) PutTemp(id uuid.UUID, data []byte) error {
	return writeFile(s.tempPath(id), data)
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("avatarstore: writing %s: %w", path, err)
	}
	return nil
}

// Get reads the live avatar blob for id.
func (s *Store) Get(id uuid.UUID) ([]byte, error) {
	return readFile(s.path(id))
}

// GetTemp reads the temp avatar blob for id, regardless of its age; callers
// that must respect the expiry window should check TempFresh first.
func (s *Store) GetTemp(id uuid.UUID) ([]byte, error) {
	return readFile(s.tempPath(id))
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("avatarstore: reading %s: %w", path, err)
	}
	return data, nil
}

// Delete removes the live avatar blob for id. It is not an error if no
// blob exists.
func (s *Store) Delete(id uuid.UUID) error {
	return removeFile(s.path(id))
}

// DeleteTemp removes the temp avatar blob for id, used once the
// equip-preview window is consumed. Not an error if absent.
func (s *Store) DeleteTemp(id uuid.UUID) error {
	return removeFile(s.tempPath(id))
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("avatarstore: removing %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a live blob is present for id.
func (s *Store) Exists(id uuid.UUID) bool {
	_, err := os.Stat(s.path(id))
	return err == nil
}

// TempFresh reports whether a temp blob exists for id and is younger than
// the 60-second expiry window.
func (s *Store) TempFresh(id uuid.UUID) bool {
	info, err := os.Stat(s.tempPath(id))
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < tempExpiry
}

// Hash returns the hex-encoded SHA-256 digest of the live avatar blob for
// id, used to populate the "equipped" hash field in profile responses.
func (s *Store) Hash(id uuid.UUID) (string, error) {
	return hashFile(s.path(id))
}

// TempHash returns the hex-encoded SHA-256 digest of the temp avatar blob
// for id, used by the profile endpoint while a fresh temp preview takes
// precedence over the live blob.
func (s *Store) TempHash(id uuid.UUID) (string, error) {
	return hashFile(s.tempPath(id))
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("avatarstore: opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("avatarstore: hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
