package assetsync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha256Hex(t *testing.T, data string) string {
	t.Helper()
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

func TestRunDownloadsMissingAndStaleAssets(t *testing.T) {
	const freshContent = "up-to-date-bytes"
	const staleWant = "new-bytes-from-upstream"

	assets := map[string]string{
		"fonts/a.ttf":   freshContent,
		"badges/b.webp": staleWant,
		"new/c.bin":     "brand-new",
	}

	assetServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path[1:]
		content, ok := assets[path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(content))
	}))
	defer assetServer.Close()

	manifest := Manifest{
		"fonts/a.ttf":   sha256Hex(t, freshContent),
		"badges/b.webp": sha256Hex(t, staleWant),
		"new/c.bin":     sha256Hex(t, "brand-new"),
	}
	manifestServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(manifest)
	}))
	defer manifestServer.Close()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "fonts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fonts", "a.ttf"), []byte(freshContent), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "badges"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "badges", "b.webp"), []byte("outdated-bytes"), 0o644))

	s := New(manifestServer.URL, assetServer.URL, dir, nil)
	updated, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, updated) // fonts/a.ttf is already current, the other two are not

	gotB, err := os.ReadFile(filepath.Join(dir, "badges", "b.webp"))
	require.NoError(t, err)
	assert.Equal(t, staleWant, string(gotB))

	gotC, err := os.ReadFile(filepath.Join(dir, "new", "c.bin"))
	require.NoError(t, err)
	assert.Equal(t, "brand-new", string(gotC))
}

func TestRunReturnsErrorOnUnreachableManifest(t *testing.T) {
	s := New("http://127.0.0.1:1/manifest.json", "http://127.0.0.1:1", t.TempDir(), nil)
	_, err := s.Run(context.Background())
	assert.Error(t, err)
}

func TestSchedulerStartAndStop(t *testing.T) {
	manifestServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Manifest{})
	}))
	defer manifestServer.Close()

	s := New(manifestServer.URL, manifestServer.URL, t.TempDir(), nil)
	sched := NewScheduler(nil)
	require.NoError(t, sched.Start("@every 1h", s))
	time.Sleep(10 * time.Millisecond)
	sched.Stop()
}
