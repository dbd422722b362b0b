package handshake

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamspace/streamspace/api/internal/registry"
)

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.Register(r.Group(""))
	return r
}

// fakeOracle spins up an httptest server implementing the same contract as
// Oracle.HasJoined expects, so Stage 2 can be exercised end to end.
func fakeOracle(t *testing.T, id uuid.UUID, provider string, verify bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !verify {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(hasJoinedResponse{ID: id.String(), Name: r.URL.Query().Get("username")})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHandshakeHappyPath(t *testing.T) {
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	oracleSrv := fakeOracle(t, id, "mojang", true)

	reg := registry.New()
	pending := NewPendingStore(nil, reg, nil)
	oracle := NewOracle(oracleSrv.URL, "mojang", time.Second)
	h := NewHandler(pending, oracle, reg, nil)
	router := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/id?username=alice", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	token := w.Body.String()
	assert.Len(t, token, 40)

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/auth/verify?id=%s&username=alice", url.QueryEscape(token)), nil)
	router.ServeHTTP(w2, req2)
	require.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, token, w2.Body.String())

	info, ok := reg.Get(token)
	require.True(t, ok)
	assert.Equal(t, id, info.ID)
	assert.Equal(t, "alice", info.Nickname)
}

func TestHandshakeStageTwoFailsWithoutPending(t *testing.T) {
	reg := registry.New()
	pending := NewPendingStore(nil, reg, nil)
	oracle := NewOracle("http://unused.invalid", "mojang", time.Second)
	h := NewHandler(pending, oracle, reg, nil)
	router := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/verify?id=deadbeef&username=alice", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandshakeStageTwoOracleRejects(t *testing.T) {
	id := uuid.New()
	oracleSrv := fakeOracle(t, id, "mojang", false)

	reg := registry.New()
	pending := NewPendingStore(nil, reg, nil)
	oracle := NewOracle(oracleSrv.URL, "mojang", time.Second)
	h := NewHandler(pending, oracle, reg, nil)
	router := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/id?username=bob", nil)
	router.ServeHTTP(w, req)
	token := w.Body.String()

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/auth/verify?id=%s&username=bob", token), nil)
	router.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusBadRequest, w2.Code)
	assert.Equal(t, "failed to verify", w2.Body.String())
}

func TestHandshakeStageTwoBannedUser(t *testing.T) {
	id := uuid.New()
	oracleSrv := fakeOracle(t, id, "mojang", true)

	reg := registry.New()
	reg.Ban(id)
	pending := NewPendingStore(nil, reg, nil)
	oracle := NewOracle(oracleSrv.URL, "mojang", time.Second)
	h := NewHandler(pending, oracle, reg, nil)
	router := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/id?username=carl", nil)
	router.ServeHTTP(w, req)
	token := w.Body.String()

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/auth/verify?id=%s&username=carl", token), nil)
	router.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusBadRequest, w2.Code)
	assert.Equal(t, "You're banned!", w2.Body.String())
}

func TestHandshakeSecondSessionTakeover(t *testing.T) {
	id := uuid.New()
	oracleSrv := fakeOracle(t, id, "mojang", true)

	reg := registry.New()
	pending := NewPendingStore(nil, reg, nil)
	oracle := NewOracle(oracleSrv.URL, "mojang", time.Second)
	h := NewHandler(pending, oracle, reg, nil)
	router := newTestRouter(h)

	login := func(username string) string {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/auth/id?username="+username, nil)
		router.ServeHTTP(w, req)
		token := w.Body.String()

		w2 := httptest.NewRecorder()
		req2 := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/auth/verify?id=%s&username=%s", token, username), nil)
		router.ServeHTTP(w2, req2)
		require.Equal(t, http.StatusOK, w2.Code)
		return token
	}

	firstToken := login("dave")
	secondToken := login("dave")
	assert.NotEqual(t, firstToken, secondToken)

	_, ok := reg.Get(firstToken)
	assert.False(t, ok)
	info, ok := reg.Get(secondToken)
	require.True(t, ok)
	assert.Equal(t, secondToken, info.Token)
}
