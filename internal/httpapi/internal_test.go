package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamspace/streamspace/api/internal/avatarstore"
	"github.com/streamspace/streamspace/api/internal/notify"
	"github.com/streamspace/streamspace/api/internal/registry"
	"github.com/streamspace/streamspace/api/internal/session"
	"github.com/streamspace/streamspace/api/internal/topic"
)

func newTestInternalHandlers(t *testing.T) (*InternalHandlers, *registry.Registry, *avatarstore.Store) {
	t.Helper()
	reg := registry.New()
	avatars, err := avatarstore.New(t.TempDir())
	require.NoError(t, err)
	notifier := notify.New(topic.NewRegistry(nil), session.NewMap(), nil)
	return NewInternalHandlers(reg, avatars, notifier, nil), reg, avatars
}

func TestHostLambdaAdmission(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/internal/x", nil)
	req.Host = "lambda"
	assert.True(t, HostLambdaAdmission(req))

	req2 := httptest.NewRequest(http.MethodGet, "/internal/x", nil)
	req2.Host = "attacker.example.com"
	assert.False(t, HostLambdaAdmission(req2))
}

func TestPutTempMarksAvatarAsNotYetShown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, reg, avatars := newTestInternalHandlers(t)

	id := uuid.New()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPut, "/internal/"+id.String()+"/temp", bytes.NewReader([]byte("preview")))
	c.Params = gin.Params{{Key: "uuid", Value: id.String()}}

	h.PutTemp(c)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, reg.RequestTempState(id, false), "a fresh temp upload must be reported as not yet shown")

	data, err := avatars.GetTemp(id)
	require.NoError(t, err)
	assert.Equal(t, "preview", string(data))
}

func TestDeleteTempMarksFlagAsShown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, reg, avatars := newTestInternalHandlers(t)

	id := uuid.New()
	require.NoError(t, avatars.PutTemp(id, []byte("preview")))
	reg.PutRequestTempState(id, false)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodDelete, "/internal/"+id.String()+"/temp", nil)
	c.Params = gin.Params{{Key: "uuid", Value: id.String()}}

	h.DeleteTemp(c)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, reg.RequestTempState(id, false), "deleting the temp preview leaves nothing pending to show")
}

func TestPutUploadStateTogglesOverride(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, reg, _ := newTestInternalHandlers(t)

	id := uuid.New()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPut, "/internal/"+id.String()+"/upload", bytes.NewReader([]byte(`{"allowed":false}`)))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "uuid", Value: id.String()}}

	h.PutUploadState(c)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, reg.UploadState(id, true))
}

func TestTriggerEventAndAvatarMutationsRequireValidUUID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _, _ := newTestInternalHandlers(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/internal/not-a-uuid/event", nil)
	c.Params = gin.Params{{Key: "uuid", Value: "not-a-uuid"}}

	h.TriggerEvent(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
