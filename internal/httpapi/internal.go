package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/streamspace/streamspace/api/internal/avatarstore"
	apperrors "github.com/streamspace/streamspace/api/internal/errors"
	"github.com/streamspace/streamspace/api/internal/notify"
	"github.com/streamspace/streamspace/api/internal/registry"
)

// maxInternalUpload bounds internal-API avatar writes; these callers are
// already trusted, but a bound avoids an operator mistake turning into an
// unbounded disk write.
const maxInternalUpload = 10 << 20

// AdmissionCheck is the pluggable predicate gating the internal API (see
// the design note on Host: lambda being a weak credential). It receives
// the request and reports whether the caller is admitted.
type AdmissionCheck func(r *http.Request) bool

// HostLambdaAdmission is the admission check used by the source: the Host
// header must equal the literal string "lambda". A real deployment should
// replace this with a shared secret or mTLS, per the design notes.
func HostLambdaAdmission(r *http.Request) bool {
	return r.Host == "lambda"
}

// InternalHandlers implements the admin-facing API mounted under /internal,
// used by out-of-band tooling (asset pipelines, moderation tools) rather
// than end-user clients.
type InternalHandlers struct {
	reg      *registry.Registry
	avatars  *avatarstore.Store
	notifier *notify.Notifier
	log      *zerolog.Logger
}

// NewInternalHandlers builds an InternalHandlers bundle. log may be nil.
func NewInternalHandlers(reg *registry.Registry, avatars *avatarstore.Store, notifier *notify.Notifier, log *zerolog.Logger) *InternalHandlers {
	return &InternalHandlers{reg: reg, avatars: avatars, notifier: notifier, log: log}
}

// Admit aborts the request with 403 unless check admits it.
func Admit(check AdmissionCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !check(c.Request) {
			apperrors.AbortWithError(c, apperrors.Forbidden("internal API admission check failed"))
			return
		}
		c.Next()
	}
}

func parseTarget(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		apperrors.AbortWithError(c, apperrors.BadRequest("invalid uuid"))
		return uuid.UUID{}, false
	}
	return id, true
}

func readBody(c *gin.Context, limit int64) ([]byte, bool) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, limit))
	if err != nil {
		apperrors.AbortWithError(c, apperrors.BadRequest("failed to read body"))
		return nil, false
	}
	return data, true
}

// PutAvatar stores the live avatar blob for an arbitrary UserIdentifier and
// announces the change.
func (h *InternalHandlers) PutAvatar(c *gin.Context) {
	id, ok := parseTarget(c)
	if !ok {
		return
	}
	data, ok := readBody(c, maxInternalUpload)
	if !ok {
		return
	}
	if err := h.avatars.Put(id, data); err != nil {
		apperrors.AbortWithError(c, apperrors.InternalWrap(err))
		return
	}
	h.notifier.SendEvent(id)
	c.Status(http.StatusNoContent)
}

// DeleteAvatar removes the live avatar blob for an arbitrary
// UserIdentifier and announces the change.
func (h *InternalHandlers) DeleteAvatar(c *gin.Context) {
	id, ok := parseTarget(c)
	if !ok {
		return
	}
	if err := h.avatars.Delete(id); err != nil {
		apperrors.AbortWithError(c, apperrors.InternalWrap(err))
		return
	}
	h.notifier.SendEvent(id)
	c.Status(http.StatusNoContent)
}

// PutTemp stores a temp preview blob for a UserIdentifier and clears the
// one-shot flag so the next matching profile GET reports it instead of
// the live blob (see the end-to-end temp-avatar scenario: a fresh temp
// upload sets the flag to false/"not yet shown"; the profile read that
// consumes it sets the flag back to true).
func (h *InternalHandlers) PutTemp(c *gin.Context) {
	id, ok := parseTarget(c)
	if !ok {
		return
	}
	data, ok := readBody(c, maxInternalUpload)
	if !ok {
		return
	}
	if err := h.avatars.PutTemp(id, data); err != nil {
		apperrors.AbortWithError(c, apperrors.InternalWrap(err))
		return
	}
	h.reg.PutRequestTempState(id, false)
	c.Status(http.StatusNoContent)
}

// DeleteTemp removes the temp preview blob for a UserIdentifier.
func (h *InternalHandlers) DeleteTemp(c *gin.Context) {
	id, ok := parseTarget(c)
	if !ok {
		return
	}
	if err := h.avatars.DeleteTemp(id); err != nil {
		apperrors.AbortWithError(c, apperrors.InternalWrap(err))
		return
	}
	h.reg.PutRequestTempState(id, true)
	c.Status(http.StatusNoContent)
}

// TriggerEvent announces an avatar change for an arbitrary UserIdentifier
// without touching blob storage, used by tooling that wrote a blob
// directly to the shared asset store.
func (h *InternalHandlers) TriggerEvent(c *gin.Context) {
	id, ok := parseTarget(c)
	if !ok {
		return
	}
	h.notifier.SendEvent(id)
	c.Status(http.StatusNoContent)
}

type uploadStateBody struct {
	Allowed bool `json:"allowed"`
}

// PutUploadState toggles the per-user upload-allowed override.
func (h *InternalHandlers) PutUploadState(c *gin.Context) {
	id, ok := parseTarget(c)
	if !ok {
		return
	}
	var body uploadStateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apperrors.AbortWithError(c, apperrors.BadRequest("invalid body"))
		return
	}
	h.reg.PutUploadState(id, body.Allowed)
	c.Status(http.StatusNoContent)
}
