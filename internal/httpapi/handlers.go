package httpapi

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/streamspace/streamspace/api/internal/avatarstore"
	"github.com/streamspace/streamspace/api/internal/cache"
	"github.com/streamspace/streamspace/api/internal/config"
	apperrors "github.com/streamspace/streamspace/api/internal/errors"
	"github.com/streamspace/streamspace/api/internal/notify"
	"github.com/streamspace/streamspace/api/internal/registry"
)

// Handlers bundles every dependency the public HTTP surface needs. It holds
// no mutable state of its own beyond the version cache.
type Handlers struct {
	cfg      config.Config
	reg      *registry.Registry
	avatars  *avatarstore.Store
	notifier *notify.Notifier
	cache    *cache.Cache
	log      *zerolog.Logger

	verOnce sync.Once
	verVal  versionInfo
}

// NewHandlers builds the Handlers bundle. c may be nil or disabled, in
// which case Version falls back to an in-process cache; log may be nil.
func NewHandlers(cfg config.Config, reg *registry.Registry, avatars *avatarstore.Store, notifier *notify.Notifier, c *cache.Cache, log *zerolog.Logger) *Handlers {
	return &Handlers{cfg: cfg, reg: reg, avatars: avatars, notifier: notifier, cache: c, log: log}
}

// MOTD returns the operator-configured message-of-the-day list.
func (h *Handlers) MOTD(c *gin.Context) {
	c.JSON(http.StatusOK, h.cfg.MOTD)
}

type versionInfo struct {
	Release    string `json:"release"`
	Prerelease string `json:"prerelease"`
}

// Release and Prerelease are overridable at link time (-ldflags
// "-X ...Release=1.2.3"); "dev" is the fallback for local builds.
var (
	Release    = "dev"
	Prerelease = ""
)

// Version returns the build identifiers. When a distributed cache is
// configured, the response is cached there so every API instance agrees
// on the same value; otherwise it falls back to an in-process cache
// computed once and reused for the lifetime of the process.
func (h *Handlers) Version(c *gin.Context) {
	if h.cache != nil && h.cache.IsEnabled() {
		var v versionInfo
		if err := h.cache.Get(c.Request.Context(), cache.VersionInfoKey(), &v); err == nil {
			c.JSON(http.StatusOK, v)
			return
		}
		v = versionInfo{Release: Release, Prerelease: Prerelease}
		_ = h.cache.Set(c.Request.Context(), cache.VersionInfoKey(), v, time.Hour)
		c.JSON(http.StatusOK, v)
		return
	}

	h.verOnce.Do(func() {
		h.verVal = versionInfo{Release: Release, Prerelease: Prerelease}
	})
	c.JSON(http.StatusOK, h.verVal)
}

// Limits reports the caller's effective avatar-upload limits and badge
// set, in the shape the original client expects: a "rate" object of
// per-operation throttle numbers and a "limits" object of size/count
// caps and the caller's allowed badge set. Must be mounted behind
// RequireToken.
func (h *Handlers) Limits(c *gin.Context) {
	caller := CallerFromContext(c)

	canUpload := h.reg.UploadState(caller.ID, h.cfg.Limitations.CanUpload)
	badges := h.cfg.AdvancedUsers[caller.ID.String()]

	c.JSON(http.StatusOK, gin.H{
		"rate": gin.H{
			"pingSize": h.cfg.Rate.PingSize,
			"pingRate": h.cfg.Rate.PingRate,
			"equip":    h.cfg.Rate.Equip,
			"download": h.cfg.Rate.Download,
			"upload":   h.cfg.Rate.Upload,
		},
		"limits": gin.H{
			"maxAvatarSize": h.cfg.Limitations.MaxAvatarSize,
			"maxAvatars":    h.cfg.Limitations.MaxAvatars,
			"canUpload":     canUpload,
			"allowedBadges": gin.H{
				"special": badges.Special,
				"pride":   badges.Pride,
			},
		},
	})
}

// userProfile is the JSON shape returned by GET /:uuid.
type userProfile struct {
	ID       uuid.UUID `json:"id"`
	Nickname string    `json:"nickname"`
	Equipped struct {
		Hash string `json:"hash"`
		Temp bool   `json:"temp"`
	} `json:"equipped"`
}

// UserInfo returns the public profile for a UserIdentifier. If the caller
// is the profile owner, a temp avatar was uploaded less than 60 seconds
// ago, and it has not already been reported once, its hash is returned
// instead of the live blob's and the one-shot flag is set so the
// following call reports the live blob again.
func (h *Handlers) UserInfo(c *gin.Context) {
	target, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		apperrors.AbortWithError(c, apperrors.BadRequest("invalid uuid"))
		return
	}

	info, ok := h.reg.GetByUUID(target)
	if !ok {
		apperrors.AbortWithError(c, apperrors.BadRequest("unknown user"))
		return
	}

	profile := userProfile{ID: target, Nickname: info.Nickname}

	caller := CallerFromContext(c)
	alreadyShown := h.reg.RequestTempState(target, false)
	if caller.ID == target && !alreadyShown && h.avatars.TempFresh(target) {
		if hash, err := h.avatars.TempHash(target); err == nil {
			profile.Equipped.Hash = hash
			profile.Equipped.Temp = true
			h.reg.PutRequestTempState(target, true)
		}
	}
	if profile.Equipped.Hash == "" {
		if hash, err := h.avatars.Hash(target); err == nil {
			profile.Equipped.Hash = hash
		}
	}

	c.JSON(http.StatusOK, profile)
}

// GetAvatar streams the live avatar blob for a UserIdentifier. 404 if the
// user has never uploaded one.
func (h *Handlers) GetAvatar(c *gin.Context) {
	target, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		apperrors.AbortWithError(c, apperrors.BadRequest("invalid uuid"))
		return
	}

	data, err := h.avatars.Get(target)
	if err != nil {
		apperrors.AbortWithError(c, apperrors.NotFound("avatar"))
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// PutAvatar stores a new live avatar blob for the caller. 403 if uploads
// are disabled for this caller.
func (h *Handlers) PutAvatar(c *gin.Context) {
	caller := CallerFromContext(c)
	if !h.reg.UploadState(caller.ID, h.cfg.Limitations.CanUpload) {
		apperrors.AbortWithError(c, apperrors.Forbidden("uploads are disabled for this account"))
		return
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, h.cfg.Limitations.MaxAvatarSize+1))
	if err != nil {
		apperrors.AbortWithError(c, apperrors.BadRequest("failed to read upload body"))
		return
	}
	if int64(len(data)) > h.cfg.Limitations.MaxAvatarSize {
		apperrors.AbortWithError(c, apperrors.BadRequest("avatar exceeds maximum size"))
		return
	}

	if err := h.avatars.Put(caller.ID, data); err != nil {
		if h.log != nil {
			h.log.Error().Err(err).Str("id", caller.ID.String()).Msg("api: failed to store avatar")
		}
		apperrors.AbortWithError(c, apperrors.InternalWrap(err))
		return
	}

	h.notifier.SendEvent(caller.ID)
	c.Status(http.StatusNoContent)
}

// DeleteAvatar removes the caller's live avatar blob and announces the
// change.
func (h *Handlers) DeleteAvatar(c *gin.Context) {
	caller := CallerFromContext(c)
	if err := h.avatars.Delete(caller.ID); err != nil {
		if h.log != nil {
			h.log.Error().Err(err).Str("id", caller.ID.String()).Msg("api: failed to delete avatar")
		}
		apperrors.AbortWithError(c, apperrors.InternalWrap(err))
		return
	}
	h.notifier.SendEvent(caller.ID)
	c.Status(http.StatusNoContent)
}

// Equip announces an avatar change for the caller without touching blob
// storage; used when the client switches between avatars it already
// owns, or to surface a freshly-written temp preview.
func (h *Handlers) Equip(c *gin.Context) {
	caller := CallerFromContext(c)
	h.notifier.SendEvent(caller.ID)
	c.Status(http.StatusNoContent)
}
