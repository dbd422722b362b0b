package handshake

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/streamspace/streamspace/api/internal/registry"
)

// Handler wires the pending-auth store, identity oracle, and user
// registry into the two-stage HTTP handshake described in the session
// design: stage 1 mints a token, stage 2 redeems it against the oracle and
// promotes the caller into the registry.
type Handler struct {
	pending  *PendingStore
	oracle   *Oracle
	reg      *registry.Registry
	sanitize *bluemonday.Policy
	log      *zerolog.Logger
}

// NewHandler builds a Handler. log may be nil, in which case nothing is
// logged.
func NewHandler(pending *PendingStore, oracle *Oracle, reg *registry.Registry, log *zerolog.Logger) *Handler {
	return &Handler{
		pending:  pending,
		oracle:   oracle,
		reg:      reg,
		sanitize: bluemonday.StrictPolicy(),
		log:      log,
	}
}

// Register mounts the stage-1 and stage-2 routes under group.
func (h *Handler) Register(group gin.IRouter) {
	group.GET("/auth/id", h.stageOne)
	group.GET("/auth/verify", h.stageTwo)
}

// stageOne mints a token for the requested nickname and records it in the
// pending table, redeemable by stage 2 within the pending-auth TTL.
func (h *Handler) stageOne(c *gin.Context) {
	username := h.sanitize.Sanitize(c.Query("username"))
	if username == "" {
		c.String(http.StatusBadRequest, "username is required")
		return
	}

	token, err := NewToken()
	if err != nil {
		if h.log != nil {
			h.log.Error().Err(err).Msg("handshake: failed to generate token")
		}
		c.String(http.StatusInternalServerError, "failed to generate token")
		return
	}

	h.pending.Insert(c.Request.Context(), token, username)
	c.String(http.StatusOK, token)
}

// stageTwo redeems a pending token against the identity oracle and, on
// success, installs the caller in the registry.
func (h *Handler) stageTwo(c *gin.Context) {
	serverID := c.Query("id")
	if serverID == "" {
		c.String(http.StatusBadRequest, "id is required")
		return
	}

	nickname, err := h.pending.Remove(c.Request.Context(), serverID)
	if err != nil {
		c.String(http.StatusBadRequest, "unknown or expired handshake")
		return
	}

	identity, err := h.oracle.HasJoined(c.Request.Context(), serverID, nickname)
	if err != nil {
		if h.log != nil {
			h.log.Error().Err(err).Str("nickname", nickname).Msg("handshake: identity oracle call failed")
		}
		c.String(http.StatusInternalServerError, "internal verify error")
		return
	}
	if identity == nil {
		if h.log != nil {
			h.log.Info().Str("nickname", nickname).Msg("handshake: failed to verify")
		}
		c.String(http.StatusBadRequest, "failed to verify")
		return
	}

	if h.reg.IsBanned(identity.ID) {
		if h.log != nil {
			h.log.Info().Str("nickname", nickname).Msg("handshake: banned user attempted login")
		}
		c.String(http.StatusBadRequest, "You're banned!")
		return
	}

	info := registry.UserInfo{
		Nickname:     nickname,
		AuthProvider: identity.Provider,
	}
	if err := h.reg.Insert(identity.ID, serverID, info); err != nil {
		// Second session: drop the stale record and retry exactly once.
		h.reg.Remove(identity.ID)
		if err := h.reg.Insert(identity.ID, serverID, info); err != nil {
			if h.log != nil {
				h.log.Error().Str("nickname", nickname).Msg("handshake: second insert attempt failed unexpectedly")
			}
			c.String(http.StatusBadRequest, "second session detected")
			return
		}
	}

	if h.log != nil {
		h.log.Info().Str("nickname", nickname).Str("provider", identity.Provider).Msg("handshake: user logged in")
	}
	c.String(http.StatusOK, serverID)
}
