// Package httpapi wires the HTTP surface described in the external-interfaces
// section onto the session/registry/topic/notify core: the MOTD, version,
// and limits metadata endpoints, per-user info and avatar blob endpoints,
// and the gated internal API used by out-of-band admin pushes.
package httpapi

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/streamspace/streamspace/api/internal/errors"
	"github.com/streamspace/streamspace/api/internal/registry"
)

// tokenHeader is the header every authenticated endpoint reads the
// session token from, matching the extractor the source server used.
const tokenHeader = "Token"

const userContextKey = "avatar_user"

// RequireToken resolves the Token header against the registry and, on
// success, stores the caller's UserInfo in the gin context for handlers
// to read via CallerFromContext. A missing or unrecognized token aborts
// the request with 401.
func RequireToken(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(tokenHeader)
		if token == "" {
			apperrors.AbortWithError(c, apperrors.Unauthorized("missing Token header"))
			return
		}
		info, ok := reg.Get(token)
		if !ok {
			apperrors.AbortWithError(c, apperrors.Unauthorized("invalid or expired token"))
			return
		}
		c.Set(userContextKey, info)
		c.Next()
	}
}

// CallerFromContext returns the authenticated caller stored by
// RequireToken. Only valid for handlers mounted behind that middleware.
func CallerFromContext(c *gin.Context) registry.UserInfo {
	v, _ := c.Get(userContextKey)
	info, _ := v.(registry.UserInfo)
	return info
}
