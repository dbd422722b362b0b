package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/streamspace/streamspace/api/internal/registry"
	"github.com/streamspace/streamspace/api/internal/session"
	"github.com/streamspace/streamspace/api/internal/topic"
)

// upgrader configures the WebSocket handshake for /ws. Origin is not
// restricted: the relay is consumed by a game client, not a browser tab,
// so there is no cross-site cookie-theft surface to defend against the
// way a browser-facing API would need to.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSHandlers holds what the WebSocket upgrade endpoint needs to build a
// Session for each accepted connection.
type WSHandlers struct {
	reg      *registry.Registry
	topics   *topic.Registry
	sessions *session.Map
	log      *zerolog.Logger
}

// NewWSHandlers builds a WSHandlers bundle. log may be nil.
func NewWSHandlers(reg *registry.Registry, topics *topic.Registry, sessions *session.Map, log *zerolog.Logger) *WSHandlers {
	return &WSHandlers{reg: reg, topics: topics, sessions: sessions, log: log}
}

// Serve upgrades the HTTP request to a WebSocket connection and runs a
// Session on it for the connection's lifetime. The handler returns as
// soon as the session's Run loop exits.
func (h *WSHandlers) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Debug().Err(err).Msg("api: websocket upgrade failed")
		}
		return
	}

	sess := session.New(conn, h.reg, h.topics, h.sessions, h.log)
	sess.Run()
}
