package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/requestdata"
	"github.com/devforge-org/devforge-backend/internal/socket"
)

// newUpgrader accepts requests without an Origin header and those from the
// allowed origins. An empty list allows any origin.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || len(allowed) == 0 || allowed[origin]
		},
	}
}

func WsHandler(hub *socket.Hub, log *logger.Logger, allowedOrigins []string) gin.HandlerFunc {
	log = log.With("handler", "WsHandler")
	upgrader := newUpgrader(allowedOrigins)
	return func(c *gin.Context) {
		rd := requestdata.GetRequestData(c.Request.Context())
		if rd == nil || rd.UserID == [16]byte{} {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("Failed to upgrade to websocket", "error", err)
			return
		}

		// the request context ends with this handler, the pumps outlive it
		ctx, cancel := context.WithCancel(context.Background())
		client := socket.NewClient(conn, hub, rd.UserID, cancel, log)
		hub.Subscribe(client, []string{socket.UserChannel(rd.UserID)})

		go client.WriteLoop(ctx)
		go client.ReadLoop(ctx)
	}
}
