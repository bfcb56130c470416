package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/nekoha/localsend-cli/notify"
	"github.com/nekoha/localsend-cli/tool"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The endpoint is already restricted to loopback.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleEvents upgrades to a websocket and streams notifications until the
// client goes away.
func HandleEvents(hub *notify.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			tool.DefaultLogger.Errorf("Failed to upgrade websocket: %v", err)
			return
		}
		hub.Register(conn)
		go func() {
			defer hub.Unregister(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}
