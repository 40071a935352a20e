package api

import (
	"log/slog"
	"net/http"
	"time"

	"netmon/pkg/broadcast"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Token auth happens before the upgrade; origin is not checked again.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventsHandler upgrades the connection and streams broadcast events to it.
// Each connection gets its own subscriber; a client that stops reading
// loses its oldest events, not the connection.
func EventsHandler(b *broadcast.Broadcaster) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Warn("WebSocket upgrade failed", "component", "EventGateway", "error", err)
			return
		}

		sub := b.Subscribe()
		closed := make(chan struct{})

		// Reader only detects disconnect; clients do not send events.
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		defer func() {
			b.Unsubscribe(sub)
			conn.Close()
		}()

		ping := time.NewTicker(wsPingInterval)
		defer ping.Stop()

		for {
			select {
			case event, ok := <-sub.C():
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(event); err != nil {
					slog.Debug("WebSocket write failed", "component", "EventGateway", "error", err)
					return
				}
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-closed:
				return
			}
		}
	}
}
