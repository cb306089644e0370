// Package stream pushes session snapshot events to dashboard clients over
// a websocket. Each client gets the current world as inserts, then the
// live change feed.
package stream

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/logging"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/publish"
)

const (
	writeWait = 10 * time.Second
	pingEvery = 30 * time.Second

	// subscriberBuffer bounds how far a client may lag before the publisher
	// drops it. A dashboard that cannot keep up reconnects and resyncs.
	subscriberBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Loopback-only daemon; the browser origin is whatever port the
	// dashboard happens to be served from.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Router builds the gin engine for the stream port.
func Router(pub *publish.Publisher) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(string) bool { return true },
		AllowMethods:    []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:    []string{"Content-Type"},
		MaxAge:          12 * time.Hour,
	}))

	r.GET("/stream", handleStream(pub))
	r.GET("/sessions", handleSessions(pub))
	return r
}

// handleSessions serves the published world as a one-shot JSON array for
// clients that don't want a socket.
func handleSessions(pub *publish.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, pub.Snapshots())
	}
}

func handleStream(pub *publish.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the error response.
			return
		}

		// Connection ID ties connect/disconnect log lines together when
		// several dashboards share one remote address.
		connID := uuid.NewString()
		ctx := logging.WithComponent(c.Request.Context(), "stream")
		logging.Debug(ctx, "stream client connected",
			slog.String("conn_id", connID),
			slog.String("remote", conn.RemoteAddr().String()))
		defer logging.Debug(ctx, "stream client disconnected", slog.String("conn_id", connID))

		sub := pub.Subscribe(subscriberBuffer)
		defer sub.Close()
		defer conn.Close()

		// Reader goroutine: we never expect client frames, but reading is
		// what surfaces close frames and keeps pong handling alive.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(pingEvery)
		defer ping.Stop()

		for {
			select {
			case change, ok := <-sub.C:
				if !ok {
					// Publisher dropped us for lagging.
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "lagging"),
						time.Now().Add(writeWait))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(change); err != nil {
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			case <-done:
				return
			case <-c.Request.Context().Done():
				return
			}
		}
	}
}
