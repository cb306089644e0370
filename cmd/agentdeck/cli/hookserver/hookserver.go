// Package hookserver hosts the loopback HTTP surface the hook forwarder
// and the dashboard talk to: hook ingest, per-session audit logs, and a
// health probe.
package hookserver

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/auditlog"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/hooks"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/logging"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/registry"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/validation"
)

// maxHookBody bounds a single hook payload. Real payloads are a few KiB;
// anything near the cap is malformed or hostile.
const maxHookBody = 512 << 10

// Server wraps handler in an http.Server whose read and write deadlines
// are bounded, so a client that trickles a request body cannot pin a
// handler goroutine.
func Server(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Router builds the gin engine for the hook port. idleDisplayMs is the
// consumer-side idle-hiding guidance surfaced on the health endpoint.
func Router(reg *registry.Registry, audit *auditlog.Log, startedAt time.Time, idleDisplayMs int) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, _ any) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}))
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"http://localhost", "http://127.0.0.1"},
		AllowOriginFunc: func(origin string) bool {
			// The dashboard runs on arbitrary local ports.
			return true
		},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	r.POST("/hook", handleHook(reg))
	r.GET("/logs/:sessionID", handleLogs(audit))
	r.GET("/health", handleHealth(reg, startedAt, idleDisplayMs))
	return r
}

func handleHook(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !reg.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "daemon starting"})
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxHookBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read body"})
			return
		}

		p, err := hooks.Parse(body)
		if err != nil {
			logging.Debug(c.Request.Context(), "rejected hook payload", slog.Any("error", err))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		reg.HandleHook(c.Request.Context(), p)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func handleLogs(audit *auditlog.Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionID")
		if err := validation.ValidateSessionID(id); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			return
		}
		f, err := audit.Open(id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no audit log for session"})
			return
		}
		defer f.Close()

		c.Header("Content-Disposition", `attachment; filename="`+id+`.log"`)
		c.Header("Content-Type", "text/plain; charset=utf-8")
		c.Status(http.StatusOK)
		_, _ = io.Copy(c.Writer, f)
	}
}

func handleHealth(reg *registry.Registry, startedAt time.Time, idleDisplayMs int) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		if !reg.Ready() {
			status = "starting"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":                 status,
			"sessions":               reg.Len(),
			"hooksProcessed":         reg.HooksProcessed(),
			"uptimeSeconds":          int(time.Since(startedAt).Seconds()),
			"idleDisplayThresholdMs": idleDisplayMs,
		})
	}
}
