// Package http wires the gin router: the authenticated WebSocket
// endpoint, the health snapshot, and the internal REST surface other
// services use to reach the hub.
package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyhive/realtime/internal/adapters/signal"
	"github.com/studyhive/realtime/internal/app"
	"github.com/studyhive/realtime/internal/auth"
	"github.com/studyhive/realtime/internal/config"
	"github.com/studyhive/realtime/internal/core"
	"github.com/studyhive/realtime/internal/domain"
)

func SetupRouter(ctx context.Context, cfg *config.Config, hub *app.Hub, authn *auth.Authenticator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	ctrl := signal.NewController(hub, cfg)
	r.GET("/ws", authn.Middleware(), func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, hub.Health())
	})

	// Internal surface for collaborator services. Reachable only on the
	// service network; the edge proxy never forwards /api here.
	api := r.Group("/api")

	api.GET("/users/:id/online", func(c *gin.Context) {
		user := domain.UserID(c.Param("id"))
		c.JSON(http.StatusOK, gin.H{
			"online":      hub.IsOnline(user),
			"connections": hub.ConnectionCount(user),
		})
	})

	api.GET("/rooms/:room/participants", func(c *gin.Context) {
		room := domain.RoomID(c.Param("room"))
		c.JSON(http.StatusOK, gin.H{"participants": hub.RoomParticipants(room)})
	})

	api.POST("/notify/:id", func(c *gin.Context) {
		var req struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := c.BindJSON(&req); err != nil || req.Type == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event"})
			return
		}
		hub.SendNotification(domain.UserID(c.Param("id")), core.EventKind(req.Type), req.Payload)
		c.Status(http.StatusAccepted)
	})

	api.POST("/rooms/:room/broadcast", func(c *gin.Context) {
		var req struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
			Exclude string          `json:"excludeUserId"`
		}
		if err := c.BindJSON(&req); err != nil || req.Type == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event"})
			return
		}
		hub.DeliverToRoom(domain.RoomID(c.Param("room")), core.EventKind(req.Type), req.Payload, domain.UserID(req.Exclude))
		c.Status(http.StatusAccepted)
	})

	// Platform-wide announcements, e.g. maintenance notices.
	api.POST("/broadcast", func(c *gin.Context) {
		var req struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
			Exclude string          `json:"excludeUserId"`
		}
		if err := c.BindJSON(&req); err != nil || req.Type == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event"})
			return
		}
		hub.BroadcastAll(core.EventKind(req.Type), req.Payload, domain.UserID(req.Exclude))
		c.Status(http.StatusAccepted)
	})

	return r
}
