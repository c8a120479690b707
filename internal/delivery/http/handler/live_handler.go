package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/oggyb/campusknot/internal/db"
	"github.com/oggyb/campusknot/internal/logger"
	"github.com/oggyb/campusknot/internal/live"
)

// TokenAuthenticator resolves a bearer token to its user.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*db.User, error)
}

// LiveHandler upgrades authenticated clients onto the live channel.
type LiveHandler struct {
	hub  *live.Hub
	auth TokenAuthenticator
}

func NewLiveHandler(hub *live.Hub, auth TokenAuthenticator) *LiveHandler {
	return &LiveHandler{hub: hub, auth: auth}
}

// Connect authenticates ?token= and hands the connection to the hub.
// GET /ws
func (h *LiveHandler) Connect(c *gin.Context) {
	u, err := h.auth.Authenticate(c.Request.Context(), c.Query("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.hub.ServeWS(c.Writer, c.Request, u.ID); err != nil {
		// the upgrader has already written the failure response
		logger.FromContext(c.Request.Context()).Debug("websocket upgrade failed", "user_id", u.ID, "err", err)
	}
}

// HealthHandler reports liveness and database reachability.
type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(database *gorm.DB) *HealthHandler {
	return &HealthHandler{db: database}
}

// Health answers 200 while the database responds, 503 otherwise.
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	if err := db.Ping(h.db); err != nil {
		logger.FromContext(c.Request.Context()).Warn("health check failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "up"})
}
