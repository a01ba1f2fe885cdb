package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SessionCounter reports connected live sessions
type SessionCounter interface {
	SessionCount() int
}

// SystemHandler serves health and build information
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	db        Pinger
	live      SessionCounter
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(name, version string, db Pinger, live SessionCounter) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		db:        db,
		live:      live,
		startTime: time.Now(),
	}
}

// HealthResponse is the body of the health endpoint
type HealthResponse struct {
	Status       string `json:"status"`
	Name         string `json:"name"`
	Version      string `json:"version"`
	GoVersion    string `json:"goVersion"`
	Uptime       string `json:"uptime"`
	Database     string `json:"database"`
	LiveSessions int    `json:"liveSessions"`
}

// Health reports process and database health. An unreachable database
// answers 503.
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "ok",
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Database:  "up",
	}
	if h.live != nil {
		resp.LiveSessions = h.live.SessionCount()
	}

	status := http.StatusOK
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		err := h.db.PingContext(ctx)
		cancel()
		if err != nil {
			resp.Status = "degraded"
			resp.Database = "down"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, dto.NewSuccessResponse(resp))
}
