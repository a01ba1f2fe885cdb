package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LiveHandler upgrades requests to the live order channel
type LiveHandler struct {
	hub http.Handler
}

// NewLiveHandler creates a LiveHandler around the broadcast hub
func NewLiveHandler(hub http.Handler) *LiveHandler {
	return &LiveHandler{hub: hub}
}

// Connect hands the request to the hub, which hijacks the connection
// GET /ws
func (h *LiveHandler) Connect(c *gin.Context) {
	h.hub.ServeHTTP(c.Writer, c.Request)
}
