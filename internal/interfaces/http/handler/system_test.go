package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

type stubSessions int

func (s stubSessions) SessionCount() int { return int(s) }

func serveHealth(t *testing.T, h *SystemHandler) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	engine := gin.New()
	engine.GET("/health", h.Health)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body struct {
		Data HealthResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body.Data
}

func TestSystemHandler_Health(t *testing.T) {
	h := NewSystemHandler("doobie", "1.2.3", stubPinger{}, stubSessions(3))

	w, resp := serveHealth(t, h)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "up", resp.Database)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, 3, resp.LiveSessions)
	assert.NotEmpty(t, resp.GoVersion)
}

func TestSystemHandler_HealthDatabaseDown(t *testing.T) {
	h := NewSystemHandler("doobie", "dev", stubPinger{err: errors.New("refused")}, nil)

	w, resp := serveHealth(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "down", resp.Database)
	assert.Zero(t, resp.LiveSessions)
}
