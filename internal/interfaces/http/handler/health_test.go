package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/khata/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveHealth(h *HealthHandler) *httptest.ResponseRecorder {
	engine := gin.New()
	engine.GET("/health", h.Health)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	return w
}

func TestHealthHandler_Healthy(t *testing.T) {
	h := NewHealthHandler("1.2.0", nil).
		AddCheck("database", func(ctx context.Context) error { return nil }).
		AddCheck("cache", func(ctx context.Context) error { return nil })

	w := serveHealth(h)

	require.Equal(t, http.StatusOK, w.Code)
	var health dto.HealthResponse
	decodeData(t, w, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "1.2.0", health.Version)
	assert.Equal(t, map[string]string{"database": "ok", "cache": "ok"}, health.Checks)
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	h := NewHealthHandler("1.2.0", nil).
		AddCheck("database", func(ctx context.Context) error { return errors.New("connection refused") }).
		AddCheck("cache", func(ctx context.Context) error { return nil })

	w := serveHealth(h)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	assert.Contains(t, string(env.Data), `"database":"unhealthy"`)
	assert.Contains(t, string(env.Data), `"cache":"ok"`)
	assert.NotContains(t, string(env.Data), "connection refused")
}

func TestHealthHandler_NoChecks(t *testing.T) {
	w := serveHealth(NewHealthHandler("dev", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}
