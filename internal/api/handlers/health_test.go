package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheckUnconfiguredDependencies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewHealthHandler(nil, nil, nil)
	router.GET("/health", h.HealthCheck)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "unhealthy: not configured", resp.Services["database"])
	assert.Equal(t, "unhealthy: not configured", resp.Services["redis"])
	// An absent weather feed only degrades; it never drives the overall status.
	assert.Equal(t, "degraded: not configured", resp.Services["weather"])
	assert.NotEmpty(t, resp.Uptime)
}
