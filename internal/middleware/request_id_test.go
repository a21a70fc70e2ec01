package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequestIDRouter() (*gin.Engine, *string) {
	gin.SetMode(gin.TestMode)
	var captured string
	router := gin.New()
	router.Use(RequestID())
	router.GET("/ping", func(c *gin.Context) {
		captured = GetRequestID(c)
		c.Status(http.StatusOK)
	})
	return router, &captured
}

func TestRequestIDGenerated(t *testing.T) {
	router, captured := newRequestIDRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)

	echoed := w.Header().Get(RequestIDHeader)
	require.NotEmpty(t, echoed)
	assert.Equal(t, echoed, *captured)

	_, err := uuid.Parse(echoed)
	assert.NoError(t, err)
}

func TestRequestIDPreservesCallerID(t *testing.T) {
	router, captured := newRequestIDRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "gateway-abc-123")
	router.ServeHTTP(w, req)

	assert.Equal(t, "gateway-abc-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "gateway-abc-123", *captured)
}

func TestGetRequestIDWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, GetRequestID(c))
}
