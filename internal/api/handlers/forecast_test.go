package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliowatch/heliowatch-go/internal/models"
	"github.com/heliowatch/heliowatch-go/internal/services"
)

type fakeForecaster struct {
	result  *models.ForecastResult
	err     error
	horizon models.ForecastHorizon
}

func (f *fakeForecaster) Forecast(ctx context.Context, systemID string, horizon models.ForecastHorizon) (*models.ForecastResult, error) {
	f.horizon = horizon
	return f.result, f.err
}

func forecastRouter(svc *fakeForecaster) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewForecastHandler(svc)
	router.GET("/api/v1/systems/:systemId/forecast", h.Forecast)
	return router
}

func TestForecastHandler_DefaultHorizonIsDay(t *testing.T) {
	svc := &fakeForecaster{result: &models.ForecastResult{
		SystemID: "sys-1", Horizon: models.HorizonDay, ValueKWh: 120, Confidence: 0.75,
	}}
	router := forecastRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/systems/sys-1/forecast", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.HorizonDay, svc.horizon)

	var resp models.ForecastResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.InDelta(t, 120, resp.ValueKWh, 1e-9)
}

func TestForecastHandler_ExplicitHorizon(t *testing.T) {
	svc := &fakeForecaster{result: &models.ForecastResult{Horizon: models.HorizonWeek}}
	router := forecastRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/systems/sys-1/forecast?horizon=week", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.HorizonWeek, svc.horizon)
}

func TestForecastHandler_UnknownHorizonIs400(t *testing.T) {
	router := forecastRouter(&fakeForecaster{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/systems/sys-1/forecast?horizon=decade", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestForecastHandler_InsufficientDataIs422(t *testing.T) {
	svc := &fakeForecaster{err: fmt.Errorf("%w: 40 daily samples", services.ErrInsufficientData)}
	router := forecastRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/systems/sys-1/forecast?horizon=month", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "insufficient_data", resp.Code)
}

func TestForecastHandler_ModelNotTrainedIs422(t *testing.T) {
	svc := &fakeForecaster{err: fmt.Errorf("%w: seasonal decomposition", services.ErrModelNotTrained)}
	router := forecastRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/systems/sys-1/forecast?horizon=month", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
