package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliowatch/heliowatch-go/internal/models"
	"github.com/heliowatch/heliowatch-go/internal/services"
)

type fakeDetectionRunner struct {
	result *services.DetectionResult
	err    error
	ran    *models.TelemetryRecord
}

func (f *fakeDetectionRunner) Run(ctx context.Context, record *models.TelemetryRecord) (*services.DetectionResult, error) {
	f.ran = record
	return f.result, f.err
}

type fakeTelemetryWriter struct {
	inserted []models.TelemetryRecord
}

func (f *fakeTelemetryWriter) InsertRecord(ctx context.Context, rec *models.TelemetryRecord) error {
	f.inserted = append(f.inserted, *rec)
	return nil
}

func detectionRouter(runner *fakeDetectionRunner, writer *fakeTelemetryWriter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewDetectionHandler(runner, writer)
	router.POST("/api/v1/telemetry/:systemId/detect", h.Detect)
	return router
}

func detectBody(t *testing.T) []byte {
	t.Helper()
	record := models.TelemetryRecord{
		Timestamp: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		Production: models.ProductionMetrics{
			ACPowerKW: 48, DCPowerKW: 50, VoltageV: 230, FrequencyHz: 50,
		},
		Performance:       models.PerformanceMetrics{PerformanceRatio: 0.8, Efficiency: 0.18},
		QualityConfidence: 1,
	}
	body, err := json.Marshal(record)
	require.NoError(t, err)
	return body
}

func TestDetectionHandler_RunsAndPersists(t *testing.T) {
	runner := &fakeDetectionRunner{result: &services.DetectionResult{SystemID: "sys-1"}}
	writer := &fakeTelemetryWriter{}
	router := detectionRouter(runner, writer)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/telemetry/sys-1/detect", bytes.NewReader(detectBody(t)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, runner.ran)
	assert.Equal(t, "sys-1", runner.ran.SystemID) // path wins over body
	require.Len(t, writer.inserted, 1)
}

func TestDetectionHandler_SkippedResultPassesThrough(t *testing.T) {
	runner := &fakeDetectionRunner{result: &services.DetectionResult{
		SystemID:   "sys-1",
		Skipped:    true,
		SkipReason: "irradiance 40 W/m2 below detection floor",
	}}
	router := detectionRouter(runner, &fakeTelemetryWriter{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/telemetry/sys-1/detect", bytes.NewReader(detectBody(t)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp services.DetectionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Skipped)
	assert.Contains(t, resp.SkipReason, "below detection floor")
}

func TestDetectionHandler_InvalidBody(t *testing.T) {
	router := detectionRouter(&fakeDetectionRunner{}, &fakeTelemetryWriter{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/telemetry/sys-1/detect", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDetectionHandler_InvalidRecordIs422(t *testing.T) {
	router := detectionRouter(&fakeDetectionRunner{}, &fakeTelemetryWriter{})

	// Missing timestamp fails record validation.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/telemetry/sys-1/detect", bytes.NewReader([]byte(`{"production":{"ac_power_kw":10}}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
