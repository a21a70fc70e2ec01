package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/heliowatch/heliowatch-go/internal/models"
	"github.com/heliowatch/heliowatch-go/internal/services"
)

// TelemetryWriter persists incoming telemetry before detection runs.
type TelemetryWriter interface {
	InsertRecord(ctx context.Context, rec *models.TelemetryRecord) error
}

// DetectionRunner runs the anomaly detection pipeline over one record.
type DetectionRunner interface {
	Run(ctx context.Context, record *models.TelemetryRecord) (*services.DetectionResult, error)
}

// DetectionHandler ingests telemetry and runs detection on it.
type DetectionHandler struct {
	engine    DetectionRunner
	telemetry TelemetryWriter
}

// NewDetectionHandler creates the detection endpoint handler.
func NewDetectionHandler(engine DetectionRunner, telemetry TelemetryWriter) *DetectionHandler {
	return &DetectionHandler{engine: engine, telemetry: telemetry}
}

// Detect handles POST /api/v1/telemetry/:systemId/detect. The body is one
// telemetry record; the response is the detection outcome, including the
// skipped flag when an exclusion applied.
func (h *DetectionHandler) Detect(c *gin.Context) {
	var record models.TelemetryRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error(), Code: "bad_request"})
		return
	}
	record.SystemID = c.Param("systemId")

	if err := record.Validate(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "invalid_input"})
		return
	}

	if h.telemetry != nil {
		if err := h.telemetry.InsertRecord(c.Request.Context(), &record); err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to persist telemetry: " + err.Error()})
			return
		}
	}

	result, err := h.engine.Run(c.Request.Context(), &record)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
