package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/heliowatch/heliowatch-go/internal/cache"
	"github.com/heliowatch/heliowatch-go/internal/models"
)

// AlertService is the slice of the alert manager the handlers need.
type AlertService interface {
	List(ctx context.Context, systemID string, filter models.AnomalyFilter) ([]models.Anomaly, error)
	Get(ctx context.Context, id string) (*models.Anomaly, error)
	Acknowledge(ctx context.Context, id, actorID string, feedback *models.Feedback) (*models.Anomaly, error)
	Transition(ctx context.Context, id string, target models.AnomalyStatus) (*models.Anomaly, error)
	Stats(ctx context.Context, systemID string) (*models.AnomalyStatistics, error)
}

// CacheStatsProvider reports baseline cache performance for the statistics
// endpoint.
type CacheStatsProvider interface {
	GetStats() cache.BaselineCacheStats
}

// AnomalyHandler serves the anomaly listing and lifecycle endpoints.
type AnomalyHandler struct {
	alerts     AlertService
	cacheStats CacheStatsProvider
}

// NewAnomalyHandler creates the anomaly endpoints handler. cacheStats may be
// nil, in which case the statistics payload omits cache metrics.
func NewAnomalyHandler(alerts AlertService, cacheStats CacheStatsProvider) *AnomalyHandler {
	return &AnomalyHandler{alerts: alerts, cacheStats: cacheStats}
}

// AnomalyListResponse wraps a listing with its count.
type AnomalyListResponse struct {
	Data  []models.Anomaly `json:"data"`
	Total int              `json:"total"`
}

// List handles GET /api/v1/systems/:systemId/anomalies. No matches is a 200
// with an empty list, never a 404.
func (h *AnomalyHandler) List(c *gin.Context) {
	filter, err := parseAnomalyFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "bad_request"})
		return
	}

	anomalies, err := h.alerts.List(c.Request.Context(), c.Param("systemId"), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if anomalies == nil {
		anomalies = []models.Anomaly{}
	}

	c.JSON(http.StatusOK, AnomalyListResponse{Data: anomalies, Total: len(anomalies)})
}

// Get handles GET /api/v1/anomalies/:id.
func (h *AnomalyHandler) Get(c *gin.Context) {
	anomaly, err := h.alerts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, anomaly)
}

// AcknowledgeRequest is the acknowledge endpoint body.
type AcknowledgeRequest struct {
	ActorID  string `json:"actor_id" binding:"required"`
	Accurate *bool  `json:"accurate,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// Acknowledge handles POST /api/v1/anomalies/:id/acknowledge.
func (h *AnomalyHandler) Acknowledge(c *gin.Context) {
	var req AcknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error(), Code: "bad_request"})
		return
	}

	var feedback *models.Feedback
	if req.Accurate != nil {
		feedback = &models.Feedback{Accurate: *req.Accurate, Comment: req.Comment}
	}

	anomaly, err := h.alerts.Acknowledge(c.Request.Context(), c.Param("id"), req.ActorID, feedback)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, anomaly)
}

// StatusRequest is the status transition body.
type StatusRequest struct {
	Status models.AnomalyStatus `json:"status" binding:"required"`
}

// UpdateStatus handles POST /api/v1/anomalies/:id/status. Transitions out of
// a terminal state come back as 409.
func (h *AnomalyHandler) UpdateStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error(), Code: "bad_request"})
		return
	}

	anomaly, err := h.alerts.Transition(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, anomaly)
}

// StatisticsResponse bundles anomaly aggregates with cache performance.
type StatisticsResponse struct {
	Anomalies     *models.AnomalyStatistics `json:"anomalies"`
	BaselineCache *cache.BaselineCacheStats `json:"baseline_cache,omitempty"`
}

// Statistics handles GET /api/v1/statistics with an optional system_id
// query parameter.
func (h *AnomalyHandler) Statistics(c *gin.Context) {
	stats, err := h.alerts.Stats(c.Request.Context(), c.Query("system_id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response := StatisticsResponse{Anomalies: stats}
	if h.cacheStats != nil {
		cs := h.cacheStats.GetStats()
		response.BaselineCache = &cs
	}
	c.JSON(http.StatusOK, response)
}

func parseAnomalyFilter(c *gin.Context) (models.AnomalyFilter, error) {
	var filter models.AnomalyFilter

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, err
		}
		filter.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, err
		}
		filter.To = &t
	}
	if v := c.Query("severities"); v != "" {
		for _, s := range strings.Split(v, ",") {
			filter.Severities = append(filter.Severities, models.Severity(strings.TrimSpace(s)))
		}
	}
	if v := c.Query("statuses"); v != "" {
		for _, s := range strings.Split(v, ",") {
			filter.Statuses = append(filter.Statuses, models.AnomalyStatus(strings.TrimSpace(s)))
		}
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return filter, err
		}
		filter.Limit = limit
	}

	return filter, nil
}
