package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/heliowatch/heliowatch-go/internal/database"
	"github.com/heliowatch/heliowatch-go/internal/services"
)

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondServiceError maps service sentinels onto HTTP statuses.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, database.ErrAnomalyNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "invalid_transition"})
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "invalid_input"})
	case errors.Is(err, services.ErrInsufficientData):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "insufficient_data"})
	case errors.Is(err, services.ErrModelNotTrained):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "model_not_trained"})
	case errors.Is(err, services.ErrUpstreamUnavailable):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "upstream_unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}
