package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/heliowatch/heliowatch-go/internal/models"
)

// AlertStore is the slice of the anomaly repository the alert manager needs.
type AlertStore interface {
	GetByID(ctx context.Context, id string) (*models.Anomaly, error)
	List(ctx context.Context, systemID string, filter models.AnomalyFilter) ([]models.Anomaly, error)
	UpdateStatus(ctx context.Context, id string, status models.AnomalyStatus) error
	Acknowledge(ctx context.Context, id, actorID string, at time.Time, feedback *models.Feedback) error
	Stats(ctx context.Context, systemID string) (*models.AnomalyStatistics, error)
}

// AlertManager owns the anomaly lifecycle after detection: listing,
// acknowledgement, status transitions and aggregate statistics.
type AlertManager struct {
	store  AlertStore
	logger *logrus.Logger
}

// NewAlertManager creates an alert manager.
func NewAlertManager(store AlertStore, logger *logrus.Logger) *AlertManager {
	return &AlertManager{store: store, logger: logger}
}

// List returns anomalies for a system, newest first, honoring the filter.
func (m *AlertManager) List(ctx context.Context, systemID string, filter models.AnomalyFilter) ([]models.Anomaly, error) {
	return m.store.List(ctx, systemID, filter)
}

// Get returns one anomaly by id.
func (m *AlertManager) Get(ctx context.Context, id string) (*models.Anomaly, error) {
	return m.store.GetByID(ctx, id)
}

// Acknowledge marks an anomaly as seen by an operator and records optional
// feedback. An anomaly can only be acknowledged once; a second attempt is an
// invalid transition.
func (m *AlertManager) Acknowledge(ctx context.Context, id, actorID string, feedback *models.Feedback) (*models.Anomaly, error) {
	anomaly, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if anomaly.Acknowledged {
		return nil, fmt.Errorf("%w: anomaly already acknowledged", ErrInvalidTransition)
	}

	now := time.Now().UTC()
	if feedback != nil {
		feedback.CreatedAt = now
	}
	if err := m.store.Acknowledge(ctx, id, actorID, now, feedback); err != nil {
		return nil, err
	}

	anomaly.Acknowledged = true
	anomaly.AcknowledgedBy = actorID
	anomaly.AcknowledgedAt = &now
	anomaly.Feedback = feedback

	m.logger.WithFields(logrus.Fields{
		"anomaly_id": id,
		"actor_id":   actorID,
	}).Info("Anomaly acknowledged")

	return anomaly, nil
}

// Transition moves an anomaly to a new lifecycle status. Terminal states
// admit no further transitions.
func (m *AlertManager) Transition(ctx context.Context, id string, target models.AnomalyStatus) (*models.Anomaly, error) {
	switch target {
	case models.StatusActive, models.StatusInvestigating, models.StatusResolved, models.StatusFalsePositive:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, target)
	}

	anomaly, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if anomaly.Status.Terminal() && anomaly.Status != target {
		return nil, fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, anomaly.Status)
	}
	if anomaly.Status == target {
		return anomaly, nil
	}

	if err := m.store.UpdateStatus(ctx, id, target); err != nil {
		return nil, err
	}

	m.logger.WithFields(logrus.Fields{
		"anomaly_id": id,
		"from":       anomaly.Status,
		"to":         target,
	}).Info("Anomaly status changed")

	anomaly.Status = target
	return anomaly, nil
}

// Stats returns the aggregate anomaly view for one system, or for the whole
// fleet when systemID is empty.
func (m *AlertManager) Stats(ctx context.Context, systemID string) (*models.AnomalyStatistics, error) {
	return m.store.Stats(ctx, systemID)
}
