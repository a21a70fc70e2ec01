package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/heliowatch/heliowatch-go/internal/models"
)

// Notifier receives accepted anomalies after persistence. Implementations
// must not block the detection run.
type Notifier interface {
	NotifyAnomaly(ctx context.Context, anomaly *models.Anomaly) error
}

// LogNotifier writes anomaly notifications to the structured log. It is the
// default sink when no external channel is configured.
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyAnomaly(ctx context.Context, anomaly *models.Anomaly) error {
	n.logger.WithFields(logrus.Fields{
		"anomaly_id": anomaly.ID,
		"system_id":  anomaly.SystemID,
		"type":       anomaly.Type,
		"severity":   anomaly.Severity,
		"score":      anomaly.Score,
		"confidence": anomaly.Confidence,
	}).Info("Anomaly detected")
	return nil
}
