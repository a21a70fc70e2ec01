package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/heliowatch/heliowatch-go/internal/models"
)

// ErrAnomalyNotFound is returned when the requested anomaly does not exist.
var ErrAnomalyNotFound = errors.New("anomaly not found")

// AnomalyRepository handles database operations for detected anomalies.
type AnomalyRepository struct {
	pool DatabasePool
}

// NewAnomalyRepository creates a new anomaly repository.
func NewAnomalyRepository(pool DatabasePool) *AnomalyRepository {
	return &AnomalyRepository{pool: pool}
}

// Insert stores a newly accepted anomaly. Anomalies are append-only; only
// status, acknowledgement and feedback change afterwards.
func (r *AnomalyRepository) Insert(ctx context.Context, a *models.Anomaly) error {
	detectedBy, err := json.Marshal(a.DetectedBy)
	if err != nil {
		return fmt.Errorf("failed to marshal detected_by: %w", err)
	}
	contextJSON, err := json.Marshal(a.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}
	impactJSON, err := json.Marshal(a.Impact)
	if err != nil {
		return fmt.Errorf("failed to marshal impact: %w", err)
	}
	recsJSON, err := json.Marshal(a.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	query := `
		INSERT INTO anomalies (
			id, system_id, timestamp, type, category, severity, score, confidence,
			detected_by, context, impact, recommendations, status, acknowledged, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = r.pool.Exec(ctx, query,
		a.ID, a.SystemID, a.Timestamp, a.Type, a.Category, a.Severity, a.Score, a.Confidence,
		detectedBy, contextJSON, impactJSON, recsJSON, a.Status, a.Acknowledged, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert anomaly: %w", err)
	}

	return nil
}

// GetByID fetches one anomaly.
func (r *AnomalyRepository) GetByID(ctx context.Context, id string) (*models.Anomaly, error) {
	query := `
		SELECT id, system_id, timestamp, type, category, severity, score, confidence,
		       detected_by, context, impact, recommendations, status,
		       acknowledged, acknowledged_by, acknowledged_at, feedback, created_at
		FROM anomalies
		WHERE id = $1
	`

	var (
		a              models.Anomaly
		detectedBy     []byte
		contextJSON    []byte
		impactJSON     []byte
		recsJSON       []byte
		feedbackJSON   []byte
		acknowledgedBy sql.NullString
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.SystemID, &a.Timestamp, &a.Type, &a.Category, &a.Severity, &a.Score, &a.Confidence,
		&detectedBy, &contextJSON, &impactJSON, &recsJSON, &a.Status,
		&a.Acknowledged, &acknowledgedBy, &a.AcknowledgedAt, &feedbackJSON, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAnomalyNotFound
		}
		return nil, fmt.Errorf("failed to get anomaly: %w", err)
	}

	if err := unmarshalAnomalyJSON(&a, detectedBy, contextJSON, impactJSON, recsJSON, feedbackJSON); err != nil {
		return nil, err
	}
	a.AcknowledgedBy = acknowledgedBy.String

	return &a, nil
}

// List returns anomalies for a system matching the filter, newest first.
func (r *AnomalyRepository) List(ctx context.Context, systemID string, filter models.AnomalyFilter) ([]models.Anomaly, error) {
	query := `
		SELECT id, system_id, timestamp, type, category, severity, score, confidence,
		       detected_by, context, impact, recommendations, status,
		       acknowledged, acknowledged_by, acknowledged_at, feedback, created_at
		FROM anomalies
		WHERE system_id = $1
	`
	args := []interface{}{systemID}
	argPos := 2

	if filter.From != nil {
		query += fmt.Sprintf(" AND timestamp >= $%d", argPos)
		args = append(args, *filter.From)
		argPos++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND timestamp <= $%d", argPos)
		args = append(args, *filter.To)
		argPos++
	}
	if len(filter.Severities) > 0 {
		query += fmt.Sprintf(" AND severity = ANY($%d)", argPos)
		args = append(args, severityStrings(filter.Severities))
		argPos++
	}
	if len(filter.Statuses) > 0 {
		query += fmt.Sprintf(" AND status = ANY($%d)", argPos)
		args = append(args, statusStrings(filter.Statuses))
		argPos++
	}

	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, filter.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list anomalies: %w", err)
	}
	defer rows.Close()

	var anomalies []models.Anomaly
	for rows.Next() {
		var (
			a              models.Anomaly
			detectedBy     []byte
			contextJSON    []byte
			impactJSON     []byte
			recsJSON       []byte
			feedbackJSON   []byte
			acknowledgedBy sql.NullString
		)
		err := rows.Scan(
			&a.ID, &a.SystemID, &a.Timestamp, &a.Type, &a.Category, &a.Severity, &a.Score, &a.Confidence,
			&detectedBy, &contextJSON, &impactJSON, &recsJSON, &a.Status,
			&a.Acknowledged, &acknowledgedBy, &a.AcknowledgedAt, &feedbackJSON, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan anomaly: %w", err)
		}
		if err := unmarshalAnomalyJSON(&a, detectedBy, contextJSON, impactJSON, recsJSON, feedbackJSON); err != nil {
			return nil, err
		}
		a.AcknowledgedBy = acknowledgedBy.String
		anomalies = append(anomalies, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating anomalies: %w", err)
	}

	return anomalies, nil
}

// UpdateStatus moves an anomaly to a new lifecycle status. State-transition
// validity is enforced by the alert manager; this is plain persistence.
func (r *AnomalyRepository) UpdateStatus(ctx context.Context, id string, status models.AnomalyStatus) error {
	query := `UPDATE anomalies SET status = $2 WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update anomaly status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAnomalyNotFound
	}

	return nil
}

// Acknowledge records the acknowledging actor and optional feedback.
func (r *AnomalyRepository) Acknowledge(ctx context.Context, id, actorID string, at time.Time, feedback *models.Feedback) error {
	var feedbackJSON []byte
	if feedback != nil {
		var err error
		feedbackJSON, err = json.Marshal(feedback)
		if err != nil {
			return fmt.Errorf("failed to marshal feedback: %w", err)
		}
	}

	query := `
		UPDATE anomalies
		SET acknowledged = true, acknowledged_by = $2, acknowledged_at = $3, feedback = $4
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, actorID, at, feedbackJSON)
	if err != nil {
		return fmt.Errorf("failed to acknowledge anomaly: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAnomalyNotFound
	}

	return nil
}

// CountSince counts accepted anomalies for a system since the cutoff. Used to
// warm-start the rate limiter after restart.
func (r *AnomalyRepository) CountSince(ctx context.Context, systemID string, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM anomalies WHERE system_id = $1 AND created_at >= $2`

	var count int64
	if err := r.pool.QueryRow(ctx, query, systemID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count anomalies: %w", err)
	}

	return count, nil
}

// Stats aggregates anomaly counters, optionally scoped to one system
// (empty systemID means fleet-wide).
func (r *AnomalyRepository) Stats(ctx context.Context, systemID string) (*models.AnomalyStatistics, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE severity = 'critical'),
		       COUNT(*) FILTER (WHERE status = 'false_positive'),
		       COALESCE(AVG(score), 0)
		FROM anomalies
		WHERE ($1 = '' OR system_id = $1)
	`

	var stats models.AnomalyStatistics
	err := r.pool.QueryRow(ctx, query, systemID).Scan(
		&stats.TotalAnomalies,
		&stats.CriticalAnomalies,
		&stats.FalsePositives,
		&stats.AverageScore,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate anomaly stats: %w", err)
	}

	if stats.TotalAnomalies > 0 {
		stats.Accuracy = 1 - float64(stats.FalsePositives)/float64(stats.TotalAnomalies)
	}

	return &stats, nil
}

func unmarshalAnomalyJSON(a *models.Anomaly, detectedBy, contextJSON, impactJSON, recsJSON, feedbackJSON []byte) error {
	if len(detectedBy) > 0 {
		if err := json.Unmarshal(detectedBy, &a.DetectedBy); err != nil {
			return fmt.Errorf("failed to unmarshal detected_by: %w", err)
		}
	}
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &a.Context); err != nil {
			return fmt.Errorf("failed to unmarshal context: %w", err)
		}
	}
	if len(impactJSON) > 0 {
		if err := json.Unmarshal(impactJSON, &a.Impact); err != nil {
			return fmt.Errorf("failed to unmarshal impact: %w", err)
		}
	}
	if len(recsJSON) > 0 {
		if err := json.Unmarshal(recsJSON, &a.Recommendations); err != nil {
			return fmt.Errorf("failed to unmarshal recommendations: %w", err)
		}
	}
	if len(feedbackJSON) > 0 {
		var fb models.Feedback
		if err := json.Unmarshal(feedbackJSON, &fb); err != nil {
			return fmt.Errorf("failed to unmarshal feedback: %w", err)
		}
		a.Feedback = &fb
	}
	return nil
}

func severityStrings(severities []models.Severity) []string {
	out := make([]string, len(severities))
	for i, s := range severities {
		out[i] = string(s)
	}
	return out
}

func statusStrings(statuses []models.AnomalyStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
