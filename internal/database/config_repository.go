package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/heliowatch/heliowatch-go/internal/models"
)

// ErrConfigNotFound is returned when a system has no stored detection config.
var ErrConfigNotFound = errors.New("detection config not found")

// ConfigRepository handles persistence of per-system detection configs.
type ConfigRepository struct {
	pool DatabasePool
}

// NewConfigRepository creates a new detection-config repository.
func NewConfigRepository(pool DatabasePool) *ConfigRepository {
	return &ConfigRepository{pool: pool}
}

// Get fetches the detection config for a system.
func (r *ConfigRepository) Get(ctx context.Context, systemID string) (*models.DetectionConfig, error) {
	query := `
		SELECT system_id, enabled, sensitivity, capacity_kw, settings, updated_at
		FROM detection_configs
		WHERE system_id = $1
	`

	var (
		cfg      models.DetectionConfig
		settings []byte
	)
	err := r.pool.QueryRow(ctx, query, systemID).Scan(
		&cfg.SystemID, &cfg.Enabled, &cfg.Sensitivity, &cfg.CapacityKW, &settings, &cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to get detection config: %w", err)
	}

	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal detection config settings: %w", err)
		}
	}

	return &cfg, nil
}

// Upsert stores a detection config, replacing any existing one.
func (r *ConfigRepository) Upsert(ctx context.Context, cfg *models.DetectionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	settings, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal detection config: %w", err)
	}

	query := `
		INSERT INTO detection_configs (system_id, enabled, sensitivity, capacity_kw, settings, updated_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
		ON CONFLICT (system_id)
		DO UPDATE SET
			enabled = EXCLUDED.enabled,
			sensitivity = EXCLUDED.sensitivity,
			capacity_kw = EXCLUDED.capacity_kw,
			settings = EXCLUDED.settings,
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := r.pool.Exec(ctx, query, cfg.SystemID, cfg.Enabled, cfg.Sensitivity, cfg.CapacityKW, settings); err != nil {
		return fmt.Errorf("failed to upsert detection config: %w", err)
	}

	return nil
}
