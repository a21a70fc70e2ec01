package database

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliowatch/heliowatch-go/internal/models"
)

func testDetectionConfig() *models.DetectionConfig {
	return &models.DetectionConfig{
		SystemID:    "sys-1",
		Enabled:     true,
		Sensitivity: "medium",
		Methods:     []models.DetectionMethod{models.MethodStatistical, models.MethodThreshold},
		Thresholds:  models.SeverityThresholds{Info: 0.2, Warning: 0.5, Critical: 0.8},
		Limits:      models.FrequencyLimits{MaxPerHour: 5, MaxPerDay: 20, CooldownMinutes: 30},
		CapacityKW:  50,
		UpdatedAt:   time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestConfigRepository_Get(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewConfigRepository(NewMockPoolAdapter(mockPool))
	want := testDetectionConfig()
	settings, err := json.Marshal(want)
	require.NoError(t, err)

	mockPool.ExpectQuery("SELECT system_id, enabled, sensitivity").
		WithArgs("sys-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"system_id", "enabled", "sensitivity", "capacity_kw", "settings", "updated_at",
		}).AddRow(want.SystemID, want.Enabled, want.Sensitivity, want.CapacityKW, settings, want.UpdatedAt))

	got, err := repo.Get(context.Background(), "sys-1")
	require.NoError(t, err)
	assert.Equal(t, "sys-1", got.SystemID)
	assert.True(t, got.Enabled)
	assert.Equal(t, want.Methods, got.Methods)
	assert.InDelta(t, 0.5, got.Thresholds.Warning, 1e-9)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestConfigRepository_GetNotFound(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewConfigRepository(NewMockPoolAdapter(mockPool))

	mockPool.ExpectQuery("SELECT system_id, enabled, sensitivity").
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestConfigRepository_Upsert(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewConfigRepository(NewMockPoolAdapter(mockPool))
	cfg := testDetectionConfig()

	mockPool.ExpectExec("INSERT INTO detection_configs").
		WithArgs(cfg.SystemID, cfg.Enabled, cfg.Sensitivity, cfg.CapacityKW, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Upsert(context.Background(), cfg))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestConfigRepository_UpsertRejectsInvalid(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewConfigRepository(NewMockPoolAdapter(mockPool))
	cfg := testDetectionConfig()
	cfg.Thresholds = models.SeverityThresholds{Info: 0.9, Warning: 0.5, Critical: 0.2}

	err = repo.Upsert(context.Background(), cfg)
	require.Error(t, err)
	// Nothing reaches the database when validation fails.
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
