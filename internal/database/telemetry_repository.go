package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/heliowatch/heliowatch-go/internal/models"
)

// DatabasePool defines the interface for database pool operations.
// This interface allows for both real pool and mock pool implementations.
type DatabasePool interface {
	// QueryRow executes a query that is expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	// Exec executes a query without returning any rows.
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	// Query executes a query that returns rows.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// TelemetryRepository handles database operations for telemetry records.
type TelemetryRepository struct {
	pool DatabasePool
}

// NewTelemetryRepository creates a new telemetry repository.
func NewTelemetryRepository(pool DatabasePool) *TelemetryRepository {
	return &TelemetryRepository{pool: pool}
}

// InsertRecord stores one ingested telemetry record. Records are immutable,
// so there is no update path.
func (r *TelemetryRepository) InsertRecord(ctx context.Context, rec *models.TelemetryRecord) error {
	query := `
		INSERT INTO telemetry_records (
			system_id, timestamp,
			dc_power_kw, ac_power_kw, energy_kwh, voltage_v, current_a, frequency_hz,
			irradiance_wm2, ambient_temp_c, module_temp_c,
			performance_ratio, efficiency, specific_yield, capacity_factor,
			quality_confidence
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.pool.Exec(ctx, query,
		rec.SystemID, rec.Timestamp,
		rec.Production.DCPowerKW, rec.Production.ACPowerKW, rec.Production.EnergyKWh,
		rec.Production.VoltageV, rec.Production.CurrentA, rec.Production.FrequencyHz,
		rec.Environmental.IrradianceWM2, rec.Environmental.AmbientTempC, rec.Environmental.ModuleTempC,
		rec.Performance.PerformanceRatio, rec.Performance.Efficiency,
		rec.Performance.SpecificYield, rec.Performance.CapacityFactor,
		rec.QualityConfidence,
	)
	if err != nil {
		return fmt.Errorf("failed to insert telemetry record: %w", err)
	}

	return nil
}

// GetHistory returns records for a system inside [from, to], ordered by time
// ascending. Limit 0 means no limit.
func (r *TelemetryRepository) GetHistory(ctx context.Context, systemID string, from, to time.Time, limit int) ([]models.TelemetryRecord, error) {
	query := `
		SELECT system_id, timestamp,
		       dc_power_kw, ac_power_kw, energy_kwh, voltage_v, current_a, frequency_hz,
		       irradiance_wm2, ambient_temp_c, module_temp_c,
		       performance_ratio, efficiency, specific_yield, capacity_factor,
		       quality_confidence
		FROM telemetry_records
		WHERE system_id = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp ASC
	`
	args := []interface{}{systemID, from, to}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query telemetry history: %w", err)
	}
	defer rows.Close()

	var records []models.TelemetryRecord
	for rows.Next() {
		var rec models.TelemetryRecord
		err := rows.Scan(
			&rec.SystemID, &rec.Timestamp,
			&rec.Production.DCPowerKW, &rec.Production.ACPowerKW, &rec.Production.EnergyKWh,
			&rec.Production.VoltageV, &rec.Production.CurrentA, &rec.Production.FrequencyHz,
			&rec.Environmental.IrradianceWM2, &rec.Environmental.AmbientTempC, &rec.Environmental.ModuleTempC,
			&rec.Performance.PerformanceRatio, &rec.Performance.Efficiency,
			&rec.Performance.SpecificYield, &rec.Performance.CapacityFactor,
			&rec.QualityConfidence,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan telemetry record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating telemetry records: %w", err)
	}

	return records, nil
}

// GetDailyEnergy returns per-day energy totals for a system, oldest first.
// Used to train the seasonal forecast model.
func (r *TelemetryRepository) GetDailyEnergy(ctx context.Context, systemID string, from, to time.Time) ([]models.TelemetryRecord, error) {
	query := `
		SELECT system_id, date_trunc('day', timestamp) AS day, SUM(energy_kwh)
		FROM telemetry_records
		WHERE system_id = $1 AND timestamp >= $2 AND timestamp <= $3
		GROUP BY system_id, day
		ORDER BY day ASC
	`

	rows, err := r.pool.Query(ctx, query, systemID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily energy: %w", err)
	}
	defer rows.Close()

	var records []models.TelemetryRecord
	for rows.Next() {
		var rec models.TelemetryRecord
		if err := rows.Scan(&rec.SystemID, &rec.Timestamp, &rec.Production.EnergyKWh); err != nil {
			return nil, fmt.Errorf("failed to scan daily energy row: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily energy rows: %w", err)
	}

	return records, nil
}
