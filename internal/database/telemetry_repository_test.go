package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliowatch/heliowatch-go/internal/models"
)

func testRecord() *models.TelemetryRecord {
	irr := 850.0
	ambient := 24.0
	module := 41.5
	return &models.TelemetryRecord{
		SystemID:  "sys-1",
		Timestamp: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		Production: models.ProductionMetrics{
			DCPowerKW:   42.0,
			ACPowerKW:   40.1,
			EnergyKWh:   40.1,
			VoltageV:    230.2,
			CurrentA:    174.2,
			FrequencyHz: 50.01,
		},
		Environmental: models.EnvironmentalMetrics{
			IrradianceWM2: &irr,
			AmbientTempC:  &ambient,
			ModuleTempC:   &module,
		},
		Performance: models.PerformanceMetrics{
			PerformanceRatio: 0.84,
			Efficiency:       0.19,
			SpecificYield:    0.8,
			CapacityFactor:   0.76,
		},
		QualityConfidence: 0.97,
	}
}

func TestTelemetryRepository_InsertRecord(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewTelemetryRepository(NewMockPoolAdapter(mockPool))
	rec := testRecord()

	mockPool.ExpectExec("INSERT INTO telemetry_records").
		WithArgs(
			rec.SystemID, rec.Timestamp,
			rec.Production.DCPowerKW, rec.Production.ACPowerKW, rec.Production.EnergyKWh,
			rec.Production.VoltageV, rec.Production.CurrentA, rec.Production.FrequencyHz,
			rec.Environmental.IrradianceWM2, rec.Environmental.AmbientTempC, rec.Environmental.ModuleTempC,
			rec.Performance.PerformanceRatio, rec.Performance.Efficiency,
			rec.Performance.SpecificYield, rec.Performance.CapacityFactor,
			rec.QualityConfidence,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.InsertRecord(context.Background(), rec)
	require.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestTelemetryRepository_GetHistory(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewTelemetryRepository(NewMockPoolAdapter(mockPool))
	rec := testRecord()
	from := rec.Timestamp.Add(-24 * time.Hour)
	to := rec.Timestamp

	rows := pgxmock.NewRows([]string{
		"system_id", "timestamp",
		"dc_power_kw", "ac_power_kw", "energy_kwh", "voltage_v", "current_a", "frequency_hz",
		"irradiance_wm2", "ambient_temp_c", "module_temp_c",
		"performance_ratio", "efficiency", "specific_yield", "capacity_factor",
		"quality_confidence",
	}).AddRow(
		rec.SystemID, rec.Timestamp,
		rec.Production.DCPowerKW, rec.Production.ACPowerKW, rec.Production.EnergyKWh,
		rec.Production.VoltageV, rec.Production.CurrentA, rec.Production.FrequencyHz,
		rec.Environmental.IrradianceWM2, rec.Environmental.AmbientTempC, rec.Environmental.ModuleTempC,
		rec.Performance.PerformanceRatio, rec.Performance.Efficiency,
		rec.Performance.SpecificYield, rec.Performance.CapacityFactor,
		rec.QualityConfidence,
	)

	mockPool.ExpectQuery("SELECT system_id, timestamp").
		WithArgs("sys-1", from, to).
		WillReturnRows(rows)

	records, err := repo.GetHistory(context.Background(), "sys-1", from, to, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "sys-1", records[0].SystemID)
	assert.InDelta(t, 40.1, records[0].Production.ACPowerKW, 1e-9)
	require.NotNil(t, records[0].Environmental.IrradianceWM2)
	assert.InDelta(t, 850.0, *records[0].Environmental.IrradianceWM2, 1e-9)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestTelemetryRepository_GetHistoryWithLimit(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewTelemetryRepository(NewMockPoolAdapter(mockPool))
	from := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	mockPool.ExpectQuery("SELECT system_id, timestamp").
		WithArgs("sys-1", from, to, 50).
		WillReturnRows(pgxmock.NewRows([]string{
			"system_id", "timestamp",
			"dc_power_kw", "ac_power_kw", "energy_kwh", "voltage_v", "current_a", "frequency_hz",
			"irradiance_wm2", "ambient_temp_c", "module_temp_c",
			"performance_ratio", "efficiency", "specific_yield", "capacity_factor",
			"quality_confidence",
		}))

	records, err := repo.GetHistory(context.Background(), "sys-1", from, to, 50)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestTelemetryRepository_GetDailyEnergy(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewTelemetryRepository(NewMockPoolAdapter(mockPool))
	from := time.Date(2026, 5, 30, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"system_id", "day", "sum"}).
		AddRow("sys-1", time.Date(2026, 5, 30, 0, 0, 0, 0, time.UTC), 210.5).
		AddRow("sys-1", time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC), 198.0)

	mockPool.ExpectQuery("SELECT system_id, date_trunc").
		WithArgs("sys-1", from, to).
		WillReturnRows(rows)

	records, err := repo.GetDailyEnergy(context.Background(), "sys-1", from, to)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.InDelta(t, 210.5, records[0].Production.EnergyKWh, 1e-9)
	assert.True(t, records[0].Timestamp.Before(records[1].Timestamp))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestTelemetryRepository_QueryErrorWrapped(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewTelemetryRepository(NewMockPoolAdapter(mockPool))
	boom := errors.New("connection refused")

	mockPool.ExpectQuery("SELECT system_id, timestamp").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(boom)

	_, err = repo.GetHistory(context.Background(), "sys-1", time.Now().Add(-time.Hour), time.Now(), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
