package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carsafe/carsafe/pkg/types"
	"github.com/jackc/pgx/v5"
)

func (s *Storage) AddTelemetry(ctx context.Context, t types.Telemetry) error {
	args := pgx.NamedArgs{
		"vehicle_id":  t.VehicleID,
		"ts":          t.Timestamp.UTC(),
		"speed":       t.Speed,
		"rpm":         t.RPM,
		"throttle":    t.Throttle,
		"brake":       t.Brake,
		"engine_temp": t.EngineTemp,
		"fuel_level":  t.FuelLevel,
		"latitude":    t.Latitude,
		"longitude":   t.Longitude,
		"odometer":    t.Odometer,
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO telemetry (vehicle_id, ts, speed, rpm, throttle, brake, engine_temp, fuel_level, latitude, longitude, odometer)
		VALUES (@vehicle_id, @ts, @speed, @rpm, @throttle, @brake, @engine_temp, @fuel_level, @latitude, @longitude, @odometer)
	`, args)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrStoreFailed, err.Error())
	}

	return nil
}

func (s *Storage) QueryTelemetry(ctx context.Context, conditions ...ConditionFunc) (types.Collection[types.Telemetry], error) {
	condition := &Condition{}
	for _, f := range conditions {
		f(condition)
	}

	args := condition.NamedArgs()
	where := condition.Where()

	var vehicleID string
	var ts time.Time
	var speed, rpm, throttle, brake, engineTemp, fuelLevel, latitude, longitude, odometer float64
	var count int64

	query := fmt.Sprintf(`
		SELECT vehicle_id, ts, speed, rpm, throttle, brake, engine_temp, fuel_level, latitude, longitude, odometer, count(*) OVER () AS count
		FROM telemetry
		WHERE %s
		ORDER BY %s %s
		OFFSET %d LIMIT %d
	`, where, condition.SortColumn("ts", "vehicle_id", "speed"), condition.SortOrder(), condition.Offset(), condition.Limit())

	rows, err := s.pool.Query(ctx, query, args)
	if err != nil {
		return types.Collection[types.Telemetry]{}, err
	}

	readings := make([]types.Telemetry, 0)

	_, err = pgx.ForEachRow(rows, []any{&vehicleID, &ts, &speed, &rpm, &throttle, &brake, &engineTemp, &fuelLevel, &latitude, &longitude, &odometer, &count}, func() error {
		readings = append(readings, types.Telemetry{
			VehicleID:  vehicleID,
			Timestamp:  ts,
			Speed:      speed,
			RPM:        rpm,
			Throttle:   throttle,
			Brake:      brake,
			EngineTemp: engineTemp,
			FuelLevel:  fuelLevel,
			Latitude:   latitude,
			Longitude:  longitude,
			Odometer:   odometer,
		})
		return nil
	})
	if err != nil {
		return types.Collection[types.Telemetry]{}, err
	}

	return types.Collection[types.Telemetry]{
		Data:       readings,
		Count:      uint64(len(readings)),
		Offset:     uint64(condition.Offset()),
		Limit:      uint64(condition.Limit()),
		TotalCount: uint64(count),
	}, nil
}

func (s *Storage) GetLatestTelemetry(ctx context.Context, vehicleID string) (types.Telemetry, error) {
	result, err := s.QueryTelemetry(ctx, WithVehicleID(vehicleID), WithLimit(1))
	if err != nil {
		return types.Telemetry{}, err
	}

	if len(result.Data) == 0 {
		return types.Telemetry{}, ErrNoRows
	}

	return result.Data[0], nil
}

// GetTelemetryStats aggregates a vehicle's readings since the given time.
func (s *Storage) GetTelemetryStats(ctx context.Context, vehicleID string, since time.Time) (types.TelemetryStats, error) {
	args := pgx.NamedArgs{
		"vehicle_id": vehicleID,
		"since":      since.UTC(),
	}

	var count int64
	var avgSpeed, maxSpeed, avgRPM, maxRPM, avgEngineTemp, avgFuelLevel *float64

	err := s.pool.QueryRow(ctx, `
		SELECT count(*), avg(speed), max(speed), avg(rpm), max(rpm), avg(engine_temp), avg(fuel_level)
		FROM telemetry
		WHERE vehicle_id = @vehicle_id AND ts >= @since
	`, args).Scan(&count, &avgSpeed, &maxSpeed, &avgRPM, &maxRPM, &avgEngineTemp, &avgFuelLevel)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.TelemetryStats{}, ErrNoRows
		}
		return types.TelemetryStats{}, err
	}

	orZero := func(f *float64) float64 {
		if f == nil {
			return 0
		}
		return *f
	}

	return types.TelemetryStats{
		VehicleID:     vehicleID,
		Count:         count,
		AvgSpeed:      orZero(avgSpeed),
		MaxSpeed:      orZero(maxSpeed),
		AvgRPM:        orZero(avgRPM),
		MaxRPM:        orZero(maxRPM),
		AvgEngineTemp: orZero(avgEngineTemp),
		AvgFuelLevel:  orZero(avgFuelLevel),
	}, nil
}

// LastSeen returns the most recent telemetry timestamp per known vehicle.
// Vehicles that never reported are included with a zero time.
func (s *Storage) LastSeen(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT v.vehicle_id, max(t.ts)
		FROM vehicles v
		LEFT JOIN telemetry t ON t.vehicle_id = v.vehicle_id
		GROUP BY v.vehicle_id
	`)
	if err != nil {
		return nil, err
	}

	var vehicleID string
	var ts *time.Time

	lastSeen := map[string]time.Time{}

	_, err = pgx.ForEachRow(rows, []any{&vehicleID, &ts}, func() error {
		if ts != nil {
			lastSeen[vehicleID] = *ts
		} else {
			lastSeen[vehicleID] = time.Time{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return lastSeen, nil
}
