package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carsafe/carsafe/pkg/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func (s *Storage) AddVehicle(ctx context.Context, vehicle types.Vehicle) error {
	if vehicle.VehicleID == "" {
		return ErrNoID
	}

	args := pgx.NamedArgs{
		"vehicle_id": vehicle.VehicleID,
		"make":       vehicle.Make,
		"model":      vehicle.Model,
		"year":       vehicle.Year,
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO vehicles (vehicle_id, make, model, year)
		VALUES (@vehicle_id, @make, @model, @year)
	`, args)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return err
	}

	return nil
}

func (s *Storage) GetVehicle(ctx context.Context, conditions ...ConditionFunc) (types.Vehicle, error) {
	condition := &Condition{}
	for _, f := range conditions {
		f(condition)
	}

	args := condition.NamedArgs()
	where := condition.Where()

	var vehicleID, vehicle_make, vehicle_model string
	var year int
	var createdOn time.Time

	query := fmt.Sprintf(`
		SELECT vehicle_id, make, model, year, created_on
		FROM vehicles
		WHERE %s
	`, where)

	err := s.pool.QueryRow(ctx, query, args).Scan(&vehicleID, &vehicle_make, &vehicle_model, &year, &createdOn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Vehicle{}, ErrNoRows
		}
		return types.Vehicle{}, err
	}

	return types.Vehicle{
		VehicleID: vehicleID,
		Make:      vehicle_make,
		Model:     vehicle_model,
		Year:      year,
		CreatedAt: createdOn,
	}, nil
}

func (s *Storage) QueryVehicles(ctx context.Context, conditions ...ConditionFunc) (types.Collection[types.Vehicle], error) {
	condition := &Condition{}
	for _, f := range conditions {
		f(condition)
	}

	args := condition.NamedArgs()
	where := condition.Where()

	var vehicleID, vehicle_make, vehicle_model string
	var year int
	var createdOn time.Time
	var count int64

	query := fmt.Sprintf(`
		SELECT vehicle_id, make, model, year, created_on, count(*) OVER () AS count
		FROM vehicles
		WHERE %s
		ORDER BY vehicle_id ASC
		OFFSET %d LIMIT %d
	`, where, condition.Offset(), condition.Limit())

	rows, err := s.pool.Query(ctx, query, args)
	if err != nil {
		return types.Collection[types.Vehicle]{}, err
	}

	vehicles := make([]types.Vehicle, 0)

	_, err = pgx.ForEachRow(rows, []any{&vehicleID, &vehicle_make, &vehicle_model, &year, &createdOn, &count}, func() error {
		vehicles = append(vehicles, types.Vehicle{
			VehicleID: vehicleID,
			Make:      vehicle_make,
			Model:     vehicle_model,
			Year:      year,
			CreatedAt: createdOn,
		})
		return nil
	})
	if err != nil {
		return types.Collection[types.Vehicle]{}, err
	}

	return types.Collection[types.Vehicle]{
		Data:       vehicles,
		Count:      uint64(len(vehicles)),
		Offset:     uint64(condition.Offset()),
		Limit:      uint64(condition.Limit()),
		TotalCount: uint64(count),
	}, nil
}
