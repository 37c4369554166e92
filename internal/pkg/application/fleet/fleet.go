package fleet

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/carsafe/carsafe/internal/pkg/infrastructure/storage"
	"github.com/carsafe/carsafe/pkg/types"
)

var ErrVehicleNotFound = fmt.Errorf("vehicle not found")
var ErrVehicleAlreadyExists = fmt.Errorf("vehicle already exists")
var ErrBadQuery = errors.New("invalid query parameter")

type Registry interface {
	Register(ctx context.Context, vehicle types.Vehicle) error
	GetByVehicleID(ctx context.Context, vehicleID string) (types.Vehicle, error)
	Query(ctx context.Context, params map[string][]string) (types.Collection[types.Vehicle], error)
}

type VehicleStorage interface {
	AddVehicle(ctx context.Context, vehicle types.Vehicle) error
	GetVehicle(ctx context.Context, conditions ...storage.ConditionFunc) (types.Vehicle, error)
	QueryVehicles(ctx context.Context, conditions ...storage.ConditionFunc) (types.Collection[types.Vehicle], error)
}

type registry struct {
	storage VehicleStorage
}

func New(s VehicleStorage) Registry {
	return &registry{
		storage: s,
	}
}

func (r registry) Register(ctx context.Context, vehicle types.Vehicle) error {
	if vehicle.VehicleID == "" {
		return fmt.Errorf("no vehicleID is set on vehicle")
	}

	err := r.storage.AddVehicle(ctx, vehicle)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return ErrVehicleAlreadyExists
		}
		return err
	}

	return nil
}

func (r registry) GetByVehicleID(ctx context.Context, vehicleID string) (types.Vehicle, error) {
	vehicle, err := r.storage.GetVehicle(ctx, storage.WithVehicleID(vehicleID))
	if err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return types.Vehicle{}, ErrVehicleNotFound
		}
		return types.Vehicle{}, err
	}

	return vehicle, nil
}

func (r registry) Query(ctx context.Context, params map[string][]string) (types.Collection[types.Vehicle], error) {
	conditions := make([]storage.ConditionFunc, 0)

	for k, v := range params {
		switch k {
		case "vehicle_id":
			conditions = append(conditions, storage.WithVehicleID(v[0]))
		case "limit":
			limit, err := strconv.Atoi(v[0])
			if err != nil || limit < 1 {
				return types.Collection[types.Vehicle]{}, fmt.Errorf("%w: limit %q", ErrBadQuery, v[0])
			}
			conditions = append(conditions, storage.WithLimit(limit))
		case "offset":
			offset, err := strconv.Atoi(v[0])
			if err != nil || offset < 0 {
				return types.Collection[types.Vehicle]{}, fmt.Errorf("%w: offset %q", ErrBadQuery, v[0])
			}
			conditions = append(conditions, storage.WithOffset(offset))
		}
	}

	return r.storage.QueryVehicles(ctx, conditions...)
}
