package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strconv"

	"github.com/carsafe/carsafe/internal/pkg/infrastructure/logging"
	"github.com/carsafe/carsafe/pkg/types"
)

type VehicleAdder interface {
	AddVehicle(ctx context.Context, vehicle types.Vehicle) error
}

// SeedVehicles loads known vehicles from a csv file with the format
// vehicleID;make;model;year and registers the ones that do not exist yet.
func SeedVehicles(ctx context.Context, s VehicleAdder, reader io.Reader) error {
	r := csv.NewReader(reader)
	r.Comma = ';'

	rows, err := r.ReadAll()
	if err != nil {
		return err
	}

	log := logging.GetLoggerFromContext(ctx)

	seeded := 0

	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) < 4 {
			log.Warn().Int("row", i).Msg("skipping malformed vehicle row")
			continue
		}

		year, _ := strconv.Atoi(row[3])

		vehicle := types.Vehicle{
			VehicleID: row[0],
			Make:      row[1],
			Model:     row[2],
			Year:      year,
		}

		err = s.AddVehicle(ctx, vehicle)
		if err != nil {
			if errors.Is(err, ErrAlreadyExists) {
				continue
			}
			log.Error().Err(err).Str("vehicle_id", vehicle.VehicleID).Msg("could not seed vehicle")
			return err
		}

		seeded++
	}

	log.Info().Int("count", seeded).Msg("seeded vehicles from file")

	return nil
}
