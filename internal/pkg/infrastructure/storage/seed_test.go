package storage

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/carsafe/carsafe/pkg/types"
	"github.com/matryer/is"
)

const seedCSV = `vehicleID;make;model;year
VH0001;Toyota;Camry;2020
VH0002;Toyota;Prius;2022
VH0003;Lexus;RX;2021
`

type vehicleAdderFunc func(ctx context.Context, vehicle types.Vehicle) error

func (f vehicleAdderFunc) AddVehicle(ctx context.Context, vehicle types.Vehicle) error {
	return f(ctx, vehicle)
}

func TestSeedVehiclesSkipsHeaderRow(t *testing.T) {
	is := is.New(t)

	added := []types.Vehicle{}
	adder := vehicleAdderFunc(func(ctx context.Context, v types.Vehicle) error {
		added = append(added, v)
		return nil
	})

	err := SeedVehicles(context.Background(), adder, strings.NewReader(seedCSV))
	is.NoErr(err)

	is.Equal(len(added), 3)
	is.Equal(added[0], types.Vehicle{VehicleID: "VH0001", Make: "Toyota", Model: "Camry", Year: 2020})
}

func TestSeedFileContainsFullFleet(t *testing.T) {
	is := is.New(t)

	f, err := os.Open("../../../../assets/config/vehicles.csv")
	is.NoErr(err)
	defer f.Close()

	added := []types.Vehicle{}
	adder := vehicleAdderFunc(func(ctx context.Context, v types.Vehicle) error {
		added = append(added, v)
		return nil
	})

	err = SeedVehicles(context.Background(), adder, f)
	is.NoErr(err)

	is.Equal(len(added), 5)
	is.Equal(added[0].VehicleID, "VH0001")
	is.Equal(added[4], types.Vehicle{VehicleID: "VH0005", Make: "Ford", Model: "F-150", Year: 2023})
}

func TestSeedVehiclesIgnoresKnownVehicles(t *testing.T) {
	is := is.New(t)

	count := 0
	adder := vehicleAdderFunc(func(ctx context.Context, v types.Vehicle) error {
		count++
		if v.VehicleID == "VH0002" {
			return ErrAlreadyExists
		}
		return nil
	})

	err := SeedVehicles(context.Background(), adder, strings.NewReader(seedCSV))
	is.NoErr(err)
	is.Equal(count, 3)
}
