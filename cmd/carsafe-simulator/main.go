package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carsafe/carsafe/internal/pkg/application/simulator"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/config"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/logging"
	"github.com/carsafe/carsafe/pkg/client"
	"github.com/carsafe/carsafe/pkg/types"
	"github.com/spf13/cobra"
)

const serviceName = "carsafe-simulator"

var serviceVersion = "develop"

var (
	apiURL     string
	configFile string
)

// defaultFleet is used when no fleet is configured.
var defaultFleet = []types.Vehicle{
	{VehicleID: "VH0001", Make: "Toyota", Model: "Camry", Year: 2020},
	{VehicleID: "VH0002", Make: "Toyota", Model: "Prius", Year: 2022},
	{VehicleID: "VH0003", Make: "Lexus", Model: "RX", Year: 2021},
	{VehicleID: "VH0004", Make: "Honda", Model: "Civic", Year: 2019},
	{VehicleID: "VH0005", Make: "Ford", Model: "F-150", Year: 2023},
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "carsafe-simulator",
		Short: "Simulates a fleet of vehicles reporting CAN-bus telemetry",
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "Base URL of the carsafe API")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML config file")

	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(runCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Register the simulated fleet with the API and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, _ := logging.NewLogger(cmd.Context(), serviceName, serviceVersion)

			sim, err := newSimulator()
			if err != nil {
				return err
			}

			return sim.RegisterFleet(ctx)
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Register the fleet and start emitting telemetry",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ctx, _ = logging.NewLogger(ctx, serviceName, serviceVersion)

			sim, err := newSimulator()
			if err != nil {
				return err
			}

			err = sim.RegisterFleet(ctx)
			if err != nil {
				return err
			}

			return sim.Run(ctx)
		},
	}
}

func newSimulator() (*simulator.Simulator, error) {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}

	fleet := defaultFleet
	if len(cfg.Simulator.Vehicles) > 0 {
		fleet = make([]types.Vehicle, 0, len(cfg.Simulator.Vehicles))
		for _, v := range cfg.Simulator.Vehicles {
			fleet = append(fleet, types.Vehicle{
				VehicleID: v.VehicleID,
				Make:      v.Make,
				Model:     v.Model,
				Year:      v.Year,
			})
		}
	}

	return simulator.New(
		client.New(apiURL),
		fleet,
		time.Duration(cfg.Simulator.IntervalSeconds)*time.Second,
		cfg.Simulator.FaultChance,
	), nil
}
