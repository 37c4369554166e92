package simulator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/carsafe/carsafe/internal/pkg/infrastructure/logging"
	"github.com/carsafe/carsafe/pkg/client"
	"github.com/carsafe/carsafe/pkg/types"
)

// obdCodes are the diagnostic trouble codes the simulated vehicles can throw.
var obdCodes = []struct {
	code        string
	description string
	severity    string
}{
	{"P0300", "random/multiple cylinder misfire detected", types.SeverityHigh},
	{"P0420", "catalyst system efficiency below threshold", types.SeverityMedium},
	{"P0171", "system too lean (bank 1)", types.SeverityMedium},
	{"P0442", "evaporative emission system leak detected (small leak)", types.SeverityLow},
}

// vehicleState is the drivable state of one simulated vehicle. Readings are
// random walks around the previous value so consecutive readings look like
// an actual trip rather than noise.
type vehicleState struct {
	vehicle   types.Vehicle
	speed     float64
	fuelLevel float64
	odometer  float64
	latitude  float64
	longitude float64
	rnd       *rand.Rand
}

type Simulator struct {
	client      client.Client
	interval    time.Duration
	faultChance float64
	fleet       []*vehicleState
}

func New(c client.Client, vehicles []types.Vehicle, interval time.Duration, faultChance float64) *Simulator {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	fleet := make([]*vehicleState, 0, len(vehicles))

	for i, v := range vehicles {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano() + int64(i)))
		fleet = append(fleet, &vehicleState{
			vehicle:   v,
			speed:     20 + rnd.Float64()*60,
			fuelLevel: 40 + rnd.Float64()*60,
			odometer:  10000 + rnd.Float64()*90000,
			latitude:  59.3293 + (rnd.Float64()-0.5)*0.2,
			longitude: 18.0686 + (rnd.Float64()-0.5)*0.2,
			rnd:       rnd,
		})
	}

	return &Simulator{
		client:      c,
		interval:    interval,
		faultChance: faultChance,
		fleet:       fleet,
	}
}

// RegisterFleet makes sure all simulated vehicles exist in the registry.
func (s *Simulator) RegisterFleet(ctx context.Context) error {
	for _, state := range s.fleet {
		err := s.client.RegisterVehicle(ctx, state.vehicle)
		if err != nil {
			return fmt.Errorf("could not register vehicle %s: %w", state.vehicle.VehicleID, err)
		}
	}

	return nil
}

// Run emits one reading per vehicle per interval until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	log := logging.GetLoggerFromContext(ctx)
	log.Info().Int("fleet_size", len(s.fleet)).Dur("interval", s.interval).Msg("simulation started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("simulation stopped")
			return nil
		case <-ticker.C:
			for _, state := range s.fleet {
				s.tick(ctx, state)
			}
		}
	}
}

func (s *Simulator) tick(ctx context.Context, state *vehicleState) {
	log := logging.GetLoggerFromContext(ctx)

	t := state.step()

	err := s.client.SendTelemetry(ctx, t)
	if err != nil {
		log.Error().Err(err).Str("vehicle_id", t.VehicleID).Msg("could not send telemetry")
	}

	if state.rnd.Float64() < s.faultChance {
		obd := obdCodes[state.rnd.Intn(len(obdCodes))]

		_, err = s.client.ReportFault(ctx, types.Fault{
			VehicleID:   t.VehicleID,
			FaultCode:   obd.code,
			Description: obd.description,
			Severity:    obd.severity,
		})
		if err != nil {
			log.Error().Err(err).Str("vehicle_id", t.VehicleID).Msg("could not report fault")
		} else {
			log.Info().Str("vehicle_id", t.VehicleID).Str("fault_code", obd.code).Msg("fault reported")
		}
	}
}

func (v *vehicleState) step() types.Telemetry {
	v.speed += (v.rnd.Float64() - 0.5) * 20
	v.speed = clamp(v.speed, 0, 180)

	throttle := clamp(v.speed/1.8+(v.rnd.Float64()-0.5)*20, 0, 100)

	brake := 0.0
	if v.rnd.Float64() < 0.15 {
		brake = v.rnd.Float64() * 100
	}

	rpm := clamp(800+v.speed*45+(v.rnd.Float64()-0.5)*500, 600, 7000)

	engineTemp := clamp(85+v.speed/10+(v.rnd.Float64()-0.5)*10, 70, 120)

	v.fuelLevel = clamp(v.fuelLevel-v.rnd.Float64()*0.2, 0, 100)
	if v.fuelLevel < 5 {
		// Refuelled.
		v.fuelLevel = 100
	}

	distance := v.speed * 2.0 / 3600.0
	v.odometer += distance

	v.latitude += (v.rnd.Float64() - 0.5) * 0.001
	v.longitude += (v.rnd.Float64() - 0.5) * 0.001

	return types.Telemetry{
		VehicleID:  v.vehicle.VehicleID,
		Timestamp:  time.Now().UTC(),
		Speed:      round(v.speed),
		RPM:        math.Round(rpm),
		Throttle:   round(throttle),
		Brake:      round(brake),
		EngineTemp: round(engineTemp),
		FuelLevel:  round(v.fuelLevel),
		Latitude:   math.Round(v.latitude*1e6) / 1e6,
		Longitude:  math.Round(v.longitude*1e6) / 1e6,
		Odometer:   round(v.odometer),
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}
