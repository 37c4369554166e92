package anomalies

import (
	"fmt"
	"math"
	"sync"

	"github.com/carsafe/carsafe/pkg/types"
	"github.com/samber/lo"
)

const (
	TypeSuddenDeceleration  = "sudden_deceleration"
	TypeEngineOverheat      = "engine_overheat"
	TypeRPMSpeedMismatch    = "rpm_speed_mismatch"
	TypeSpeedOutlier        = "speed_outlier"
	TypeVehicleNotReporting = "vehicle_not_reporting"
)

const (
	DefaultWindowSize      = 50
	DefaultMinSamples      = 10
	DefaultZScoreThreshold = 2.0
)

// DetectorConfig tunes the rolling z-score rule. Zero values fall back to
// the defaults.
type DetectorConfig struct {
	WindowSize      int
	MinSamples      int
	ZScoreThreshold float64
}

func (cfg DetectorConfig) withDefaults() DetectorConfig {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = DefaultMinSamples
	}
	if cfg.ZScoreThreshold <= 0 {
		cfg.ZScoreThreshold = DefaultZScoreThreshold
	}
	return cfg
}

// Detector applies rule based checks and a rolling z-score check to each
// reading. It keeps a bounded window of recent speeds per vehicle, so a
// single instance must see all readings for a vehicle.
type Detector struct {
	cfg     DetectorConfig
	mu      sync.Mutex
	windows map[string][]float64
}

func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{
		cfg:     cfg.withDefaults(),
		windows: map[string][]float64{},
	}
}

// Detect returns the anomalies found in a single reading. The reading is
// always appended to the vehicle's speed window, also when no anomaly fires.
func (d *Detector) Detect(t types.Telemetry) []types.Anomaly {
	found := make([]types.Anomaly, 0)

	if t.Brake >= 80 && t.Speed >= 60 && t.Throttle <= 10 {
		confidence := 0.7 + 0.3*math.Min(1, (t.Brake-80)/20)
		found = append(found, newAnomaly(t, TypeSuddenDeceleration, confidence,
			fmt.Sprintf("hard braking at %.0f km/h (brake %.0f%%)", t.Speed, t.Brake)))
	}

	if t.EngineTemp >= 115 {
		confidence := 0.6 + math.Min(0.4, (t.EngineTemp-115)/50)
		found = append(found, newAnomaly(t, TypeEngineOverheat, confidence,
			fmt.Sprintf("engine temperature at %.1f°C", t.EngineTemp)))
	}

	if t.RPM >= 4500 && t.Speed <= 10 {
		found = append(found, newAnomaly(t, TypeRPMSpeedMismatch, 0.8,
			fmt.Sprintf("%.0f rpm at %.0f km/h", t.RPM, t.Speed)))
	}

	if z, ok := d.speedZScore(t.VehicleID, t.Speed); ok && math.Abs(z) > d.cfg.ZScoreThreshold {
		confidence := math.Min(0.95, 0.5+0.1*(math.Abs(z)-d.cfg.ZScoreThreshold))
		found = append(found, newAnomaly(t, TypeSpeedOutlier, confidence,
			fmt.Sprintf("speed %.0f km/h deviates %.1f stddev from recent readings", t.Speed, z)))
	}

	return found
}

// speedZScore scores the speed against the vehicle's window and then adds
// the speed to the window. It reports false until enough samples exist.
func (d *Detector) speedZScore(vehicleID string, speed float64) (float64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	window := d.windows[vehicleID]

	z := 0.0
	ok := false

	if len(window) >= d.cfg.MinSamples {
		mean := lo.Sum(window) / float64(len(window))

		variance := 0.0
		for _, v := range window {
			variance += (v - mean) * (v - mean)
		}
		stddev := math.Sqrt(variance / float64(len(window)))

		if stddev > 0 {
			z = (speed - mean) / stddev
			ok = true
		} else if speed != mean {
			// A flat window has no spread, so any change at all is
			// maximally anomalous.
			z = math.Copysign(d.cfg.ZScoreThreshold+5, speed-mean)
			ok = true
		}
	}

	window = append(window, speed)
	if len(window) > d.cfg.WindowSize {
		window = window[len(window)-d.cfg.WindowSize:]
	}
	d.windows[vehicleID] = window

	return z, ok
}

func newAnomaly(t types.Telemetry, anomalyType string, confidence float64, description string) types.Anomaly {
	return types.Anomaly{
		VehicleID:   t.VehicleID,
		Timestamp:   t.Timestamp,
		AnomalyType: anomalyType,
		Description: description,
		Confidence:  math.Round(confidence*100) / 100,
		Snapshot:    t,
	}
}
