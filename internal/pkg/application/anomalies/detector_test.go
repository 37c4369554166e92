package anomalies

import (
	"testing"
	"time"

	"github.com/carsafe/carsafe/pkg/types"
	"github.com/matryer/is"
)

func TestNormalReadingTriggersNothing(t *testing.T) {
	is := is.New(t)

	d := NewDetector(DetectorConfig{})
	found := d.Detect(reading(func(r *types.Telemetry) {}))

	is.Equal(len(found), 0)
}

func TestHardBrakingAtSpeedIsDetected(t *testing.T) {
	is := is.New(t)

	d := NewDetector(DetectorConfig{})
	found := d.Detect(reading(func(r *types.Telemetry) {
		r.Speed = 95
		r.Brake = 95
		r.Throttle = 0
	}))

	is.Equal(len(found), 1)
	is.Equal(found[0].AnomalyType, TypeSuddenDeceleration)
	is.Equal(found[0].Confidence, 0.93)
	is.Equal(found[0].Snapshot.Brake, 95.0)
}

func TestGentleBrakingIsNot(t *testing.T) {
	is := is.New(t)

	d := NewDetector(DetectorConfig{})
	found := d.Detect(reading(func(r *types.Telemetry) {
		r.Speed = 95
		r.Brake = 40
	}))

	is.Equal(len(found), 0)
}

func TestEngineOverheatIsDetected(t *testing.T) {
	is := is.New(t)

	d := NewDetector(DetectorConfig{})

	found := d.Detect(reading(func(r *types.Telemetry) { r.EngineTemp = 114.9 }))
	is.Equal(len(found), 0)

	found = d.Detect(reading(func(r *types.Telemetry) { r.EngineTemp = 125 }))
	is.Equal(len(found), 1)
	is.Equal(found[0].AnomalyType, TypeEngineOverheat)
	is.True(found[0].Confidence >= 0.6)
}

func TestRevvingWhileStandingStillIsDetected(t *testing.T) {
	is := is.New(t)

	d := NewDetector(DetectorConfig{})
	found := d.Detect(reading(func(r *types.Telemetry) {
		r.Speed = 0
		r.RPM = 6000
	}))

	is.Equal(len(found), 1)
	is.Equal(found[0].AnomalyType, TypeRPMSpeedMismatch)
	is.Equal(found[0].Confidence, 0.8)
}

func TestSpeedOutlierNeedsEnoughSamples(t *testing.T) {
	is := is.New(t)

	d := NewDetector(DetectorConfig{})

	// Too few samples for a z-score, even though the last one jumps.
	for i := 0; i < DefaultMinSamples-1; i++ {
		found := d.Detect(reading(func(r *types.Telemetry) { r.Speed = 60 + float64(i%3) }))
		is.Equal(len(found), 0)
	}

	found := d.Detect(reading(func(r *types.Telemetry) { r.Speed = 160 }))
	is.Equal(len(found), 0)
}

func TestSpeedOutlierIsDetected(t *testing.T) {
	is := is.New(t)

	d := NewDetector(DetectorConfig{})

	for i := 0; i < 20; i++ {
		d.Detect(reading(func(r *types.Telemetry) { r.Speed = 60 + float64(i%5) }))
	}

	found := d.Detect(reading(func(r *types.Telemetry) { r.Speed = 160 }))

	is.Equal(len(found), 1)
	is.Equal(found[0].AnomalyType, TypeSpeedOutlier)
	is.True(found[0].Confidence >= 0.5)
	is.True(found[0].Confidence <= 0.95)
}

func TestWindowsAreKeptPerVehicle(t *testing.T) {
	is := is.New(t)

	d := NewDetector(DetectorConfig{})

	for i := 0; i < 20; i++ {
		d.Detect(reading(func(r *types.Telemetry) { r.Speed = 60 }))
	}

	// The other vehicle has no history, so its first reading cannot deviate.
	found := d.Detect(reading(func(r *types.Telemetry) {
		r.VehicleID = "VH0002"
		r.Speed = 160
	}))

	is.Equal(len(found), 0)
}

func TestDetectorTuningIsConfigurable(t *testing.T) {
	is := is.New(t)

	// a stricter threshold and a smaller window than the defaults
	d := NewDetector(DetectorConfig{WindowSize: 8, MinSamples: 4, ZScoreThreshold: 4.0})

	for i := 0; i < 4; i++ {
		d.Detect(reading(func(r *types.Telemetry) { r.Speed = 60 + float64(i%3) }))
	}

	// deviates well over 2 stddev but stays under the configured 4
	found := d.Detect(reading(func(r *types.Telemetry) { r.Speed = 64 }))
	is.Equal(len(found), 0)

	found = d.Detect(reading(func(r *types.Telemetry) { r.Speed = 160 }))
	is.Equal(len(found), 1)
	is.Equal(found[0].AnomalyType, TypeSpeedOutlier)
}

func TestSpeedAtExactThresholdIsNotAnOutlier(t *testing.T) {
	is := is.New(t)

	d := NewDetector(DetectorConfig{})

	// alternating 50/70 gives mean 60 and stddev 10
	for i := 0; i < DefaultMinSamples; i++ {
		d.Detect(reading(func(r *types.Telemetry) { r.Speed = 50 + float64(i%2)*20 }))
	}

	// z is exactly 2.0, which has to exceed the threshold to fire
	found := d.Detect(reading(func(r *types.Telemetry) { r.Speed = 80 }))
	is.Equal(len(found), 0)
}

func TestSpeedJustOverThresholdIsAnOutlier(t *testing.T) {
	is := is.New(t)

	d := NewDetector(DetectorConfig{})

	for i := 0; i < DefaultMinSamples; i++ {
		d.Detect(reading(func(r *types.Telemetry) { r.Speed = 50 + float64(i%2)*20 }))
	}

	// z is 2.5 against the same window
	found := d.Detect(reading(func(r *types.Telemetry) { r.Speed = 85 }))
	is.Equal(len(found), 1)
	is.Equal(found[0].AnomalyType, TypeSpeedOutlier)
	is.Equal(found[0].Confidence, 0.55)
}

func TestJumpFromConstantSpeedIsAnOutlier(t *testing.T) {
	is := is.New(t)

	d := NewDetector(DetectorConfig{})

	for i := 0; i < DefaultMinSamples; i++ {
		found := d.Detect(reading(func(r *types.Telemetry) { r.Speed = 60 }))
		is.Equal(len(found), 0)
	}

	found := d.Detect(reading(func(r *types.Telemetry) { r.Speed = 120 }))
	is.Equal(len(found), 1)
	is.Equal(found[0].AnomalyType, TypeSpeedOutlier)
	is.Equal(found[0].Confidence, 0.95)
}

func reading(modify func(r *types.Telemetry)) types.Telemetry {
	r := types.Telemetry{
		VehicleID:  "VH0001",
		Timestamp:  time.Now().UTC(),
		Speed:      62,
		RPM:        2100,
		Throttle:   30,
		Brake:      0,
		EngineTemp: 90,
		FuelLevel:  55,
		Latitude:   59.33,
		Longitude:  18.07,
		Odometer:   42000,
	}
	modify(&r)
	return r
}
