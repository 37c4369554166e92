package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Vehicle struct {
	VehicleID string    `json:"vehicleID"`
	Make      string    `json:"make"`
	Model     string    `json:"model"`
	Year      int       `json:"year,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Telemetry is a single CAN-bus reading reported by a vehicle.
type Telemetry struct {
	VehicleID  string    `json:"vehicleID"`
	Timestamp  time.Time `json:"timestamp"`
	Speed      float64   `json:"speed"`
	RPM        float64   `json:"rpm"`
	Throttle   float64   `json:"throttle"`
	Brake      float64   `json:"brake"`
	EngineTemp float64   `json:"engineTemp"`
	FuelLevel  float64   `json:"fuelLevel"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Odometer   float64   `json:"odometer"`
}

var ErrInvalidTelemetry = errors.New("invalid telemetry")

// Validate enforces the value ranges the ingestion API accepts.
func (t Telemetry) Validate() error {
	checks := []struct {
		ok  bool
		msg string
	}{
		{t.VehicleID != "", "vehicleID is required"},
		{t.Speed >= 0 && t.Speed <= 300, "speed must be between 0 and 300"},
		{t.RPM >= 0 && t.RPM <= 8000, "rpm must be between 0 and 8000"},
		{t.Throttle >= 0 && t.Throttle <= 100, "throttle must be between 0 and 100"},
		{t.Brake >= 0 && t.Brake <= 100, "brake must be between 0 and 100"},
		{t.EngineTemp >= -40 && t.EngineTemp <= 150, "engineTemp must be between -40 and 150"},
		{t.FuelLevel >= 0 && t.FuelLevel <= 100, "fuelLevel must be between 0 and 100"},
		{t.Latitude >= -90 && t.Latitude <= 90, "latitude must be between -90 and 90"},
		{t.Longitude >= -180 && t.Longitude <= 180, "longitude must be between -180 and 180"},
		{t.Odometer >= 0, "odometer must not be negative"},
	}

	problems := []string{}
	for _, c := range checks {
		if !c.ok {
			problems = append(problems, c.msg)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTelemetry, strings.Join(problems, ", "))
	}

	return nil
}

const (
	SeverityLow    = "LOW"
	SeverityMedium = "MEDIUM"
	SeverityHigh   = "HIGH"
)

func ValidSeverity(s string) bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

type Fault struct {
	ID          string     `json:"id,omitempty"`
	VehicleID   string     `json:"vehicleID"`
	Timestamp   time.Time  `json:"timestamp"`
	FaultCode   string     `json:"faultCode"`
	Description string     `json:"description,omitempty"`
	Severity    string     `json:"severity"`
	Resolved    bool       `json:"resolved"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
}

type Anomaly struct {
	ID          string    `json:"id,omitempty"`
	VehicleID   string    `json:"vehicleID"`
	Timestamp   time.Time `json:"timestamp"`
	AnomalyType string    `json:"anomalyType"`
	Description string    `json:"description,omitempty"`
	Confidence  float64   `json:"confidence"`
	Snapshot    Telemetry `json:"snapshot"`
}

// TelemetryStats holds aggregates over a vehicle's readings for a time period.
type TelemetryStats struct {
	VehicleID     string    `json:"vehicleID"`
	PeriodHours   int       `json:"periodHours"`
	Count         int64     `json:"count"`
	AvgSpeed      float64   `json:"avgSpeed"`
	MaxSpeed      float64   `json:"maxSpeed"`
	AvgRPM        float64   `json:"avgRpm"`
	MaxRPM        float64   `json:"maxRpm"`
	AvgEngineTemp float64   `json:"avgEngineTemp"`
	AvgFuelLevel  float64   `json:"avgFuelLevel"`
	GeneratedAt   time.Time `json:"generatedAt"`
}

type Collection[T any] struct {
	Data       []T    `json:"data"`
	Count      uint64 `json:"count"`
	Offset     uint64 `json:"offset"`
	Limit      uint64 `json:"limit"`
	TotalCount uint64 `json:"totalCount"`
}
