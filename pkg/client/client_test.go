package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/carsafe/carsafe/pkg/types"
	"github.com/matryer/is"
)

func TestSendTelemetry(t *testing.T) {
	is := is.New(t)

	var received types.Telemetry

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.Equal(r.URL.Path, "/api/v0/telemetry")
		is.Equal(r.Method, http.MethodPost)
		is.Equal(r.Header.Get("Content-Type"), "application/json")

		is.NoErr(json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	c := New(server.URL)

	err := c.SendTelemetry(context.Background(), types.Telemetry{VehicleID: "VH0001", Speed: 80})
	is.NoErr(err)
	is.Equal(received.VehicleID, "VH0001")
}

func TestSendTelemetryFailsOnRejection(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	err := New(server.URL).SendTelemetry(context.Background(), types.Telemetry{VehicleID: "VH0001"})
	is.True(err != nil)
}

func TestRegisterVehicleTreatsConflictAsSuccess(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	err := New(server.URL).RegisterVehicle(context.Background(), types.Vehicle{VehicleID: "VH0001"})
	is.NoErr(err)
}

func TestReportFaultReturnsStoredFault(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.Equal(r.URL.Path, "/api/v0/faults")

		f := types.Fault{}
		is.NoErr(json.NewDecoder(r.Body).Decode(&f))
		f.ID = "f-1"

		w.Header().Add("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(f)
	}))
	defer server.Close()

	reported, err := New(server.URL).ReportFault(context.Background(), types.Fault{
		VehicleID: "VH0001",
		FaultCode: "P0442",
		Severity:  "LOW",
	})
	is.NoErr(err)
	is.Equal(reported.ID, "f-1")
	is.Equal(reported.FaultCode, "P0442")
}

func TestLatestTelemetry(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.Equal(r.URL.Path, "/api/v0/vehicles/VH0001/telemetry/latest")

		w.Header().Add("Content-Type", "application/json")
		json.NewEncoder(w).Encode(types.Telemetry{VehicleID: "VH0001", Speed: 64})
	}))
	defer server.Close()

	reading, err := New(server.URL).LatestTelemetry(context.Background(), "VH0001")
	is.NoErr(err)
	is.Equal(reading.Speed, 64.0)
}

func TestLatestTelemetryForUnknownVehicle(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := New(server.URL).LatestTelemetry(context.Background(), "VH0001")
	is.True(err != nil)
}
