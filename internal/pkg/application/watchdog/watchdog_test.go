package watchdog

import (
	"context"
	"testing"
	"time"

	"github.com/carsafe/carsafe/pkg/types"
	"github.com/matryer/is"
)

func TestSilentVehicleGetsAFault(t *testing.T) {
	is := is.New(t)

	faultSvc := &faultServiceStub{}
	w := New(lastSeen(map[string]time.Time{
		"VH0001": time.Now().UTC().Add(-10 * time.Minute),
	}), faultSvc, 0, 0)

	is.NoErr(w.CheckOnce(context.Background()))

	is.Equal(len(faultSvc.reported), 1)
	is.Equal(faultSvc.reported[0].VehicleID, "VH0001")
	is.Equal(faultSvc.reported[0].FaultCode, "C-SILENT")
	is.Equal(faultSvc.reported[0].Severity, types.SeverityMedium)
}

func TestRecentlySeenVehicleIsLeftAlone(t *testing.T) {
	is := is.New(t)

	faultSvc := &faultServiceStub{}
	w := New(lastSeen(map[string]time.Time{
		"VH0001": time.Now().UTC().Add(-30 * time.Second),
	}), faultSvc, 0, 0)

	is.NoErr(w.CheckOnce(context.Background()))
	is.Equal(len(faultSvc.reported), 0)
}

func TestVehicleThatNeverReportedIsSkipped(t *testing.T) {
	is := is.New(t)

	faultSvc := &faultServiceStub{}
	w := New(lastSeen(map[string]time.Time{
		"VH0001": {},
	}), faultSvc, 0, 0)

	is.NoErr(w.CheckOnce(context.Background()))
	is.Equal(len(faultSvc.reported), 0)
}

func TestOnlyOneOpenFaultPerVehicle(t *testing.T) {
	is := is.New(t)

	faultSvc := &faultServiceStub{hasOpen: true}
	w := New(lastSeen(map[string]time.Time{
		"VH0001": time.Now().UTC().Add(-time.Hour),
	}), faultSvc, 0, 0)

	is.NoErr(w.CheckOnce(context.Background()))
	is.Equal(len(faultSvc.reported), 0)
}

type lastSeen map[string]time.Time

func (l lastSeen) LastSeen(ctx context.Context) (map[string]time.Time, error) {
	return l, nil
}

type faultServiceStub struct {
	reported []types.Fault
	hasOpen  bool
}

func (s *faultServiceStub) Report(ctx context.Context, f types.Fault) (types.Fault, error) {
	s.reported = append(s.reported, f)
	return f, nil
}

func (s *faultServiceStub) GetByID(ctx context.Context, faultID string) (types.Fault, error) {
	return types.Fault{}, nil
}

func (s *faultServiceStub) Query(ctx context.Context, params map[string][]string) (types.Collection[types.Fault], error) {
	return types.Collection[types.Fault]{}, nil
}

func (s *faultServiceStub) Resolve(ctx context.Context, faultID string) error { return nil }

func (s *faultServiceStub) ResolveOpen(ctx context.Context, vehicleID, faultCode string) error {
	return nil
}

func (s *faultServiceStub) HasOpen(ctx context.Context, vehicleID, faultCode string) (bool, error) {
	return s.hasOpen, nil
}
