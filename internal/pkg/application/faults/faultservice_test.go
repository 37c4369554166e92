package faults

import (
	"context"
	"errors"
	"testing"

	"github.com/carsafe/carsafe/internal/pkg/infrastructure/storage"
	"github.com/carsafe/carsafe/pkg/types"
	"github.com/matryer/is"
)

func TestReportAssignsIDAndTimestamp(t *testing.T) {
	is := is.New(t)
	store := &faultStorageStub{}

	svc := New(store, nil)

	reported, err := svc.Report(context.Background(), types.Fault{
		VehicleID: "VH0001",
		FaultCode: "P0300",
		Severity:  "HIGH",
	})
	is.NoErr(err)

	is.True(reported.ID != "")
	is.True(!reported.Timestamp.IsZero())
	is.Equal(len(store.added), 1)
}

func TestReportNormalizesSeverity(t *testing.T) {
	is := is.New(t)
	store := &faultStorageStub{}

	svc := New(store, nil)

	reported, err := svc.Report(context.Background(), types.Fault{
		VehicleID: "VH0001",
		FaultCode: "P0420",
		Severity:  "medium",
	})
	is.NoErr(err)
	is.Equal(reported.Severity, types.SeverityMedium)
}

func TestReportRejectsUnknownSeverity(t *testing.T) {
	is := is.New(t)

	svc := New(&faultStorageStub{}, nil)

	_, err := svc.Report(context.Background(), types.Fault{
		VehicleID: "VH0001",
		FaultCode: "P0420",
		Severity:  "CRITICAL",
	})
	is.True(errors.Is(err, ErrBadSeverity))
}

func TestReportRequiresVehicleAndCode(t *testing.T) {
	is := is.New(t)

	svc := New(&faultStorageStub{}, nil)

	_, err := svc.Report(context.Background(), types.Fault{FaultCode: "P0300", Severity: "LOW"})
	is.True(err != nil)

	_, err = svc.Report(context.Background(), types.Fault{VehicleID: "VH0001", Severity: "LOW"})
	is.True(err != nil)
}

func TestGetByIDMapsMissingFault(t *testing.T) {
	is := is.New(t)

	svc := New(&faultStorageStub{getErr: storage.ErrNoRows}, nil)

	_, err := svc.GetByID(context.Background(), "nosuchfault")
	is.True(errors.Is(err, ErrFaultNotFound))
}

func TestResolveOpenResolvesAllOpenFaults(t *testing.T) {
	is := is.New(t)

	store := &faultStorageStub{
		queryResult: []types.Fault{
			{ID: "f-1", VehicleID: "VH0001", FaultCode: FaultCodeNotReporting},
			{ID: "f-2", VehicleID: "VH0001", FaultCode: FaultCodeNotReporting},
		},
	}

	svc := New(store, nil)

	err := svc.ResolveOpen(context.Background(), "VH0001", FaultCodeNotReporting)
	is.NoErr(err)
	is.Equal(store.resolved, []string{"f-1", "f-2"})
}

func TestHasOpen(t *testing.T) {
	is := is.New(t)

	svc := New(&faultStorageStub{}, nil)
	open, err := svc.HasOpen(context.Background(), "VH0001", FaultCodeNotReporting)
	is.NoErr(err)
	is.True(!open)

	svc = New(&faultStorageStub{queryResult: []types.Fault{{ID: "f-1"}}}, nil)
	open, err = svc.HasOpen(context.Background(), "VH0001", FaultCodeNotReporting)
	is.NoErr(err)
	is.True(open)
}

func TestQueryRejectsBadPaging(t *testing.T) {
	is := is.New(t)

	svc := New(&faultStorageStub{}, nil)

	_, err := svc.Query(context.Background(), map[string][]string{"limit": {"abc"}})
	is.True(errors.Is(err, ErrBadQuery))

	_, err = svc.Query(context.Background(), map[string][]string{"resolved": {"maybe"}})
	is.True(errors.Is(err, ErrBadQuery))
}

type faultStorageStub struct {
	added       []types.Fault
	resolved    []string
	queryResult []types.Fault
	getErr      error
}

func (s *faultStorageStub) AddFault(ctx context.Context, fault types.Fault) error {
	s.added = append(s.added, fault)
	return nil
}

func (s *faultStorageStub) GetFault(ctx context.Context, conditions ...storage.ConditionFunc) (types.Fault, error) {
	if s.getErr != nil {
		return types.Fault{}, s.getErr
	}
	if len(s.queryResult) == 0 {
		return types.Fault{}, storage.ErrNoRows
	}
	return s.queryResult[0], nil
}

func (s *faultStorageStub) QueryFaults(ctx context.Context, conditions ...storage.ConditionFunc) (types.Collection[types.Fault], error) {
	return types.Collection[types.Fault]{
		Data:       s.queryResult,
		Count:      uint64(len(s.queryResult)),
		TotalCount: uint64(len(s.queryResult)),
	}, nil
}

func (s *faultStorageStub) ResolveFault(ctx context.Context, faultID string) error {
	s.resolved = append(s.resolved, faultID)
	return nil
}
