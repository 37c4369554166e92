package faults

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/carsafe/carsafe/internal/pkg/infrastructure/logging"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/metrics"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/storage"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/stream"
	"github.com/carsafe/carsafe/pkg/types"
	"github.com/google/uuid"
)

var ErrFaultNotFound = fmt.Errorf("fault not found")
var ErrBadSeverity = fmt.Errorf("severity must be LOW, MEDIUM or HIGH")
var ErrBadQuery = errors.New("invalid query parameter")

// FaultCodeNotReporting is raised by the watchdog when a vehicle goes silent.
const FaultCodeNotReporting = "C-SILENT"

type FaultService interface {
	Report(ctx context.Context, fault types.Fault) (types.Fault, error)
	GetByID(ctx context.Context, faultID string) (types.Fault, error)
	Query(ctx context.Context, params map[string][]string) (types.Collection[types.Fault], error)
	Resolve(ctx context.Context, faultID string) error
	ResolveOpen(ctx context.Context, vehicleID, faultCode string) error
	HasOpen(ctx context.Context, vehicleID, faultCode string) (bool, error)
}

type FaultStorage interface {
	AddFault(ctx context.Context, fault types.Fault) error
	GetFault(ctx context.Context, conditions ...storage.ConditionFunc) (types.Fault, error)
	QueryFaults(ctx context.Context, conditions ...storage.ConditionFunc) (types.Collection[types.Fault], error)
	ResolveFault(ctx context.Context, faultID string) error
}

type faultSvc struct {
	storage   FaultStorage
	publisher stream.Publisher
}

func New(s FaultStorage, publisher stream.Publisher) FaultService {
	return &faultSvc{
		storage:   s,
		publisher: publisher,
	}
}

func (svc faultSvc) Report(ctx context.Context, fault types.Fault) (types.Fault, error) {
	if fault.VehicleID == "" {
		return types.Fault{}, fmt.Errorf("no vehicleID is set on fault")
	}
	if fault.FaultCode == "" {
		return types.Fault{}, fmt.Errorf("no faultCode is set on fault")
	}

	fault.Severity = strings.ToUpper(fault.Severity)
	if !types.ValidSeverity(fault.Severity) {
		return types.Fault{}, ErrBadSeverity
	}

	if fault.ID == "" {
		fault.ID = uuid.NewString()
	}
	if fault.Timestamp.IsZero() {
		fault.Timestamp = time.Now().UTC()
	}

	err := svc.storage.AddFault(ctx, fault)
	if err != nil {
		return types.Fault{}, err
	}

	metrics.FaultsReported.WithLabelValues(fault.Severity).Inc()

	if svc.publisher != nil {
		// Publishing is best effort, a broker outage must not fail the report.
		err := svc.publisher.Publish(ctx, stream.TopicFaults, fault.VehicleID, fault)
		if err != nil {
			logger := logging.GetLoggerFromContext(ctx)
			logger.Warn().Err(err).Str("fault_id", fault.ID).Msg("fault not published")
		}
	}

	return fault, nil
}

func (svc faultSvc) GetByID(ctx context.Context, faultID string) (types.Fault, error) {
	fault, err := svc.storage.GetFault(ctx, storage.WithFaultID(faultID))
	if err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return types.Fault{}, ErrFaultNotFound
		}
		return types.Fault{}, err
	}

	return fault, nil
}

func (svc faultSvc) Query(ctx context.Context, params map[string][]string) (types.Collection[types.Fault], error) {
	conditions := make([]storage.ConditionFunc, 0)

	for k, v := range params {
		switch strings.ToLower(k) {
		case "vehicle_id":
			conditions = append(conditions, storage.WithVehicleID(v[0]))
		case "severity":
			conditions = append(conditions, storage.WithSeverity(v[0]))
		case "fault_code":
			conditions = append(conditions, storage.WithFaultCode(v[0]))
		case "resolved":
			resolved, err := strconv.ParseBool(v[0])
			if err != nil {
				return types.Collection[types.Fault]{}, fmt.Errorf("%w: resolved %q", ErrBadQuery, v[0])
			}
			conditions = append(conditions, storage.WithResolved(resolved))
		case "limit":
			limit, err := strconv.Atoi(v[0])
			if err != nil || limit < 1 {
				return types.Collection[types.Fault]{}, fmt.Errorf("%w: limit %q", ErrBadQuery, v[0])
			}
			conditions = append(conditions, storage.WithLimit(limit))
		case "offset":
			offset, err := strconv.Atoi(v[0])
			if err != nil || offset < 0 {
				return types.Collection[types.Fault]{}, fmt.Errorf("%w: offset %q", ErrBadQuery, v[0])
			}
			conditions = append(conditions, storage.WithOffset(offset))
		case "sortby":
			conditions = append(conditions, storage.WithSortBy(v[0]))
		case "sortorder":
			conditions = append(conditions, storage.WithSortDesc(strings.EqualFold(v[0], "desc")))
		}
	}

	return svc.storage.QueryFaults(ctx, conditions...)
}

func (svc faultSvc) Resolve(ctx context.Context, faultID string) error {
	err := svc.storage.ResolveFault(ctx, faultID)
	if err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return ErrFaultNotFound
		}
		return err
	}

	return nil
}

func (svc faultSvc) ResolveOpen(ctx context.Context, vehicleID, faultCode string) error {
	open, err := svc.storage.QueryFaults(ctx,
		storage.WithVehicleID(vehicleID),
		storage.WithFaultCode(faultCode),
		storage.WithResolved(false),
	)
	if err != nil {
		return err
	}

	log := logging.GetLoggerFromContext(ctx)

	for _, fault := range open.Data {
		err = svc.storage.ResolveFault(ctx, fault.ID)
		if err != nil && !errors.Is(err, storage.ErrNoRows) {
			log.Error().Err(err).Str("fault_id", fault.ID).Msg("could not resolve fault")
			return err
		}
	}

	return nil
}

func (svc faultSvc) HasOpen(ctx context.Context, vehicleID, faultCode string) (bool, error) {
	open, err := svc.storage.QueryFaults(ctx,
		storage.WithVehicleID(vehicleID),
		storage.WithFaultCode(faultCode),
		storage.WithResolved(false),
		storage.WithLimit(1),
	)
	if err != nil {
		return false, err
	}

	return len(open.Data) > 0, nil
}
