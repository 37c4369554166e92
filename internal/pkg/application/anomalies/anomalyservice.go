package anomalies

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/carsafe/carsafe/internal/pkg/infrastructure/metrics"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/storage"
	"github.com/carsafe/carsafe/pkg/types"
	"github.com/google/uuid"
)

var ErrBadQuery = errors.New("invalid query parameter")

type AnomalyService interface {
	Record(ctx context.Context, a types.Anomaly) (types.Anomaly, error)
	Query(ctx context.Context, params map[string][]string) (types.Collection[types.Anomaly], error)
	DetectBatch(ctx context.Context, vehicleID string, start, end time.Time) ([]types.Anomaly, error)
}

type AnomalyStorage interface {
	AddAnomaly(ctx context.Context, a types.Anomaly) error
	QueryAnomalies(ctx context.Context, conditions ...storage.ConditionFunc) (types.Collection[types.Anomaly], error)
	QueryTelemetry(ctx context.Context, conditions ...storage.ConditionFunc) (types.Collection[types.Telemetry], error)
}

type anomalySvc struct {
	storage     AnomalyStorage
	detectorCfg DetectorConfig
}

func New(s AnomalyStorage, detectorCfg DetectorConfig) AnomalyService {
	return &anomalySvc{storage: s, detectorCfg: detectorCfg}
}

func (svc anomalySvc) Record(ctx context.Context, a types.Anomaly) (types.Anomaly, error) {
	if a.VehicleID == "" {
		return types.Anomaly{}, fmt.Errorf("no vehicleID is set on anomaly")
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}

	err := svc.storage.AddAnomaly(ctx, a)
	if err != nil {
		return types.Anomaly{}, err
	}

	metrics.AnomaliesDetected.WithLabelValues(a.AnomalyType).Inc()

	return a, nil
}

func (svc anomalySvc) Query(ctx context.Context, params map[string][]string) (types.Collection[types.Anomaly], error) {
	conditions := make([]storage.ConditionFunc, 0)

	for k, v := range params {
		switch strings.ToLower(k) {
		case "vehicle_id":
			conditions = append(conditions, storage.WithVehicleID(v[0]))
		case "anomaly_type":
			conditions = append(conditions, storage.WithAnomalyType(v[0]))
		case "limit":
			limit, err := strconv.Atoi(v[0])
			if err != nil || limit < 1 {
				return types.Collection[types.Anomaly]{}, fmt.Errorf("%w: limit %q", ErrBadQuery, v[0])
			}
			conditions = append(conditions, storage.WithLimit(limit))
		case "offset":
			offset, err := strconv.Atoi(v[0])
			if err != nil || offset < 0 {
				return types.Collection[types.Anomaly]{}, fmt.Errorf("%w: offset %q", ErrBadQuery, v[0])
			}
			conditions = append(conditions, storage.WithOffset(offset))
		case "sortby":
			conditions = append(conditions, storage.WithSortBy(v[0]))
		case "sortorder":
			conditions = append(conditions, storage.WithSortDesc(strings.EqualFold(v[0], "desc")))
		}
	}

	return svc.storage.QueryAnomalies(ctx, conditions...)
}

// DetectBatch replays a vehicle's stored readings through a fresh detector
// and records whatever it finds. Readings are replayed oldest first so the
// z-score window builds up the same way it would have live.
func (svc anomalySvc) DetectBatch(ctx context.Context, vehicleID string, start, end time.Time) ([]types.Anomaly, error) {
	readings, err := svc.storage.QueryTelemetry(ctx,
		storage.WithVehicleID(vehicleID),
		storage.WithTimeInterval(start, end),
		storage.WithSortDesc(false),
		storage.WithLimit(10000),
	)
	if err != nil {
		return nil, err
	}

	detector := NewDetector(svc.detectorCfg)
	found := make([]types.Anomaly, 0)

	for _, t := range readings.Data {
		for _, a := range detector.Detect(t) {
			recorded, err := svc.Record(ctx, a)
			if err != nil {
				return nil, err
			}
			found = append(found, recorded)
		}
	}

	return found, nil
}
