package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/carsafe/carsafe/internal/pkg/application/faults"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/cache"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/logging"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/metrics"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/storage"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/stream"
	"github.com/carsafe/carsafe/pkg/types"
)

var ErrNoTelemetry = fmt.Errorf("no telemetry found")
var ErrBadPeriod = fmt.Errorf("hours must be between %d and %d", minStatsHours, maxStatsHours)
var ErrBadQuery = errors.New("invalid query parameter")

const (
	minStatsHours     = 1
	maxStatsHours     = 168
	defaultStatsHours = 24
)

type TelemetryService interface {
	Ingest(ctx context.Context, t types.Telemetry) error
	Query(ctx context.Context, params map[string][]string) (types.Collection[types.Telemetry], error)
	Latest(ctx context.Context, vehicleID string) (types.Telemetry, error)
	Stats(ctx context.Context, vehicleID string, hours int) (types.TelemetryStats, error)
}

type TelemetryStorage interface {
	AddTelemetry(ctx context.Context, t types.Telemetry) error
	QueryTelemetry(ctx context.Context, conditions ...storage.ConditionFunc) (types.Collection[types.Telemetry], error)
	GetLatestTelemetry(ctx context.Context, vehicleID string) (types.Telemetry, error)
	GetTelemetryStats(ctx context.Context, vehicleID string, since time.Time) (types.TelemetryStats, error)
}

type telemetrySvc struct {
	storage   TelemetryStorage
	cache     cache.TelemetryCache
	publisher stream.Publisher
	faultSvc  faults.FaultService
}

func New(s TelemetryStorage, c cache.TelemetryCache, publisher stream.Publisher, faultSvc faults.FaultService) TelemetryService {
	return &telemetrySvc{
		storage:   s,
		cache:     c,
		publisher: publisher,
		faultSvc:  faultSvc,
	}
}

func (svc telemetrySvc) Ingest(ctx context.Context, t types.Telemetry) error {
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}

	err := t.Validate()
	if err != nil {
		metrics.TelemetryRejected.Inc()
		return err
	}

	err = svc.storage.AddTelemetry(ctx, t)
	if err != nil {
		return err
	}

	metrics.TelemetryIngested.WithLabelValues(t.VehicleID).Inc()

	ctx, log := logging.WithVehicleID(ctx, t.VehicleID)

	if svc.cache != nil {
		err = svc.cache.StoreLatest(ctx, t)
		if err != nil {
			log.Warn().Err(err).Msg("latest telemetry not cached")
		}
	}

	if svc.publisher != nil {
		err = svc.publisher.Publish(ctx, stream.TopicTelemetry, t.VehicleID, t)
		if err != nil {
			log.Warn().Err(err).Msg("telemetry not published")
		}
	}

	if svc.faultSvc != nil {
		// A reporting vehicle is no longer silent.
		err = svc.faultSvc.ResolveOpen(ctx, t.VehicleID, faults.FaultCodeNotReporting)
		if err != nil {
			log.Warn().Err(err).Msg("could not resolve silence fault")
		}
	}

	return nil
}

func (svc telemetrySvc) Query(ctx context.Context, params map[string][]string) (types.Collection[types.Telemetry], error) {
	conditions := make([]storage.ConditionFunc, 0)

	var start, end time.Time

	for k, v := range params {
		switch strings.ToLower(k) {
		case "vehicle_id":
			conditions = append(conditions, storage.WithVehicleID(v[0]))
		case "starttime":
			ts, err := time.Parse(time.RFC3339, v[0])
			if err != nil {
				return types.Collection[types.Telemetry]{}, fmt.Errorf("%w: starttime %q", ErrBadQuery, v[0])
			}
			start = ts
		case "endtime":
			ts, err := time.Parse(time.RFC3339, v[0])
			if err != nil {
				return types.Collection[types.Telemetry]{}, fmt.Errorf("%w: endtime %q", ErrBadQuery, v[0])
			}
			end = ts
		case "limit":
			limit, err := strconv.Atoi(v[0])
			if err != nil || limit < 1 {
				return types.Collection[types.Telemetry]{}, fmt.Errorf("%w: limit %q", ErrBadQuery, v[0])
			}
			conditions = append(conditions, storage.WithLimit(limit))
		case "offset":
			offset, err := strconv.Atoi(v[0])
			if err != nil || offset < 0 {
				return types.Collection[types.Telemetry]{}, fmt.Errorf("%w: offset %q", ErrBadQuery, v[0])
			}
			conditions = append(conditions, storage.WithOffset(offset))
		case "sortby":
			conditions = append(conditions, storage.WithSortBy(v[0]))
		case "sortorder":
			conditions = append(conditions, storage.WithSortDesc(strings.EqualFold(v[0], "desc")))
		}
	}

	if !start.IsZero() || !end.IsZero() {
		conditions = append(conditions, storage.WithTimeInterval(start, end))
	}

	return svc.storage.QueryTelemetry(ctx, conditions...)
}

func (svc telemetrySvc) Latest(ctx context.Context, vehicleID string) (types.Telemetry, error) {
	if svc.cache != nil {
		t, err := svc.cache.GetLatest(ctx, vehicleID)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, cache.ErrNotCached) {
			logger := logging.GetLoggerFromContext(ctx)
			logger.Warn().Err(err).Msg("cache lookup failed")
		}
	}

	t, err := svc.storage.GetLatestTelemetry(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return types.Telemetry{}, ErrNoTelemetry
		}
		return types.Telemetry{}, err
	}

	return t, nil
}

func (svc telemetrySvc) Stats(ctx context.Context, vehicleID string, hours int) (types.TelemetryStats, error) {
	if hours == 0 {
		hours = defaultStatsHours
	}
	if hours < minStatsHours || hours > maxStatsHours {
		return types.TelemetryStats{}, ErrBadPeriod
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	stats, err := svc.storage.GetTelemetryStats(ctx, vehicleID, since)
	if err != nil {
		return types.TelemetryStats{}, err
	}

	if stats.Count == 0 {
		return types.TelemetryStats{}, ErrNoTelemetry
	}

	stats.PeriodHours = hours
	stats.GeneratedAt = time.Now().UTC()

	return stats, nil
}
