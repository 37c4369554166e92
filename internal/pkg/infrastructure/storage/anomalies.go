package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/carsafe/carsafe/pkg/types"
	"github.com/jackc/pgx/v5"
)

func (s *Storage) AddAnomaly(ctx context.Context, anomaly types.Anomaly) error {
	if anomaly.ID == "" {
		return ErrNoID
	}

	snapshot, _ := json.Marshal(anomaly.Snapshot)

	args := pgx.NamedArgs{
		"anomaly_id":   anomaly.ID,
		"vehicle_id":   anomaly.VehicleID,
		"ts":           anomaly.Timestamp.UTC(),
		"anomaly_type": anomaly.AnomalyType,
		"description":  anomaly.Description,
		"confidence":   anomaly.Confidence,
		"snapshot":     string(snapshot),
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO anomalies (anomaly_id, vehicle_id, ts, anomaly_type, description, confidence, snapshot)
		VALUES (@anomaly_id, @vehicle_id, @ts, @anomaly_type, @description, @confidence, @snapshot)
	`, args)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrStoreFailed, err.Error())
	}

	return nil
}

func (s *Storage) QueryAnomalies(ctx context.Context, conditions ...ConditionFunc) (types.Collection[types.Anomaly], error) {
	condition := &Condition{}
	for _, f := range conditions {
		f(condition)
	}

	args := condition.NamedArgs()
	where := condition.Where()

	var anomalyID, vehicleID, anomalyType, description string
	var ts time.Time
	var confidence float64
	var snapshot json.RawMessage
	var count int64

	query := fmt.Sprintf(`
		SELECT anomaly_id, vehicle_id, ts, anomaly_type, description, confidence, snapshot, count(*) OVER () AS count
		FROM anomalies
		WHERE %s
		ORDER BY %s %s
		OFFSET %d LIMIT %d
	`, where, condition.SortColumn("ts", "vehicle_id", "confidence"), condition.SortOrder(), condition.Offset(), condition.Limit())

	rows, err := s.pool.Query(ctx, query, args)
	if err != nil {
		return types.Collection[types.Anomaly]{}, err
	}

	anomalies := make([]types.Anomaly, 0)

	_, err = pgx.ForEachRow(rows, []any{&anomalyID, &vehicleID, &ts, &anomalyType, &description, &confidence, &snapshot, &count}, func() error {
		anomaly := types.Anomaly{
			ID:          anomalyID,
			VehicleID:   vehicleID,
			Timestamp:   ts,
			AnomalyType: anomalyType,
			Description: description,
			Confidence:  confidence,
		}
		if len(snapshot) > 0 {
			json.Unmarshal(snapshot, &anomaly.Snapshot)
		}
		anomalies = append(anomalies, anomaly)
		return nil
	})
	if err != nil {
		return types.Collection[types.Anomaly]{}, err
	}

	return types.Collection[types.Anomaly]{
		Data:       anomalies,
		Count:      uint64(len(anomalies)),
		Offset:     uint64(condition.Offset()),
		Limit:      uint64(condition.Limit()),
		TotalCount: uint64(count),
	}, nil
}
