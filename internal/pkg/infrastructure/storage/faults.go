package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carsafe/carsafe/pkg/types"
	"github.com/jackc/pgx/v5"
)

func (s *Storage) AddFault(ctx context.Context, fault types.Fault) error {
	if fault.ID == "" {
		return ErrNoID
	}

	args := pgx.NamedArgs{
		"fault_id":    fault.ID,
		"vehicle_id":  fault.VehicleID,
		"ts":          fault.Timestamp.UTC(),
		"fault_code":  fault.FaultCode,
		"description": fault.Description,
		"severity":    fault.Severity,
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO faults (fault_id, vehicle_id, ts, fault_code, description, severity)
		VALUES (@fault_id, @vehicle_id, @ts, @fault_code, @description, @severity)
	`, args)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrStoreFailed, err.Error())
	}

	return nil
}

func (s *Storage) GetFault(ctx context.Context, conditions ...ConditionFunc) (types.Fault, error) {
	condition := &Condition{}
	for _, f := range conditions {
		f(condition)
	}

	args := condition.NamedArgs()
	where := condition.Where()

	var faultID, vehicleID, faultCode, description, severity string
	var ts time.Time
	var resolved bool
	var resolvedOn *time.Time

	query := fmt.Sprintf(`
		SELECT fault_id, vehicle_id, ts, fault_code, description, severity, resolved, resolved_on
		FROM faults
		WHERE %s
		ORDER BY ts DESC
		LIMIT 1
	`, where)

	err := s.pool.QueryRow(ctx, query, args).Scan(&faultID, &vehicleID, &ts, &faultCode, &description, &severity, &resolved, &resolvedOn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Fault{}, ErrNoRows
		}
		return types.Fault{}, err
	}

	return types.Fault{
		ID:          faultID,
		VehicleID:   vehicleID,
		Timestamp:   ts,
		FaultCode:   faultCode,
		Description: description,
		Severity:    severity,
		Resolved:    resolved,
		ResolvedAt:  resolvedOn,
	}, nil
}

func (s *Storage) QueryFaults(ctx context.Context, conditions ...ConditionFunc) (types.Collection[types.Fault], error) {
	condition := &Condition{}
	for _, f := range conditions {
		f(condition)
	}

	args := condition.NamedArgs()
	where := condition.Where()

	var faultID, vehicleID, faultCode, description, severity string
	var ts time.Time
	var resolved bool
	var resolvedOn *time.Time
	var count int64

	query := fmt.Sprintf(`
		SELECT fault_id, vehicle_id, ts, fault_code, description, severity, resolved, resolved_on, count(*) OVER () AS count
		FROM faults
		WHERE %s
		ORDER BY %s %s
		OFFSET %d LIMIT %d
	`, where, condition.SortColumn("ts", "vehicle_id", "severity"), condition.SortOrder(), condition.Offset(), condition.Limit())

	rows, err := s.pool.Query(ctx, query, args)
	if err != nil {
		return types.Collection[types.Fault]{}, err
	}

	faults := make([]types.Fault, 0)

	_, err = pgx.ForEachRow(rows, []any{&faultID, &vehicleID, &ts, &faultCode, &description, &severity, &resolved, &resolvedOn, &count}, func() error {
		fault := types.Fault{
			ID:          faultID,
			VehicleID:   vehicleID,
			Timestamp:   ts,
			FaultCode:   faultCode,
			Description: description,
			Severity:    severity,
			Resolved:    resolved,
		}
		if resolvedOn != nil {
			t := *resolvedOn
			fault.ResolvedAt = &t
		}
		faults = append(faults, fault)
		return nil
	})
	if err != nil {
		return types.Collection[types.Fault]{}, err
	}

	return types.Collection[types.Fault]{
		Data:       faults,
		Count:      uint64(len(faults)),
		Offset:     uint64(condition.Offset()),
		Limit:      uint64(condition.Limit()),
		TotalCount: uint64(count),
	}, nil
}

func (s *Storage) ResolveFault(ctx context.Context, faultID string) error {
	args := pgx.NamedArgs{
		"fault_id": faultID,
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE faults
		SET resolved = TRUE, resolved_on = CURRENT_TIMESTAMP
		WHERE fault_id = @fault_id AND resolved = FALSE
	`, args)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}

	return nil
}
