package storage

import (
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

type ConditionFunc func(*Condition) *Condition

type Condition struct {
	VehicleID   string
	FaultID     string
	AnomalyID   string
	FaultCode   string
	Severity    string
	AnomalyType string

	Resolved *bool

	StartTime time.Time
	EndTime   time.Time

	sortBy    string
	sortOrder string

	offset *int
	limit  *int
}

// SortColumn returns the requested sort column when it is one of the
// columns the calling query allows, and the timestamp otherwise. Each
// entity passes its own column set, so a column that only exists on one
// table can never reach another table's ORDER BY.
func (c Condition) SortColumn(allowed ...string) string {
	for _, column := range allowed {
		if c.sortBy == column {
			return c.sortBy
		}
	}
	return "ts"
}

func (c Condition) SortOrder() string {
	if c.sortOrder == "" {
		return "DESC"
	}
	return c.sortOrder
}

func (c Condition) Offset() int {
	if c.offset == nil {
		return 0
	}
	return *c.offset
}

func (c Condition) Limit() int {
	if c.limit == nil {
		return 100
	}
	return *c.limit
}

func (c Condition) NamedArgs() pgx.NamedArgs {
	args := pgx.NamedArgs{}

	if c.VehicleID != "" {
		args["vehicle_id"] = c.VehicleID
	}
	if c.FaultID != "" {
		args["fault_id"] = c.FaultID
	}
	if c.AnomalyID != "" {
		args["anomaly_id"] = c.AnomalyID
	}
	if c.FaultCode != "" {
		args["fault_code"] = c.FaultCode
	}
	if c.Severity != "" {
		args["severity"] = c.Severity
	}
	if c.AnomalyType != "" {
		args["anomaly_type"] = c.AnomalyType
	}
	if c.Resolved != nil {
		args["resolved"] = *c.Resolved
	}
	if !c.StartTime.IsZero() {
		args["start_time"] = c.StartTime.UTC()
	}
	if !c.EndTime.IsZero() {
		args["end_time"] = c.EndTime.UTC()
	}

	return args
}

func (c Condition) Where() string {
	where := []string{}

	if c.VehicleID != "" {
		where = append(where, "vehicle_id = @vehicle_id")
	}
	if c.FaultID != "" {
		where = append(where, "fault_id = @fault_id")
	}
	if c.AnomalyID != "" {
		where = append(where, "anomaly_id = @anomaly_id")
	}
	if c.FaultCode != "" {
		where = append(where, "fault_code = @fault_code")
	}
	if c.Severity != "" {
		where = append(where, "severity = @severity")
	}
	if c.AnomalyType != "" {
		where = append(where, "anomaly_type = @anomaly_type")
	}
	if c.Resolved != nil {
		where = append(where, "resolved = @resolved")
	}
	if !c.StartTime.IsZero() {
		where = append(where, "ts >= @start_time")
	}
	if !c.EndTime.IsZero() {
		where = append(where, "ts <= @end_time")
	}

	if len(where) == 0 {
		return "TRUE"
	}

	return strings.Join(where, " AND ")
}

func WithVehicleID(vehicleID string) ConditionFunc {
	return func(c *Condition) *Condition {
		c.VehicleID = vehicleID
		return c
	}
}

func WithFaultID(faultID string) ConditionFunc {
	return func(c *Condition) *Condition {
		c.FaultID = faultID
		return c
	}
}

func WithAnomalyID(anomalyID string) ConditionFunc {
	return func(c *Condition) *Condition {
		c.AnomalyID = anomalyID
		return c
	}
}

func WithFaultCode(code string) ConditionFunc {
	return func(c *Condition) *Condition {
		c.FaultCode = code
		return c
	}
}

func WithSeverity(severity string) ConditionFunc {
	return func(c *Condition) *Condition {
		c.Severity = strings.ToUpper(severity)
		return c
	}
}

func WithAnomalyType(anomalyType string) ConditionFunc {
	return func(c *Condition) *Condition {
		c.AnomalyType = anomalyType
		return c
	}
}

func WithResolved(resolved bool) ConditionFunc {
	return func(c *Condition) *Condition {
		c.Resolved = &resolved
		return c
	}
}

func WithTimeInterval(start, end time.Time) ConditionFunc {
	return func(c *Condition) *Condition {
		c.StartTime = start
		c.EndTime = end
		return c
	}
}

func WithOffset(offset int) ConditionFunc {
	return func(c *Condition) *Condition {
		c.offset = &offset
		return c
	}
}

func WithLimit(limit int) ConditionFunc {
	return func(c *Condition) *Condition {
		c.limit = &limit
		return c
	}
}

func WithSortBy(sortBy string) ConditionFunc {
	return func(c *Condition) *Condition {
		sortBy = strings.ToLower(sortBy)
		if sortBy == "timestamp" {
			sortBy = "ts"
		}
		c.sortBy = sortBy
		return c
	}
}

func WithSortDesc(desc bool) ConditionFunc {
	return func(c *Condition) *Condition {
		if desc {
			c.sortOrder = "DESC"
		} else {
			c.sortOrder = "ASC"
		}
		return c
	}
}
