package storage

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestEmptyConditionMatchesEverything(t *testing.T) {
	is := is.New(t)

	c := Condition{}

	is.Equal(c.Where(), "TRUE")
	is.Equal(len(c.NamedArgs()), 0)
	is.Equal(c.SortColumn("ts", "vehicle_id"), "ts")
	is.Equal(c.SortOrder(), "DESC")
	is.Equal(c.Offset(), 0)
	is.Equal(c.Limit(), 100)
}

func TestConditionsAreJoinedWithAnd(t *testing.T) {
	is := is.New(t)

	c := apply(WithVehicleID("VH0001"), WithResolved(false))

	is.Equal(c.Where(), "vehicle_id = @vehicle_id AND resolved = @resolved")

	args := c.NamedArgs()
	is.Equal(args["vehicle_id"], "VH0001")
	is.Equal(args["resolved"], false)
}

func TestSeverityIsUppercased(t *testing.T) {
	is := is.New(t)

	c := apply(WithSeverity("high"))

	is.Equal(c.NamedArgs()["severity"], "HIGH")
}

func TestTimeIntervalBounds(t *testing.T) {
	is := is.New(t)

	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	c := apply(WithTimeInterval(start, end))
	is.Equal(c.Where(), "ts >= @start_time AND ts <= @end_time")

	c = apply(WithTimeInterval(start, time.Time{}))
	is.Equal(c.Where(), "ts >= @start_time")
}

func TestSortColumnIsScopedPerEntity(t *testing.T) {
	is := is.New(t)

	c := apply(WithSortBy("confidence"))
	is.Equal(c.SortColumn("ts", "vehicle_id", "confidence"), "confidence")

	// confidence only exists on anomalies, a fault query falls back to ts
	is.Equal(c.SortColumn("ts", "vehicle_id", "severity"), "ts")

	c = apply(WithSortBy("severity"))
	is.Equal(c.SortColumn("ts", "vehicle_id", "severity"), "severity")
	is.Equal(c.SortColumn("ts", "vehicle_id", "speed"), "ts")
}

func TestSortColumnRejectsUnknownColumns(t *testing.T) {
	is := is.New(t)

	c := apply(WithSortBy("1; DROP TABLE telemetry"))
	is.Equal(c.SortColumn("ts", "vehicle_id", "speed"), "ts")

	c = apply(WithSortBy("timestamp"))
	is.Equal(c.SortColumn("ts", "vehicle_id"), "ts")
}

func TestSortOrder(t *testing.T) {
	is := is.New(t)

	c := apply(WithSortDesc(false))
	is.Equal(c.SortOrder(), "ASC")

	c = apply(WithSortDesc(true))
	is.Equal(c.SortOrder(), "DESC")
}

func TestOffsetAndLimit(t *testing.T) {
	is := is.New(t)

	c := apply(WithOffset(50), WithLimit(10))

	is.Equal(c.Offset(), 50)
	is.Equal(c.Limit(), 10)
}

func apply(conditions ...ConditionFunc) *Condition {
	c := &Condition{}
	for _, f := range conditions {
		f(c)
	}
	return c
}
