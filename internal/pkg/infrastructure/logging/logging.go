package logging

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type loggerContextKey struct {
	name string
}

var loggerCtxKey = &loggerContextKey{"logger"}

// NewLogger creates a service scoped logger and stores it in the returned
// context. All carsafe binaries call this once at startup.
func NewLogger(ctx context.Context, serviceName, serviceVersion string) (context.Context, zerolog.Logger) {
	logger := log.With().Str("service", strings.ToLower(serviceName)).Str("version", serviceVersion).Logger()
	ctx = NewContextWithLogger(ctx, logger)
	return ctx, logger
}

func NewContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	ctx = context.WithValue(ctx, loggerCtxKey, logger)
	return ctx
}

func GetLoggerFromContext(ctx context.Context) zerolog.Logger {
	logger, ok := ctx.Value(loggerCtxKey).(zerolog.Logger)

	if !ok {
		return log.Logger
	}

	return logger
}

// WithVehicleID returns a context where the stored logger carries the
// vehicle id, so everything logged while handling a reading or a fault can
// be traced back to the vehicle it concerns.
func WithVehicleID(ctx context.Context, vehicleID string) (context.Context, zerolog.Logger) {
	logger := GetLoggerFromContext(ctx)

	if vehicleID != "" {
		logger = logger.With().Str("vehicle_id", vehicleID).Logger()
		ctx = NewContextWithLogger(ctx, logger)
	}

	return ctx, logger
}
