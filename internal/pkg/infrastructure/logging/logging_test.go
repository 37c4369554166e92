package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func TestGetLoggerFromContextReturnsStoredLogger(t *testing.T) {
	is := is.New(t)

	buf := &bytes.Buffer{}
	logger := zerolog.New(buf)

	ctx := NewContextWithLogger(context.Background(), logger)
	stored := GetLoggerFromContext(ctx)
	stored.Info().Msg("hello")

	is.True(strings.Contains(buf.String(), "hello"))
}

func TestWithVehicleIDEnrichesLogger(t *testing.T) {
	is := is.New(t)

	buf := &bytes.Buffer{}
	ctx := NewContextWithLogger(context.Background(), zerolog.New(buf))

	ctx, logger := WithVehicleID(ctx, "VH0001")
	logger.Info().Msg("reading stored")

	is.True(strings.Contains(buf.String(), `"vehicle_id":"VH0001"`))

	// the enriched logger is also what later calls pick up from the context
	buf.Reset()
	fromCtx := GetLoggerFromContext(ctx)
	fromCtx.Info().Msg("published")
	is.True(strings.Contains(buf.String(), `"vehicle_id":"VH0001"`))
}

func TestWithVehicleIDIgnoresEmptyID(t *testing.T) {
	is := is.New(t)

	buf := &bytes.Buffer{}
	ctx := NewContextWithLogger(context.Background(), zerolog.New(buf))

	_, logger := WithVehicleID(ctx, "")
	logger.Info().Msg("no vehicle")

	is.True(!strings.Contains(buf.String(), "vehicle_id"))
}
