package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/carsafe/carsafe/internal/pkg/application/anomalies"
	"github.com/carsafe/carsafe/internal/pkg/application/faults"
	"github.com/carsafe/carsafe/internal/pkg/application/fleet"
	"github.com/carsafe/carsafe/internal/pkg/application/pipeline"
	"github.com/carsafe/carsafe/internal/pkg/application/telemetry"
	"github.com/carsafe/carsafe/internal/pkg/application/watchdog"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/cache"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/config"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/logging"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/router"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/storage"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/stream"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/tracing"
	"github.com/carsafe/carsafe/internal/pkg/presentation/api"
	"github.com/rs/zerolog"
)

const serviceName = "carsafe-api"

var serviceVersion = "develop"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, logger := logging.NewLogger(ctx, serviceName, serviceVersion)

	cleanup, err := tracing.Init(ctx, logger, serviceName, serviceVersion)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tracing")
	}
	defer cleanup()

	cfg, err := config.LoadFile(env("CONFIG_FILE", "/opt/carsafe/config/config.yaml"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	store := connectToStorageOrDie(ctx, logger)
	defer store.Close()

	seedVehicles(ctx, logger, store)

	var telemetryCache cache.TelemetryCache
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		telemetryCache, err = cache.New(ctx, redisAddr, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer telemetryCache.Close()
	} else {
		logger.Warn().Msg("REDIS_ADDR not set, latest telemetry will not be cached")
	}

	var publisher stream.Publisher
	var bus *stream.Bus
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		bus = stream.NewBus(strings.Split(brokers, ","))
		publisher = stream.NewPublisher(bus)
		defer publisher.Close()
	} else {
		logger.Warn().Msg("KAFKA_BROKERS not set, vehicle events will not be published")
	}

	detectorCfg := anomalies.DetectorConfig{
		WindowSize:      cfg.Detection.WindowSize,
		MinSamples:      cfg.Detection.MinSamples,
		ZScoreThreshold: cfg.Detection.ZScoreThreshold,
	}

	fleetSvc := fleet.New(store)
	faultSvc := faults.New(store, publisher)
	telemetrySvc := telemetry.New(store, telemetryCache, publisher, faultSvc)
	anomalySvc := anomalies.New(store, detectorCfg)

	if bus != nil {
		go pipeline.New(bus, anomalySvc, detectorCfg).Start(ctx)
	}

	wdog := watchdog.New(store, faultSvc,
		time.Duration(cfg.Watchdog.IntervalSeconds)*time.Second,
		time.Duration(cfg.Watchdog.SilenceSeconds)*time.Second,
	)
	go wdog.Start(ctx)

	r := router.New(serviceName)
	api.RegisterHandlers(ctx, r, fleetSvc, telemetrySvc, faultSvc, anomalySvc)

	apiPort := env("SERVICE_PORT", "8080")

	srv := &http.Server{Addr: ":" + apiPort, Handler: r}

	go func() {
		logger.Info().Str("port", apiPort).Msg("starting to listen for incoming connections")
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to listen for incoming connections")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
	}

	logger.Info().Msg("shutting down")
}

func connectToStorageOrDie(ctx context.Context, logger zerolog.Logger) *storage.Storage {
	store, err := storage.New(ctx, storage.NewConfig(
		env("POSTGRES_HOST", "localhost"),
		env("POSTGRES_USER", "postgres"),
		env("POSTGRES_PASSWORD", "password"),
		env("POSTGRES_PORT", "5432"),
		env("POSTGRES_DBNAME", "carsafe"),
		env("POSTGRES_SSLMODE", "disable"),
	))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	err = store.Initialize(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}

	return store
}

func seedVehicles(ctx context.Context, logger zerolog.Logger, store *storage.Storage) {
	seedFile := env("SEED_FILE", "assets/config/vehicles.csv")

	f, err := os.Open(seedFile)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("file", seedFile).Msg("seed file not found, starting with an unseeded fleet")
		} else {
			logger.Error().Err(err).Msg("could not open seed file")
		}
		return
	}
	defer f.Close()

	err = storage.SeedVehicles(ctx, store, f)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to seed vehicles")
	}

	logger.Info().Str("file", seedFile).Msg("seeded vehicles")
}

func env(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}
