package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/carsafe/carsafe/internal/pkg/application/anomalies"
	"github.com/carsafe/carsafe/internal/pkg/application/faults"
	"github.com/carsafe/carsafe/internal/pkg/application/fleet"
	"github.com/carsafe/carsafe/internal/pkg/application/telemetry"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/logging"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/metrics"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/tracing"
	"github.com/carsafe/carsafe/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("carsafe/api")

func RegisterHandlers(ctx context.Context, router *chi.Mux, fleetSvc fleet.Registry, telemetrySvc telemetry.TelemetryService, faultSvc faults.FaultService, anomalySvc anomalies.AnomalyService) *chi.Mux {

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	log := logging.GetLoggerFromContext(ctx)

	router.Route("/api/v0", func(r chi.Router) {
		r.Use(requestDuration)

		r.Route("/vehicles", func(r chi.Router) {
			r.Get("/", queryVehiclesHandler(log, fleetSvc))
			r.Post("/", registerVehicleHandler(log, fleetSvc))
			r.Get("/{vehicleID}", getVehicleHandler(log, fleetSvc))
			r.Get("/{vehicleID}/telemetry/latest", latestTelemetryHandler(log, telemetrySvc))
			r.Get("/{vehicleID}/telemetry/stats", telemetryStatsHandler(log, telemetrySvc))
		})

		r.Route("/telemetry", func(r chi.Router) {
			r.Post("/", ingestTelemetryHandler(log, telemetrySvc))
			r.Get("/", queryTelemetryHandler(log, telemetrySvc))
		})

		r.Route("/faults", func(r chi.Router) {
			r.Post("/", reportFaultHandler(log, faultSvc))
			r.Get("/", queryFaultsHandler(log, faultSvc))
			r.Get("/{faultID}", getFaultHandler(log, faultSvc))
			r.Patch("/{faultID}/resolve", resolveFaultHandler(log, faultSvc))
		})

		r.Route("/anomalies", func(r chi.Router) {
			r.Get("/", queryAnomaliesHandler(log, anomalySvc))
			r.Post("/detect", detectAnomaliesHandler(log, anomalySvc))
		})
	})

	return router
}

func requestDuration(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		endpoint := chi.RouteContext(r.Context()).RoutePattern()
		metrics.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func registerVehicleHandler(log zerolog.Logger, svc fleet.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "register-vehicle")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx = logging.NewContextWithLogger(ctx, log)

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error().Err(err).Msg("unable to read body")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var v types.Vehicle
		err = json.Unmarshal(body, &v)
		if err != nil {
			log.Error().Err(err).Msg("unable to unmarshal body")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		err = svc.Register(ctx, v)
		if err != nil {
			if errors.Is(err, fleet.ErrVehicleAlreadyExists) {
				w.WriteHeader(http.StatusConflict)
				return
			}
			log.Error().Err(err).Msg("unable to register vehicle")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Add("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
	}
}

func queryVehiclesHandler(log zerolog.Logger, svc fleet.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "query-vehicles")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx = logging.NewContextWithLogger(ctx, log)

		collection, err := svc.Query(ctx, r.URL.Query())
		if err != nil {
			if errors.Is(err, fleet.ErrBadQuery) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			log.Error().Err(err).Msg("unable to query vehicles")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, collection)
	}
}

func getVehicleHandler(log zerolog.Logger, svc fleet.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-vehicle")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx = logging.NewContextWithLogger(ctx, log)

		vehicleID := chi.URLParam(r, "vehicleID")

		v, err := svc.GetByVehicleID(ctx, vehicleID)
		if err != nil {
			if errors.Is(err, fleet.ErrVehicleNotFound) {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			log.Error().Err(err).Msg("unable to get vehicle")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, v)
	}
}

func ingestTelemetryHandler(log zerolog.Logger, svc telemetry.TelemetryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "ingest-telemetry")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx = logging.NewContextWithLogger(ctx, log)

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error().Err(err).Msg("unable to read body")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var t types.Telemetry
		err = json.Unmarshal(body, &t)
		if err != nil {
			log.Error().Err(err).Msg("unable to unmarshal body")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		err = svc.Ingest(ctx, t)
		if err != nil {
			if errors.Is(err, types.ErrInvalidTelemetry) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			log.Error().Err(err).Msg("unable to ingest telemetry")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusCreated)
	}
}

func queryTelemetryHandler(log zerolog.Logger, svc telemetry.TelemetryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "query-telemetry")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx = logging.NewContextWithLogger(ctx, log)

		collection, err := svc.Query(ctx, r.URL.Query())
		if err != nil {
			if errors.Is(err, telemetry.ErrBadQuery) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			log.Error().Err(err).Msg("unable to query telemetry")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, collection)
	}
}

func latestTelemetryHandler(log zerolog.Logger, svc telemetry.TelemetryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "latest-telemetry")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx = logging.NewContextWithLogger(ctx, log)

		vehicleID := chi.URLParam(r, "vehicleID")

		t, err := svc.Latest(ctx, vehicleID)
		if err != nil {
			if errors.Is(err, telemetry.ErrNoTelemetry) {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			log.Error().Err(err).Msg("unable to get latest telemetry")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, t)
	}
}

func telemetryStatsHandler(log zerolog.Logger, svc telemetry.TelemetryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "telemetry-stats")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx = logging.NewContextWithLogger(ctx, log)

		vehicleID := chi.URLParam(r, "vehicleID")

		hours := 0
		if h := r.URL.Query().Get("hours"); h != "" {
			hours, err = strconv.Atoi(h)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		}

		stats, err := svc.Stats(ctx, vehicleID, hours)
		if err != nil {
			if errors.Is(err, telemetry.ErrNoTelemetry) {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			if errors.Is(err, telemetry.ErrBadPeriod) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			log.Error().Err(err).Msg("unable to aggregate telemetry stats")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, stats)
	}
}

func reportFaultHandler(log zerolog.Logger, svc faults.FaultService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "report-fault")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx = logging.NewContextWithLogger(ctx, log)

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error().Err(err).Msg("unable to read body")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var f types.Fault
		err = json.Unmarshal(body, &f)
		if err != nil {
			log.Error().Err(err).Msg("unable to unmarshal body")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		reported, err := svc.Report(ctx, f)
		if err != nil {
			if errors.Is(err, faults.ErrBadSeverity) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			log.Error().Err(err).Msg("unable to report fault")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		writeJSON(w, http.StatusCreated, reported)
	}
}

func queryFaultsHandler(log zerolog.Logger, svc faults.FaultService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "query-faults")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx = logging.NewContextWithLogger(ctx, log)

		collection, err := svc.Query(ctx, r.URL.Query())
		if err != nil {
			if errors.Is(err, faults.ErrBadQuery) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			log.Error().Err(err).Msg("unable to query faults")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, collection)
	}
}

func getFaultHandler(log zerolog.Logger, svc faults.FaultService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-fault")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx = logging.NewContextWithLogger(ctx, log)

		f, err := svc.GetByID(ctx, chi.URLParam(r, "faultID"))
		if err != nil {
			if errors.Is(err, faults.ErrFaultNotFound) {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			log.Error().Err(err).Msg("unable to get fault")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, f)
	}
}

func resolveFaultHandler(log zerolog.Logger, svc faults.FaultService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "resolve-fault")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx = logging.NewContextWithLogger(ctx, log)

		err = svc.Resolve(ctx, chi.URLParam(r, "faultID"))
		if err != nil {
			if errors.Is(err, faults.ErrFaultNotFound) {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			log.Error().Err(err).Msg("unable to resolve fault")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func queryAnomaliesHandler(log zerolog.Logger, svc anomalies.AnomalyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "query-anomalies")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx = logging.NewContextWithLogger(ctx, log)

		collection, err := svc.Query(ctx, r.URL.Query())
		if err != nil {
			if errors.Is(err, anomalies.ErrBadQuery) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			log.Error().Err(err).Msg("unable to query anomalies")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, collection)
	}
}

type detectRequest struct {
	VehicleID string    `json:"vehicleID"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

func detectAnomaliesHandler(log zerolog.Logger, svc anomalies.AnomalyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "detect-anomalies")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx = logging.NewContextWithLogger(ctx, log)

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error().Err(err).Msg("unable to read body")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var req detectRequest
		err = json.Unmarshal(body, &req)
		if err != nil || req.VehicleID == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		found, err := svc.DetectBatch(ctx, req.VehicleID, req.StartTime, req.EndTime)
		if err != nil {
			log.Error().Err(err).Msg("batch detection failed")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, types.Collection[types.Anomaly]{
			Data:       found,
			Count:      uint64(len(found)),
			TotalCount: uint64(len(found)),
		})
	}
}
