package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TelemetryIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carsafe_telemetry_ingested_total",
		Help: "Total number of telemetry readings ingested",
	}, []string{"vehicle_id"})

	TelemetryRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carsafe_telemetry_rejected_total",
		Help: "Total number of telemetry readings rejected by validation",
	})

	FaultsReported = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carsafe_faults_reported_total",
		Help: "Total number of faults reported",
	}, []string{"severity"})

	AnomaliesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carsafe_anomalies_detected_total",
		Help: "Total number of anomalies detected",
	}, []string{"type"})

	PipelineMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carsafe_pipeline_messages_total",
		Help: "Total number of messages consumed from the stream",
	}, []string{"topic", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "carsafe_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})
)
