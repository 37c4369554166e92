package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/carsafe/carsafe/internal/pkg/application/anomalies"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/logging"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/metrics"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/stream"
	"github.com/carsafe/carsafe/pkg/types"
	"github.com/segmentio/kafka-go"
)

// Pipeline consumes the vehicle data topics and runs anomaly detection on
// every telemetry reading. Fault messages are consumed to keep alerting in
// one place, currently they are only surfaced in the log.
type Pipeline struct {
	bus        *stream.Bus
	anomalySvc anomalies.AnomalyService
	detector   *anomalies.Detector
}

func New(bus *stream.Bus, anomalySvc anomalies.AnomalyService, detectorCfg anomalies.DetectorConfig) *Pipeline {
	return &Pipeline{
		bus:        bus,
		anomalySvc: anomalySvc,
		detector:   anomalies.NewDetector(detectorCfg),
	}
}

// Start consumes both topics until ctx is done.
func (p *Pipeline) Start(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		p.consumeTelemetry(ctx)
	}()
	go func() {
		defer wg.Done()
		p.consumeFaults(ctx)
	}()

	wg.Wait()
}

func (p *Pipeline) consumeTelemetry(ctx context.Context) {
	log := logging.GetLoggerFromContext(ctx)

	reader := p.bus.Reader(stream.TopicTelemetry, stream.ConsumerGroup)
	defer reader.Close()

	log.Info().Str("topic", stream.TopicTelemetry).Msg("pipeline consuming")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error().Err(err).Str("topic", stream.TopicTelemetry).Msg("read failed")
			metrics.PipelineMessages.WithLabelValues(stream.TopicTelemetry, "error").Inc()
			continue
		}

		p.handleTelemetry(ctx, msg)
	}
}

func (p *Pipeline) handleTelemetry(ctx context.Context, msg kafka.Message) {
	log := logging.GetLoggerFromContext(ctx)

	t := types.Telemetry{}
	err := json.Unmarshal(msg.Value, &t)
	if err != nil {
		log.Error().Err(err).Msg("could not unmarshal telemetry message")
		metrics.PipelineMessages.WithLabelValues(stream.TopicTelemetry, "invalid").Inc()
		return
	}

	metrics.PipelineMessages.WithLabelValues(stream.TopicTelemetry, "ok").Inc()

	ctx, log = logging.WithVehicleID(ctx, t.VehicleID)

	for _, a := range p.detector.Detect(t) {
		recorded, err := p.anomalySvc.Record(ctx, a)
		if err != nil {
			log.Error().Err(err).Msg("could not record anomaly")
			continue
		}

		log.Warn().
			Str("anomaly_type", recorded.AnomalyType).
			Float64("confidence", recorded.Confidence).
			Msg("anomaly detected")
	}
}

func (p *Pipeline) consumeFaults(ctx context.Context) {
	log := logging.GetLoggerFromContext(ctx)

	reader := p.bus.Reader(stream.TopicFaults, stream.ConsumerGroup)
	defer reader.Close()

	log.Info().Str("topic", stream.TopicFaults).Msg("pipeline consuming")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error().Err(err).Str("topic", stream.TopicFaults).Msg("read failed")
			metrics.PipelineMessages.WithLabelValues(stream.TopicFaults, "error").Inc()
			continue
		}

		f := types.Fault{}
		err = json.Unmarshal(msg.Value, &f)
		if err != nil {
			log.Error().Err(err).Msg("could not unmarshal fault message")
			metrics.PipelineMessages.WithLabelValues(stream.TopicFaults, "invalid").Inc()
			continue
		}

		metrics.PipelineMessages.WithLabelValues(stream.TopicFaults, "ok").Inc()

		evt := log.Info()
		if f.Severity == types.SeverityHigh {
			evt = log.Warn()
		}
		evt.Str("vehicle_id", f.VehicleID).Str("fault_code", f.FaultCode).Str("severity", f.Severity).Msg("fault reported")
	}
}
