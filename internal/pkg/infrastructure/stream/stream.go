package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/carsafe/carsafe/internal/pkg/infrastructure/logging"
	"github.com/segmentio/kafka-go"
)

const (
	TopicTelemetry = "vehicle-telemetry"
	TopicFaults    = "vehicle-faults"

	// ConsumerGroup is shared by all pipeline instances so partitions
	// are balanced between them.
	ConsumerGroup = "vehicle-data-processor"
)

// Bus hands out readers and writers for the vehicle data topics.
type Bus struct {
	brokers []string
}

func NewBus(brokers []string) *Bus {
	return &Bus{brokers: brokers}
}

func (b *Bus) Reader(topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  b.brokers,
		GroupID:  group,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
}

func (b *Bus) Writer(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(b.brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
}

// Publisher publishes vehicle events keyed by vehicle id.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, message any) error
	Close() error
}

type publisher struct {
	telemetry *kafka.Writer
	faults    *kafka.Writer
}

func NewPublisher(bus *Bus) Publisher {
	return &publisher{
		telemetry: bus.Writer(TopicTelemetry),
		faults:    bus.Writer(TopicFaults),
	}
}

func (p *publisher) Publish(ctx context.Context, topic, key string, message any) error {
	value, err := json.Marshal(message)
	if err != nil {
		return err
	}

	w := p.telemetry
	if topic == TopicFaults {
		w = p.faults
	}

	err = w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		logger := logging.GetLoggerFromContext(ctx)
		logger.Warn().Err(err).Str("topic", topic).Msg("failed to publish message")
		return err
	}

	return nil
}

func (p *publisher) Close() error {
	if err := p.telemetry.Close(); err != nil {
		return err
	}
	return p.faults.Close()
}
