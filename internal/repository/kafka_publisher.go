package repository

import (
	"context"
	"fmt"

	"ForecastDesk/internal/domain/models"
	domrepo "ForecastDesk/internal/domain/repository"
)

// Producer is what the publishers need from pkg/kafka.Producer.
type Producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaPublisher implements EventPublisher for Kafka.
type KafkaPublisher struct {
	producer Producer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer Producer, topic string) domrepo.EventPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish keys each event by workflow identifier.
func (p *KafkaPublisher) Publish(ctx context.Context, e models.WorkflowEvent) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(e.Identifier), e); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NopPublisher drops events; used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.WorkflowEvent) error { return nil }
func (NopPublisher) Close() error { return nil }

// LogSink forwards aggregated log batches from the logger's collector.
type LogSink struct {
	producer Producer
}

func NewLogSink(producer Producer) *LogSink {
	return &LogSink{producer: producer}
}

func (s *LogSink) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return s.producer.Publish(ctx, topic, nil, payload)
}
