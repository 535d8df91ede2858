package producers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/banking-transfer-saga/internal/config"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/banking-transfer-saga/internal/platform/messaging"
	"github.com/segmentio/kafka-go"
)

// EventProducer writes to any configured topic. Writes are synchronous and wait for
// all in-sync replicas; messages with the same key land on the same partition.
type EventProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	router *messaging.Router
}

// NewEventProducer creates the producer and ensures every configured topic exists
func NewEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*EventProducer, error) {
	if err := EnsureTopics(ctx, logger, cfg, cfg.Topics.All()...); err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Async:                  false,
		WriteTimeout:           cfg.MaxWait,
		AllowAutoTopicCreation: false,
	}

	return &EventProducer{
		logger: logger,
		writer: writer,
		router: messaging.NewRouter(cfg.Topics),
	}, nil
}

// Publish writes value to topic under key.
func (p *EventProducer) Publish(ctx context.Context, topic, key string, value []byte) error {
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish message",
			"topic", topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to %s: %w", topic, err)
	}

	p.logger.Debug("Published message",
		"topic", topic,
		"key", key,
	)
	return nil
}

// PublishEvent encodes evt and publishes it on the topic of its type, keyed by evt.Key().
func (p *EventProducer) PublishEvent(ctx context.Context, evt *shared.Event) error {
	topic, err := p.router.Topic(evt.Type)
	if err != nil {
		return err
	}

	value, err := evt.Encode()
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", evt.Type, err)
	}

	return p.Publish(ctx, topic, evt.Key(), value)
}

func (p *EventProducer) Close() error {
	p.logger.Info("Closing Kafka event producer")
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka event writer: %w", err)
	}
	return nil
}
