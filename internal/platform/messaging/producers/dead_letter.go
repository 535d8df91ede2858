package producers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/banking-transfer-saga/internal/config"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// ErrDLQDisabled is returned by a producer built without a DLQ topic
var ErrDLQDisabled = errors.New("DLQ producer not initialized")

// DLQProducer parks saga messages no handler will ever accept, so their partition can move on.
type DLQProducer struct {
	logger   *slog.Logger
	writer   KafkaWriter
	dlqTopic string
	now      func() time.Time
}

// ParkedMessage is what lands on the DLQ topic. Payload holds the original bytes as JSON
// when they were JSON, RawPayload otherwise.
type ParkedMessage struct {
	SourceTopic string          `json:"source_topic"`
	Key         string          `json:"key"`
	TransferID  string          `json:"transfer_id,omitempty"`
	Reason      string          `json:"reason"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	RawPayload  string          `json:"raw_payload,omitempty"`
	ParkedAt    time.Time       `json:"parked_at"`
}

// NewDLQProducer returns a nil producer when no DLQ topic is configured.
func NewDLQProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*DLQProducer, error) {
	if cfg.DLQTopic == "" {
		logger.Info("DLQ topic is not configured, poison messages will block their partition")
		return nil, nil
	}

	if err := EnsureTopics(ctx, logger, cfg, cfg.DLQTopic); err != nil {
		return nil, fmt.Errorf("failed to ensure DLQ topic %s exists: %w", cfg.DLQTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.DLQTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return &DLQProducer{
		logger:   logger.With("dlq_topic", cfg.DLQTopic),
		writer:   writer,
		dlqTopic: cfg.DLQTopic,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// PublishToDLQ parks value, read from sourceTopic, with the reason it was rejected.
func (p *DLQProducer) PublishToDLQ(ctx context.Context, sourceTopic, key string, value []byte, reason string) error {
	if p == nil || p.writer == nil {
		return ErrDLQDisabled
	}

	parked := p.park(sourceTopic, key, value, reason)
	body, err := json.Marshal(parked)
	if err != nil {
		return fmt.Errorf("failed to marshal parked message: %w", err)
	}

	headers := []kafka.Header{
		{Key: "dlq-reason", Value: []byte(reason)},
		{Key: "source-topic", Value: []byte(sourceTopic)},
	}
	if parked.TransferID != "" {
		headers = append(headers, kafka.Header{Key: "transfer-id", Value: []byte(parked.TransferID)})
	}

	msg := kafka.Message{
		Key:     []byte(key),
		Value:   body,
		Headers: headers,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to park message in DLQ",
			"source_topic", sourceTopic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to DLQ %s: %w", p.dlqTopic, err)
	}

	p.logger.Warn("Parked message in DLQ",
		"source_topic", sourceTopic,
		"key", key,
		"transfer_id", parked.TransferID,
		"reason", reason,
	)
	return nil
}

func (p *DLQProducer) park(sourceTopic, key string, value []byte, reason string) ParkedMessage {
	parked := ParkedMessage{
		SourceTopic: sourceTopic,
		Key:         key,
		Reason:      reason,
		ParkedAt:    p.now(),
	}

	if !json.Valid(value) {
		parked.RawPayload = string(value)
		return parked
	}
	parked.Payload = json.RawMessage(value)

	// A message can be rejected for its content and still name the transfer it belongs to
	var envelope struct {
		TransferID string `json:"transfer_id"`
	}
	if json.Unmarshal(value, &envelope) == nil {
		if id, err := uuid.Parse(envelope.TransferID); err == nil && id != uuid.Nil {
			parked.TransferID = id.String()
		}
	}
	return parked
}

func (p *DLQProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	p.logger.Info("Closing DLQ Kafka message producer")
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close dlq kafka writer for topic %s: %w", p.dlqTopic, err)
	}
	return nil
}
