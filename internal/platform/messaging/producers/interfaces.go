package producers

import (
	"context"

	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/segmentio/kafka-go"
)

// MessagePublisher writes an already encoded message. Outbox rows are replayed through
// it byte for byte. A nil error means the broker durably accepted the message.
type MessagePublisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// EventPublisher additionally encodes a saga event and picks its topic and partition key.
type EventPublisher interface {
	MessagePublisher
	PublishEvent(ctx context.Context, evt *shared.Event) error
	Close() error
}

// DeadLetterPublisher parks messages that no handler will ever accept
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, sourceTopic, key string, value []byte, reason string) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var (
	_ EventPublisher      = (*EventProducer)(nil)
	_ DeadLetterPublisher = (*DLQProducer)(nil)
)
