package outbox

import (
	"encoding/json"
	"time"

	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/google/uuid"
)

// Message is a saga command or announcement written in the same transaction as the
// state change that produced it, then handed to the bus.
type Message struct {
	ID            int64               `json:"id"`
	TransferID    uuid.UUID           `json:"transfer_id"`
	EventType     shared.EventType    `json:"event_type"`
	Topic         string              `json:"topic"`
	Key           string              `json:"key"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

// NewMessage wraps evt for publication on topic.
func NewMessage(topic string, evt *shared.Event) (*Message, error) {
	payload, err := evt.Encode()
	if err != nil {
		return nil, err
	}

	return &Message{
		TransferID: evt.TransferID,
		EventType:  evt.Type,
		Topic:      topic,
		Key:        evt.Key(),
		Payload:    payload,
		Status:     shared.OutboxStatusPending,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now().UTC()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now().UTC()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now().UTC()
	m.LastAttemptAt = &now
}

// Event decodes the payload back into the event it was built from
func (m *Message) Event() (*shared.Event, error) {
	return shared.DecodeEvent(m.Payload, m.EventType)
}
