// Package reconciliation describes the holding area for events the coordinator could
// not apply to any transfer. Operators inspect it; nothing replays from it automatically.
package reconciliation

import (
	"context"
	"time"

	"github.com/banking-transfer-saga/internal/domain/shared"
)

// Reasons an event ends up in the holding area
const (
	ReasonNoMatchingSaga     = "NO_MATCHING_SAGA"
	ReasonLateCredit         = "LATE_CREDIT"
	ReasonCompensationFailed = "COMPENSATION_FAILED"
	ReasonMissingTransferID  = "MISSING_TRANSFER_ID"
)

// UnmatchedEvent is an event kept for manual reconciliation.
type UnmatchedEvent struct {
	Event      shared.Event `json:"event"`
	Topic      string       `json:"topic"`
	Reason     string       `json:"reason"`
	ReceivedAt time.Time    `json:"received_at"`
}

// NewUnmatchedEvent wraps evt with the reason it could not be applied.
func NewUnmatchedEvent(evt *shared.Event, topic, reason string) *UnmatchedEvent {
	return &UnmatchedEvent{
		Event:      *evt,
		Topic:      topic,
		Reason:     reason,
		ReceivedAt: time.Now().UTC(),
	}
}

// Repository stores unmatched events in a bounded collection, oldest evicted first.
type Repository interface {
	Hold(ctx context.Context, evt *UnmatchedEvent) error
	List(ctx context.Context, limit, offset int) ([]*UnmatchedEvent, error)
	Count(ctx context.Context) (int64, error)
}
