package transfer

import (
	"time"

	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/google/uuid"
)

// HistoryEntry describes one transition of a transfer and the event that caused it.
type HistoryEntry struct {
	TransferID   uuid.UUID            `json:"transfer_id"`
	FromState    State                `json:"from_state,omitempty"`
	ToState      State                `json:"to_state"`
	Compensation CompensationStatus   `json:"compensation"`
	Trigger      string               `json:"trigger"`
	Reason       shared.FailureReason `json:"reason,omitempty"`
	EventID      uuid.UUID            `json:"event_id,omitempty"`
	OccurredAt   time.Time            `json:"occurred_at"`
}

// TriggerTimeout is the history trigger of transitions made by the timeout sweep.
const TriggerTimeout = "timeout"

// NewHistoryEntry snapshots t after a transition away from fromState.
func NewHistoryEntry(t *Transfer, fromState State, trigger string, eventID uuid.UUID) *HistoryEntry {
	return &HistoryEntry{
		TransferID:   t.TransferID,
		FromState:    fromState,
		ToState:      t.State,
		Compensation: t.Compensation,
		Trigger:      trigger,
		Reason:       t.FailureReason,
		EventID:      eventID,
		OccurredAt:   t.UpdatedAt,
	}
}
