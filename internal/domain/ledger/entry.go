package ledger

import (
	"time"

	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Entry is one row of the ledger change log: a committed balance mutation together
// with the state of its announcement on the bus.
type Entry struct {
	ID              int64               `json:"id"`
	EntryID         uuid.UUID           `json:"entry_id"`
	AccountNumber   string              `json:"account_number"`
	TransferID      uuid.UUID           `json:"transfer_id"`
	Operation       shared.Operation    `json:"operation"`
	Amount          decimal.Decimal     `json:"amount"`
	BalanceAfter    decimal.Decimal     `json:"balance_after"`
	CorrelationID   string              `json:"correlation_id,omitempty"`
	PublishStatus   shared.OutboxStatus `json:"publish_status"`
	PublishAttempts int                 `json:"publish_attempts"`
	CreatedAt       time.Time           `json:"created_at"`
	PublishedAt     *time.Time          `json:"published_at,omitempty"`
}

// NewEntry records a mutation that has just been applied to an account.
func NewEntry(req shared.LedgerRequest, balanceAfter decimal.Decimal) *Entry {
	return &Entry{
		EntryID:       uuid.New(),
		AccountNumber: req.AccountNumber,
		TransferID:    req.TransferID,
		Operation:     req.Operation,
		Amount:        req.Amount,
		BalanceAfter:  balanceAfter,
		CorrelationID: req.CorrelationID,
		PublishStatus: shared.OutboxStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
}

// OutcomeEvent is the debited or credited announcement for this entry. The event id
// is the entry id, so repeated announcements of one mutation are recognisable.
func (e *Entry) OutcomeEvent() *shared.Event {
	typ := shared.EventCredited
	if e.Operation == shared.OperationDebit {
		typ = shared.EventDebited
	}
	evt := shared.NewOutcome(typ, e.TransferID, e.AccountNumber, e.Amount, e.Operation, "", e.CorrelationID)
	evt.EventID = e.EntryID
	return evt
}

// IsPublished reports whether the outcome has been handed to the bus.
func (e *Entry) IsPublished() bool {
	return e.PublishStatus == shared.OutboxStatusProcessed
}

func (e *Entry) MarkPublished() {
	e.PublishStatus = shared.OutboxStatusProcessed
	now := time.Now().UTC()
	e.PublishedAt = &now
}

func (e *Entry) IncrementAttempts() {
	e.PublishAttempts++
}

func (e *Entry) MarkAsFailed() {
	e.PublishStatus = shared.OutboxStatusFailedToPublish
}
