package shared

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names every message that travels over the bus.
type EventType string

const (
	EventTransferRequested EventType = "transfer-requested"

	// commands, consumed by the account service
	EventDebitCommand      EventType = "debit-command"
	EventCreditCommand     EventType = "credit-command"
	EventCompensateCommand EventType = "compensate-command"

	// outcomes, consumed by the transaction service
	EventDebited        EventType = "debited"
	EventDebitFailed    EventType = "debit-failed"
	EventCredited       EventType = "credited"
	EventCreditFailed   EventType = "credit-failed"
	EventTransferFailed EventType = "transfer-failed"
)

// IsCommand reports whether t instructs the account service to mutate a balance.
func (t EventType) IsCommand() bool {
	switch t {
	case EventDebitCommand, EventCreditCommand, EventCompensateCommand:
		return true
	}
	return false
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventTransferRequested, EventDebitCommand, EventCreditCommand, EventCompensateCommand,
		EventDebited, EventDebitFailed, EventCredited, EventCreditFailed, EventTransferFailed:
		return true
	}
	return false
}

// CommandOperation returns the ledger operation a command asks for.
func (t EventType) CommandOperation() (Operation, bool) {
	switch t {
	case EventDebitCommand:
		return OperationDebit, true
	case EventCreditCommand:
		return OperationCredit, true
	case EventCompensateCommand:
		return OperationCompensate, true
	}
	return "", false
}

// Event is the envelope of every message. TransferID is uuid.Nil for direct ledger
// operations and for producers that predate transfer ids.
type Event struct {
	EventID            uuid.UUID       `json:"event_id"`
	Type               EventType       `json:"type"`
	TransferID         uuid.UUID       `json:"transfer_id"`
	AccountNumber      string          `json:"account_number"`
	DestinationAccount string          `json:"destination_account,omitempty"`
	Amount             decimal.Decimal `json:"amount"`
	Operation          Operation       `json:"operation,omitempty"`
	Reason             FailureReason   `json:"reason,omitempty"`
	CorrelationID      string          `json:"correlation_id,omitempty"`
	OccurredAt         time.Time       `json:"occurred_at"`
}

// NewTransferRequested builds the request that opens a saga. AccountNumber carries the source.
func NewTransferRequested(transferID uuid.UUID, source, destination string, amount decimal.Decimal, correlationID string) *Event {
	return &Event{
		EventID:            uuid.New(),
		Type:               EventTransferRequested,
		TransferID:         transferID,
		AccountNumber:      source,
		DestinationAccount: destination,
		Amount:             amount,
		CorrelationID:      correlationID,
		OccurredAt:         time.Now().UTC(),
	}
}

// NewCommand builds a debit, credit or compensate command for one account.
func NewCommand(op Operation, transferID uuid.UUID, account string, amount decimal.Decimal, correlationID string) *Event {
	var typ EventType
	switch op {
	case OperationDebit:
		typ = EventDebitCommand
	case OperationCompensate:
		typ = EventCompensateCommand
	default:
		typ = EventCreditCommand
	}
	return &Event{
		EventID:       uuid.New(),
		Type:          typ,
		TransferID:    transferID,
		AccountNumber: account,
		Amount:        amount,
		Operation:     op,
		CorrelationID: correlationID,
		OccurredAt:    time.Now().UTC(),
	}
}

// NewOutcome builds an event announcing what happened to an account.
func NewOutcome(typ EventType, transferID uuid.UUID, account string, amount decimal.Decimal, op Operation, reason FailureReason, correlationID string) *Event {
	return &Event{
		EventID:       uuid.New(),
		Type:          typ,
		TransferID:    transferID,
		AccountNumber: account,
		Amount:        amount,
		Operation:     op,
		Reason:        reason,
		CorrelationID: correlationID,
		OccurredAt:    time.Now().UTC(),
	}
}

// HasTransfer reports whether the event carries a transfer id.
func (e *Event) HasTransfer() bool {
	return e.TransferID != uuid.Nil
}

// Key is the partition key: commands are ordered per account, everything the
// coordinator consumes is ordered per transfer.
func (e *Event) Key() string {
	if e.Type.IsCommand() || !e.HasTransfer() {
		return e.AccountNumber
	}
	return e.TransferID.String()
}

// Validate checks the fields every consumer relies on.
func (e *Event) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	if strings.TrimSpace(e.AccountNumber) == "" {
		return fmt.Errorf("%w: account number is required", ErrInvalidEvent)
	}
	if e.Type == EventTransferRequested && strings.TrimSpace(e.DestinationAccount) == "" {
		return fmt.Errorf("%w: destination account is required", ErrInvalidEvent)
	}
	if e.Operation != "" && !e.Operation.Valid() {
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidEvent, e.Operation)
	}
	return nil
}

// Encode serializes the event as JSON.
func (e *Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent parses a bus payload. When the payload omits its type, the type the
// topic implies is used.
func DecodeEvent(data []byte, implied EventType) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if evt.Type == "" {
		evt.Type = implied
	}
	if implied != "" && evt.Type != implied {
		return nil, fmt.Errorf("%w: type %q received where %q was expected", ErrInvalidEvent, evt.Type, implied)
	}
	if evt.Operation == "" {
		if op, ok := evt.Type.CommandOperation(); ok {
			evt.Operation = op
		}
	}
	if err := evt.Validate(); err != nil {
		return nil, err
	}
	return &evt, nil
}
