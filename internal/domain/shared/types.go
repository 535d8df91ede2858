package shared

import "errors"

var (
	// ErrEventPublishFailure marks an operation whose outcome event could not be handed to the bus.
	// The state change that preceded it is durable; the announcement is retried by a sweep.
	ErrEventPublishFailure = errors.New("event publish failure")

	// ErrNoMatchingSaga is returned when an outcome event cannot be correlated to a transfer.
	ErrNoMatchingSaga = errors.New("no matching saga")

	ErrInvalidEvent = errors.New("invalid event")
)

// Operation identifies the balance mutation a ledger entry or command stands for.
type Operation string

const (
	OperationDebit      Operation = "DEBIT"
	OperationCredit     Operation = "CREDIT"
	OperationCompensate Operation = "COMPENSATE" // a credit that reverses an earlier debit
)

// IsCredit reports whether the operation increases the balance.
func (o Operation) IsCredit() bool {
	return o == OperationCredit || o == OperationCompensate
}

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	switch o {
	case OperationDebit, OperationCredit, OperationCompensate:
		return true
	}
	return false
}

// FailureReason defines why a ledger operation or transfer failed
type FailureReason string

const (
	FailureReasonAccountNotFound   FailureReason = "ACCOUNT_NOT_FOUND"
	FailureReasonInsufficientFunds FailureReason = "INSUFFICIENT_FUNDS"
	FailureReasonInvalidAmount     FailureReason = "INVALID_AMOUNT"
	FailureReasonInvalidRequest    FailureReason = "INVALID_REQUEST"
	FailureReasonTimeout           FailureReason = "TIMEOUT"
	FailureReasonUnknownError      FailureReason = "UNKNOWN_ERROR"
)

// OutboxStatus defines message publishing states. It is shared by the saga command
// outbox and the ledger change log.
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)
