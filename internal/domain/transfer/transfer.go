// Package transfer holds the saga record of a two-party transfer and its state machine.
//
//	PENDING --debited--> DEBITED --credited--> COMPLETED
//	PENDING --debit-failed/timeout--> FAILED
//	DEBITED --credit-failed/timeout--> FAILED (compensation PENDING)
//
// COMPLETED and FAILED are terminal. A FAILED transfer only records the progress of
// its compensation afterwards.
package transfer

import (
	"strings"
	"time"

	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer is the coordinator's record of one transfer. ID is the store's sequence and
// orders records by creation; TransferID is the correlation id carried by every event.
type Transfer struct {
	ID                 int64                `json:"id"`
	TransferID         uuid.UUID            `json:"transfer_id"`
	SourceAccount      string               `json:"source_account"`
	DestinationAccount string               `json:"destination_account"`
	Amount             decimal.Decimal      `json:"amount"`
	State              State                `json:"state"`
	FailureReason      shared.FailureReason `json:"failure_reason,omitempty"`
	Compensation       CompensationStatus   `json:"compensation"`
	CorrelationID      string               `json:"correlation_id,omitempty"`
	DeadlineAt         time.Time            `json:"deadline_at"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// NewParams carries what a transfer request supplies
type NewParams struct {
	TransferID         uuid.UUID
	SourceAccount      string
	DestinationAccount string
	Amount             decimal.Decimal
	CorrelationID      string
	Now                time.Time
	Timeout            time.Duration
}

// Validate checks the request without building a record.
func (p NewParams) Validate() error {
	if p.TransferID == uuid.Nil {
		return ErrInvalidTransferID
	}
	if strings.TrimSpace(p.SourceAccount) == "" || strings.TrimSpace(p.DestinationAccount) == "" {
		return ErrMissingAccount
	}
	if p.SourceAccount == p.DestinationAccount {
		return ErrSameAccount
	}
	if !shared.ValidAmount(p.Amount) {
		return ErrInvalidAmount
	}
	return nil
}

// New opens a PENDING transfer.
func New(p NewParams) (*Transfer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return newRecord(p, StatePending, ""), nil
}

// Rejected records a request that failed validation as a FAILED transfer, so callers
// polling by transfer id see an outcome.
func Rejected(p NewParams) *Transfer {
	if !shared.RepresentableAmount(p.Amount) {
		// amount column cannot hold it
		p.Amount = decimal.Zero
	}
	return newRecord(p, StateFailed, shared.FailureReasonInvalidRequest)
}

func newRecord(p NewParams, state State, reason shared.FailureReason) *Transfer {
	if p.Now.IsZero() {
		p.Now = time.Now().UTC()
	}
	return &Transfer{
		TransferID:         p.TransferID,
		SourceAccount:      strings.TrimSpace(p.SourceAccount),
		DestinationAccount: strings.TrimSpace(p.DestinationAccount),
		Amount:             p.Amount,
		State:              state,
		FailureReason:      reason,
		Compensation:       CompensationNone,
		CorrelationID:      p.CorrelationID,
		DeadlineAt:         p.Now.Add(p.Timeout),
		CreatedAt:          p.Now,
		UpdatedAt:          p.Now,
	}
}

// MarkDebited records that the source account has been debited.
func (t *Transfer) MarkDebited(now time.Time) error {
	if err := t.expect(StatePending); err != nil {
		return err
	}
	t.State = StateDebited
	t.touch(now)
	return nil
}

// MarkCompleted records that the destination account has been credited.
func (t *Transfer) MarkCompleted(now time.Time) error {
	if err := t.expect(StateDebited); err != nil {
		return err
	}
	t.State = StateCompleted
	t.touch(now)
	return nil
}

// Fail moves an open transfer to FAILED. It reports whether the source was already
// debited and therefore needs a compensating credit.
func (t *Transfer) Fail(reason shared.FailureReason, now time.Time) (bool, error) {
	if t.State.IsTerminal() {
		return false, ErrAlreadyFinalized
	}
	needsCompensation := t.State == StateDebited
	t.State = StateFailed
	t.FailureReason = reason
	if needsCompensation {
		t.Compensation = CompensationPending
	}
	t.touch(now)
	return needsCompensation, nil
}

// RequestCompensation is used when a debit is confirmed after the transfer already
// failed without one, e.g. after a timeout or a redelivered debit command.
func (t *Transfer) RequestCompensation(now time.Time) error {
	if t.State != StateFailed || t.Compensation != CompensationNone {
		return ErrInvalidStateTransition
	}
	t.Compensation = CompensationPending
	t.touch(now)
	return nil
}

// MarkCompensated records that the compensating credit was applied.
func (t *Transfer) MarkCompensated(now time.Time) error {
	if t.State != StateFailed || t.Compensation != CompensationPending {
		return ErrInvalidStateTransition
	}
	t.Compensation = CompensationCompleted
	t.touch(now)
	return nil
}

// MarkCompensationFailed records that the compensating credit was rejected.
func (t *Transfer) MarkCompensationFailed(now time.Time) error {
	if t.State != StateFailed || t.Compensation != CompensationPending {
		return ErrInvalidStateTransition
	}
	t.Compensation = CompensationFailed
	t.touch(now)
	return nil
}

// IsTerminal reports whether the transfer reached COMPLETED or FAILED.
func (t *Transfer) IsTerminal() bool {
	return t.State.IsTerminal()
}

// Expired reports whether an open transfer has outlived its deadline.
func (t *Transfer) Expired(now time.Time) bool {
	return !t.IsTerminal() && now.After(t.DeadlineAt)
}

func (t *Transfer) expect(s State) error {
	if t.State.IsTerminal() {
		return ErrAlreadyFinalized
	}
	if t.State != s {
		return ErrInvalidStateTransition
	}
	return nil
}

func (t *Transfer) touch(now time.Time) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	t.UpdatedAt = now
}
