package saga

import (
	"time"

	"github.com/banking-transfer-saga/internal/domain/reconciliation"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/banking-transfer-saga/internal/domain/transfer"
)

// decision is what an event does to a locked transfer: a state change with the events
// it emits, an event to keep for reconciliation, or nothing at all.
type decision struct {
	changed bool
	emit    []*shared.Event
	hold    string
	ignored string
}

func ignore(why string) decision {
	return decision{ignored: why}
}

func onDebited(t *transfer.Transfer, evt *shared.Event, now time.Time) (decision, error) {
	switch {
	case t.State == transfer.StatePending:
		if err := t.MarkDebited(now); err != nil {
			return decision{}, err
		}
		return decision{
			changed: true,
			emit:    []*shared.Event{creditCommand(t)},
		}, nil

	case t.State == transfer.StateFailed && t.Compensation == transfer.CompensationNone:
		// failed before any debit was recorded (timeout, or a rejected debit command
		// redelivered after the source was funded), so the money goes back
		if err := t.RequestCompensation(now); err != nil {
			return decision{}, err
		}
		return decision{
			changed: true,
			emit:    []*shared.Event{compensateCommand(t)},
		}, nil
	}
	return ignore("debit already recorded"), nil
}

func onDebitFailed(t *transfer.Transfer, evt *shared.Event, now time.Time) (decision, error) {
	if t.State != transfer.StatePending {
		return ignore("debit outcome already recorded"), nil
	}
	if _, err := t.Fail(reasonOf(evt), now); err != nil {
		return decision{}, err
	}
	return decision{
		changed: true,
		emit:    []*shared.Event{transferFailed(t)},
	}, nil
}

func onCredited(t *transfer.Transfer, evt *shared.Event, now time.Time) (decision, error) {
	if isCompensation(t, evt) {
		if t.State != transfer.StateFailed || t.Compensation != transfer.CompensationPending {
			return ignore("compensation already recorded"), nil
		}
		if err := t.MarkCompensated(now); err != nil {
			return decision{}, err
		}
		return decision{changed: true}, nil
	}

	switch t.State {
	case transfer.StateDebited:
		if err := t.MarkCompleted(now); err != nil {
			return decision{}, err
		}
		return decision{changed: true}, nil
	case transfer.StateFailed:
		// money reached the destination of a transfer that was already failed
		return decision{hold: reconciliation.ReasonLateCredit}, nil
	}
	return ignore("credit already recorded"), nil
}

func onCreditFailed(t *transfer.Transfer, evt *shared.Event, now time.Time) (decision, error) {
	if isCompensation(t, evt) {
		if t.State == transfer.StateFailed && t.Compensation == transfer.CompensationFailed {
			// held again on redelivery, the first hold may not have been written
			return decision{hold: reconciliation.ReasonCompensationFailed}, nil
		}
		if t.State != transfer.StateFailed || t.Compensation != transfer.CompensationPending {
			return ignore("compensation outcome already recorded"), nil
		}
		if err := t.MarkCompensationFailed(now); err != nil {
			return decision{}, err
		}
		return decision{changed: true, hold: reconciliation.ReasonCompensationFailed}, nil
	}

	if t.State != transfer.StateDebited {
		return ignore("credit outcome already recorded"), nil
	}
	needsCompensation, err := t.Fail(reasonOf(evt), now)
	if err != nil {
		return decision{}, err
	}
	d := decision{changed: true}
	if needsCompensation {
		d.emit = append(d.emit, compensateCommand(t))
	}
	d.emit = append(d.emit, transferFailed(t))
	return d, nil
}

// onTimeout fails an open transfer that outlived its deadline.
func onTimeout(t *transfer.Transfer, now time.Time) (decision, error) {
	if !t.Expired(now) {
		return ignore("transfer not expired"), nil
	}
	needsCompensation, err := t.Fail(shared.FailureReasonTimeout, now)
	if err != nil {
		return decision{}, err
	}
	d := decision{changed: true}
	if needsCompensation {
		d.emit = append(d.emit, compensateCommand(t))
	}
	d.emit = append(d.emit, transferFailed(t))
	return d, nil
}

// isCompensation tells a reversal of the source's debit from the saga's credit. Events
// without an operation are judged by the account they name.
func isCompensation(t *transfer.Transfer, evt *shared.Event) bool {
	switch evt.Operation {
	case shared.OperationCompensate:
		return true
	case shared.OperationCredit:
		return false
	}
	return t.State == transfer.StateFailed && evt.AccountNumber == t.SourceAccount
}

func reasonOf(evt *shared.Event) shared.FailureReason {
	if evt.Reason == "" {
		return shared.FailureReasonUnknownError
	}
	return evt.Reason
}

func creditCommand(t *transfer.Transfer) *shared.Event {
	return shared.NewCommand(shared.OperationCredit, t.TransferID, t.DestinationAccount, t.Amount, t.CorrelationID)
}

func compensateCommand(t *transfer.Transfer) *shared.Event {
	return shared.NewCommand(shared.OperationCompensate, t.TransferID, t.SourceAccount, t.Amount, t.CorrelationID)
}

func transferFailed(t *transfer.Transfer) *shared.Event {
	evt := shared.NewOutcome(shared.EventTransferFailed, t.TransferID, t.SourceAccount, t.Amount, "", t.FailureReason, t.CorrelationID)
	evt.DestinationAccount = t.DestinationAccount
	return evt
}
