package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/banking-transfer-saga/internal/config"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/banking-transfer-saga/internal/domain/transfer"
)

// Correlator finds the transfer an outcome event belongs to and locks it in the
// repository's transaction. A miss is reported as shared.ErrNoMatchingSaga.
type Correlator interface {
	// Accepts reports whether the correlator can try to match evt at all
	Accepts(evt *shared.Event) bool
	Correlate(ctx context.Context, transfers transfer.Repository, evt *shared.Event) (*transfer.Transfer, error)
}

// NewCorrelator returns the correlator for a configured mode
func NewCorrelator(mode string) Correlator {
	if mode == config.CorrelationModeLegacy {
		return LegacyCorrelator{}
	}
	return ExactCorrelator{}
}

// ExactCorrelator matches by the transfer id every event carries.
type ExactCorrelator struct{}

func (ExactCorrelator) Accepts(evt *shared.Event) bool {
	return evt.HasTransfer()
}

func (ExactCorrelator) Correlate(ctx context.Context, transfers transfer.Repository, evt *shared.Event) (*transfer.Transfer, error) {
	if !evt.HasTransfer() {
		return nil, fmt.Errorf("%w: %s for account %s carries no transfer id", shared.ErrNoMatchingSaga, evt.Type, evt.AccountNumber)
	}
	return lockOrMiss(transfers.LockByTransferID(ctx, evt.TransferID))
}

// LegacyCorrelator accepts events from producers that do not send transfer ids. Those
// are matched to the most recent transfer of the named account that is waiting for
// this kind of event; events with an id are matched exactly.
type LegacyCorrelator struct{}

func (LegacyCorrelator) Accepts(*shared.Event) bool {
	return true
}

func (LegacyCorrelator) Correlate(ctx context.Context, transfers transfer.Repository, evt *shared.Event) (*transfer.Transfer, error) {
	if evt.HasTransfer() {
		return ExactCorrelator{}.Correlate(ctx, transfers, evt)
	}

	account := evt.AccountNumber
	switch evt.Type {
	case shared.EventDebited, shared.EventDebitFailed:
		return lockOrMiss(transfers.LockLatestBySource(ctx, account, transfer.StatePending))

	case shared.EventCredited, shared.EventCreditFailed:
		if evt.Operation == shared.OperationCompensate {
			return lockOrMiss(transfers.LockLatestBySource(ctx, account, transfer.StateFailed))
		}
		t, err := lockOrMiss(transfers.LockLatestByDestination(ctx, account, transfer.StateDebited))
		if errors.Is(err, shared.ErrNoMatchingSaga) && evt.Type == shared.EventCredited && evt.Operation == "" {
			// an untagged credit may be the reversal of a failed transfer's debit
			return lockOrMiss(transfers.LockLatestBySource(ctx, account, transfer.StateFailed))
		}
		return t, err
	}

	return nil, fmt.Errorf("%w: %s is not an outcome", shared.ErrNoMatchingSaga, evt.Type)
}

func lockOrMiss(t *transfer.Transfer, err error) (*transfer.Transfer, error) {
	if err != nil {
		if errors.Is(err, transfer.ErrTransferNotFound{}) {
			return nil, fmt.Errorf("%w: %v", shared.ErrNoMatchingSaga, err)
		}
		return nil, err
	}
	return t, nil
}
