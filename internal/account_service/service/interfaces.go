package service

import (
	"context"

	"github.com/banking-transfer-saga/internal/domain/account"
	"github.com/banking-transfer-saga/internal/domain/ledger"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/jackc/pgx/v5"
)

// LedgerService applies balance mutations. A returned entry with a nil error means the
// mutation committed and its outcome was announced on the bus.
type LedgerService interface {
	Debit(ctx context.Context, request *shared.LedgerRequest) (*ledger.Entry, error)
	Credit(ctx context.Context, request *shared.LedgerRequest) (*ledger.Entry, error)
}

// IdempotencyChecker finds the entry an earlier delivery of the same transfer command produced
type IdempotencyChecker interface {
	FindApplied(ctx context.Context, request *shared.LedgerRequest) (*ledger.Entry, error)
}

// AccountManager locks the account and applies the mutation inside tx
type AccountManager interface {
	LockAndApply(ctx context.Context, tx pgx.Tx, request *shared.LedgerRequest) (*account.Account, error)
}

// EntryRecorder appends the change log entry of a mutation inside tx
type EntryRecorder interface {
	Record(ctx context.Context, tx pgx.Tx, request *shared.LedgerRequest, updated *account.Account) (*ledger.Entry, error)
}

// OutcomeAnnouncer publishes the outcome of a committed entry and marks it published.
// Its errors wrap shared.ErrEventPublishFailure.
type OutcomeAnnouncer interface {
	Announce(ctx context.Context, entry *ledger.Entry) error
}
