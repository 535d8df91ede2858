package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/banking-transfer-saga/internal/account_service/service"
	"github.com/banking-transfer-saga/internal/domain/account"
	"github.com/banking-transfer-saga/internal/domain/ledger"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/jackc/pgx/v5"
)

type EntryRecorderImpl struct {
	entryRepo ledger.Repository
	logger    *slog.Logger
}

func NewEntryRecorder(entryRepo ledger.Repository, logger *slog.Logger) service.EntryRecorder {
	return &EntryRecorderImpl{
		entryRepo: entryRepo,
		logger:    logger,
	}
}

// Record appends a PENDING change log entry in the mutation's transaction. The entry is
// what the recovery sweep re-derives a lost outcome from.
func (r *EntryRecorderImpl) Record(ctx context.Context, tx pgx.Tx, request *shared.LedgerRequest, updated *account.Account) (*ledger.Entry, error) {
	entry := ledger.NewEntry(*request, updated.Balance)

	if err := r.entryRepo.WithTx(tx).Create(ctx, entry); err != nil {
		if errors.Is(err, ledger.ErrDuplicateEntry{}) {
			return nil, err
		}
		r.logger.Error("Failed to record ledger entry",
			"account", request.AccountNumber,
			"transfer_id", request.TransferID.String(),
			"error", err,
		)
		return nil, fmt.Errorf("failed to record ledger entry for account %s: %w", request.AccountNumber, err)
	}

	return entry, nil
}
