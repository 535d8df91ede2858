package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/banking-transfer-saga/internal/account_service/service"
	"github.com/banking-transfer-saga/internal/domain/ledger"
	"github.com/banking-transfer-saga/internal/domain/shared"
)

type IdempotencyCheckerImpl struct {
	entryRepo ledger.Repository
	logger    *slog.Logger
}

func NewIdempotencyChecker(entryRepo ledger.Repository, logger *slog.Logger) service.IdempotencyChecker {
	return &IdempotencyCheckerImpl{
		entryRepo: entryRepo,
		logger:    logger,
	}
}

// FindApplied returns the entry already recorded for the request's transfer and
// operation, or nil when the command has not been applied yet.
func (c *IdempotencyCheckerImpl) FindApplied(ctx context.Context, request *shared.LedgerRequest) (*ledger.Entry, error) {
	entry, err := c.entryRepo.GetByTransferOperation(ctx, request.TransferID, request.Operation)
	if err != nil {
		if errors.Is(err, ledger.ErrEntryNotFound{}) {
			return nil, nil
		}
		c.logger.Error("Failed to check for existing ledger entry",
			"transfer_id", request.TransferID.String(),
			"operation", string(request.Operation),
			"error", err,
		)
		return nil, fmt.Errorf("failed to check idempotency for transfer %s: %w", request.TransferID.String(), err)
	}

	return entry, nil
}
