package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/banking-transfer-saga/internal/account_service/service"
	"github.com/banking-transfer-saga/internal/domain/account"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/jackc/pgx/v5"
)

// AccountManagerImpl implements the AccountManager interface
type AccountManagerImpl struct {
	accountRepo account.Repository
	logger      *slog.Logger
}

// NewAccountManager creates a new AccountManagerImpl
func NewAccountManager(accountRepo account.Repository, logger *slog.Logger) service.AccountManager {
	return &AccountManagerImpl{
		accountRepo: accountRepo,
		logger:      logger,
	}
}

// LockAndApply locks the account row, applies the mutation and persists the new balance.
// The row lock is held until tx ends, so mutations of one account serialize.
func (m *AccountManagerImpl) LockAndApply(ctx context.Context, tx pgx.Tx, request *shared.LedgerRequest) (*account.Account, error) {
	logger := m.logger
	if request.CorrelationID != "" {
		logger = m.logger.With("correlation_id", request.CorrelationID)
	}

	accountRepoTx := m.accountRepo.WithTx(tx)

	locked, err := accountRepoTx.LockForUpdate(ctx, request.AccountNumber)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound{}) {
			logger.Warn("Account not found for lock", "account", request.AccountNumber, "transfer_id", request.TransferID.String())
			return nil, err
		}
		logger.Error("Failed to lock account", "account", request.AccountNumber, "error", err)
		return nil, fmt.Errorf("failed to lock account %s: %w", request.AccountNumber, err)
	}

	if request.Operation.IsCredit() {
		err = locked.Credit(request.Amount)
	} else {
		err = locked.Debit(request.Amount)
	}
	if err != nil {
		logger.Warn("Failed to apply mutation to account",
			"account", request.AccountNumber,
			"operation", string(request.Operation),
			"balance", locked.Balance.String(),
			"amount", request.Amount.String(),
			"error", err,
		)
		return nil, err
	}

	if err = accountRepoTx.Update(ctx, locked); err != nil {
		var concurrent account.ErrConcurrentModification
		if errors.As(err, &concurrent) {
			logger.Warn("Concurrent modification on account update", "account", locked.Number)
		} else {
			logger.Error("Failed to update account in DB", "account", locked.Number, "error", err)
		}
		return nil, err
	}

	logger.Debug("Account updated in DB",
		"account", locked.Number,
		"balance", locked.Balance.String(),
		"version", locked.Version,
	)
	return locked, nil
}
