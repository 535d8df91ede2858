package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/banking-transfer-saga/internal/domain/account"
	"github.com/banking-transfer-saga/internal/domain/ledger"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/banking-transfer-saga/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type LedgerServiceImpl struct {
	db             persistence.TxBeginner
	idempotency    IdempotencyChecker
	accountManager AccountManager
	entryRecorder  EntryRecorder
	announcer      OutcomeAnnouncer
	logger         *slog.Logger
}

func NewLedgerService(
	db persistence.TxBeginner,
	idempotency IdempotencyChecker,
	accountManager AccountManager,
	entryRecorder EntryRecorder,
	announcer OutcomeAnnouncer,
	logger *slog.Logger,
) LedgerService {
	return &LedgerServiceImpl{
		db:             db,
		idempotency:    idempotency,
		accountManager: accountManager,
		entryRecorder:  entryRecorder,
		announcer:      announcer,
		logger:         logger,
	}
}

// Debit withdraws request.Amount from the account.
func (s *LedgerServiceImpl) Debit(ctx context.Context, request *shared.LedgerRequest) (*ledger.Entry, error) {
	req := *request
	req.Operation = shared.OperationDebit
	return s.apply(ctx, &req)
}

// Credit deposits request.Amount. A COMPENSATE operation is kept so its outcome can be
// told apart downstream; any other operation becomes CREDIT.
func (s *LedgerServiceImpl) Credit(ctx context.Context, request *shared.LedgerRequest) (*ledger.Entry, error) {
	req := *request
	if !req.Operation.IsCredit() {
		req.Operation = shared.OperationCredit
	}
	return s.apply(ctx, &req)
}

// apply runs the two steps of a mutation: commit the balance change together with its
// change log entry, then announce the outcome.
func (s *LedgerServiceImpl) apply(ctx context.Context, request *shared.LedgerRequest) (*ledger.Entry, error) {
	logger := s.logger
	if request.CorrelationID != "" {
		logger = s.logger.With("correlation_id", request.CorrelationID)
	}

	if !shared.ValidAmount(request.Amount) {
		return nil, account.ErrInvalidAmount
	}

	if request.TransferID != uuid.Nil {
		existing, err := s.idempotency.FindApplied(ctx, request)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return s.reannounce(ctx, logger, existing)
		}
	}

	var entry *ledger.Entry
	err := persistence.WithTransaction(ctx, s.db, func(tx pgx.Tx) error {
		updated, err := s.accountManager.LockAndApply(ctx, tx, request)
		if err != nil {
			return err
		}
		entry, err = s.entryRecorder.Record(ctx, tx, request, updated)
		return err
	})
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateEntry{}) {
			// a concurrent delivery of the same command committed first
			existing, findErr := s.idempotency.FindApplied(ctx, request)
			if findErr != nil {
				return nil, findErr
			}
			if existing != nil {
				return s.reannounce(ctx, logger, existing)
			}
		}
		logger.Warn("Ledger mutation rejected",
			"account", request.AccountNumber,
			"operation", string(request.Operation),
			"transfer_id", request.TransferID.String(),
			"error", err,
		)
		return nil, err
	}

	logger.Info("Ledger mutation committed",
		"account", entry.AccountNumber,
		"operation", string(entry.Operation),
		"amount", entry.Amount.String(),
		"balance_after", entry.BalanceAfter.String(),
		"transfer_id", entry.TransferID.String(),
	)

	if err := s.announcer.Announce(ctx, entry); err != nil {
		return entry, err
	}
	return entry, nil
}

func (s *LedgerServiceImpl) reannounce(ctx context.Context, logger *slog.Logger, existing *ledger.Entry) (*ledger.Entry, error) {
	if existing.IsPublished() {
		logger.Info("Ledger command already applied, skipping",
			"transfer_id", existing.TransferID.String(),
			"operation", string(existing.Operation),
		)
		return existing, nil
	}

	logger.Info("Ledger command already applied but not announced, announcing again",
		"transfer_id", existing.TransferID.String(),
		"operation", string(existing.Operation),
	)
	if err := s.announcer.Announce(ctx, existing); err != nil {
		return existing, err
	}
	return existing, nil
}
