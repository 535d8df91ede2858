package service

import (
	"context"
	"log/slog"

	ledgerservice "github.com/banking-transfer-saga/internal/account_service/service"
	"github.com/banking-transfer-saga/internal/domain/account"
	"github.com/banking-transfer-saga/internal/domain/ledger"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AccountServiceImpl implements the AccountService interface
type AccountServiceImpl struct {
	accountRepo account.Repository
	entryRepo   ledger.Repository
	ledger      ledgerservice.LedgerService
	logger      *slog.Logger
}

// NewAccountService creates a new account service
func NewAccountService(logger *slog.Logger, accountRepo account.Repository, entryRepo ledger.Repository, ledgerService ledgerservice.LedgerService) AccountService {
	return &AccountServiceImpl{
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		ledger:      ledgerService,
		logger:      logger,
	}
}

// CreateAccount opens the account; the repository reports a taken number.
func (s *AccountServiceImpl) CreateAccount(ctx context.Context, number string, initialBalance decimal.Decimal) (*account.Account, error) {
	acc, err := account.NewAccount(number, initialBalance)
	if err != nil {
		return nil, err
	}

	if err := s.accountRepo.Create(ctx, acc); err != nil {
		return nil, err
	}

	s.logger.Info("Account created", "account", acc.Number, "balance", acc.Balance.String())
	return acc, nil
}

// GetAccount retrieves an account by its number, returns ErrAccountNotFound if not found
func (s *AccountServiceImpl) GetAccount(ctx context.Context, number string) (*account.Account, error) {
	return s.accountRepo.GetByNumber(ctx, number)
}

// Debit withdraws amount through the ledger without a transfer id.
func (s *AccountServiceImpl) Debit(ctx context.Context, number string, amount decimal.Decimal, correlationID string) (*ledger.Entry, error) {
	return s.ledger.Debit(ctx, directRequest(number, amount, shared.OperationDebit, correlationID))
}

// Credit deposits amount through the ledger without a transfer id.
func (s *AccountServiceImpl) Credit(ctx context.Context, number string, amount decimal.Decimal, correlationID string) (*ledger.Entry, error) {
	return s.ledger.Credit(ctx, directRequest(number, amount, shared.OperationCredit, correlationID))
}

// ListEntries returns ErrAccountNotFound for unknown accounts instead of an empty page.
func (s *AccountServiceImpl) ListEntries(ctx context.Context, number string, page, perPage int) ([]*ledger.Entry, int64, error) {
	if _, err := s.accountRepo.GetByNumber(ctx, number); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	entries, err := s.entryRepo.GetByAccount(ctx, number, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.entryRepo.CountByAccount(ctx, number)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func directRequest(number string, amount decimal.Decimal, op shared.Operation, correlationID string) *shared.LedgerRequest {
	return &shared.LedgerRequest{
		AccountNumber: number,
		Amount:        amount,
		Operation:     op,
		CorrelationID: correlationID,
	}
}
