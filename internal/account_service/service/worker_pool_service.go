package service

import (
	"context"
	"log/slog"

	"github.com/banking-transfer-saga/internal/domain/ledger"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/banking-transfer-saga/internal/platform/workerpool"
)

// WorkerPoolLedgerService runs ledger calls on the keyed pool. Calls for one account
// share a lane, so they are applied one at a time in this process.
type WorkerPoolLedgerService struct {
	baseService LedgerService
	pool        *workerpool.KeyedPool
	logger      *slog.Logger
}

func NewWorkerPoolLedgerService(
	baseService LedgerService,
	pool *workerpool.KeyedPool,
	logger *slog.Logger,
) *WorkerPoolLedgerService {
	return &WorkerPoolLedgerService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
	}
}

func (s *WorkerPoolLedgerService) Debit(ctx context.Context, request *shared.LedgerRequest) (*ledger.Entry, error) {
	return s.submit(ctx, request, s.baseService.Debit)
}

func (s *WorkerPoolLedgerService) Credit(ctx context.Context, request *shared.LedgerRequest) (*ledger.Entry, error) {
	return s.submit(ctx, request, s.baseService.Credit)
}

func (s *WorkerPoolLedgerService) submit(
	ctx context.Context,
	request *shared.LedgerRequest,
	op func(context.Context, *shared.LedgerRequest) (*ledger.Entry, error),
) (*ledger.Entry, error) {
	// Create a copy of the request to avoid data races
	requestCopy := *request

	// buffered so a worker finishing after ctx ended never blocks
	done := make(chan *ledger.Entry, 1)
	err := s.pool.Run(ctx, requestCopy.AccountNumber, func(ctx context.Context) error {
		entry, opErr := op(ctx, &requestCopy)
		done <- entry
		return opErr
	})
	if err != nil {
		s.logger.Debug("Ledger call finished with error",
			"account", requestCopy.AccountNumber,
			"transfer_id", requestCopy.TransferID.String(),
			"error", err,
		)
	}

	select {
	case entry := <-done:
		return entry, err
	default:
		return nil, err
	}
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolLedgerService) Shutdown() {
	s.pool.Shutdown()
}
