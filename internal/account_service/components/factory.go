package components

import (
	"log/slog"

	"github.com/banking-transfer-saga/internal/account_service/service"
	"github.com/banking-transfer-saga/internal/config"
	"github.com/banking-transfer-saga/internal/domain/account"
	"github.com/banking-transfer-saga/internal/domain/ledger"
	"github.com/banking-transfer-saga/internal/platform/persistence"
	"github.com/banking-transfer-saga/internal/platform/workerpool"
)

// CreateLedgerService creates a new LedgerService with all its dependencies. When the
// worker pool cannot be created it falls back to the unpooled service.
func CreateLedgerService(
	db persistence.TxBeginner,
	accountRepo account.Repository,
	entryRepo ledger.Repository,
	announcer service.OutcomeAnnouncer,
	logger *slog.Logger,
	cfg *config.Config,
) service.LedgerService {
	baseService := service.NewLedgerService(
		db,
		NewIdempotencyChecker(entryRepo, logger),
		NewAccountManager(accountRepo, logger),
		NewEntryRecorder(entryRepo, logger),
		announcer,
		logger,
	)

	pool, err := workerpool.New(workerpool.Config{
		Size:  cfg.WorkerPool.Size,
		Lanes: cfg.WorkerPool.Lanes,
	}, logger.With("component", "worker_pool"))
	if err != nil {
		logger.Error("Failed to create worker pool, falling back to base service", "error", err)
		return baseService
	}

	logger.Info("Created worker pool ledger service", "pool_size", cfg.WorkerPool.Size, "lanes", cfg.WorkerPool.Lanes)
	return service.NewWorkerPoolLedgerService(baseService, pool, logger.With("component", "worker_pool"))
}
