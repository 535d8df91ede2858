// Package timeout fails transfers that stay open past their deadline.
package timeout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/banking-transfer-saga/internal/config"
	"github.com/banking-transfer-saga/internal/domain/transfer"
	"github.com/google/uuid"
)

// Expirer fails one transfer if it is still open past its deadline
type Expirer interface {
	Expire(ctx context.Context, transferID uuid.UUID) error
}

// Sweeper periodically looks for PENDING and DEBITED transfers past their deadline
type Sweeper struct {
	transfers    transfer.Repository
	expirer      Expirer
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int
	now          func() time.Time
}

func NewSweeper(cfg *config.SagaConfig, transfers transfer.Repository, expirer Expirer, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		transfers:    transfers,
		expirer:      expirer,
		logger:       logger,
		pollInterval: cfg.SweepInterval,
		batchSize:    cfg.SweepBatchSize,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Start sweeps on every tick until ctx is canceled
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting transfer timeout sweep",
		"poll_interval", s.pollInterval.String(),
		"batch_size", s.batchSize,
	)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Transfer timeout sweep stopping due to context cancellation.")
			return
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				s.logger.Error("Error during transfer timeout sweep", "error", err)
			}
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) error {
	ids, err := s.transfers.ListExpired(ctx, s.now(), s.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list expired transfers: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	s.logger.Info("Expiring overdue transfers", "count", len(ids))
	for _, id := range ids {
		if err := s.expirer.Expire(ctx, id); err != nil {
			s.logger.Error("Failed to expire transfer", "transfer_id", id.String(), "error", err)
		}
	}
	return nil
}
