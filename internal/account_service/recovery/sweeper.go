// Package recovery re-announces ledger outcomes whose publication was never confirmed.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/banking-transfer-saga/internal/account_service/service"
	"github.com/banking-transfer-saga/internal/config"
	"github.com/banking-transfer-saga/internal/domain/ledger"
	"github.com/banking-transfer-saga/internal/logger"
)

// Sweeper walks the change log for PENDING entries and announces them again
type Sweeper struct {
	entryRepo        ledger.Repository
	announcer        service.OutcomeAnnouncer
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
	gracePeriod      time.Duration
	now              func() time.Time
}

func NewSweeper(
	cfg *config.RecoveryConfig,
	entryRepo ledger.Repository,
	announcer service.OutcomeAnnouncer,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		entryRepo:        entryRepo,
		announcer:        announcer,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
		gracePeriod:      cfg.GracePeriod,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Start sweeps on every tick until ctx is canceled
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting change log recovery sweep",
		"poll_interval", s.pollInterval.String(),
		"batch_size", s.batchSize,
		"max_retry_attempts", s.maxRetryAttempts,
		"grace_period", s.gracePeriod.String(),
	)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Change log recovery sweep stopping due to context cancellation.")
			return
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				s.logger.Error("Error during change log recovery sweep", "error", err)
			}
		}
	}
}

// sweep leaves entries younger than the grace period to the request that created them.
func (s *Sweeper) sweep(ctx context.Context) error {
	entries, err := s.entryRepo.GetUnpublished(ctx, s.now().Add(-s.gracePeriod), s.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get unpublished ledger entries: %w", err)
	}

	if len(entries) == 0 {
		s.logger.Debug("No unpublished ledger entries found.")
		return nil
	}

	s.logger.Info("Fetched unpublished ledger entries", "count", len(entries))

	for _, entry := range entries {
		log := logger.WithCorrelation(s.logger, entry.CorrelationID)

		if err := s.announcer.Announce(ctx, entry); err != nil {
			log.Error("Failed to re-announce ledger outcome",
				"entry_id", entry.EntryID.String(),
				"transfer_id", entry.TransferID.String(),
				"current_attempts", entry.PublishAttempts,
				"error", err,
			)

			if errInc := s.entryRepo.IncrementPublishAttempts(ctx, entry.ID); errInc != nil {
				log.Error("Failed to increment publish attempts", "entry_id", entry.EntryID.String(), "error", errInc)
				continue
			}

			if entry.PublishAttempts+1 >= s.maxRetryAttempts {
				log.Warn("Max retry attempts reached for ledger entry, marking as FAILED_TO_PUBLISH",
					"entry_id", entry.EntryID.String(),
					"transfer_id", entry.TransferID.String(),
					"attempts_made", entry.PublishAttempts+1,
				)
				if errMark := s.entryRepo.MarkFailedToPublish(ctx, entry.ID); errMark != nil {
					log.Error("Failed to mark ledger entry FAILED_TO_PUBLISH", "entry_id", entry.EntryID.String(), "error", errMark)
				}
			}
			continue
		}
		log.Info("Re-announced ledger outcome", "entry_id", entry.EntryID.String(), "transfer_id", entry.TransferID.String())
	}
	return nil
}
