// Package outbox_relay publishes saga messages the coordinator committed but could not
// hand to the bus itself.
package outbox_relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/banking-transfer-saga/internal/config"
	"github.com/banking-transfer-saga/internal/domain/outbox"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/banking-transfer-saga/internal/logger"
	"github.com/banking-transfer-saga/internal/platform/messaging/producers"
)

// Relay processes pending outbox messages
type Relay struct {
	outboxRepo       outbox.Repository
	publisher        producers.MessagePublisher
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
	gracePeriod      time.Duration
	now              func() time.Time
}

func NewRelay(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	publisher producers.MessagePublisher,
	logger *slog.Logger,
) *Relay {
	return &Relay{
		outboxRepo:       outboxRepo,
		publisher:        publisher,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
		gracePeriod:      cfg.GracePeriod,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Start begins polling until context is canceled
func (r *Relay) Start(ctx context.Context) {
	r.logger.Info("Starting outbox relay",
		"poll_interval", r.pollInterval.String(),
		"batch_size", r.batchSize,
		"max_retry_attempts", r.maxRetryAttempts,
		"grace_period", r.gracePeriod.String(),
	)
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay stopping due to context cancellation.")
			return
		case <-ticker.C:
			r.logger.Debug("Outbox relay tick: processing pending messages")
			if err := r.processPendingMessages(ctx); err != nil {
				r.logger.Error("Error during batch processing of pending outbox messages", "error", err)
			}
		}
	}
}

// processPendingMessages skips rows younger than the grace period; the coordinator is
// probably still flushing them.
func (r *Relay) processPendingMessages(ctx context.Context) error {
	messages, err := r.outboxRepo.GetPending(ctx, r.now().Add(-r.gracePeriod), r.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending outbox messages: %w", err)
	}

	if len(messages) == 0 {
		r.logger.Debug("No pending outbox messages found.")
		return nil
	}

	r.logger.Info("Fetched pending outbox messages", "count", len(messages))

	for _, msg := range messages {
		log := r.logger
		if evt, err := msg.Event(); err == nil {
			log = logger.WithCorrelation(log, evt.CorrelationID)
		}

		if err := r.publisher.Publish(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
			log.Error("Failed to relay outbox message",
				"outbox_id", msg.ID,
				"transfer_id", msg.TransferID.String(),
				"event_type", string(msg.EventType),
				"current_attempts", msg.Attempts,
				"error", err,
			)

			if errInc := r.outboxRepo.IncrementAttempts(ctx, msg.ID); errInc != nil {
				log.Error("Failed to increment attempts for outbox message", "outbox_id", msg.ID, "error", errInc)
				continue
			}

			if msg.Attempts+1 >= r.maxRetryAttempts {
				log.Warn("Max retry attempts reached for outbox message, marking as FAILED_TO_PUBLISH",
					"outbox_id", msg.ID,
					"transfer_id", msg.TransferID.String(),
					"attempts_made", msg.Attempts+1,
				)
				if errUpdate := r.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); errUpdate != nil {
					log.Error("Failed to update outbox status to FAILED_TO_PUBLISH after max retries", "outbox_id", msg.ID, "error", errUpdate)
				}
			}
			continue
		}

		if err := r.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusProcessed); err != nil {
			// the message goes out again on the next tick; consumers drop the duplicate
			log.Error("Outbox message relayed but not marked processed", "outbox_id", msg.ID, "error", err)
			continue
		}
		log.Info("Relayed outbox message",
			"outbox_id", msg.ID,
			"transfer_id", msg.TransferID.String(),
			"event_type", string(msg.EventType),
			"topic", msg.Topic,
		)
	}
	return nil
}
