package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/banking-transfer-saga/internal/account_service/service"
	"github.com/banking-transfer-saga/internal/domain/ledger"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/banking-transfer-saga/internal/platform/messaging/producers"
)

type OutcomeAnnouncerImpl struct {
	publisher producers.EventPublisher
	entryRepo ledger.Repository
	logger    *slog.Logger
}

func NewOutcomeAnnouncer(publisher producers.EventPublisher, entryRepo ledger.Repository, logger *slog.Logger) service.OutcomeAnnouncer {
	return &OutcomeAnnouncerImpl{
		publisher: publisher,
		entryRepo: entryRepo,
		logger:    logger,
	}
}

// Announce publishes the debited or credited outcome of entry and waits for the broker.
// Once published the entry is marked so the recovery sweep leaves it alone; failing to
// mark it only costs a duplicate announcement later.
func (a *OutcomeAnnouncerImpl) Announce(ctx context.Context, entry *ledger.Entry) error {
	logger := a.logger
	if entry.CorrelationID != "" {
		logger = a.logger.With("correlation_id", entry.CorrelationID)
	}

	evt := entry.OutcomeEvent()
	if err := a.publisher.PublishEvent(ctx, evt); err != nil {
		logger.Error("Failed to announce ledger outcome",
			"entry_id", entry.EntryID.String(),
			"account", entry.AccountNumber,
			"type", string(evt.Type),
			"error", err,
		)
		return fmt.Errorf("%w: %s for account %s: %v", shared.ErrEventPublishFailure, evt.Type, entry.AccountNumber, err)
	}

	if err := a.entryRepo.MarkPublished(ctx, entry.ID); err != nil {
		logger.Error("Outcome announced but entry not marked published",
			"entry_id", entry.EntryID.String(),
			"error", err,
		)
	} else {
		entry.MarkPublished()
	}

	logger.Info("Ledger outcome announced",
		"entry_id", entry.EntryID.String(),
		"account", entry.AccountNumber,
		"type", string(evt.Type),
		"transfer_id", entry.TransferID.String(),
	)
	return nil
}
