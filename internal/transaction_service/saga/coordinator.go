// Package saga drives every transfer through its states in reaction to the outcomes
// the account service announces.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/banking-transfer-saga/internal/domain/outbox"
	"github.com/banking-transfer-saga/internal/domain/reconciliation"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/banking-transfer-saga/internal/domain/transfer"
	"github.com/banking-transfer-saga/internal/logger"
	"github.com/banking-transfer-saga/internal/platform/messaging"
	"github.com/banking-transfer-saga/internal/platform/messaging/producers"
	"github.com/banking-transfer-saga/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type decideFunc func(t *transfer.Transfer, evt *shared.Event, now time.Time) (decision, error)

// Coordinator owns the saga store. Every transition locks the transfer, writes the new
// state and the messages it emits in one transaction, then publishes those messages.
type Coordinator struct {
	db         persistence.TxBeginner
	transfers  transfer.Repository
	outbox     outbox.Repository
	history    transfer.HistoryRepository
	unmatched  reconciliation.Repository
	correlator Correlator
	router     *messaging.Router
	publisher  producers.MessagePublisher
	timeout    time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

func NewCoordinator(
	db persistence.TxBeginner,
	transfers transfer.Repository,
	outboxRepo outbox.Repository,
	history transfer.HistoryRepository,
	unmatched reconciliation.Repository,
	correlator Correlator,
	router *messaging.Router,
	publisher producers.MessagePublisher,
	timeout time.Duration,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		db:         db,
		transfers:  transfers,
		outbox:     outboxRepo,
		history:    history,
		unmatched:  unmatched,
		correlator: correlator,
		router:     router,
		publisher:  publisher,
		timeout:    timeout,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// HandleTransferRequested opens a saga and asks the source account for the debit. A
// request that fails validation is recorded as FAILED and announced right away. A
// request whose transfer id is already known changes nothing.
func (c *Coordinator) HandleTransferRequested(ctx context.Context, evt *shared.Event) error {
	log := logger.WithCorrelation(c.logger, evt.CorrelationID)

	if !evt.HasTransfer() {
		log.Warn("Transfer request without transfer id", "source", evt.AccountNumber, "destination", evt.DestinationAccount)
		return c.hold(ctx, log, evt, reconciliation.ReasonMissingTransferID)
	}

	params := transfer.NewParams{
		TransferID:         evt.TransferID,
		SourceAccount:      evt.AccountNumber,
		DestinationAccount: evt.DestinationAccount,
		Amount:             evt.Amount,
		CorrelationID:      evt.CorrelationID,
		Now:                c.now(),
		Timeout:            c.timeout,
	}

	var (
		t    *transfer.Transfer
		emit *shared.Event
	)
	if err := params.Validate(); err != nil {
		log.Warn("Rejecting invalid transfer request", "transfer_id", evt.TransferID.String(), "error", err)
		t = transfer.Rejected(params)
		emit = transferFailed(t)
	} else {
		t, _ = transfer.New(params)
		emit = shared.NewCommand(shared.OperationDebit, t.TransferID, t.SourceAccount, t.Amount, t.CorrelationID)
	}

	var (
		created  bool
		messages []*outbox.Message
	)
	err := persistence.WithTransaction(ctx, c.db, func(tx pgx.Tx) error {
		var err error
		created, err = c.transfers.WithTx(tx).CreateIfAbsent(ctx, t)
		if err != nil || !created {
			return err
		}
		messages, err = c.enqueue(ctx, c.outbox.WithTx(tx), emit)
		return err
	})
	if err != nil {
		log.Error("Failed to open transfer", "transfer_id", evt.TransferID.String(), "error", err)
		return fmt.Errorf("failed to open transfer %s: %w", evt.TransferID, err)
	}
	if !created {
		log.Info("Transfer already known, ignoring request", "transfer_id", evt.TransferID.String())
		return nil
	}

	log.Info("Transfer opened",
		"transfer_id", t.TransferID.String(),
		"state", string(t.State),
		"source", t.SourceAccount,
		"destination", t.DestinationAccount,
		"amount", t.Amount.String(),
	)
	c.record(ctx, log, t, "", string(evt.Type), evt.EventID)
	return c.flush(ctx, log, messages)
}

// HandleDebited moves PENDING to DEBITED and asks the destination for the credit
func (c *Coordinator) HandleDebited(ctx context.Context, evt *shared.Event) error {
	return c.handleOutcome(ctx, evt, onDebited)
}

// HandleDebitFailed fails a PENDING transfer
func (c *Coordinator) HandleDebitFailed(ctx context.Context, evt *shared.Event) error {
	return c.handleOutcome(ctx, evt, onDebitFailed)
}

// HandleCredited completes a DEBITED transfer or closes the compensation of a failed one
func (c *Coordinator) HandleCredited(ctx context.Context, evt *shared.Event) error {
	return c.handleOutcome(ctx, evt, onCredited)
}

// HandleCreditFailed fails a DEBITED transfer and reverses its debit
func (c *Coordinator) HandleCreditFailed(ctx context.Context, evt *shared.Event) error {
	return c.handleOutcome(ctx, evt, onCreditFailed)
}

// Expire fails the transfer when it is still open past its deadline.
func (c *Coordinator) Expire(ctx context.Context, transferID uuid.UUID) error {
	log := c.logger.With("transfer_id", transferID.String())

	var (
		t        *transfer.Transfer
		from     transfer.State
		d        decision
		messages []*outbox.Message
	)
	err := persistence.WithTransaction(ctx, c.db, func(tx pgx.Tx) error {
		transfers := c.transfers.WithTx(tx)
		locked, err := transfers.LockByTransferID(ctx, transferID)
		if err != nil {
			return err
		}
		t, from = locked, locked.State
		if d, err = onTimeout(t, c.now()); err != nil || !d.changed {
			return err
		}
		if err = transfers.Update(ctx, t); err != nil {
			return err
		}
		messages, err = c.enqueue(ctx, c.outbox.WithTx(tx), d.emit...)
		return err
	})
	if err != nil {
		if errors.Is(err, transfer.ErrTransferNotFound{}) {
			log.Warn("Expired transfer disappeared")
			return nil
		}
		return fmt.Errorf("failed to expire transfer %s: %w", transferID, err)
	}
	if !d.changed {
		log.Debug("Transfer no longer expired", "state", string(t.State))
		return nil
	}

	log = logger.WithCorrelation(log, t.CorrelationID)
	log.Warn("Transfer timed out", "from_state", string(from), "compensation", string(t.Compensation))
	c.record(ctx, log, t, from, transfer.TriggerTimeout, uuid.Nil)
	return c.flush(ctx, log, messages)
}

func (c *Coordinator) handleOutcome(ctx context.Context, evt *shared.Event, decide decideFunc) error {
	log := logger.WithCorrelation(c.logger, evt.CorrelationID).With(
		"type", string(evt.Type),
		"transfer_id", evt.TransferID.String(),
		"account", evt.AccountNumber,
	)

	if !c.correlator.Accepts(evt) {
		// direct ledger operations announce their outcomes on the same topics
		log.Debug("Outcome is not part of a transfer, ignoring")
		return nil
	}

	var (
		t        *transfer.Transfer
		from     transfer.State
		d        decision
		messages []*outbox.Message
	)
	err := persistence.WithTransaction(ctx, c.db, func(tx pgx.Tx) error {
		transfers := c.transfers.WithTx(tx)
		locked, err := c.correlator.Correlate(ctx, transfers, evt)
		if err != nil {
			return err
		}
		t, from = locked, locked.State
		if d, err = decide(t, evt, c.now()); err != nil || !d.changed {
			return err
		}
		if err = transfers.Update(ctx, t); err != nil {
			return err
		}
		messages, err = c.enqueue(ctx, c.outbox.WithTx(tx), d.emit...)
		return err
	})
	if err != nil {
		if errors.Is(err, shared.ErrNoMatchingSaga) {
			log.Warn("No matching saga for outcome", "amount", evt.Amount.String(), "error", err)
			return c.hold(ctx, log, evt, reconciliation.ReasonNoMatchingSaga)
		}
		log.Error("Failed to apply outcome", "error", err)
		return fmt.Errorf("failed to apply %s to transfer %s: %w", evt.Type, evt.TransferID, err)
	}

	log = log.With("saga_id", t.ID)
	if d.ignored != "" {
		log.Info("Outcome ignored", "state", string(t.State), "why", d.ignored)
		return nil
	}

	if d.changed {
		log.Info("Transfer advanced",
			"from_state", string(from),
			"state", string(t.State),
			"compensation", string(t.Compensation),
		)
		c.record(ctx, log, t, from, string(evt.Type), evt.EventID)
	}
	if d.hold != "" {
		if err := c.hold(ctx, log, evt, d.hold); err != nil {
			return err
		}
	}
	return c.flush(ctx, log, messages)
}

// enqueue writes events to the outbox in the caller's transaction
func (c *Coordinator) enqueue(ctx context.Context, repo outbox.Repository, events ...*shared.Event) ([]*outbox.Message, error) {
	messages := make([]*outbox.Message, 0, len(events))
	for _, evt := range events {
		topic, err := c.router.Topic(evt.Type)
		if err != nil {
			return nil, err
		}
		msg, err := outbox.NewMessage(topic, evt)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", evt.Type, err)
		}
		if err := repo.Create(ctx, msg); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// flush publishes messages that were just committed. Whatever it fails to publish stays
// PENDING for the relay.
func (c *Coordinator) flush(ctx context.Context, log *slog.Logger, messages []*outbox.Message) error {
	for _, msg := range messages {
		if err := c.publisher.Publish(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
			log.Error("Failed to publish saga message, leaving it to the relay",
				"outbox_id", msg.ID,
				"event_type", string(msg.EventType),
				"error", err,
			)
			return fmt.Errorf("%w: %s for transfer %s: %v", shared.ErrEventPublishFailure, msg.EventType, msg.TransferID, err)
		}
		if err := c.outbox.UpdateStatus(ctx, msg.ID, shared.OutboxStatusProcessed); err != nil {
			log.Error("Saga message published but not marked processed", "outbox_id", msg.ID, "error", err)
			continue
		}
		msg.MarkAsProcessed()
		log.Debug("Saga message published", "outbox_id", msg.ID, "event_type", string(msg.EventType), "topic", msg.Topic)
	}
	return nil
}

// record journals a committed transition. The saga store is authoritative, so a
// journal failure is only logged.
func (c *Coordinator) record(ctx context.Context, log *slog.Logger, t *transfer.Transfer, from transfer.State, trigger string, eventID uuid.UUID) {
	if err := c.history.Append(ctx, transfer.NewHistoryEntry(t, from, trigger, eventID)); err != nil {
		log.Error("Failed to journal transfer transition", "state", string(t.State), "error", err)
	}
}

// hold keeps evt for manual reconciliation and acknowledges it.
func (c *Coordinator) hold(ctx context.Context, log *slog.Logger, evt *shared.Event, reason string) error {
	topic, _ := c.router.Topic(evt.Type)
	if err := c.unmatched.Hold(ctx, reconciliation.NewUnmatchedEvent(evt, topic, reason)); err != nil {
		log.Error("Failed to hold event for reconciliation", "reason", reason, "error", err)
		return fmt.Errorf("failed to hold %s for reconciliation: %w", evt.Type, err)
	}
	log.Warn("Event held for reconciliation", "reason", reason)
	return nil
}
