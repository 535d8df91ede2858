package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/banking-transfer-saga/internal/account_service/service"
	"github.com/banking-transfer-saga/internal/domain/account"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/banking-transfer-saga/internal/logger"
	"github.com/banking-transfer-saga/internal/platform/messaging/producers"
)

// CommandHandler applies the commands of one topic to the ledger and reports what
// happened. A returned error leaves the message uncommitted so it is delivered again.
type CommandHandler struct {
	topic     string
	implied   shared.EventType
	ledger    service.LedgerService
	publisher producers.EventPublisher
	dlq       producers.DeadLetterPublisher
	logger    *slog.Logger
}

// NewCommandHandler creates a handler for topic, whose messages default to the implied type
func NewCommandHandler(
	logger *slog.Logger,
	topic string,
	implied shared.EventType,
	ledger service.LedgerService,
	publisher producers.EventPublisher,
	dlq producers.DeadLetterPublisher,
) *CommandHandler {
	return &CommandHandler{
		topic:     topic,
		implied:   implied,
		ledger:    ledger,
		publisher: publisher,
		dlq:       dlq,
		logger:    logger.With("topic", topic),
	}
}

// HandleMessage processes one command message
func (h *CommandHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	cmd, err := shared.DecodeEvent(value, h.implied)
	if err == nil && !cmd.Type.IsCommand() {
		err = fmt.Errorf("%w: %s is not a command", shared.ErrInvalidEvent, cmd.Type)
	}
	if err != nil {
		return h.deadLetter(ctx, key, value, err)
	}

	log := logger.WithCorrelation(h.logger, cmd.CorrelationID)
	log.Info("Received ledger command",
		"type", string(cmd.Type),
		"transfer_id", cmd.TransferID.String(),
		"account", cmd.AccountNumber,
		"amount", cmd.Amount.String(),
	)

	request := shared.LedgerRequestFromCommand(cmd)
	if cmd.Type == shared.EventDebitCommand {
		_, err = h.ledger.Debit(ctx, &request)
	} else {
		_, err = h.ledger.Credit(ctx, &request)
	}
	if err == nil {
		return nil
	}

	reason, rejected := rejectionReason(err)
	if !rejected {
		// committed but not announced, or never committed: either way the redelivery settles it
		log.Error("Ledger command failed",
			"type", string(cmd.Type),
			"transfer_id", cmd.TransferID.String(),
			"error", err,
		)
		return fmt.Errorf("ledger command %s for transfer %s failed: %w", cmd.Type, cmd.TransferID, err)
	}

	failedType := shared.EventCreditFailed
	if cmd.Type == shared.EventDebitCommand {
		failedType = shared.EventDebitFailed
	}
	failure := shared.NewOutcome(failedType, cmd.TransferID, cmd.AccountNumber, cmd.Amount, cmd.Operation, reason, cmd.CorrelationID)
	if pubErr := h.publisher.PublishEvent(ctx, failure); pubErr != nil {
		log.Error("Failed to announce ledger rejection",
			"type", string(failedType),
			"transfer_id", cmd.TransferID.String(),
			"error", pubErr,
		)
		return fmt.Errorf("%w: %s for account %s: %v", shared.ErrEventPublishFailure, failedType, cmd.AccountNumber, pubErr)
	}

	log.Info("Ledger command rejected",
		"type", string(failedType),
		"transfer_id", cmd.TransferID.String(),
		"reason", string(reason),
	)
	return nil
}

func (h *CommandHandler) deadLetter(ctx context.Context, key, value []byte, cause error) error {
	h.logger.Error("Failed to decode ledger command", "error", cause, "message_key", string(key))

	if h.dlq != nil {
		reason := fmt.Sprintf("undecodable ledger command: %s", cause.Error())
		if dlqErr := h.dlq.PublishToDLQ(ctx, h.topic, string(key), value, reason); dlqErr != nil {
			h.logger.Error("Failed to publish message to DLQ",
				"dlq_error", dlqErr,
				"original_error", cause,
				"message_key", string(key),
			)
		} else {
			h.logger.Info("Published unprocessable command to DLQ", "message_key", string(key))
			return nil
		}
	}
	return fmt.Errorf("failed to decode ledger command: %w", cause)
}

// rejectionReason maps business rejections of the ledger to a failure reason. Other
// errors are not a verdict on the command and are reported to the caller instead.
func rejectionReason(err error) (shared.FailureReason, bool) {
	switch {
	case errors.Is(err, account.ErrInsufficientFunds):
		return shared.FailureReasonInsufficientFunds, true
	case errors.Is(err, account.ErrAccountNotFound{}):
		return shared.FailureReasonAccountNotFound, true
	case errors.Is(err, account.ErrInvalidAmount):
		return shared.FailureReasonInvalidAmount, true
	}
	return "", false
}
