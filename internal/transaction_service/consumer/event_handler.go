package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/banking-transfer-saga/internal/platform/messaging/producers"
)

// SagaHandler reacts to the events that drive a transfer
type SagaHandler interface {
	HandleTransferRequested(ctx context.Context, evt *shared.Event) error
	HandleDebited(ctx context.Context, evt *shared.Event) error
	HandleDebitFailed(ctx context.Context, evt *shared.Event) error
	HandleCredited(ctx context.Context, evt *shared.Event) error
	HandleCreditFailed(ctx context.Context, evt *shared.Event) error
}

// EventHandler decodes the messages of one topic and hands them to the coordinator.
// Undecodable messages go to the dead letter queue; a coordinator error leaves the
// message uncommitted.
type EventHandler struct {
	topic   string
	implied shared.EventType
	saga    SagaHandler
	dlq     producers.DeadLetterPublisher
	logger  *slog.Logger
}

func NewEventHandler(logger *slog.Logger, topic string, implied shared.EventType, saga SagaHandler, dlq producers.DeadLetterPublisher) *EventHandler {
	return &EventHandler{
		topic:   topic,
		implied: implied,
		saga:    saga,
		dlq:     dlq,
		logger:  logger.With("topic", topic),
	}
}

// HandleMessage processes one saga event message
func (h *EventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	evt, err := shared.DecodeEvent(value, h.implied)
	if err != nil {
		return h.deadLetter(ctx, key, value, err)
	}

	h.logger.Debug("Received saga event",
		"type", string(evt.Type),
		"event_id", evt.EventID.String(),
		"transfer_id", evt.TransferID.String(),
	)

	switch evt.Type {
	case shared.EventTransferRequested:
		return h.saga.HandleTransferRequested(ctx, evt)
	case shared.EventDebited:
		return h.saga.HandleDebited(ctx, evt)
	case shared.EventDebitFailed:
		return h.saga.HandleDebitFailed(ctx, evt)
	case shared.EventCredited:
		return h.saga.HandleCredited(ctx, evt)
	case shared.EventCreditFailed:
		return h.saga.HandleCreditFailed(ctx, evt)
	}
	return h.deadLetter(ctx, key, value, fmt.Errorf("%w: %s is not handled by the coordinator", shared.ErrInvalidEvent, evt.Type))
}

func (h *EventHandler) deadLetter(ctx context.Context, key, value []byte, cause error) error {
	h.logger.Error("Failed to decode saga event", "error", cause, "message_key", string(key))

	if h.dlq != nil {
		reason := fmt.Sprintf("unprocessable saga event: %s", cause.Error())
		if dlqErr := h.dlq.PublishToDLQ(ctx, h.topic, string(key), value, reason); dlqErr != nil {
			h.logger.Error("Failed to publish message to DLQ",
				"dlq_error", dlqErr,
				"original_error", cause,
				"message_key", string(key),
			)
		} else {
			h.logger.Info("Published unprocessable event to DLQ", "message_key", string(key))
			return nil
		}
	}
	return fmt.Errorf("failed to decode saga event: %w", cause)
}
