package service

import (
	"context"
	"log/slog"

	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/banking-transfer-saga/internal/domain/transfer"
	"github.com/banking-transfer-saga/internal/platform/messaging/producers"
	"github.com/google/uuid"
)

// TransferServiceImpl implements the TransferService interface
type TransferServiceImpl struct {
	transferRepo transfer.Repository
	historyRepo  transfer.HistoryRepository
	publisher    producers.EventPublisher
	logger       *slog.Logger
}

// NewTransferService creates a new transfer service
func NewTransferService(
	logger *slog.Logger,
	transferRepo transfer.Repository,
	historyRepo transfer.HistoryRepository,
	publisher producers.EventPublisher,
) TransferService {
	return &TransferServiceImpl{
		transferRepo: transferRepo,
		historyRepo:  historyRepo,
		publisher:    publisher,
		logger:       logger,
	}
}

// RequestTransfer assigns the transfer id and publishes the request for the coordinator.
func (s *TransferServiceImpl) RequestTransfer(ctx context.Context, req TransferRequest) (uuid.UUID, error) {
	transferID := uuid.New()

	params := transfer.NewParams{
		TransferID:         transferID,
		SourceAccount:      req.SourceAccount,
		DestinationAccount: req.DestinationAccount,
		Amount:             req.Amount,
	}
	if err := params.Validate(); err != nil {
		return uuid.Nil, err
	}

	evt := shared.NewTransferRequested(transferID, req.SourceAccount, req.DestinationAccount, req.Amount, req.CorrelationID)
	if err := s.publisher.PublishEvent(ctx, evt); err != nil {
		s.logger.Error("Failed to publish transfer request",
			"transfer_id", transferID.String(),
			"source", req.SourceAccount,
			"destination", req.DestinationAccount,
			"error", err,
		)
		return uuid.Nil, err
	}

	s.logger.Info("Transfer request published",
		"transfer_id", transferID.String(),
		"source", req.SourceAccount,
		"destination", req.DestinationAccount,
		"amount", req.Amount.String(),
	)

	return transferID, nil
}

// GetTransfer retrieves the saga record of a transfer
func (s *TransferServiceImpl) GetTransfer(ctx context.Context, transferID uuid.UUID) (*transfer.Transfer, error) {
	return s.transferRepo.GetByTransferID(ctx, transferID)
}

// GetHistory returns the transitions of a known transfer, oldest first.
func (s *TransferServiceImpl) GetHistory(ctx context.Context, transferID uuid.UUID) ([]*transfer.HistoryEntry, error) {
	if _, err := s.transferRepo.GetByTransferID(ctx, transferID); err != nil {
		return nil, err
	}
	return s.historyRepo.ListByTransferID(ctx, transferID)
}
