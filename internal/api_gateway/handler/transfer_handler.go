package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/banking-transfer-saga/internal/api_gateway/middleware"
	"github.com/banking-transfer-saga/internal/api_gateway/service"
	"github.com/banking-transfer-saga/internal/domain/transfer"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TransferHandler handles HTTP requests for transfers
type TransferHandler struct {
	transferService service.TransferService
	logger          *slog.Logger
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(logger *slog.Logger, transferService service.TransferService) *TransferHandler {
	return &TransferHandler{
		transferService: transferService,
		logger:          logger,
	}
}

// Create accepts a transfer request. The 202 only acknowledges that the request was
// handed to the bus; clients poll GetByID for the outcome.
func (h *TransferHandler) Create(c *gin.Context) {
	log := middleware.RequestLogger(c, h.logger)

	var req CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	transferID, err := h.transferService.RequestTransfer(c.Request.Context(), service.TransferRequest{
		SourceAccount:      req.SourceAccount,
		DestinationAccount: req.DestinationAccount,
		Amount:             req.Amount,
		CorrelationID:      middleware.GetCorrelationID(c),
	})
	if err != nil {
		switch {
		case errors.Is(err, transfer.ErrSameAccount),
			errors.Is(err, transfer.ErrInvalidAmount),
			errors.Is(err, transfer.ErrMissingAccount):
			RespondBadRequest(c, err.Error())
		default:
			log.Error("Failed to request transfer", "error", err)
			RespondServiceUnavailable(c, CodeBusUnavailable, "Transfer could not be submitted, retry later")
		}
		return
	}

	RespondAccepted(c, TransferAcceptedResponse{
		TransferID: transferID.String(),
		Status:     string(transfer.StatePending),
	})
}

// GetByID retrieves the current state of a transfer, returns 404 until the
// coordinator has recorded it
func (h *TransferHandler) GetByID(c *gin.Context) {
	id, ok := h.parseTransferID(c)
	if !ok {
		return
	}

	t, err := h.transferService.GetTransfer(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, id, err)
		return
	}

	RespondOK(c, mapTransferToResponse(t))
}

// GetHistory lists the transitions of a transfer, oldest first
func (h *TransferHandler) GetHistory(c *gin.Context) {
	id, ok := h.parseTransferID(c)
	if !ok {
		return
	}

	history, err := h.transferService.GetHistory(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, id, err)
		return
	}

	response := make([]HistoryEntryResponse, 0, len(history))
	for _, entry := range history {
		response = append(response, HistoryEntryResponse{
			FromState:    string(entry.FromState),
			ToState:      string(entry.ToState),
			Compensation: string(entry.Compensation),
			Trigger:      entry.Trigger,
			Reason:       string(entry.Reason),
			OccurredAt:   entry.OccurredAt.Format(time.RFC3339Nano),
		})
	}

	RespondOK(c, response)
}

func (h *TransferHandler) parseTransferID(c *gin.Context) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		middleware.RequestLogger(c, h.logger).Error("Invalid transfer ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid transfer ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *TransferHandler) respondLookupError(c *gin.Context, id uuid.UUID, err error) {
	if errors.Is(err, transfer.ErrTransferNotFound{}) {
		RespondNotFound(c, "Transfer not found")
		return
	}
	middleware.RequestLogger(c, h.logger).Error("Failed to get transfer", "transfer_id", id.String(), "error", err)
	RespondInternalError(c)
}

func mapTransferToResponse(t *transfer.Transfer) TransferResponse {
	return TransferResponse{
		TransferID:         t.TransferID.String(),
		SourceAccount:      t.SourceAccount,
		DestinationAccount: t.DestinationAccount,
		Amount:             t.Amount.String(),
		State:              string(t.State),
		FailureReason:      string(t.FailureReason),
		Compensation:       string(t.Compensation),
		DeadlineAt:         t.DeadlineAt.Format(time.RFC3339),
		CreatedAt:          t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          t.UpdatedAt.Format(time.RFC3339),
	}
}
