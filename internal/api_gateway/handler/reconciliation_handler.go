package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/banking-transfer-saga/internal/api_gateway/middleware"
	"github.com/banking-transfer-saga/internal/api_gateway/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReconciliationHandler exposes events held for manual reconciliation
type ReconciliationHandler struct {
	reconciliationService service.ReconciliationService
	logger                *slog.Logger
}

func NewReconciliationHandler(logger *slog.Logger, reconciliationService service.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{
		reconciliationService: reconciliationService,
		logger:                logger,
	}
}

// ListUnmatched retrieves held events, newest first
func (h *ReconciliationHandler) ListUnmatched(c *gin.Context) {
	log := middleware.RequestLogger(c, h.logger)

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		log.Error("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	events, total, err := h.reconciliationService.ListUnmatched(c.Request.Context(), pagination.Page, pagination.PerPage)
	if err != nil {
		log.Error("Failed to list unmatched events", "error", err)
		RespondInternalError(c)
		return
	}

	response := make([]UnmatchedEventResponse, 0, len(events))
	for _, held := range events {
		item := UnmatchedEventResponse{
			EventID:       held.Event.EventID.String(),
			Type:          string(held.Event.Type),
			AccountNumber: held.Event.AccountNumber,
			Amount:        held.Event.Amount.String(),
			Topic:         held.Topic,
			Reason:        held.Reason,
			ReceivedAt:    held.ReceivedAt.Format(time.RFC3339),
		}
		if held.Event.TransferID != uuid.Nil {
			item.TransferID = held.Event.TransferID.String()
		}
		response = append(response, item)
	}

	RespondWithPaginatedData(c, http.StatusOK, response, pagination.Page, pagination.PerPage, int(total))
}
