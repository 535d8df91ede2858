package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/banking-transfer-saga/internal/api_gateway/middleware"
	"github.com/banking-transfer-saga/internal/api_gateway/service"
	"github.com/banking-transfer-saga/internal/domain/account"
	"github.com/banking-transfer-saga/internal/domain/ledger"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountHandler handles HTTP requests for account operations
type AccountHandler struct {
	accountService service.AccountService
	logger         *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *slog.Logger, accountService service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		logger:         logger,
	}
}

// Create opens an account with an optional starting balance
func (h *AccountHandler) Create(c *gin.Context) {
	log := middleware.RequestLogger(c, h.logger)

	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	acc, err := h.accountService.CreateAccount(c.Request.Context(), req.AccountNumber, req.InitialBalance)
	if err != nil {
		var duplicate account.ErrDuplicateAccount
		switch {
		case errors.As(err, &duplicate):
			log.Warn("Attempt to create duplicate account", "account", duplicate.AccountNumber)
			RespondConflict(c, "Account with this number already exists")
		case errors.Is(err, account.ErrNegativeBalance),
			errors.Is(err, account.ErrEmptyAccountNumber),
			errors.Is(err, account.ErrInvalidAmount):
			RespondBadRequest(c, err.Error())
		default:
			log.Error("Failed to create account", "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondCreated(c, mapAccountToResponse(acc))
}

// GetByNumber retrieves an account, returning 404 if not found
func (h *AccountHandler) GetByNumber(c *gin.Context) {
	number := c.Param("number")

	acc, err := h.accountService.GetAccount(c.Request.Context(), number)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound{}) {
			RespondNotFound(c, "Account not found")
			return
		}
		middleware.RequestLogger(c, h.logger).Error("Failed to get account", "account", number, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapAccountToResponse(acc))
}

// Debit withdraws money from the account outside any transfer
func (h *AccountHandler) Debit(c *gin.Context) {
	h.applyDirect(c, h.accountService.Debit)
}

// Credit deposits money into the account outside any transfer
func (h *AccountHandler) Credit(c *gin.Context) {
	h.applyDirect(c, h.accountService.Credit)
}

type directOperation func(ctx context.Context, number string, amount decimal.Decimal, correlationID string) (*ledger.Entry, error)

// applyDirect maps ledger rejections to client errors. A committed mutation whose
// outcome could not be announced is reported as 503 with the entry attached.
func (h *AccountHandler) applyDirect(c *gin.Context, apply directOperation) {
	number := c.Param("number")
	log := middleware.RequestLogger(c, h.logger)

	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if !shared.ValidAmount(req.Amount) {
		RespondBadRequest(c, "Amount must be positive with at most 4 decimal places")
		return
	}

	entry, err := apply(c.Request.Context(), number, req.Amount, middleware.GetCorrelationID(c))
	switch {
	case err == nil:
		RespondOK(c, mapEntryToResponse(entry))
	case errors.Is(err, account.ErrAccountNotFound{}):
		RespondNotFound(c, "Account not found")
	case errors.Is(err, account.ErrInsufficientFunds):
		RespondUnprocessable(c, string(shared.FailureReasonInsufficientFunds), "Insufficient funds")
	case errors.Is(err, account.ErrInvalidAmount):
		RespondBadRequest(c, "Amount must be positive with at most 4 decimal places")
	case errors.Is(err, shared.ErrEventPublishFailure) && entry != nil:
		log.Warn("Direct operation committed but not announced", "account", number, "entry_id", entry.EntryID.String(), "error", err)
		RespondPartial(c, http.StatusServiceUnavailable, mapEntryToResponse(entry),
			CodeOutcomeNotAnnounced, "Operation committed; its announcement will be retried")
	default:
		log.Error("Direct operation failed", "account", number, "error", err)
		RespondInternalError(c)
	}
}

// ListEntries retrieves the paginated change log of an account
func (h *AccountHandler) ListEntries(c *gin.Context) {
	number := c.Param("number")
	log := middleware.RequestLogger(c, h.logger)

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		log.Error("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	entries, total, err := h.accountService.ListEntries(c.Request.Context(), number, pagination.Page, pagination.PerPage)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound{}) {
			RespondNotFound(c, "Account not found")
			return
		}
		log.Error("Failed to list entries", "account", number, "error", err)
		RespondInternalError(c)
		return
	}

	response := make([]EntryResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, mapEntryToResponse(entry))
	}

	RespondWithPaginatedData(c, http.StatusOK, response, pagination.Page, pagination.PerPage, int(total))
}

func mapAccountToResponse(acc *account.Account) AccountResponse {
	return AccountResponse{
		AccountNumber: acc.Number,
		Balance:       acc.Balance.String(),
		Version:       acc.Version,
		CreatedAt:     acc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     acc.UpdatedAt.Format(time.RFC3339),
	}
}

func mapEntryToResponse(entry *ledger.Entry) EntryResponse {
	response := EntryResponse{
		EntryID:       entry.EntryID.String(),
		AccountNumber: entry.AccountNumber,
		Operation:     string(entry.Operation),
		Amount:        entry.Amount.String(),
		BalanceAfter:  entry.BalanceAfter.String(),
		PublishStatus: string(entry.PublishStatus),
		CreatedAt:     entry.CreatedAt.Format(time.RFC3339),
	}
	if entry.TransferID != uuid.Nil {
		response.TransferID = entry.TransferID.String()
	}
	return response
}
