package handler

import "github.com/shopspring/decimal"

// CreateAccountRequest represents a request to open an account
type CreateAccountRequest struct {
	AccountNumber  string          `json:"account_number" binding:"required,max=64"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

// AmountRequest is the body of a direct debit or credit
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	AccountNumber string `json:"account_number"`
	Balance       string `json:"balance"`
	Version       int    `json:"version"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// EntryResponse represents one change log entry of an account
type EntryResponse struct {
	EntryID       string `json:"entry_id"`
	AccountNumber string `json:"account_number"`
	TransferID    string `json:"transfer_id,omitempty"`
	Operation     string `json:"operation"`
	Amount        string `json:"amount"`
	BalanceAfter  string `json:"balance_after"`
	PublishStatus string `json:"publish_status"`
	CreatedAt     string `json:"created_at"`
}

// CreateTransferRequest represents a request to move money between two accounts
type CreateTransferRequest struct {
	SourceAccount      string          `json:"source_account" binding:"required"`
	DestinationAccount string          `json:"destination_account" binding:"required"`
	Amount             decimal.Decimal `json:"amount"`
}

// TransferAcceptedResponse acknowledges a transfer request. It says nothing about the outcome.
type TransferAcceptedResponse struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"`
}

// TransferResponse represents a saga record in API responses
type TransferResponse struct {
	TransferID         string `json:"transfer_id"`
	SourceAccount      string `json:"source_account"`
	DestinationAccount string `json:"destination_account"`
	Amount             string `json:"amount"`
	State              string `json:"state"`
	FailureReason      string `json:"failure_reason,omitempty"`
	Compensation       string `json:"compensation"`
	DeadlineAt         string `json:"deadline_at"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

// HistoryEntryResponse represents one transition of a transfer
type HistoryEntryResponse struct {
	FromState    string `json:"from_state,omitempty"`
	ToState      string `json:"to_state"`
	Compensation string `json:"compensation"`
	Trigger      string `json:"trigger"`
	Reason       string `json:"reason,omitempty"`
	OccurredAt   string `json:"occurred_at"`
}

// UnmatchedEventResponse represents an event held for manual reconciliation
type UnmatchedEventResponse struct {
	EventID       string `json:"event_id"`
	Type          string `json:"type"`
	TransferID    string `json:"transfer_id,omitempty"`
	AccountNumber string `json:"account_number"`
	Amount        string `json:"amount"`
	Topic         string `json:"topic"`
	Reason        string `json:"reason"`
	ReceivedAt    string `json:"received_at"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}
