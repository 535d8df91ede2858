package service

import (
	"context"

	"github.com/banking-transfer-saga/internal/domain/reconciliation"
)

type ReconciliationServiceImpl struct {
	unmatchedRepo reconciliation.Repository
}

func NewReconciliationService(unmatchedRepo reconciliation.Repository) ReconciliationService {
	return &ReconciliationServiceImpl{unmatchedRepo: unmatchedRepo}
}

// ListUnmatched retrieves paginated held events, newest first
func (s *ReconciliationServiceImpl) ListUnmatched(ctx context.Context, page, perPage int) ([]*reconciliation.UnmatchedEvent, int64, error) {
	offset := (page - 1) * perPage

	events, err := s.unmatchedRepo.List(ctx, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.unmatchedRepo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	return events, total, nil
}
