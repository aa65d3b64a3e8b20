package service

import (
	"context"
	"fmt"

	"atmledger/internal/domain"
	"atmledger/internal/port"
)

type operationService struct {
	ops port.OperationRepository
}

func NewOperationService(ops port.OperationRepository) port.OperationService {
	return &operationService{ops: ops}
}

func (s *operationService) List(ctx context.Context, filter domain.OperationFilter) ([]domain.Operation, error) {
	if !filter.DateFrom.IsZero() && !filter.DateTo.IsZero() && filter.DateTo.Before(filter.DateFrom) {
		return nil, fmt.Errorf("%w: date_to is before date_from", domain.ErrInvalidRequest)
	}
	return s.ops.ListOperations(ctx, filter)
}

func (s *operationService) ActiveATMs(ctx context.Context) ([]domain.ActiveATM, error) {
	return s.ops.ActiveATMs(ctx)
}

func (s *operationService) ActiveCards(ctx context.Context) ([]domain.ActiveCard, error) {
	return s.ops.ActiveCards(ctx)
}
