package service

import (
	"context"

	"github.com/factlineai/factline/internal/domain"
	"github.com/factlineai/factline/internal/telemetry"
)

// FactService handles read access to stored facts.
type FactService struct {
	factRepo FactRepositoryInterface
}

// NewFactService creates a new FactService instance
func NewFactService(factRepo FactRepositoryInterface) *FactService {
	return &FactService{factRepo: factRepo}
}

// GetByID retrieves a fact by ID
func (s *FactService) GetByID(ctx context.Context, id string) (*domain.Fact, error) {
	ctx, span := telemetry.StartSpan(ctx, "FactService.GetByID", telemetry.SpanAttributes{
		FactID:    id,
		Operation: "get",
	})
	defer span.End()

	return s.factRepo.GetByID(ctx, id)
}

// ListByBank lists the most recently mentioned facts in a bank.
func (s *FactService) ListByBank(ctx context.Context, bankID string, limit int) ([]*domain.Fact, error) {
	ctx, span := telemetry.StartSpan(ctx, "FactService.ListByBank", telemetry.SpanAttributes{
		BankID:    bankID,
		Operation: "list",
	})
	defer span.End()

	if bankID == "" {
		return nil, domain.ErrMissingBankID
	}
	return s.factRepo.ListByBank(ctx, bankID, limit)
}
