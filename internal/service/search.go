package service

import (
	"context"
	"fmt"

	"github.com/factlineai/factline/internal/domain"
	"github.com/factlineai/factline/internal/telemetry"
)

// EmbeddingClient generates embeddings for text
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// FactSearchRepositoryInterface defines the repository interface for vector search over facts
type FactSearchRepositoryInterface interface {
	SearchByEmbedding(ctx context.Context, embedding []float32, filters SearchFilters, limit int) ([]*FactMatch, error)
}

// SearchFilters narrows a fact search.
type SearchFilters struct {
	BankID   string
	FactType domain.FactType
}

// FactMatch is one search hit with its similarity score.
type FactMatch struct {
	Fact  *domain.Fact
	Score float64
}

// SearchInput represents the input for a search operation
type SearchInput struct {
	BankID   string
	Query    string
	FactType string
	Limit    int
}

// SearchOutput holds ranked search results.
type SearchOutput struct {
	Results []*FactMatch
}

// SearchService answers similarity queries over stored facts.
type SearchService struct {
	repo      FactSearchRepositoryInterface
	embedding EmbeddingClient
}

// NewSearchService creates a new SearchService instance
func NewSearchService(repo FactSearchRepositoryInterface, embedding EmbeddingClient) *SearchService {
	return &SearchService{repo: repo, embedding: embedding}
}

// Search embeds the query and returns the closest facts in the bank.
func (s *SearchService) Search(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		BankID:    input.BankID,
		Operation: "search",
	})
	defer span.End()

	if input.BankID == "" {
		return nil, domain.ErrMissingBankID
	}
	if input.Query == "" {
		return nil, domain.ErrEmptyQuery
	}

	var factType domain.FactType
	if input.FactType != "" {
		factType = domain.FactType(input.FactType)
		if !factType.IsValid() {
			return nil, domain.ErrInvalidFactType
		}
	}

	embedding, err := s.embedding.GenerateEmbedding(ctx, input.Query)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.repo.SearchByEmbedding(ctx, embedding, SearchFilters{
		BankID:   input.BankID,
		FactType: factType,
	}, input.Limit)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return &SearchOutput{Results: results}, nil
}
