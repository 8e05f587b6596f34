package service

import (
	"context"
	"fmt"
)

// EmbeddingService generates and stores embeddings for facts
type EmbeddingService struct {
	client   EmbeddingClient
	factRepo FactRepositoryInterface
}

// NewEmbeddingService creates a new EmbeddingService instance
func NewEmbeddingService(client EmbeddingClient, factRepo FactRepositoryInterface) *EmbeddingService {
	return &EmbeddingService{
		client:   client,
		factRepo: factRepo,
	}
}

// GenerateEmbedding generates an embedding for a fact's text and stores it
func (s *EmbeddingService) GenerateEmbedding(ctx context.Context, factID string) error {
	fact, err := s.factRepo.GetByID(ctx, factID)
	if err != nil {
		return err
	}

	embedding, err := s.client.GenerateEmbedding(ctx, fact.FactText)
	if err != nil {
		return fmt.Errorf("failed to generate embedding: %w", err)
	}

	if err := s.factRepo.UpdateEmbedding(ctx, factID, embedding); err != nil {
		return fmt.Errorf("failed to update embedding: %w", err)
	}

	return nil
}
