package service

import (
	"context"
	"testing"
	"time"

	"github.com/factlineai/factline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingService_GenerateEmbedding_Success(t *testing.T) {
	client := new(MockEmbeddingClient)
	repo := new(MockFactRepository)

	fact := &domain.Fact{
		ID:          "f-1",
		BankID:      "bank-1",
		FactText:    "User moved to Berlin",
		FactType:    domain.FactTypeWorld,
		MentionedAt: time.Now().UTC(),
	}
	embedding := []float32{0.1, 0.2}

	repo.On("GetByID", mock.Anything, "f-1").Return(fact, nil)
	client.On("GenerateEmbedding", mock.Anything, "User moved to Berlin").Return(embedding, nil)
	repo.On("UpdateEmbedding", mock.Anything, "f-1", embedding).Return(nil)

	svc := NewEmbeddingService(client, repo)

	err := svc.GenerateEmbedding(context.Background(), "f-1")
	require.NoError(t, err)
	repo.AssertExpectations(t)
	client.AssertExpectations(t)
}

func TestEmbeddingService_GenerateEmbedding_FactNotFound(t *testing.T) {
	client := new(MockEmbeddingClient)
	repo := new(MockFactRepository)

	repo.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrFactNotFound)

	svc := NewEmbeddingService(client, repo)

	err := svc.GenerateEmbedding(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrFactNotFound)
	client.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, mock.Anything)
}

func TestEmbeddingService_GenerateEmbedding_ClientFailure(t *testing.T) {
	client := new(MockEmbeddingClient)
	repo := new(MockFactRepository)

	fact := &domain.Fact{ID: "f-1", FactText: "text"}
	repo.On("GetByID", mock.Anything, "f-1").Return(fact, nil)
	client.On("GenerateEmbedding", mock.Anything, "text").Return(nil, assert.AnError)

	svc := NewEmbeddingService(client, repo)

	err := svc.GenerateEmbedding(context.Background(), "f-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to generate embedding")
	repo.AssertNotCalled(t, "UpdateEmbedding", mock.Anything, mock.Anything, mock.Anything)
}

func TestEmbeddingService_GenerateEmbedding_UpdateFailure(t *testing.T) {
	client := new(MockEmbeddingClient)
	repo := new(MockFactRepository)

	fact := &domain.Fact{ID: "f-1", FactText: "text"}
	embedding := []float32{0.1}
	repo.On("GetByID", mock.Anything, "f-1").Return(fact, nil)
	client.On("GenerateEmbedding", mock.Anything, "text").Return(embedding, nil)
	repo.On("UpdateEmbedding", mock.Anything, "f-1", embedding).Return(assert.AnError)

	svc := NewEmbeddingService(client, repo)

	err := svc.GenerateEmbedding(context.Background(), "f-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to update embedding")
}
