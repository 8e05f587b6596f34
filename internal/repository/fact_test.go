//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/factlineai/factline/internal/domain"
	"github.com/factlineai/factline/internal/service"
	"github.com/factlineai/factline/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFact(bankID string) *domain.Fact {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Fact{
		ID:          uuid.NewString(),
		BankID:      bankID,
		FactText:    "User moved to Berlin | when: last month",
		FactType:    domain.FactTypeWorld,
		MentionedAt: now,
		Entities:    []string{"user", "Berlin"},
		CreatedAt:   now,
	}
}

func TestFactRepository_Create_And_GetByID(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewFactRepository(pool)

	occurred := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	fact := newTestFact("bank-1")
	fact.OccurredStart = &occurred
	fact.OccurredEnd = &occurred
	fact.Context = "onboarding call"
	fact.Metadata = map[string]string{"source": "transcript"}

	require.NoError(t, repo.Create(ctx, fact))

	retrieved, err := repo.GetByID(ctx, fact.ID)
	require.NoError(t, err)
	assert.Equal(t, fact.ID, retrieved.ID)
	assert.Equal(t, fact.BankID, retrieved.BankID)
	assert.Equal(t, fact.FactText, retrieved.FactText)
	assert.Equal(t, domain.FactTypeWorld, retrieved.FactType)
	assert.Equal(t, fact.Entities, retrieved.Entities)
	assert.Equal(t, "onboarding call", retrieved.Context)
	assert.Equal(t, map[string]string{"source": "transcript"}, retrieved.Metadata)
	require.NotNil(t, retrieved.OccurredStart)
	assert.True(t, occurred.Equal(*retrieved.OccurredStart))
}

func TestFactRepository_Create_WithLinks(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewFactRepository(pool)

	target := newTestFact("bank-1")
	require.NoError(t, repo.Create(ctx, target))

	fact := newTestFact("bank-1")
	fact.Links = []domain.FactLink{
		{TargetFactID: target.ID, RelationType: domain.RelationCausedBy, Strength: 0.8},
	}
	require.NoError(t, repo.Create(ctx, fact))

	retrieved, err := repo.GetByID(ctx, fact.ID)
	require.NoError(t, err)
	require.Len(t, retrieved.Links, 1)
	assert.Equal(t, target.ID, retrieved.Links[0].TargetFactID)
	assert.Equal(t, domain.RelationCausedBy, retrieved.Links[0].RelationType)
	assert.InDelta(t, 0.8, retrieved.Links[0].Strength, 1e-9)
}

func TestFactRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewFactRepository(pool)

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrFactNotFound)
}

func TestFactRepository_ListByBank(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewFactRepository(pool)

	older := newTestFact("bank-a")
	older.MentionedAt = older.MentionedAt.Add(-time.Hour)
	newer := newTestFact("bank-a")
	otherBank := newTestFact("bank-b")

	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))
	require.NoError(t, repo.Create(ctx, otherBank))

	facts, err := repo.ListByBank(ctx, "bank-a", 10)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, newer.ID, facts[0].ID)
	assert.Equal(t, older.ID, facts[1].ID)
}

func TestFactRepository_UpdateEmbedding(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewFactRepository(pool)

	fact := newTestFact("bank-1")
	require.NoError(t, repo.Create(ctx, fact))

	embedding := make([]float32, 1536)
	embedding[0] = 1.0
	require.NoError(t, repo.UpdateEmbedding(ctx, fact.ID, embedding))
}

func TestFactRepository_UpdateEmbedding_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewFactRepository(pool)

	err := repo.UpdateEmbedding(ctx, uuid.NewString(), make([]float32, 1536))
	assert.ErrorIs(t, err, domain.ErrFactNotFound)
}

func TestFactRepository_SearchByEmbedding(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewFactRepository(pool)

	near := newTestFact("bank-s")
	far := newTestFact("bank-s")
	far.FactType = domain.FactTypeExperience
	unembedded := newTestFact("bank-s")

	require.NoError(t, repo.Create(ctx, near))
	require.NoError(t, repo.Create(ctx, far))
	require.NoError(t, repo.Create(ctx, unembedded))

	nearVec := make([]float32, 1536)
	nearVec[0] = 1.0
	farVec := make([]float32, 1536)
	farVec[1] = 1.0
	require.NoError(t, repo.UpdateEmbedding(ctx, near.ID, nearVec))
	require.NoError(t, repo.UpdateEmbedding(ctx, far.ID, farVec))

	query := make([]float32, 1536)
	query[0] = 0.9
	query[1] = 0.1

	results, err := repo.SearchByEmbedding(ctx, query, service.SearchFilters{BankID: "bank-s"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, near.ID, results[0].Fact.ID)
	assert.Equal(t, far.ID, results[1].Fact.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestFactRepository_SearchByEmbedding_FactTypeFilter(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewFactRepository(pool)

	world := newTestFact("bank-f")
	experience := newTestFact("bank-f")
	experience.FactType = domain.FactTypeExperience

	require.NoError(t, repo.Create(ctx, world))
	require.NoError(t, repo.Create(ctx, experience))

	vec := make([]float32, 1536)
	vec[0] = 1.0
	require.NoError(t, repo.UpdateEmbedding(ctx, world.ID, vec))
	require.NoError(t, repo.UpdateEmbedding(ctx, experience.ID, vec))

	results, err := repo.SearchByEmbedding(ctx, vec, service.SearchFilters{
		BankID:   "bank-f",
		FactType: domain.FactTypeExperience,
	}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, experience.ID, results[0].Fact.ID)
}

func TestTxRunner_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	runner := NewTxRunner(pool)
	repo := NewFactRepository(pool)

	fact := newTestFact("bank-tx")
	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		if err := repos.Facts().Create(ctx, fact); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, err = repo.GetByID(ctx, fact.ID)
	assert.ErrorIs(t, err, domain.ErrFactNotFound)
}

func TestTxRunner_CommitsAllRepositories(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	runner := NewTxRunner(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	fact := newTestFact("bank-tx")
	chunk := &domain.ChunkRecord{
		ID:        uuid.NewString(),
		BankID:    "bank-tx",
		ChunkText: "chunk text",
		FactCount: 1,
		CreatedAt: now,
	}
	job := &domain.EmbeddingJob{
		ID:        uuid.NewString(),
		FactID:    fact.ID,
		Status:    domain.EmbeddingJobStatusPending,
		CreatedAt: now,
	}

	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		if err := repos.Facts().Create(ctx, fact); err != nil {
			return err
		}
		if err := repos.Chunks().Create(ctx, chunk); err != nil {
			return err
		}
		return repos.EmbeddingJobs().Create(ctx, job)
	})
	require.NoError(t, err)

	factRepo := NewFactRepository(pool)
	retrieved, err := factRepo.GetByID(ctx, fact.ID)
	require.NoError(t, err)
	assert.Equal(t, fact.ID, retrieved.ID)

	jobRepo := NewEmbeddingJobRepository(pool)
	claimed, err := jobRepo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, fact.ID, claimed[0].FactID)

	chunkRepo := NewChunkRepository(pool)
	records, err := chunkRepo.ListByBank(ctx, "bank-tx", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "chunk text", records[0].ChunkText)
}
