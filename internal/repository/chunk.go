package repository

import (
	"context"

	"github.com/factlineai/factline/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChunkRepository persists chunk audit rows.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

func (r *ChunkRepository) Create(ctx context.Context, c *domain.ChunkRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO fact_chunks (id, bank_id, chunk_text, fact_count, content_index, chunk_index, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.BankID, c.ChunkText, c.FactCount, c.ContentIndex, c.ChunkIndex, c.CreatedAt,
	)
	return err
}

func (r *ChunkRepository) ListByBank(ctx context.Context, bankID string, limit int) ([]*domain.ChunkRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, bank_id, chunk_text, fact_count, content_index, chunk_index, created_at
		 FROM fact_chunks
		 WHERE bank_id = $1
		 ORDER BY content_index ASC, chunk_index ASC
		 LIMIT $2`,
		bankID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.ChunkRecord
	for rows.Next() {
		var rec domain.ChunkRecord
		if err := rows.Scan(&rec.ID, &rec.BankID, &rec.ChunkText, &rec.FactCount, &rec.ContentIndex, &rec.ChunkIndex, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
