package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/factlineai/factline/internal/domain"
	"github.com/factlineai/factline/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type FactRepository struct {
	db dbtx
}

func NewFactRepository(pool *pgxpool.Pool) *FactRepository {
	return &FactRepository{db: pool}
}

func NewFactRepositoryWithTx(tx pgx.Tx) *FactRepository {
	return &FactRepository{db: tx}
}

const factColumns = `id, bank_id, fact_text, fact_type, occurred_start, occurred_end, mentioned_at,
	 entities, links, content_index, chunk_index, context, metadata, created_at`

func (r *FactRepository) Create(ctx context.Context, f *domain.Fact) error {
	links, err := json.Marshal(f.Links)
	if err != nil {
		return err
	}
	var metadata []byte
	if f.Metadata != nil {
		metadata, err = json.Marshal(f.Metadata)
		if err != nil {
			return err
		}
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO facts (id, bank_id, fact_text, fact_type, occurred_start, occurred_end, mentioned_at,
		                    entities, links, content_index, chunk_index, context, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		f.ID, f.BankID, f.FactText, f.FactType, f.OccurredStart, f.OccurredEnd, f.MentionedAt,
		f.Entities, links, f.ContentIndex, f.ChunkIndex, nullableString(f.Context), metadata, f.CreatedAt,
	)
	return err
}

func (r *FactRepository) GetByID(ctx context.Context, id string) (*domain.Fact, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+factColumns+` FROM facts WHERE id = $1`,
		id,
	)
	fact, err := scanFact(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFactNotFound
		}
		return nil, err
	}
	return fact, nil
}

func (r *FactRepository) ListByBank(ctx context.Context, bankID string, limit int) ([]*domain.Fact, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+factColumns+` FROM facts
		 WHERE bank_id = $1 ORDER BY mentioned_at DESC LIMIT $2`,
		bankID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFactRows(rows)
}

func (r *FactRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE facts SET embedding = $1 WHERE id = $2`,
		pgvector.NewVector(embedding), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrFactNotFound
	}
	return nil
}

func (r *FactRepository) SearchByEmbedding(ctx context.Context, embedding []float32, filters service.SearchFilters, limit int) ([]*service.FactMatch, error) {
	if limit <= 0 {
		limit = 20
	}

	vec := pgvector.NewVector(embedding)

	query := `
		SELECT ` + factColumns + `,
		       1.0 / (1.0 + (embedding <=> $1)) AS score
		FROM facts
		WHERE bank_id = $2 AND embedding IS NOT NULL`
	args := []any{vec, filters.BankID}

	if filters.FactType != "" {
		query += ` AND fact_type = $3`
		args = append(args, filters.FactType)
	}

	query += ` ORDER BY score DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*service.FactMatch, 0)
	for rows.Next() {
		fact := &domain.Fact{}
		var match service.FactMatch
		if err := scanFactFields(rows, fact, &match.Score); err != nil {
			return nil, err
		}
		match.Fact = fact
		results = append(results, &match)
	}
	return results, rows.Err()
}

func scanFact(row pgx.Row) (*domain.Fact, error) {
	fact := &domain.Fact{}
	if err := scanFactFields(row, fact); err != nil {
		return nil, err
	}
	return fact, nil
}

func scanFactRows(rows pgx.Rows) ([]*domain.Fact, error) {
	var results []*domain.Fact
	for rows.Next() {
		fact, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, fact)
	}
	return results, rows.Err()
}

// scanFactFields scans the factColumns into f, plus any trailing extras
// (e.g. a score column).
func scanFactFields(row pgx.Row, f *domain.Fact, extras ...any) error {
	var (
		links, metadata []byte
		contextNote     *string
	)
	dest := []any{
		&f.ID, &f.BankID, &f.FactText, &f.FactType, &f.OccurredStart, &f.OccurredEnd, &f.MentionedAt,
		&f.Entities, &links, &f.ContentIndex, &f.ChunkIndex, &contextNote, &metadata, &f.CreatedAt,
	}
	dest = append(dest, extras...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	if contextNote != nil {
		f.Context = *contextNote
	}
	if len(links) > 0 {
		if err := json.Unmarshal(links, &f.Links); err != nil {
			return err
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &f.Metadata); err != nil {
			return err
		}
	}
	return nil
}
