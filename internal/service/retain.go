package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/factlineai/factline/internal/domain"
	"github.com/factlineai/factline/internal/telemetry"
	"github.com/google/uuid"
)

// FactRepositoryInterface defines the repository interface for fact persistence
type FactRepositoryInterface interface {
	Create(ctx context.Context, f *domain.Fact) error
	GetByID(ctx context.Context, id string) (*domain.Fact, error)
	ListByBank(ctx context.Context, bankID string, limit int) ([]*domain.Fact, error)
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error
}

// ChunkRepositoryInterface defines the repository interface for chunk audit records
type ChunkRepositoryInterface interface {
	Create(ctx context.Context, c *domain.ChunkRecord) error
}

// EmbeddingJobRepositoryInterface defines the repository interface for embedding job persistence
type EmbeddingJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.EmbeddingJob) error
}

// Extractor runs the fact extraction pipeline over content items.
type Extractor interface {
	ExtractFromContents(ctx context.Context, contents []domain.ContentItem) ([]domain.ExtractedFact, []domain.ChunkMetadata, error)
}

// TranscriptArchive stores raw submitted transcripts. Optional; archive
// failures never fail a retain.
type TranscriptArchive interface {
	StoreTranscript(ctx context.Context, key string, body []byte) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// RetainService turns submitted content into stored facts: it runs the
// extraction pipeline, resolves global causal indices to fact IDs, and
// persists facts, chunk audit records, and embedding jobs in one
// transaction.
type RetainService struct {
	extractor Extractor
	txRunner  TxRunner
	archive   TranscriptArchive
	uuidGen   UUIDGenerator
}

// NewRetainService creates a new RetainService instance
func NewRetainService(extractor Extractor, txRunner TxRunner) *RetainService {
	return &RetainService{
		extractor: extractor,
		txRunner:  txRunner,
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

// NewRetainServiceWithArchive creates a RetainService that also archives raw transcripts.
func NewRetainServiceWithArchive(extractor Extractor, txRunner TxRunner, archive TranscriptArchive) *RetainService {
	svc := NewRetainService(extractor, txRunner)
	svc.archive = archive
	return svc
}

// NewRetainServiceWithUUIDGen creates a RetainService with a custom UUID generator (for testing)
func NewRetainServiceWithUUIDGen(extractor Extractor, txRunner TxRunner, uuidGen UUIDGenerator) *RetainService {
	svc := NewRetainService(extractor, txRunner)
	svc.uuidGen = uuidGen
	return svc
}

// RetainItem is one content unit submitted for retention.
type RetainItem struct {
	Text      string
	EventDate time.Time
	Context   string
	Metadata  map[string]string
}

// RetainInput represents the input for a retain operation
type RetainInput struct {
	BankID string
	Items  []RetainItem
}

// RetainResult summarizes one retain operation.
type RetainResult struct {
	FactIDs    []string
	FactCount  int
	ChunkCount int
}

// Retain extracts facts from the input items and stores them in the bank.
func (s *RetainService) Retain(ctx context.Context, input RetainInput) (*RetainResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetainService.Retain", telemetry.SpanAttributes{
		BankID:    input.BankID,
		Operation: "retain",
	})
	defer span.End()

	if input.BankID == "" {
		return nil, domain.ErrMissingBankID
	}
	if len(input.Items) == 0 {
		return nil, domain.ErrNoContentItems
	}

	now := time.Now().UTC()
	contents := make([]domain.ContentItem, len(input.Items))
	for i, item := range input.Items {
		if item.Text == "" {
			return nil, domain.ErrEmptyContent
		}
		eventDate := item.EventDate
		if eventDate.IsZero() {
			eventDate = now
		}
		contents[i] = domain.ContentItem{
			Text:      item.Text,
			EventDate: eventDate,
			Context:   item.Context,
			Metadata:  item.Metadata,
		}
	}

	s.archiveTranscripts(ctx, input.BankID, input.Items)

	extracted, chunks, err := s.extractor.ExtractFromContents(ctx, contents)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstreamFailure, "fact extraction failed", err)
	}

	factIDs := make([]string, len(extracted))
	for i := range extracted {
		factIDs[i] = s.uuidGen.NewString()
	}

	facts := make([]*domain.Fact, len(extracted))
	for i, ef := range extracted {
		links := make([]domain.FactLink, 0, len(ef.CausalRelations))
		for _, rel := range ef.CausalRelations {
			// Targets are global indices into this run's fact stream and
			// always point at an earlier fact.
			if rel.TargetFactIndex < 0 || rel.TargetFactIndex >= i {
				continue
			}
			links = append(links, domain.FactLink{
				TargetFactID: factIDs[rel.TargetFactIndex],
				RelationType: rel.RelationType,
				Strength:     rel.Strength,
			})
		}
		facts[i] = &domain.Fact{
			ID:            factIDs[i],
			BankID:        input.BankID,
			FactText:      ef.FactText,
			FactType:      ef.FactType,
			OccurredStart: ef.OccurredStart,
			OccurredEnd:   ef.OccurredEnd,
			MentionedAt:   ef.MentionedAt,
			Entities:      ef.Entities,
			Links:         links,
			ContentIndex:  ef.ContentIndex,
			ChunkIndex:    ef.ChunkIndex,
			Context:       ef.Context,
			Metadata:      ef.Metadata,
			CreatedAt:     now,
		}
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		for _, fact := range facts {
			if err := repos.Facts().Create(ctx, fact); err != nil {
				return err
			}
		}
		for _, chunk := range chunks {
			record := &domain.ChunkRecord{
				ID:           s.uuidGen.NewString(),
				BankID:       input.BankID,
				ChunkText:    chunk.ChunkText,
				FactCount:    chunk.FactCount,
				ContentIndex: chunk.ContentIndex,
				ChunkIndex:   chunk.ChunkIndex,
				CreatedAt:    now,
			}
			if err := repos.Chunks().Create(ctx, record); err != nil {
				return err
			}
		}
		for _, fact := range facts {
			job := &domain.EmbeddingJob{
				ID:        s.uuidGen.NewString(),
				FactID:    fact.ID,
				Status:    domain.EmbeddingJobStatusPending,
				CreatedAt: now,
			}
			if err := repos.EmbeddingJobs().Create(ctx, job); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return &RetainResult{
		FactIDs:    factIDs,
		FactCount:  len(facts),
		ChunkCount: len(chunks),
	}, nil
}

// archiveTranscripts stores raw inputs best effort when an archive is configured.
func (s *RetainService) archiveTranscripts(ctx context.Context, bankID string, items []RetainItem) {
	if s.archive == nil {
		return
	}
	for i, item := range items {
		key := fmt.Sprintf("%s/%s-%d.txt", bankID, s.uuidGen.NewString(), i)
		if err := s.archive.StoreTranscript(ctx, key, []byte(item.Text)); err != nil {
			log.Printf("retain: failed to archive transcript %s: %v", key, err)
		}
	}
}
