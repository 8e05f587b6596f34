package extraction

import (
	"context"
	"sync"
	"time"

	"github.com/factlineai/factline/internal/domain"
)

// Pipeline fans fact extraction out across content items and merges the
// results into one globally ordered, globally indexed fact stream.
type Pipeline struct {
	worker *Worker
	cfg    Config
}

// NewPipeline creates the extraction pipeline around an oracle.
func NewPipeline(oracle Oracle, cfg Config) *Pipeline {
	cfg = cfg.withDefaults()
	return &Pipeline{worker: NewWorker(oracle, cfg), cfg: cfg}
}

// contentResult holds one content item's facts grouped by chunk, in
// chunking order.
type contentResult struct {
	chunks []string
	facts  [][]domain.ExtractedFact
}

// ExtractFromContents extracts facts from all content items
// concurrently and merges them deterministically: contents in input
// order, chunks within a content in chunking order, facts within a
// chunk in extraction order, regardless of completion order.
//
// Causal relation targets are re-based from chunk-local to global fact
// indices, and each content's k-th fact receives a +k*FactOffset shift
// on its temporal fields so facts sharing a nominal event date keep a
// strict order.
func (p *Pipeline) ExtractFromContents(ctx context.Context, contents []domain.ContentItem) ([]domain.ExtractedFact, []domain.ChunkMetadata, error) {
	if len(contents) == 0 {
		return nil, nil, nil
	}

	results := make([]contentResult, len(contents))
	errs := make([]error, len(contents))

	var wg sync.WaitGroup
	for i, item := range contents {
		wg.Add(1)
		go func(i int, item domain.ContentItem) {
			defer wg.Done()
			results[i], errs[i] = p.extractContent(ctx, item)
		}(i, item)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, nil, err
		}
	}

	var (
		allFacts       []domain.ExtractedFact
		chunksMetadata []domain.ChunkMetadata
		globalChunkIdx int
		globalFactIdx  int
	)

	for contentIdx, result := range results {
		item := contents[contentIdx]

		for chunkIdx, chunkText := range result.chunks {
			chunkFacts := result.facts[chunkIdx]

			chunksMetadata = append(chunksMetadata, domain.ChunkMetadata{
				ChunkText:    chunkText,
				FactCount:    len(chunkFacts),
				ContentIndex: contentIdx,
				ChunkIndex:   globalChunkIdx,
			})

			chunkFactStart := globalFactIdx
			for _, fact := range chunkFacts {
				fact.ContentIndex = contentIdx
				fact.ChunkIndex = globalChunkIdx
				fact.Context = item.Context
				fact.Metadata = item.Metadata
				for r := range fact.CausalRelations {
					fact.CausalRelations[r].TargetFactIndex += chunkFactStart
				}
				allFacts = append(allFacts, fact)
				globalFactIdx++
			}
			globalChunkIdx++
		}
	}

	applyTemporalOffsets(allFacts, p.cfg.FactOffset)

	return allFacts, chunksMetadata, nil
}

// extractContent chunks one content item and extracts every chunk
// concurrently, keeping facts grouped by chunk.
func (p *Pipeline) extractContent(ctx context.Context, item domain.ContentItem) (contentResult, error) {
	chunks := ChunkText(item.Text, p.cfg.MaxChunkChars)

	result := contentResult{
		chunks: chunks,
		facts:  make([][]domain.ExtractedFact, len(chunks)),
	}
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk string) {
			defer wg.Done()
			result.facts[i], errs[i] = p.worker.ExtractWithAutoSplit(ctx, chunk, i, len(chunks), item.EventDate, item.Context)
		}(i, chunk)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return contentResult{}, err
		}
	}

	return result, nil
}

// applyTemporalOffsets shifts each fact's temporal fields by its
// position within its content item, in place.
func applyTemporalOffsets(facts []domain.ExtractedFact, factOffset time.Duration) {
	currentContent := 0
	contentStart := 0

	for i := range facts {
		if facts[i].ContentIndex != currentContent {
			currentContent = facts[i].ContentIndex
			contentStart = i
		}

		offset := time.Duration(i-contentStart) * factOffset
		if offset == 0 {
			continue
		}

		if facts[i].OccurredStart != nil {
			shifted := facts[i].OccurredStart.Add(offset)
			facts[i].OccurredStart = &shifted
		}
		if facts[i].OccurredEnd != nil {
			shifted := facts[i].OccurredEnd.Add(offset)
			facts[i].OccurredEnd = &shifted
		}
		facts[i].MentionedAt = facts[i].MentionedAt.Add(offset)
	}
}
