package extraction

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/factlineai/factline/internal/domain"
	"github.com/factlineai/factline/internal/llm"
)

// ErrUnsplittable is returned when a chunk at or below the minimum
// split size still overflows the oracle's output budget. It bounds the
// auto-split recursion on pathological input.
var ErrUnsplittable = errors.New("chunk at minimum split size still exceeds output budget")

// splitBoundaries are tried in order when searching for a sentence
// boundary near a chunk's midpoint.
var splitBoundaries = []string{". ", "! ", "? ", "\n\n"}

// ExtractWithAutoSplit runs the worker on a chunk, recovering from
// oracle output truncation by halving the chunk at a nearby sentence
// boundary and extracting both halves concurrently. Results are
// concatenated left half first so ordering follows text position. A
// half that still overflows is split again; the minimum split size
// floor guarantees termination.
func (w *Worker) ExtractWithAutoSplit(ctx context.Context, chunk string, chunkIndex, totalChunks int, eventDate time.Time, contextNote string) ([]domain.ExtractedFact, error) {
	facts, err := w.Extract(ctx, chunk, chunkIndex, totalChunks, eventDate, contextNote)
	if err == nil {
		return facts, nil
	}
	if !errors.Is(err, llm.ErrOutputTooLong) {
		return nil, err
	}

	if len(chunk) <= w.cfg.MinSplitChars {
		return nil, fmt.Errorf("%w: %d chars, floor %d", ErrUnsplittable, len(chunk), w.cfg.MinSplitChars)
	}

	first, second := splitAtBoundary(chunk, w.cfg.BoundaryWindowFrac)
	log.Printf("extraction: output too long for chunk %d/%d (%d chars), split into %d and %d chars",
		chunkIndex+1, totalChunks, len(chunk), len(first), len(second))

	halves := [2]string{first, second}
	var (
		wg      sync.WaitGroup
		results [2][]domain.ExtractedFact
		errs    [2]error
	)
	for i, half := range halves {
		if half == "" {
			continue
		}
		wg.Add(1)
		go func(i int, half string) {
			defer wg.Done()
			results[i], errs[i] = w.ExtractWithAutoSplit(ctx, half, chunkIndex, totalChunks, eventDate, contextNote)
		}(i, half)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return append(results[0], results[1]...), nil
}

// splitAtBoundary cuts chunk at the sentence boundary nearest its
// midpoint, searching a window of windowFrac of the chunk length on
// either side, or at the exact midpoint when no boundary is found.
func splitAtBoundary(chunk string, windowFrac float64) (string, string) {
	mid := len(chunk) / 2
	window := int(float64(len(chunk)) * windowFrac)
	start := mid - window
	if start < 0 {
		start = 0
	}
	end := mid + window
	if end > len(chunk) {
		end = len(chunk)
	}

	split := mid
	for _, boundary := range splitBoundaries {
		if pos := strings.LastIndex(chunk[start:end], boundary); pos != -1 {
			split = start + pos + len(boundary)
			break
		}
	}

	return strings.TrimSpace(chunk[:split]), strings.TrimSpace(chunk[split:])
}
