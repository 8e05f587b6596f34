package extraction

import (
	"log"

	"github.com/factlineai/factline/internal/domain"
)

// sanitizeCausalRelations repairs or drops invalid causal references in
// one chunk's already-ordered fact list, in place. After it runs, every
// surviving relation targets a strictly earlier fact in the list, so
// the relation graph is acyclic by construction.
//
// Models sometimes emit 1-based indices. When no target is 0, the
// minimum target is at least 1, and the maximum target equals the fact
// count, every target is rewritten by subtracting 1 before validation.
func sanitizeCausalRelations(facts []domain.ExtractedFact) {
	if len(facts) == 0 {
		return
	}

	var targets []int
	for _, f := range facts {
		for _, rel := range f.CausalRelations {
			targets = append(targets, rel.TargetFactIndex)
		}
	}
	if len(targets) == 0 {
		return
	}

	oneBased := detectOneBased(targets, len(facts))

	dropped := 0
	for i := range facts {
		rels := facts[i].CausalRelations
		if len(rels) == 0 {
			continue
		}
		cleaned := rels[:0]
		for _, rel := range rels {
			t := rel.TargetFactIndex
			if oneBased {
				t--
				rel.TargetFactIndex = t
			}
			if t < 0 || t >= len(facts) || t >= i {
				dropped++
				continue
			}
			cleaned = append(cleaned, rel)
		}
		facts[i].CausalRelations = cleaned
	}

	if dropped > 0 {
		log.Printf("extraction: dropped %d invalid causal relations (one_based=%v, facts=%d)",
			dropped, oneBased, len(facts))
	}
}

func detectOneBased(targets []int, factCount int) bool {
	min, max := targets[0], targets[0]
	for _, t := range targets[1:] {
		if t == 0 {
			return false
		}
		if t < min {
			min = t
		}
		if t > max {
			max = t
		}
	}
	return min >= 1 && max == factCount
}
