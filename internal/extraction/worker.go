package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/factlineai/factline/internal/domain"
	"github.com/factlineai/factline/internal/llm"
)

// Oracle is the structured-output completion surface the worker depends
// on. It returns the decoded response object without schema validation
// so the worker can parse leniently.
type Oracle interface {
	Complete(ctx context.Context, req llm.Request) (map[string]any, error)
}

// Worker extracts facts from a single chunk via one oracle call per
// attempt, repairing what it can of the response and retrying the whole
// call when the response is malformed beyond repair.
type Worker struct {
	oracle Oracle
	cfg    Config
}

// NewWorker creates a chunk extraction worker.
func NewWorker(oracle Oracle, cfg Config) *Worker {
	return &Worker{oracle: oracle, cfg: cfg.withDefaults()}
}

// Extract runs extraction on one chunk and returns facts in response
// order. Malformed responses are retried up to cfg.MaxAttempts and then
// yield an empty list, never an error. ErrOutputTooLong and provider
// errors propagate to the caller.
func (w *Worker) Extract(ctx context.Context, chunk string, chunkIndex, totalChunks int, eventDate time.Time, contextNote string) ([]domain.ExtractedFact, error) {
	chunk = scrubSurrogates(chunk)
	contextNote = scrubSurrogates(contextNote)
	if contextNote == "" {
		contextNote = "none"
	}

	req := llm.Request{
		System:      w.systemPrompt(),
		User:        w.userMessage(chunk, chunkIndex, totalChunks, eventDate, contextNote),
		Scope:       "extract_facts",
		Temperature: w.cfg.Temperature,
		MaxTokens:   w.cfg.MaxOutputTokens,
		SchemaName:  "fact_extraction",
		Schema:      json.RawMessage(factExtractionSchema),
	}

	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		resp, err := w.oracle.Complete(ctx, req)
		if err != nil {
			if errors.Is(err, llm.ErrMalformedResponse) {
				if attempt < w.cfg.MaxAttempts {
					log.Printf("extraction: malformed response for chunk %d/%d (attempt %d/%d), retrying: %v",
						chunkIndex+1, totalChunks, attempt, w.cfg.MaxAttempts, err)
					continue
				}
				log.Printf("extraction: malformed response for chunk %d/%d after %d attempts, giving up: %v",
					chunkIndex+1, totalChunks, w.cfg.MaxAttempts, err)
				return nil, nil
			}
			return nil, err
		}

		rawFacts, ok := resp["facts"].([]any)
		if !ok || len(rawFacts) == 0 {
			if attempt < w.cfg.MaxAttempts {
				log.Printf("extraction: response missing fact list for chunk %d/%d (attempt %d/%d), retrying",
					chunkIndex+1, totalChunks, attempt, w.cfg.MaxAttempts)
				continue
			}
			return nil, nil
		}

		facts, repairs := w.parseFacts(rawFacts, eventDate)

		if repairs > 0 && float64(repairs)/float64(len(rawFacts)) > w.cfg.RepairRateThreshold && attempt < w.cfg.MaxAttempts {
			log.Printf("extraction: %d of %d entries needed repair for chunk %d/%d (attempt %d/%d), retrying",
				repairs, len(rawFacts), chunkIndex+1, totalChunks, attempt, w.cfg.MaxAttempts)
			continue
		}

		sanitizeCausalRelations(facts)
		return facts, nil
	}

	return nil, nil
}

// parseFacts normalizes the oracle's untyped fact entries, collecting
// partial success. The second return value counts repairs: entries
// dropped entirely plus fact types that had to be defaulted.
func (w *Worker) parseFacts(rawFacts []any, eventDate time.Time) ([]domain.ExtractedFact, int) {
	facts := make([]domain.ExtractedFact, 0, len(rawFacts))
	repairs := 0

	for i, raw := range rawFacts {
		entry, ok := raw.(map[string]any)
		if !ok {
			log.Printf("extraction: skipping non-object fact entry at index %d", i)
			repairs++
			continue
		}

		fact, repaired, err := w.normalizeFact(entry, i, len(rawFacts), eventDate)
		if err != nil {
			log.Printf("extraction: skipping fact entry %d: %v", i, err)
			repairs++
			continue
		}
		if repaired {
			repairs++
		}
		facts = append(facts, fact)
	}

	return facts, repairs
}

// normalizeFact converts one untyped response entry into a fact.
// repaired reports that the entry was kept but needed a default applied.
func (w *Worker) normalizeFact(entry map[string]any, index, total int, eventDate time.Time) (domain.ExtractedFact, bool, error) {
	repaired := false

	what := stringValue(entry, "what")
	if what == "" {
		// Accept the legacy single-field shape.
		what = stringValue(entry, "factual_core")
	}
	if what == "" {
		return domain.ExtractedFact{}, false, fmt.Errorf("missing 'what' dimension")
	}

	when := stringValue(entry, "when")
	who := stringValue(entry, "who")
	why := stringValue(entry, "why")

	factType, typeDefaulted := normalizeFactType(entry)
	if typeDefaulted {
		log.Printf("extraction: fact %d: defaulting fact_type to %q", index, factType)
		repaired = true
	}

	factKind, _ := entry["fact_kind"].(string)
	if factKind != "conversation" && factKind != "event" && factKind != "other" {
		factKind = "conversation"
	}

	fact := domain.ExtractedFact{
		FactText:        buildFactText(what, when, who, why),
		FactType:        factType,
		MentionedAt:     eventDate,
		Entities:        normalizeEntities(entry["entities"]),
		CausalRelations: w.parseRelations(entry["causal_relations"], index, total),
	}

	if factKind == "event" {
		if ts := parseTimestamp(stringValue(entry, "occurred_start")); ts != nil {
			fact.OccurredStart = ts
		} else if inferred := inferRelativeDate(fact.FactText, eventDate); inferred != nil {
			fact.OccurredStart = inferred
		}
		if ts := parseTimestamp(stringValue(entry, "occurred_end")); ts != nil {
			fact.OccurredEnd = ts
		} else if fact.OccurredStart != nil {
			// Point event.
			end := *fact.OccurredStart
			fact.OccurredEnd = &end
		}
	}

	return fact, repaired, nil
}

// normalizeFactType maps the entry's declared type onto a known fact
// type. The oracle labels agent-perspective facts "assistant"; some
// responses swap fact_type and fact_kind. The second return value
// reports that the type had to be defaulted with no explanation.
func normalizeFactType(entry map[string]any) (domain.FactType, bool) {
	raw, _ := entry["fact_type"].(string)
	if raw == "assistant" {
		return domain.FactTypeExperience, false
	}
	if t := domain.FactType(raw); t.IsValid() {
		return t, false
	}

	kind, _ := entry["fact_kind"].(string)
	if kind == "assistant" {
		return domain.FactTypeExperience, false
	}
	if t := domain.FactType(kind); t.IsValid() {
		return t, false
	}

	return domain.FactTypeWorld, true
}

// buildFactText joins the non-placeholder dimensions in fixed order.
func buildFactText(what, when, who, why string) string {
	parts := []string{what}
	if when != "" {
		parts = append(parts, "when: "+when)
	}
	if who != "" {
		parts = append(parts, "involving: "+who)
	}
	if why != "" {
		parts = append(parts, why)
	}
	return strings.Join(parts, " | ")
}

// normalizeEntities accepts bare strings or {text: ...} objects and
// returns deduplicated entity names in first-seen order.
func normalizeEntities(raw any) []string {
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(list))
	var entities []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		entities = append(entities, name)
	}

	for _, item := range list {
		switch v := item.(type) {
		case string:
			add(v)
		case map[string]any:
			if text, ok := v["text"].(string); ok {
				add(text)
			}
		}
	}
	return entities
}

// parseRelations validates one entry's causal relations, keeping only
// well-formed backward references within the response and capping the
// count per fact. Index conventions across the whole list are handled
// later by sanitizeCausalRelations.
func (w *Worker) parseRelations(raw any, factIndex, total int) []domain.CausalRelation {
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return nil
	}

	var relations []domain.CausalRelation
	for _, item := range list {
		rel, ok := item.(map[string]any)
		if !ok {
			continue
		}
		target, ok := rel["target_fact_index"].(float64)
		if !ok || target != float64(int(target)) {
			continue
		}
		relType, _ := rel["relation_type"].(string)
		if !domain.RelationType(relType).IsValid() {
			continue
		}
		t := int(target)
		if t < 0 || t > total-1 || t >= factIndex {
			continue
		}
		strength := 1.0
		if s, ok := rel["strength"].(float64); ok && s >= 0 && s <= 1 {
			strength = s
		}
		relations = append(relations, domain.CausalRelation{
			TargetFactIndex: t,
			RelationType:    domain.RelationType(relType),
			Strength:        strength,
		})
		if len(relations) >= w.cfg.MaxRelationsPerFact {
			break
		}
	}
	return relations
}

// stringValue returns the entry's value for key as a trimmed string,
// treating empty values and the "N/A" placeholder as absent.
func stringValue(entry map[string]any, key string) string {
	s, _ := entry[key].(string)
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "N/A") {
		return ""
	}
	return s
}

// timestampLayouts are accepted in order for occurred_start/end values.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return &ts
		}
	}
	return nil
}

// relativeDatePatterns maps relative time expressions to day offsets
// from the content's event date, used to backfill occurred_start when
// the oracle classified a fact as an event but set no timestamp.
var relativeDatePatterns = []struct {
	re     *regexp.Regexp
	offset int
}{
	{regexp.MustCompile(`\blast night\b`), -1},
	{regexp.MustCompile(`\byesterday\b`), -1},
	{regexp.MustCompile(`\btoday\b`), 0},
	{regexp.MustCompile(`\bthis morning\b`), 0},
	{regexp.MustCompile(`\bthis afternoon\b`), 0},
	{regexp.MustCompile(`\bthis evening\b`), 0},
	{regexp.MustCompile(`\btonigh?t\b`), 0},
	{regexp.MustCompile(`\btomorrow\b`), 1},
	{regexp.MustCompile(`\blast week\b`), -7},
	{regexp.MustCompile(`\bthis week\b`), 0},
	{regexp.MustCompile(`\bnext week\b`), 7},
	{regexp.MustCompile(`\blast month\b`), -30},
	{regexp.MustCompile(`\bthis month\b`), 0},
	{regexp.MustCompile(`\bnext month\b`), 30},
}

// inferRelativeDate scans fact text for a relative time expression and
// resolves it against eventDate to a midnight timestamp. Returns nil
// when no expression matches.
func inferRelativeDate(factText string, eventDate time.Time) *time.Time {
	lower := strings.ToLower(factText)
	for _, p := range relativeDatePatterns {
		if p.re.MatchString(lower) {
			target := eventDate.AddDate(0, 0, p.offset)
			midnight := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, target.Location())
			return &midnight
		}
	}
	return nil
}

// scrubSurrogates removes unpaired UTF-16 surrogate code points and
// invalid bytes that would break the request encoding. Such characters
// appear in text decoded from broken upstream sources.
func scrubSurrogates(s string) string {
	if utf8.ValidString(s) && !strings.ContainsFunc(s, isSurrogate) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			i++
			continue
		}
		if isSurrogate(r) {
			i += size
			continue
		}
		b.WriteRune(r)
		i += size
	}
	return b.String()
}

func isSurrogate(r rune) bool {
	return r >= 0xD800 && r <= 0xDFFF
}
