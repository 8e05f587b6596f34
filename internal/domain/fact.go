package domain

import "time"

// FactType classifies the perspective a fact is recorded from.
type FactType string

const (
	// FactTypeWorld covers facts about the user, other people, or the world.
	FactTypeWorld FactType = "world"
	// FactTypeExperience covers facts about the agent's own interactions.
	FactTypeExperience FactType = "experience"
	// FactTypeOpinion covers opinions and beliefs the agent has formed.
	FactTypeOpinion FactType = "opinion"
)

// IsValid reports whether t is one of the known fact types.
func (t FactType) IsValid() bool {
	switch t {
	case FactTypeWorld, FactTypeExperience, FactTypeOpinion:
		return true
	}
	return false
}

// RelationType describes how a fact relates causally to an earlier fact.
type RelationType string

const (
	RelationCauses   RelationType = "causes"
	RelationCausedBy RelationType = "caused_by"
	RelationEnables  RelationType = "enables"
	RelationPrevents RelationType = "prevents"
)

// IsValid reports whether t is one of the known relation types.
func (t RelationType) IsValid() bool {
	switch t {
	case RelationCauses, RelationCausedBy, RelationEnables, RelationPrevents:
		return true
	}
	return false
}

// CausalRelation is a directed link from a fact to an earlier fact.
// TargetFactIndex always refers to a fact with a strictly smaller index
// within the same ordering scope, so the relation graph is acyclic by
// construction. Inside a chunk the index is chunk-local; after
// orchestration it is global across the whole extraction run.
type CausalRelation struct {
	TargetFactIndex int          `json:"target_fact_index"`
	RelationType    RelationType `json:"relation_type"`
	Strength        float64      `json:"strength"`
}

// ContentItem is one unit of input submitted for fact extraction: a
// conversation transcript or a document, plus the reference date used
// to resolve relative time expressions in it.
type ContentItem struct {
	Text      string
	EventDate time.Time
	Context   string
	Metadata  map[string]string
}

// ExtractedFact is one atomic structured statement derived from text.
// FactText is the combined what/when/who/why dimensions in fixed order.
// OccurredStart/OccurredEnd are set only for event-kind facts; for a
// point event they are equal. MentionedAt is the content's event date
// plus the per-fact temporal offset applied by the orchestrator.
type ExtractedFact struct {
	FactText        string
	FactType        FactType
	OccurredStart   *time.Time
	OccurredEnd     *time.Time
	MentionedAt     time.Time
	Entities        []string
	CausalRelations []CausalRelation
	ContentIndex    int
	ChunkIndex      int
	Context         string
	Metadata        map[string]string
}

// ChunkMetadata is the audit record linking one chunk of a content item
// to the number of facts it produced.
type ChunkMetadata struct {
	ChunkText    string
	FactCount    int
	ContentIndex int
	ChunkIndex   int
}

// ChunkRecord is a persisted chunk audit row.
type ChunkRecord struct {
	ID           string
	BankID       string
	ChunkText    string
	FactCount    int
	ContentIndex int
	ChunkIndex   int
	CreatedAt    time.Time
}

// FactLink is a persisted causal relation resolved from a global fact
// index to the target fact's ID.
type FactLink struct {
	TargetFactID string       `json:"target_fact_id"`
	RelationType RelationType `json:"relation_type"`
	Strength     float64      `json:"strength"`
}

// Fact is a stored fact row in a memory bank.
type Fact struct {
	ID            string
	BankID        string
	FactText      string
	FactType      FactType
	OccurredStart *time.Time
	OccurredEnd   *time.Time
	MentionedAt   time.Time
	Entities      []string
	Links         []FactLink
	ContentIndex  int
	ChunkIndex    int
	Context       string
	Metadata      map[string]string
	Embedding     []float32
	CreatedAt     time.Time
}
