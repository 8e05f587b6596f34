// Package extraction turns unstructured text into a time-ordered,
// causally-linked stream of atomic facts, using an external language
// model as the extraction oracle. The package owns the orchestration
// around the oracle: bounded chunking, lenient response validation and
// repair, auto-split recovery from truncated output, causal index
// sanitization, and global ordering across many concurrent calls.
package extraction

import "time"

// Mode selects which kinds of facts a run extracts.
type Mode string

const (
	// ModeFacts extracts world and experience facts, skipping opinions.
	ModeFacts Mode = "facts"
	// ModeOpinions extracts only opinion facts.
	ModeOpinions Mode = "opinions"
)

// Config holds the extraction pipeline tunables. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	// MaxChunkChars bounds the size of a single oracle call's input.
	MaxChunkChars int
	// MinSplitChars is the floor below which auto-split recovery refuses
	// to split further and fails instead, guaranteeing termination.
	MinSplitChars int
	// MaxAttempts bounds whole-call retries on malformed responses.
	MaxAttempts int
	// RepairRateThreshold is the fraction of repaired or dropped entries
	// above which the whole call is retried if an attempt remains.
	RepairRateThreshold float64
	// BoundaryWindowFrac is the fraction of chunk length searched around
	// the midpoint for a sentence boundary during auto-split.
	BoundaryWindowFrac float64
	// MaxRelationsPerFact caps causal relations kept per fact at parse time.
	MaxRelationsPerFact int
	// FactOffset is the synthetic per-fact time increment applied within a
	// content item to impose a strict order on facts sharing a base date.
	FactOffset time.Duration
	// MaxOutputTokens bounds the oracle's response size per call.
	MaxOutputTokens int
	// Temperature for oracle calls.
	Temperature float32
	// AgentName identifies the memory owner in opinion extraction prompts.
	AgentName string
	// Mode selects fact kinds to extract.
	Mode Mode
}

// DefaultConfig returns the production extraction configuration.
func DefaultConfig() Config {
	return Config{
		MaxChunkChars:       3000,
		MinSplitChars:       200,
		MaxAttempts:         2,
		RepairRateThreshold: 0.2,
		BoundaryWindowFrac:  0.2,
		MaxRelationsPerFact: 2,
		FactOffset:          10 * time.Second,
		MaxOutputTokens:     16384,
		Temperature:         0.1,
		Mode:                ModeFacts,
	}
}

// withDefaults fills in zero fields so a partially specified Config
// behaves sensibly in tests.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxChunkChars <= 0 {
		c.MaxChunkChars = def.MaxChunkChars
	}
	if c.MinSplitChars <= 0 {
		c.MinSplitChars = def.MinSplitChars
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.RepairRateThreshold <= 0 {
		c.RepairRateThreshold = def.RepairRateThreshold
	}
	if c.BoundaryWindowFrac <= 0 {
		c.BoundaryWindowFrac = def.BoundaryWindowFrac
	}
	if c.MaxRelationsPerFact <= 0 {
		c.MaxRelationsPerFact = def.MaxRelationsPerFact
	}
	if c.FactOffset <= 0 {
		c.FactOffset = def.FactOffset
	}
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = def.MaxOutputTokens
	}
	if c.Mode == "" {
		c.Mode = def.Mode
	}
	return c
}
