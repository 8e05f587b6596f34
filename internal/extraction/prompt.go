package extraction

import (
	"fmt"
	"time"
)

// factExtractionSchema is the structured-output schema sent with every
// extraction call. The response is still parsed leniently; the schema
// guides the model, it does not guarantee conformance.
const factExtractionSchema = `{
  "type": "object",
  "properties": {
    "facts": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "what": {"type": "string"},
          "when": {"type": "string"},
          "where": {"type": "string"},
          "who": {"type": "string"},
          "why": {"type": "string"},
          "fact_kind": {"type": "string", "enum": ["event", "conversation"]},
          "fact_type": {"type": "string", "enum": ["world", "assistant", "opinion"]},
          "occurred_start": {"type": ["string", "null"]},
          "occurred_end": {"type": ["string", "null"]},
          "entities": {
            "type": ["array", "null"],
            "items": {
              "type": "object",
              "properties": {"text": {"type": "string"}},
              "required": ["text"],
              "additionalProperties": false
            }
          },
          "causal_relations": {
            "type": ["array", "null"],
            "items": {
              "type": "object",
              "properties": {
                "target_fact_index": {"type": "integer"},
                "relation_type": {"type": "string", "enum": ["causes", "caused_by", "enables", "prevents"]},
                "strength": {"type": "number"}
              },
              "required": ["target_fact_index", "relation_type", "strength"],
              "additionalProperties": false
            }
          }
        },
        "required": ["what", "when", "where", "who", "why", "fact_kind", "fact_type", "occurred_start", "occurred_end", "entities", "causal_relations"],
        "additionalProperties": false
      }
    }
  },
  "required": ["facts"],
  "additionalProperties": false
}`

func (w *Worker) systemPrompt() string {
	var modeInstruction string
	if w.cfg.Mode == ModeOpinions {
		modeInstruction = "Extract ONLY facts with fact_type 'opinion' (formed opinions, beliefs, stances). Do not extract 'world' or 'assistant' facts."
	} else {
		modeInstruction = "Extract ONLY facts with fact_type 'world' and 'assistant'. Do not extract opinions; they are extracted in a separate step."
	}

	return fmt.Sprintf(`Extract facts from the text as structured JSON. Be extremely detailed; write more rather than less.

%s

FACT FORMAT (all five dimensions required, as detailed as possible):
1. "what": what happened, with every concrete action, object, quantity, detail, and outcome mentioned. Never summarize. Good: "Emily and Sarah held their wedding in a rooftop garden with 50 guests and a live jazz band". Bad: "Emily got married".
2. "when": when it happened. Include dates, times, durations, frequencies, and relative references, resolved to absolute dates where possible (format YYYY-MM-DD, with time if known). Write "N/A" only when there is no temporal clue at all.
3. "where": where it happened or what place it concerns (city, venue, building, online platform, country, address). Write "N/A" only when there is no location clue at all.
4. "who": everyone involved, with names, roles, relationships, and background. Resolve pronouns and generic references to names when the text links them. Good: "Emily (the user's college roommate), Sarah (Emily's partner of 5 years)". Bad: "my friend".
5. "why": why it matters. Include feelings, preferences, motivations, context, and significance. For "assistant" facts this MUST include what the user asked or wanted to solve.

CLASSIFICATION:
- fact_kind="event": actions or occurrences anchored to a point or span in time (attended, bought, finished, happened), past events with time references, and dated future plans. Events MUST set occurred_start and occurred_end as ISO timestamps; resolve relative times against the event date given in the input, not today. A point event sets occurred_end equal to occurred_start.
- fact_kind="conversation": ongoing states (works at, lives in, married), preferences (likes, prefers, hates), and traits or abilities. Leave occurred_start and occurred_end null.
- fact_type="world": facts about the user, other people, or the world that would exist without this conversation.
- fact_type="assistant": facts about the interaction with the assistant (the user asked, the assistant suggested or helped).

PREFERENCES: every preference in the text becomes its own fact. "I love Italian food and prefer eating outdoors" yields two facts.

ENTITIES: list every named entity, object, and linking concept as {"text": "..."}: "user" when the fact concerns the user, person names, organizations, places, concrete objects, and abstract themes (friendship, career growth, celebration) that help connect related facts.

CAUSAL RELATIONS: optional, at most 2 per fact, and only when the text states a clear causal link. target_fact_index is the 0-based index of an EARLIER fact in this response's facts array: it must be less than the current fact's own index, never equal to it, and never out of range. To express "fact A caused fact B", put {"target_fact_index": <index of A>, "relation_type": "caused_by", "strength": 0.0-1.0} on B. When unsure, leave the list empty.

EXTRACT: preferences, emotions, plans, events, relationships, achievements, and significant context.
SKIP: greetings, thanks, filler, and contentless structural phrases ("thanks", "okay", "got it").`, modeInstruction)
}

func (w *Worker) userMessage(chunk string, chunkIndex, totalChunks int, eventDate time.Time, contextNote string) string {
	ownerLine := ""
	if w.cfg.Mode == ModeOpinions && w.cfg.AgentName != "" {
		ownerLine = fmt.Sprintf("\nYour name: %s", w.cfg.AgentName)
	}

	return fmt.Sprintf(`Extract facts from the following text block.%s

Chunk: %d/%d
Event date: %s (%s)
Context: %s

Text:
%s`,
		ownerLine,
		chunkIndex+1, totalChunks,
		eventDate.Format("2006-01-02 (Monday)"), eventDate.Format(time.RFC3339),
		contextNote,
		chunk)
}
