package extraction

import (
	"encoding/json"
	"strings"
)

// separators is the hierarchy tried in order when splitting plain text:
// paragraph breaks, line breaks, sentence endings, clause punctuation,
// word boundaries, and finally raw characters.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", "; ", ", ", " ", ""}

// ChunkText splits text into ordered chunks of at most maxChars.
//
// Text that parses as a JSON array of turn objects is chunked at turn
// boundaries: turns are accumulated greedily and never split, so every
// chunk is a valid serialized sub-conversation. A single turn larger
// than maxChars is kept whole in its own oversized chunk.
//
// All other text is split hierarchically on the separator hierarchy,
// producing contiguous, non-overlapping pieces whose concatenation
// reconstructs the input.
func ChunkText(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultConfig().MaxChunkChars
	}
	if len(text) <= maxChars {
		return []string{text}
	}

	if chunks, ok := chunkConversation(text, maxChars); ok {
		return chunks
	}

	return splitBySeparators(text, maxChars, separators)
}

// chunkConversation chunks a serialized conversation at turn boundaries.
// Returns ok=false when text is not a JSON array of objects.
func chunkConversation(text string, maxChars int) ([]string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "[") {
		return nil, false
	}

	var rawTurns []json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &rawTurns); err != nil || len(rawTurns) == 0 {
		return nil, false
	}

	turns := make([]json.RawMessage, 0, len(rawTurns))
	for _, raw := range rawTurns {
		var turn map[string]any
		if err := json.Unmarshal(raw, &turn); err != nil {
			return nil, false
		}
		compacted, err := json.Marshal(turn)
		if err != nil {
			return nil, false
		}
		turns = append(turns, compacted)
	}

	var chunks []string
	var current []json.RawMessage
	currentSize := 2 // "[]"

	flush := func() {
		if len(current) == 0 {
			return
		}
		serialized, err := json.Marshal(current)
		if err == nil {
			chunks = append(chunks, string(serialized))
		}
		current = nil
		currentSize = 2
	}

	for _, turn := range turns {
		turnSize := len(turn) + 1 // +1 for the comma separator
		if currentSize+turnSize > maxChars && len(current) > 0 {
			flush()
		}
		current = append(current, turn)
		currentSize += turnSize
	}
	flush()

	if len(chunks) == 0 {
		return []string{trimmed}, true
	}
	return chunks, true
}

// splitBySeparators recursively splits text on the first separator in
// seps that actually occurs, merging the resulting pieces greedily up
// to maxChars. Separators stay attached to the preceding piece so
// concatenating the chunks reproduces the input exactly.
func splitBySeparators(text string, maxChars int, seps []string) []string {
	if len(text) <= maxChars {
		return []string{text}
	}
	if len(seps) == 0 || seps[0] == "" {
		return splitEvery(text, maxChars)
	}

	parts := splitKeepingSeparator(text, seps[0])
	if len(parts) == 1 {
		// Separator absent; fall through to the next level.
		return splitBySeparators(text, maxChars, seps[1:])
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, part := range parts {
		if len(part) > maxChars {
			flush()
			chunks = append(chunks, splitBySeparators(part, maxChars, seps[1:])...)
			continue
		}
		if current.Len()+len(part) > maxChars {
			flush()
		}
		current.WriteString(part)
	}
	flush()

	return chunks
}

// splitKeepingSeparator splits text on sep, keeping sep at the end of
// each piece except possibly the last.
func splitKeepingSeparator(text, sep string) []string {
	raw := strings.SplitAfter(text, sep)
	// SplitAfter can yield a trailing empty piece when text ends with sep.
	if n := len(raw); n > 1 && raw[n-1] == "" {
		raw = raw[:n-1]
	}
	return raw
}

// splitEvery is the last-resort raw character split.
func splitEvery(text string, maxChars int) []string {
	if maxChars <= 0 {
		return []string{text}
	}
	var chunks []string
	for len(text) > maxChars {
		chunks = append(chunks, text[:maxChars])
		text = text[maxChars:]
	}
	if len(text) > 0 {
		chunks = append(chunks, text)
	}
	return chunks
}
