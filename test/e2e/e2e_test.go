//go:build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cannedExtraction() map[string]any {
	return map[string]any{
		"facts": []any{
			map[string]any{
				"what":      "User moved to Berlin",
				"when":      "last month",
				"who":       "user",
				"fact_type": "world",
				"fact_kind": "event",
				"entities":  []any{"user", "Berlin"},
			},
			map[string]any{
				"what":      "User is looking for an apartment",
				"fact_type": "world",
				"fact_kind": "state",
				"entities":  []any{map[string]any{"text": "user"}},
				"causal_relations": []any{
					map[string]any{
						"target_fact_index": float64(0),
						"relation_type":     "caused_by",
						"strength":          0.9,
					},
				},
			},
		},
	}
}

type factPayload struct {
	ID          string   `json:"id"`
	BankID      string   `json:"bank_id"`
	FactText    string   `json:"fact_text"`
	FactType    string   `json:"fact_type"`
	MentionedAt string   `json:"mentioned_at"`
	Entities    []string `json:"entities"`
	Links       []struct {
		TargetFactID string  `json:"target_fact_id"`
		RelationType string  `json:"relation_type"`
		Strength     float64 `json:"strength"`
	} `json:"links"`
}

// TestE2E_RetainAndRead exercises the full retain path: extraction,
// persistence, causal link resolution, and fact reads.
func TestE2E_RetainAndRead(t *testing.T) {
	env := SetupE2EEnv(t, cannedExtraction())
	defer env.Cleanup()

	resp, status, err := env.Post("/banks/bank-e2e/retain", map[string]any{
		"items": []map[string]any{
			{"text": "I moved to Berlin last month and I'm looking for an apartment."},
		},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, status)

	var result struct {
		FactIDs    []string `json:"fact_ids"`
		FactCount  int      `json:"fact_count"`
		ChunkCount int      `json:"chunk_count"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, 2, result.FactCount)
	assert.Equal(t, 1, result.ChunkCount)
	require.Len(t, result.FactIDs, 2)

	// Single fact read
	factResp, status, err := env.Get("/facts/" + result.FactIDs[1])
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)

	var fact factPayload
	require.NoError(t, json.Unmarshal(factResp.Data, &fact))
	assert.Equal(t, "bank-e2e", fact.BankID)
	assert.Contains(t, fact.FactText, "apartment")
	require.Len(t, fact.Links, 1)
	assert.Equal(t, result.FactIDs[0], fact.Links[0].TargetFactID)
	assert.Equal(t, "caused_by", fact.Links[0].RelationType)

	// Bank listing
	listResp, status, err := env.Get("/banks/bank-e2e/facts")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)

	var list struct {
		Items []factPayload `json:"items"`
	}
	require.NoError(t, json.Unmarshal(listResp.Data, &list))
	assert.Len(t, list.Items, 2)
}

// TestE2E_SearchAfterEmbedding verifies embedding jobs make facts
// searchable.
func TestE2E_SearchAfterEmbedding(t *testing.T) {
	env := SetupE2EEnv(t, cannedExtraction())
	defer env.Cleanup()

	_, status, err := env.Post("/banks/bank-search/retain", map[string]any{
		"items": []map[string]any{
			{"text": "I moved to Berlin last month and I'm looking for an apartment."},
		},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, status)

	// Before embeddings are generated, search finds nothing.
	resp, status, err := env.Post("/banks/bank-search/search", map[string]any{
		"query": "where does the user live",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	var out struct {
		Results []struct {
			Fact  factPayload `json:"fact"`
			Score float64     `json:"score"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.Empty(t, out.Results)

	require.NoError(t, env.ProcessEmbeddingJobs())

	resp, status, err = env.Post("/banks/bank-search/search", map[string]any{
		"query": "where does the user live",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	require.Len(t, out.Results, 2)
	for _, r := range out.Results {
		assert.Greater(t, r.Score, 0.0)
		assert.Equal(t, "bank-search", r.Fact.BankID)
	}
}

// TestE2E_Validation covers API-level validation failures.
func TestE2E_Validation(t *testing.T) {
	env := SetupE2EEnv(t, cannedExtraction())
	defer env.Cleanup()

	_, status, err := env.Post("/banks/bank-v/retain", map[string]any{"items": []map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)

	_, status, err = env.Post("/banks/bank-v/search", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)

	_, status, err = env.Get("/facts/00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
}
