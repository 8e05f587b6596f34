package extraction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/factlineai/factline/internal/domain"
	"github.com/factlineai/factline/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOracle mocks the structured-output completion client
type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) Complete(ctx context.Context, req llm.Request) (map[string]any, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

var testEventDate = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func validEntry(what string) map[string]any {
	return map[string]any{
		"what":      what,
		"when":      "N/A",
		"where":     "N/A",
		"who":       "user",
		"why":       "it matters",
		"fact_kind": "conversation",
		"fact_type": "world",
	}
}

func TestWorker_Extract_BuildsCombinedFactText(t *testing.T) {
	mockOracle := new(MockOracle)
	worker := NewWorker(mockOracle, DefaultConfig())

	mockOracle.On("Complete", mock.Anything, mock.Anything).Return(map[string]any{
		"facts": []any{
			map[string]any{
				"what":      "Emily and Sarah held their wedding in a rooftop garden",
				"when":      "2024-05-30",
				"where":     "downtown",
				"who":       "Emily (the user's college roommate), Sarah",
				"why":       "the user found it romantic",
				"fact_kind": "conversation",
				"fact_type": "world",
			},
		},
	}, nil)

	facts, err := worker.Extract(context.Background(), "chunk text", 0, 1, testEventDate, "")

	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t,
		"Emily and Sarah held their wedding in a rooftop garden | when: 2024-05-30 | involving: Emily (the user's college roommate), Sarah | the user found it romantic",
		facts[0].FactText)
	assert.Equal(t, domain.FactTypeWorld, facts[0].FactType)
	assert.Equal(t, testEventDate, facts[0].MentionedAt)
	mockOracle.AssertNumberOfCalls(t, "Complete", 1)
}

func TestWorker_Extract_PlaceholderDimensionsOmitted(t *testing.T) {
	mockOracle := new(MockOracle)
	worker := NewWorker(mockOracle, DefaultConfig())

	mockOracle.On("Complete", mock.Anything, mock.Anything).Return(map[string]any{
		"facts": []any{
			map[string]any{
				"what":      "the user prefers eating outdoors",
				"when":      "N/A",
				"where":     "N/A",
				"who":       "n/a",
				"why":       "",
				"fact_kind": "conversation",
				"fact_type": "world",
			},
		},
	}, nil)

	facts, err := worker.Extract(context.Background(), "chunk", 0, 1, testEventDate, "")

	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "the user prefers eating outdoors", facts[0].FactText)
}

func TestWorker_Extract_AssistantTypeRemapped(t *testing.T) {
	mockOracle := new(MockOracle)
	worker := NewWorker(mockOracle, DefaultConfig())

	entry := validEntry("the assistant suggested caching with Redis")
	entry["fact_type"] = "assistant"

	mockOracle.On("Complete", mock.Anything, mock.Anything).Return(map[string]any{
		"facts": []any{entry},
	}, nil)

	facts, err := worker.Extract(context.Background(), "chunk", 0, 1, testEventDate, "")

	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, domain.FactTypeExperience, facts[0].FactType)
}

func TestWorker_Extract_EntityShapesNormalized(t *testing.T) {
	mockOracle := new(MockOracle)
	worker := NewWorker(mockOracle, DefaultConfig())

	entry := validEntry("Emily helped the user move")
	entry["entities"] = []any{
		"user",
		map[string]any{"text": "Emily"},
		map[string]any{"name": "bad shape"},
		"user",
		"  ",
	}

	mockOracle.On("Complete", mock.Anything, mock.Anything).Return(map[string]any{
		"facts": []any{entry},
	}, nil)

	facts, err := worker.Extract(context.Background(), "chunk", 0, 1, testEventDate, "")

	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, []string{"user", "Emily"}, facts[0].Entities)
}

func TestWorker_Extract_MalformedResponseRetriedThenEmpty(t *testing.T) {
	mockOracle := new(MockOracle)
	worker := NewWorker(mockOracle, DefaultConfig())

	mockOracle.On("Complete", mock.Anything, mock.Anything).Return(nil, llm.ErrMalformedResponse)

	facts, err := worker.Extract(context.Background(), "chunk", 0, 1, testEventDate, "")

	assert.NoError(t, err)
	assert.Empty(t, facts)
	mockOracle.AssertNumberOfCalls(t, "Complete", 2)
}

func TestWorker_Extract_MissingFactListRetriedThenEmpty(t *testing.T) {
	mockOracle := new(MockOracle)
	worker := NewWorker(mockOracle, DefaultConfig())

	mockOracle.On("Complete", mock.Anything, mock.Anything).Return(map[string]any{
		"unexpected": "shape",
	}, nil)

	facts, err := worker.Extract(context.Background(), "chunk", 0, 1, testEventDate, "")

	assert.NoError(t, err)
	assert.Empty(t, facts)
	mockOracle.AssertNumberOfCalls(t, "Complete", 2)
}

func TestWorker_Extract_HighRepairRateTriggersRetry(t *testing.T) {
	mockOracle := new(MockOracle)
	worker := NewWorker(mockOracle, DefaultConfig())

	// Two of three entries are unusable on the first attempt.
	mockOracle.On("Complete", mock.Anything, mock.Anything).Return(map[string]any{
		"facts": []any{
			validEntry("kept fact"),
			"not an object",
			map[string]any{"fact_type": "world"},
		},
	}, nil).Once()
	mockOracle.On("Complete", mock.Anything, mock.Anything).Return(map[string]any{
		"facts": []any{
			validEntry("first fact"),
			validEntry("second fact"),
			validEntry("third fact"),
		},
	}, nil).Once()

	facts, err := worker.Extract(context.Background(), "chunk", 0, 1, testEventDate, "")

	require.NoError(t, err)
	require.Len(t, facts, 3)
	assert.Equal(t, "first fact | involving: user | it matters", facts[0].FactText)
	mockOracle.AssertNumberOfCalls(t, "Complete", 2)
}

func TestWorker_Extract_LowRepairRateAccepted(t *testing.T) {
	mockOracle := new(MockOracle)
	worker := NewWorker(mockOracle, DefaultConfig())

	// One unusable entry in ten stays under the retry threshold.
	entries := []any{"not an object"}
	for i := 0; i < 9; i++ {
		entries = append(entries, validEntry("fact"))
	}
	mockOracle.On("Complete", mock.Anything, mock.Anything).Return(map[string]any{
		"facts": entries,
	}, nil)

	facts, err := worker.Extract(context.Background(), "chunk", 0, 1, testEventDate, "")

	require.NoError(t, err)
	assert.Len(t, facts, 9)
	mockOracle.AssertNumberOfCalls(t, "Complete", 1)
}

func TestWorker_Extract_ProviderErrorPropagates(t *testing.T) {
	mockOracle := new(MockOracle)
	worker := NewWorker(mockOracle, DefaultConfig())

	providerErr := errors.New("rate limit exceeded")
	mockOracle.On("Complete", mock.Anything, mock.Anything).Return(nil, providerErr)

	facts, err := worker.Extract(context.Background(), "chunk", 0, 1, testEventDate, "")

	assert.Error(t, err)
	assert.Equal(t, providerErr, err)
	assert.Nil(t, facts)
	mockOracle.AssertNumberOfCalls(t, "Complete", 1)
}

func TestWorker_Extract_OutputTooLongPropagates(t *testing.T) {
	mockOracle := new(MockOracle)
	worker := NewWorker(mockOracle, DefaultConfig())

	mockOracle.On("Complete", mock.Anything, mock.Anything).Return(nil, llm.ErrOutputTooLong)

	_, err := worker.Extract(context.Background(), "chunk", 0, 1, testEventDate, "")

	assert.ErrorIs(t, err, llm.ErrOutputTooLong)
	mockOracle.AssertNumberOfCalls(t, "Complete", 1)
}

func TestWorker_Extract_EventTimestampsParsed(t *testing.T) {
	mockOracle := new(MockOracle)
	worker := NewWorker(mockOracle, DefaultConfig())

	entry := validEntry("the user bought a car")
	entry["fact_kind"] = "event"
	entry["occurred_start"] = "2024-06-09T15:00:00Z"

	mockOracle.On("Complete", mock.Anything, mock.Anything).Return(map[string]any{
		"facts": []any{entry},
	}, nil)

	facts, err := worker.Extract(context.Background(), "chunk", 0, 1, testEventDate, "")

	require.NoError(t, err)
	require.Len(t, facts, 1)
	expected := time.Date(2024, 6, 9, 15, 0, 0, 0, time.UTC)
	require.NotNil(t, facts[0].OccurredStart)
	assert.Equal(t, expected, *facts[0].OccurredStart)
	// Point event: end defaults to start.
	require.NotNil(t, facts[0].OccurredEnd)
	assert.Equal(t, expected, *facts[0].OccurredEnd)
}

func TestWorker_Extract_RelativeDateBackfill(t *testing.T) {
	mockOracle := new(MockOracle)
	worker := NewWorker(mockOracle, DefaultConfig())

	entry := validEntry("the user bought a new car yesterday")
	entry["fact_kind"] = "event"

	mockOracle.On("Complete", mock.Anything, mock.Anything).Return(map[string]any{
		"facts": []any{entry},
	}, nil)

	facts, err := worker.Extract(context.Background(), "chunk", 0, 1, testEventDate, "")

	require.NoError(t, err)
	require.Len(t, facts, 1)
	expected := time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)
	require.NotNil(t, facts[0].OccurredStart)
	assert.Equal(t, expected, *facts[0].OccurredStart)
	require.NotNil(t, facts[0].OccurredEnd)
	assert.Equal(t, expected, *facts[0].OccurredEnd)
}

func TestWorker_Extract_ConversationFactsHaveNoOccurred(t *testing.T) {
	mockOracle := new(MockOracle)
	worker := NewWorker(mockOracle, DefaultConfig())

	entry := validEntry("the user went hiking yesterday")
	entry["fact_kind"] = "conversation"

	mockOracle.On("Complete", mock.Anything, mock.Anything).Return(map[string]any{
		"facts": []any{entry},
	}, nil)

	facts, err := worker.Extract(context.Background(), "chunk", 0, 1, testEventDate, "")

	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Nil(t, facts[0].OccurredStart)
	assert.Nil(t, facts[0].OccurredEnd)
}

func TestWorker_Extract_RelationCapAndPreFilter(t *testing.T) {
	mockOracle := new(MockOracle)
	worker := NewWorker(mockOracle, DefaultConfig())

	relation := func(target int) map[string]any {
		return map[string]any{
			"target_fact_index": float64(target),
			"relation_type":     "caused_by",
			"strength":          0.8,
		}
	}

	last := validEntry("fourth fact")
	last["causal_relations"] = []any{
		relation(7),  // out of range, dropped
		relation(3),  // self reference, dropped
		relation(0),  // kept
		relation(1),  // kept
		relation(2),  // over the per-fact cap
		map[string]any{"relation_type": "causes"}, // missing target, dropped
	}

	mockOracle.On("Complete", mock.Anything, mock.Anything).Return(map[string]any{
		"facts": []any{
			validEntry("first fact"),
			validEntry("second fact"),
			validEntry("third fact"),
			last,
		},
	}, nil)

	facts, err := worker.Extract(context.Background(), "chunk", 0, 1, testEventDate, "")

	require.NoError(t, err)
	require.Len(t, facts, 4)
	require.Len(t, facts[3].CausalRelations, 2)
	assert.Equal(t, 0, facts[3].CausalRelations[0].TargetFactIndex)
	assert.Equal(t, 1, facts[3].CausalRelations[1].TargetFactIndex)
	assert.Equal(t, domain.RelationCausedBy, facts[3].CausalRelations[0].RelationType)
	assert.Equal(t, 0.8, facts[3].CausalRelations[0].Strength)
}

func TestNormalizeFactType_KindFallback(t *testing.T) {
	factType, defaulted := normalizeFactType(map[string]any{
		"fact_type": "event",
		"fact_kind": "assistant",
	})
	assert.Equal(t, domain.FactTypeExperience, factType)
	assert.False(t, defaulted)

	factType, defaulted = normalizeFactType(map[string]any{
		"fact_type": "conversation",
		"fact_kind": "opinion",
	})
	assert.Equal(t, domain.FactTypeOpinion, factType)
	assert.False(t, defaulted)

	factType, defaulted = normalizeFactType(map[string]any{
		"fact_type": "something else",
	})
	assert.Equal(t, domain.FactTypeWorld, factType)
	assert.True(t, defaulted)
}

func TestInferRelativeDate(t *testing.T) {
	eventDate := time.Date(2024, 6, 10, 18, 30, 0, 0, time.UTC)

	tests := []struct {
		text string
		days int
		want bool
	}{
		{"we met last night at the bar", -1, true},
		{"the user bought groceries yesterday", -1, true},
		{"the demo is scheduled for tomorrow", 1, true},
		{"the trip happened last week", -7, true},
		{"rent is due next month", 30, true},
		{"the user likes coffee", 0, false},
		{"todays special", 0, false}, // no word boundary match
	}

	for _, tt := range tests {
		got := inferRelativeDate(tt.text, eventDate)
		if !tt.want {
			assert.Nil(t, got, "text: %q", tt.text)
			continue
		}
		expected := time.Date(2024, 6, 10+tt.days, 0, 0, 0, 0, time.UTC)
		require.NotNil(t, got, "text: %q", tt.text)
		assert.Equal(t, expected, *got, "text: %q", tt.text)
	}
}

func TestScrubSurrogates(t *testing.T) {
	assert.Equal(t, "clean text", scrubSurrogates("clean text"))
	assert.Equal(t, "unicode é世界 ok", scrubSurrogates("unicode é世界 ok"))
	// UTF-16 surrogate bytes smuggled into the string are stripped.
	assert.Equal(t, "badtext", scrubSurrogates("bad\xed\xa0\x80text"))
	assert.Equal(t, "", scrubSurrogates(""))
}

func TestBuildFactText(t *testing.T) {
	assert.Equal(t, "just what", buildFactText("just what", "", "", ""))
	assert.Equal(t,
		"what | when: monday | involving: user | because",
		buildFactText("what", "monday", "user", "because"))
	assert.Equal(t, "what | involving: user", buildFactText("what", "", "user", ""))
}
