package ingest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepforge/assessment-engine/internal/models"
)

func TestNormalize_ObjectOptions(t *testing.T) {
	payload := `[{
		"id": "q1",
		"subject": "Physics",
		"kind": "single_choice",
		"text": "Speed of light?",
		"options": [
			{"id": "a", "content": "3e8 m/s"},
			{"id": "b", "text": "3e6 m/s"}
		],
		"correct_option": "a"
	}]`

	var raw []RawQuestion
	require.NoError(t, json.Unmarshal([]byte(payload), &raw))

	questions, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, questions, 1)

	q := questions[0]
	assert.Equal(t, models.KindSingleChoice, q.Kind)
	assert.Equal(t, []models.Option{{ID: "a", Content: "3e8 m/s"}, {ID: "b", Content: "3e6 m/s"}}, q.Options)
	assert.Equal(t, []string{"a"}, q.CorrectOptions)
}

func TestNormalize_BareStringOptions(t *testing.T) {
	payload := `[{
		"id": "q1",
		"subject": "Chemistry",
		"kind": "single_choice",
		"options": ["Hydrogen", "Helium"],
		"correct_option": "opt-1"
	}]`

	var raw []RawQuestion
	require.NoError(t, json.Unmarshal([]byte(payload), &raw))

	questions, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, []models.Option{
		{ID: "opt-0", Content: "Hydrogen"},
		{ID: "opt-1", Content: "Helium"},
	}, questions[0].Options)
}

func TestNormalize_KindHeuristicFallback(t *testing.T) {
	tests := []struct {
		name string
		raw  RawQuestion
		want models.QuestionKind
	}{
		{
			"blank marker",
			RawQuestion{ID: "q1", Text: "The powerhouse of the cell is _____.", CorrectAnswer: "mitochondria"},
			models.KindFillBlank,
		},
		{
			"options imply single choice",
			RawQuestion{ID: "q2", Options: []RawOption{{ID: "a"}, {ID: "b"}}, CorrectOptions: []string{"a"}},
			models.KindSingleChoice,
		},
		{
			"multiple answers imply multi choice",
			RawQuestion{ID: "q3", Options: []RawOption{{ID: "a"}, {ID: "b"}}, CorrectOptions: []string{"a", "b"}},
			models.KindMultiChoice,
		},
		{
			"no options implies numerical",
			RawQuestion{ID: "q4", Text: "Evaluate the integral.", CorrectAnswer: "2.5"},
			models.KindNumerical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			questions, err := Normalize([]RawQuestion{tt.raw})
			require.NoError(t, err)
			assert.Equal(t, tt.want, questions[0].Kind)
		})
	}
}

func TestNormalize_ExplicitKindSkipsHeuristic(t *testing.T) {
	// The blank marker would suggest fill_blank, but the server-assigned kind wins.
	raw := RawQuestion{
		ID:            "q1",
		Kind:          "integer",
		Text:          "Fill the table: 2 + 2 = _____",
		CorrectAnswer: "4",
	}

	questions, err := Normalize([]RawQuestion{raw})
	require.NoError(t, err)
	assert.Equal(t, models.KindInteger, questions[0].Kind)
}

func TestNormalize_Rejections(t *testing.T) {
	tests := []struct {
		name string
		raw  []RawQuestion
	}{
		{"empty payload", nil},
		{"missing id", []RawQuestion{{Subject: "Physics"}}},
		{"duplicate id", []RawQuestion{
			{ID: "q1", Kind: "numerical", CorrectAnswer: "1"},
			{ID: "q1", Kind: "numerical", CorrectAnswer: "2"},
		}},
		{"unknown kind", []RawQuestion{{ID: "q1", Kind: "essay"}}},
		{"choice without options", []RawQuestion{{ID: "q1", Kind: "single_choice", CorrectOptions: []string{"a"}}}},
		{"choice without answer key", []RawQuestion{{ID: "q1", Kind: "single_choice", Options: []RawOption{{ID: "a"}}}}},
		{"single choice with two answers", []RawQuestion{{
			ID: "q1", Kind: "single_choice",
			Options:        []RawOption{{ID: "a"}, {ID: "b"}},
			CorrectOptions: []string{"a", "b"},
		}}},
		{"answer key references unknown option", []RawQuestion{{
			ID: "q1", Kind: "single_choice",
			Options:        []RawOption{{ID: "a"}},
			CorrectOptions: []string{"z"},
		}}},
		{"text kind without answer", []RawQuestion{{ID: "q1", Kind: "numerical"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.raw)
			assert.Error(t, err)
		})
	}
}
