package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/prepforge/assessment-engine/internal/errors"
	"github.com/prepforge/assessment-engine/internal/models"
)

// The question bank emits heterogeneous payloads: options arrive as plain
// strings or as objects keyed content/text, and older records omit the kind
// field. Everything is normalized here, once, at load time; the core engines
// only ever see canonical models.Question values.

// RawOption decodes either a bare string or an option object.
type RawOption struct {
	ID      string
	Content string
}

func (o *RawOption) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		o.Content = plain
		return nil
	}

	var obj struct {
		ID      string `json:"id"`
		Content string `json:"content"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("option is neither a string nor an option object: %w", err)
	}

	o.ID = obj.ID
	o.Content = obj.Content
	if o.Content == "" {
		o.Content = obj.Text
	}
	return nil
}

// RawQuestion is one question-bank record before normalization.
type RawQuestion struct {
	ID             string      `json:"id"`
	Subject        string      `json:"subject"`
	Kind           string      `json:"kind"`
	Text           string      `json:"text"`
	Options        []RawOption `json:"options"`
	CorrectOptions []string    `json:"correct_options"`
	CorrectOption  string      `json:"correct_option"`
	CorrectAnswer  string      `json:"correct_answer"`
	PositiveMarks  *float64    `json:"positive_marks"`
	NegativeMarks  *float64    `json:"negative_marks"`
}

// Normalize converts a question-bank payload into canonical questions,
// validating ids, kinds, and answer keys. It is the only place allowed to
// guess a missing question kind.
func Normalize(raw []RawQuestion) ([]models.Question, error) {
	if len(raw) == 0 {
		return nil, apperrors.NewValidationError("questions", "must not be empty", nil)
	}

	questions := make([]models.Question, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for i, rq := range raw {
		if rq.ID == "" {
			return nil, apperrors.NewValidationError("id", fmt.Sprintf("missing on question at index %d", i), nil)
		}
		if _, dup := seen[rq.ID]; dup {
			return nil, apperrors.NewValidationError("id", "duplicate question id", rq.ID)
		}
		seen[rq.ID] = struct{}{}

		question, err := normalizeOne(rq)
		if err != nil {
			return nil, err
		}
		questions = append(questions, question)
	}

	return questions, nil
}

func normalizeOne(rq RawQuestion) (models.Question, error) {
	kind, err := resolveKind(rq)
	if err != nil {
		return models.Question{}, err
	}

	question := models.Question{
		ID:            rq.ID,
		Subject:       rq.Subject,
		Kind:          kind,
		Text:          rq.Text,
		CorrectAnswer: strings.TrimSpace(rq.CorrectAnswer),
		PositiveMarks: rq.PositiveMarks,
		NegativeMarks: rq.NegativeMarks,
	}

	question.Options = make([]models.Option, len(rq.Options))
	for i, opt := range rq.Options {
		id := opt.ID
		if id == "" {
			// Positional fallback for banks that ship bare option strings.
			id = fmt.Sprintf("opt-%d", i)
		}
		question.Options[i] = models.Option{ID: id, Content: opt.Content}
	}

	question.CorrectOptions = rq.CorrectOptions
	if len(question.CorrectOptions) == 0 && rq.CorrectOption != "" {
		question.CorrectOptions = []string{rq.CorrectOption}
	}

	if err := validateAnswerKey(&question); err != nil {
		return models.Question{}, err
	}
	return question, nil
}

func resolveKind(rq RawQuestion) (models.QuestionKind, error) {
	switch models.QuestionKind(rq.Kind) {
	case models.KindSingleChoice, models.KindMultiChoice, models.KindNumerical,
		models.KindInteger, models.KindFillBlank:
		return models.QuestionKind(rq.Kind), nil
	}
	if rq.Kind != "" {
		return "", apperrors.NewValidationError("kind", "is not a recognized question kind", rq.Kind)
	}
	return inferKind(rq), nil
}

// inferKind is the last-resort heuristic for legacy records without a
// server-assigned kind. It never runs for records that carry one.
func inferKind(rq RawQuestion) models.QuestionKind {
	if strings.Contains(rq.Text, "_____") {
		return models.KindFillBlank
	}
	if len(rq.Options) > 0 {
		if len(rq.CorrectOptions) > 1 {
			return models.KindMultiChoice
		}
		return models.KindSingleChoice
	}
	return models.KindNumerical
}

func validateAnswerKey(q *models.Question) error {
	if q.IsChoiceKind() {
		if len(q.Options) == 0 {
			return apperrors.NewValidationError("options", "choice question has no options", q.ID)
		}
		if len(q.CorrectOptions) == 0 {
			return apperrors.NewValidationError("correct_options", "choice question has no answer key", q.ID)
		}
		if q.Kind == models.KindSingleChoice && len(q.CorrectOptions) != 1 {
			return apperrors.NewValidationError("correct_options", "single-choice question must have exactly one answer", q.ID)
		}
		known := make(map[string]struct{}, len(q.Options))
		for _, opt := range q.Options {
			known[opt.ID] = struct{}{}
		}
		for _, id := range q.CorrectOptions {
			if _, ok := known[id]; !ok {
				return apperrors.NewValidationError("correct_options",
					fmt.Sprintf("answer key references unknown option '%s'", id), q.ID)
			}
		}
		return nil
	}

	if q.CorrectAnswer == "" {
		return apperrors.NewValidationError("correct_answer", "question has no answer key", q.ID)
	}
	return nil
}
