package models

type QuestionKind string

const (
	KindSingleChoice QuestionKind = "single_choice"
	KindMultiChoice  QuestionKind = "multi_choice"
	KindNumerical    QuestionKind = "numerical"
	KindInteger      QuestionKind = "integer"
	KindFillBlank    QuestionKind = "fill_blank"
)

// Option is a canonical answer option. Heterogeneous question-bank payloads are
// normalized into this shape once at ingestion; nothing downstream re-sniffs shapes.
type Option struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Question is immutable once a session starts.
type Question struct {
	ID      string       `json:"id" validate:"required"`
	Subject string       `json:"subject" validate:"required"`
	Kind    QuestionKind `json:"kind" validate:"required,question_kind"`
	Text    string       `json:"text"`
	Options []Option     `json:"options"`

	// Correct answer. Choice kinds use CorrectOptions (one entry for single
	// choice, the full set for multi choice); text/number kinds use CorrectAnswer.
	CorrectOptions []string `json:"correct_options,omitempty"`
	CorrectAnswer  string   `json:"correct_answer,omitempty"`

	// Per-question marking overrides; nil means the scheme default applies.
	PositiveMarks *float64 `json:"positive_marks,omitempty"`
	NegativeMarks *float64 `json:"negative_marks,omitempty"`
}

// IsChoiceKind reports whether the question is answered by selecting options.
func (q *Question) IsChoiceKind() bool {
	return q.Kind == KindSingleChoice || q.Kind == KindMultiChoice
}
