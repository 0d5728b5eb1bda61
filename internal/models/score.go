package models

// MarkingScheme holds the point values applied per question outcome.
type MarkingScheme struct {
	CorrectMarks   float64               `json:"correct_marks" validate:"gt=0"`
	IncorrectMarks float64               `json:"incorrect_marks" validate:"gte=0"`
	NoNegativeFor  map[QuestionKind]bool `json:"no_negative_for,omitempty"`
}

// DefaultMarkingScheme is the +4/-1 scheme with negative marking waived for
// numerical and integer questions.
func DefaultMarkingScheme() MarkingScheme {
	return MarkingScheme{
		CorrectMarks:   4,
		IncorrectMarks: 1,
		NoNegativeFor: map[QuestionKind]bool{
			KindNumerical: true,
			KindInteger:   true,
		},
	}
}

// NegativeWaived reports whether incorrect answers of the given kind score 0.
func (m MarkingScheme) NegativeWaived(kind QuestionKind) bool {
	return m.NoNegativeFor[kind]
}

// PositiveFor returns the marks awarded for a correct answer to q.
func (m MarkingScheme) PositiveFor(q *Question) float64 {
	if q.PositiveMarks != nil {
		return *q.PositiveMarks
	}
	return m.CorrectMarks
}

// PenaltyFor returns the marks deducted for an incorrect answer to q.
func (m MarkingScheme) PenaltyFor(q *Question) float64 {
	if m.NegativeWaived(q.Kind) {
		return 0
	}
	if q.NegativeMarks != nil {
		return *q.NegativeMarks
	}
	return m.IncorrectMarks
}

type SubjectScore struct {
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
	Pct     float64 `json:"pct"`
}

// ScoreReport is a value object created once per completed session.
// RawScore is not clamped and may be negative.
type ScoreReport struct {
	TotalQuestions   int                     `json:"total_questions"`
	Correct          int                     `json:"correct"`
	Incorrect        int                     `json:"incorrect"`
	Unattempted      int                     `json:"unattempted"`
	RawScore         float64                 `json:"raw_score"`
	MaxScore         float64                 `json:"max_score"`
	AccuracyPct      float64                 `json:"accuracy_pct"`
	SubjectBreakdown map[string]SubjectScore `json:"subject_breakdown"`
}
