package scoring

import (
	"math"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/prepforge/assessment-engine/internal/errors"
	"github.com/prepforge/assessment-engine/internal/models"
)

// Outcome classifies one question inside a scored session.
type Outcome string

const (
	OutcomeCorrect     Outcome = "correct"
	OutcomeIncorrect   Outcome = "incorrect"
	OutcomeUnattempted Outcome = "unattempted"
)

// Compute grades a frozen session snapshot under the given marking scheme.
// It is a pure function: no side effects, no hidden state, identical output for
// identical input. The snapshot is re-validated even though the session
// controller maintains the answers-subset invariant, because Compute is also
// used standalone for re-grading persisted snapshots.
func Compute(snapshot models.SessionSnapshot, scheme models.MarkingScheme) (*models.ScoreReport, error) {
	if err := validateSnapshot(snapshot); err != nil {
		return nil, err
	}

	report := &models.ScoreReport{
		TotalQuestions:   len(snapshot.Questions),
		SubjectBreakdown: make(map[string]models.SubjectScore),
	}

	for i := range snapshot.Questions {
		q := &snapshot.Questions[i]

		outcome := classify(q, snapshot.Answers)
		switch outcome {
		case OutcomeCorrect:
			report.Correct++
			report.RawScore += scheme.PositiveFor(q)
		case OutcomeIncorrect:
			report.Incorrect++
			report.RawScore -= scheme.PenaltyFor(q)
		case OutcomeUnattempted:
			report.Unattempted++
		}

		report.MaxScore += scheme.PositiveFor(q)

		subject := report.SubjectBreakdown[q.Subject]
		subject.Total++
		if outcome == OutcomeCorrect {
			subject.Correct++
		}
		report.SubjectBreakdown[q.Subject] = subject
	}

	report.AccuracyPct = percentage(report.Correct, report.TotalQuestions)
	for subject, score := range report.SubjectBreakdown {
		score.Pct = percentage(score.Correct, score.Total)
		report.SubjectBreakdown[subject] = score
	}

	return report, nil
}

// Classify returns the outcome for a single question against the recorded
// answers. A missing record or a record with an empty selection is unattempted.
func classify(q *models.Question, answers map[string]models.AnswerRecord) Outcome {
	record, ok := answers[q.ID]
	if !ok || record.IsEmpty() {
		return OutcomeUnattempted
	}
	if matches(q, &record) {
		return OutcomeCorrect
	}
	return OutcomeIncorrect
}

func matches(q *models.Question, record *models.AnswerRecord) bool {
	switch q.Kind {
	case models.KindSingleChoice:
		return len(record.SelectedOptions) == 1 &&
			len(q.CorrectOptions) == 1 &&
			record.SelectedOptions[0] == q.CorrectOptions[0]
	case models.KindMultiChoice:
		return setsEqual(record.SelectedOptions, q.CorrectOptions)
	case models.KindNumerical:
		return numericMatch(record.TextAnswer, q.CorrectAnswer)
	case models.KindInteger:
		return integerMatch(record.TextAnswer, q.CorrectAnswer)
	case models.KindFillBlank:
		return textMatch(record.TextAnswer, q.CorrectAnswer)
	}
	return false
}

// setsEqual compares two option-id sets ignoring order and duplicates.
func setsEqual(a, b []string) bool {
	da, db := dedupeSorted(a), dedupeSorted(b)
	if len(da) != len(db) {
		return false
	}
	for i := range da {
		if da[i] != db[i] {
			return false
		}
	}
	return true
}

func dedupeSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// numericMatch parses both sides as floats so "0.50" matches "0.5".
// Unparseable input is simply not a match, never an error.
func numericMatch(given, expected string) bool {
	g, err := strconv.ParseFloat(strings.TrimSpace(given), 64)
	if err != nil {
		return false
	}
	e, err := strconv.ParseFloat(strings.TrimSpace(expected), 64)
	if err != nil {
		return false
	}
	return math.Abs(g-e) < 1e-9
}

func integerMatch(given, expected string) bool {
	g, err := strconv.ParseInt(strings.TrimSpace(given), 10, 64)
	if err != nil {
		return false
	}
	e, err := strconv.ParseInt(strings.TrimSpace(expected), 10, 64)
	if err != nil {
		return false
	}
	return g == e
}

func textMatch(given, expected string) bool {
	return strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(expected))
}

// percentage rounds to one decimal and guards the zero denominator.
func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

func validateSnapshot(snapshot models.SessionSnapshot) error {
	known := make(map[string]struct{}, len(snapshot.Questions))
	for i := range snapshot.Questions {
		known[snapshot.Questions[i].ID] = struct{}{}
	}
	for questionID := range snapshot.Answers {
		if _, ok := known[questionID]; !ok {
			return apperrors.NewValidationError("question_id",
				"answer recorded for a question not in the question list", questionID)
		}
	}
	return nil
}
