package models

import "time"

type SessionStatus string

const (
	SessionInitializing SessionStatus = "Initializing"
	SessionActive       SessionStatus = "Active"
	SessionSubmitting   SessionStatus = "Submitting"
	SessionCompleted    SessionStatus = "Completed"
	SessionAborted      SessionStatus = "Aborted"
)

// AnswerRecord is owned by the session that created it and is mutated only
// through controller operations.
type AnswerRecord struct {
	QuestionID      string   `json:"question_id"`
	SelectedOptions []string `json:"selected_options,omitempty"`
	TextAnswer      string   `json:"text_answer,omitempty"`
	MarkedForReview bool     `json:"marked_for_review"`
}

// IsEmpty reports whether the record carries no selection at all. An empty
// record still exists when only the review flag is set.
func (a *AnswerRecord) IsEmpty() bool {
	return len(a.SelectedOptions) == 0 && a.TextAnswer == ""
}

// TestSession is the state of one timed test. It is mutated only by the session
// controller and becomes immutable once Status is Completed or Aborted.
type TestSession struct {
	ID                   string                   `json:"id"`
	UserID               string                   `json:"user_id"`
	Questions            []Question               `json:"questions"`
	Answers              map[string]*AnswerRecord `json:"answers"`
	CurrentQuestionIndex int                      `json:"current_question_index"`
	TimeLimitSeconds     int                      `json:"time_limit_seconds"`
	TimeRemainingSeconds int                      `json:"time_remaining_seconds"`
	Status               SessionStatus            `json:"status"`
	Scheme               MarkingScheme            `json:"scheme"`
	StartedAt            time.Time                `json:"started_at"`
	CompletedAt          *time.Time               `json:"completed_at,omitempty"`
}

// QuestionByID returns the question with the given id, or nil.
func (s *TestSession) QuestionByID(id string) *Question {
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			return &s.Questions[i]
		}
	}
	return nil
}

// TimeTakenSeconds is the elapsed portion of the time limit.
func (s *TestSession) TimeTakenSeconds() int {
	return s.TimeLimitSeconds - s.TimeRemainingSeconds
}

// SessionSnapshot is the immutable scoring input frozen at submission time.
type SessionSnapshot struct {
	SessionID string                  `json:"session_id"`
	UserID    string                  `json:"user_id"`
	Questions []Question              `json:"questions"`
	Answers   map[string]AnswerRecord `json:"answers"`
}

// Snapshot deep-copies the parts of the session that scoring reads.
func (s *TestSession) Snapshot() SessionSnapshot {
	questions := make([]Question, len(s.Questions))
	copy(questions, s.Questions)

	answers := make(map[string]AnswerRecord, len(s.Answers))
	for id, rec := range s.Answers {
		cp := *rec
		cp.SelectedOptions = append([]string(nil), rec.SelectedOptions...)
		answers[id] = cp
	}

	return SessionSnapshot{
		SessionID: s.ID,
		UserID:    s.UserID,
		Questions: questions,
		Answers:   answers,
	}
}
