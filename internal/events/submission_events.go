package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/prepforge/assessment-engine/internal/models"
)

type EventType string

const (
	EventTestCompleted EventType = "test.completed"
)

// SubmissionEvent is the envelope published when a session completes. Events
// are delivered at least once; consumers deduplicate on the submission's
// session id.
type SubmissionEvent struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Source    string            `json:"source"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Data      models.Submission `json:"data"`
}

// NewTestCompletedEvent wraps a submission in the event envelope.
func NewTestCompletedEvent(submission models.Submission) *SubmissionEvent {
	return &SubmissionEvent{
		ID:        uuid.NewString(),
		Type:      EventTestCompleted,
		Source:    "assessment-engine",
		Version:   "1.0",
		Timestamp: time.Now(),
		Data:      submission,
	}
}
