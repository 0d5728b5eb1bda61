package models

import "time"

// Submission is the payload handed to the persistence collaborator once a
// session completes. Delivery is at-least-once; receivers deduplicate by
// session id.
type Submission struct {
	SessionID        string       `json:"session_id"`
	UserID           string       `json:"user_id"`
	CompletedAt      time.Time    `json:"completed_at"`
	TimeTakenSeconds int          `json:"time_taken_seconds"`
	Report           *ScoreReport `json:"report"`
}
