package errors

import "fmt"

// StateError reports an operation attempted while the session is not in the
// required state, e.g. answering after completion.
type StateError struct {
	SessionID string `json:"session_id"`
	Operation string `json:"operation"`
	Current   string `json:"current"`
	Required  string `json:"required"`
}

func (se *StateError) Error() string {
	return fmt.Sprintf("invalid state for %s on session %s: status is %s, requires %s",
		se.Operation, se.SessionID, se.Current, se.Required)
}

func NewStateError(sessionID, operation, current, required string) *StateError {
	return &StateError{
		SessionID: sessionID,
		Operation: operation,
		Current:   current,
		Required:  required,
	}
}

// SubmissionDeliveryError reports a failed asynchronous persistence or publish
// of a completed submission. Local completion has already succeeded when this
// is raised; the receiving store recovers via its retry policy.
type SubmissionDeliveryError struct {
	SessionID string `json:"session_id"`
	Cause     error  `json:"-"`
}

func (de *SubmissionDeliveryError) Error() string {
	return fmt.Sprintf("submission delivery failed for session %s: %v", de.SessionID, de.Cause)
}

func (de *SubmissionDeliveryError) Unwrap() error {
	return de.Cause
}

func NewSubmissionDeliveryError(sessionID string, cause error) *SubmissionDeliveryError {
	return &SubmissionDeliveryError{SessionID: sessionID, Cause: cause}
}

// DataIntegrityError reports malformed persisted data, e.g. a completion
// history with zero timestamps fed to the streak tracker.
type DataIntegrityError struct {
	Source string `json:"source"`
	Detail string `json:"detail"`
}

func (ie *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity violation in %s: %s", ie.Source, ie.Detail)
}

func NewDataIntegrityError(source, detail string) *DataIntegrityError {
	return &DataIntegrityError{Source: source, Detail: detail}
}
