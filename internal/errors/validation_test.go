package errors

import (
	"errors"
	"testing"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("question_id", "is unknown", "q-99")

	if err.Field != "question_id" {
		t.Errorf("Expected field to be 'question_id', got '%s'", err.Field)
	}

	if err.Message != "is unknown" {
		t.Errorf("Expected message to be 'is unknown', got '%s'", err.Message)
	}

	if err.Value != "q-99" {
		t.Errorf("Expected value to be 'q-99', got '%v'", err.Value)
	}

	expected := "validation error on field 'question_id': is unknown"
	if err.Error() != expected {
		t.Errorf("Expected error message to be '%s', got '%s'", expected, err.Error())
	}
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	if errs.Error() != "validation failed" {
		t.Errorf("Expected 'validation failed' for empty errors, got '%s'", errs.Error())
	}

	errs = append(errs, *NewValidationError("field1", "message1", nil))
	expected := "validation failed: field1 message1"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for single error, got '%s'", expected, errs.Error())
	}

	errs = append(errs, *NewValidationError("field2", "message2", nil))
	expected = "validation failed: 2 field errors"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for multiple errors, got '%s'", expected, errs.Error())
	}
}

func TestStateError(t *testing.T) {
	err := NewStateError("s-1", "select_answer", "Completed", "Active")

	expected := "invalid state for select_answer on session s-1: status is Completed, requires Active"
	if err.Error() != expected {
		t.Errorf("Expected '%s', got '%s'", expected, err.Error())
	}
}

func TestSubmissionDeliveryError(t *testing.T) {
	cause := errors.New("broker unavailable")
	err := NewSubmissionDeliveryError("s-1", cause)

	if !errors.Is(err, cause) {
		t.Error("Expected delivery error to unwrap to its cause")
	}

	expected := "submission delivery failed for session s-1: broker unavailable"
	if err.Error() != expected {
		t.Errorf("Expected '%s', got '%s'", expected, err.Error())
	}
}

func TestDataIntegrityError(t *testing.T) {
	err := NewDataIntegrityError("completion_history", "zero timestamp at index 3")

	expected := "data integrity violation in completion_history: zero timestamp at index 3"
	if err.Error() != expected {
		t.Errorf("Expected '%s', got '%s'", expected, err.Error())
	}
}
