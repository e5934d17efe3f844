package logging

import "fmt"

// OperationError annotates an error with the operation and case it occurred in.
type OperationError struct {
	Operation string
	CaseID    string
	Err       error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	if e.CaseID != "" {
		return fmt.Sprintf("%s (case_id=%s): %v", e.Operation, e.CaseID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError wraps an error with structured context about where it occurred.
func NewOperationError(operation, caseID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, CaseID: caseID, Err: err}
}
