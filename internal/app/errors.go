package app

import "fmt"

// DomainError is an error with a fixed HTTP status, code and reviewer-facing message.
// Cause is never sent to the client; it only reaches the logs.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
	Cause   error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// because returns a copy of e carrying cause, leaving the shared value untouched.
func (e *DomainError) because(cause error) *DomainError {
	out := *e
	out.Cause = cause
	return &out
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{Status: status, Code: code, Message: message, Details: details}
}
