package schema

import "fmt"

// ValidationError is a mistake in the user's schema. Generation stops before any output is written.
type ValidationError struct {
	Subject string
	Msg     string
}

func (e *ValidationError) Error() string {
	if e.Subject == "" {
		return e.Msg
	}
	return e.Subject + ": " + e.Msg
}

// Errorf returns a *ValidationError about subject.
func Errorf(subject string, format string, args ...interface{}) error {
	return &ValidationError{Subject: subject, Msg: fmt.Sprintf(format, args...)}
}

// InternalError is a broken invariant of the descriptor input, such as a reference to a type that
// was never declared. It points at a defect upstream rather than at the schema author.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Msg
}

func internalErrorf(format string, args ...interface{}) error {
	return &InternalError{Msg: fmt.Sprintf(format, args...)}
}
