package llm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies backend call failures.
type ErrorKind string

const (
	// KindUnavailable covers network failures, non-2xx responses, and
	// timeouts. A single attempt is made; callers degrade to fallback mode
	// for the current message only.
	KindUnavailable ErrorKind = "unavailable"

	// KindModelNotFound is returned when the backend reports that the
	// requested model is not installed.
	KindModelNotFound ErrorKind = "model_not_found"
)

// Error is the typed error returned by provider clients.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("llm %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("llm %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func Unavailable(message string, cause error) *Error {
	return &Error{Kind: KindUnavailable, Message: message, Cause: cause}
}

func ModelNotFound(model string) *Error {
	return &Error{Kind: KindModelNotFound, Message: fmt.Sprintf("model %q not found", model)}
}

func IsUnavailable(err error) bool {
	var le *Error
	return errors.As(err, &le) && le.Kind == KindUnavailable
}

func IsModelNotFound(err error) bool {
	var le *Error
	return errors.As(err, &le) && le.Kind == KindModelNotFound
}
