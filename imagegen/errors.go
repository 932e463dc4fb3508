package imagegen

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	// KindRejectedContent marks prompts refused by the safety pre-check.
	KindRejectedContent ErrorKind = "rejected_content"
	// KindGenerationFailed marks backend or storage failures.
	KindGenerationFailed ErrorKind = "generation_failed"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("imagegen %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("imagegen %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func Rejected(message string) error {
	return &Error{Kind: KindRejectedContent, Message: message}
}

func Failed(message string, cause error) error {
	return &Error{Kind: KindGenerationFailed, Message: message, Cause: cause}
}

func IsRejectedContent(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindRejectedContent
}

func IsGenerationFailed(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindGenerationFailed
}
