package titles

import (
	"errors"
	"fmt"
)

// Kind classifies a job failure.
type Kind string

const (
	MissingConfiguration     Kind = "MissingConfiguration"
	ThreadCreationFailed     Kind = "ThreadCreationFailed"
	MessageSubmissionFailed  Kind = "MessageSubmissionFailed"
	RunStartFailed           Kind = "RunStartFailed"
	RunStatusFailed          Kind = "RunStatusFailed"
	RunFailed                Kind = "RunFailed"
	RunTimedOut              Kind = "RunTimedOut"
	ActionHandlingFailed     Kind = "ActionHandlingFailed"
	MessagesFetchFailed      Kind = "MessagesFetchFailed"
	NoTextContent            Kind = "NoTextContent"
	UnexpectedResponseFormat Kind = "UnexpectedResponseFormat"
)

var defaultMessages = map[Kind]string{
	MissingConfiguration:     "Missing data.",
	ThreadCreationFailed:     "Failed to create thread.",
	MessageSubmissionFailed:  "Failed to add message.",
	RunStartFailed:           "Failed to start run.",
	RunStatusFailed:          "Error retrieving run status.",
	RunFailed:                "Run failed or was cancelled.",
	RunTimedOut:              "Run did not complete in expected time.",
	ActionHandlingFailed:     "Failed to submit tool outputs.",
	MessagesFetchFailed:      "Failed to fetch messages.",
	NoTextContent:            "No messages found.",
	UnexpectedResponseFormat: "Unexpected response format. Please try again.",
}

// Error is the only error type returned past the orchestrator boundary.
// Message is safe to show to the editor as-is.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// MessageFor returns the default display message for kind.
func MessageFor(kind Kind) string { return defaultMessages[kind] }

// newError builds an Error with the default display message for kind.
func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: defaultMessages[kind], Err: err}
}

// newErrorf builds an Error with a custom display message.
func newErrorf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// asError returns err as an *Error, wrapping anything else as kind.
func asError(err error, kind Kind) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return newError(kind, err)
}

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// DisplayMessage converts any error into a string suitable for direct display.
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "An unknown error occurred."
}
