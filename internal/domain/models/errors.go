package models

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation           ErrorKind = "validation"
	KindNetwork              ErrorKind = "network"
	KindBackendRejection     ErrorKind = "backend_rejection"
	KindMalformedResponse    ErrorKind = "malformed_response"
	KindPriceFeedUnavailable ErrorKind = "price_feed_unavailable"
)

// Source names the operation an error surfaced from. Each source owns one
// message slot in the workflow view.
type Source string

const (
	SourcePrice      Source = "price"
	SourceForecast   Source = "forecast"
	SourceSubmit     Source = "submit"
	SourceValidation Source = "validation"
	SourceRequester  Source = "requester"
)

// ErrSubmitInProgress is wrapped by the validation error returned when a
// submission is attempted while another one is running.
var ErrSubmitInProgress = errors.New("submission already in progress")

// Error is the domain error every client and the workflow return.
// Message is safe to show to a user; Err carries the cause for logs.
type Error struct {
	Kind    ErrorKind
	Source  Source
	Message string
	Err     error
}

func NewError(kind ErrorKind, source Source, message string, err error) *Error {
	return &Error{Kind: kind, Source: source, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Source, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Source, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a domain *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}

// KindOf returns the kind of a domain error, or KindNetwork for anything else.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindNetwork
}

// UserMessage is the text shown for err.
func UserMessage(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return "Something went wrong. Please try again."
}
