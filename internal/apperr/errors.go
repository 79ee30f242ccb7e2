// Package apperr defines the categorized errors a chat turn can fail with.
// Callers always receive either a complete result or exactly one of these.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of an error.
type Kind string

const (
	KindRetrievalUnavailable Kind = "retrieval_unavailable"
	KindGenerationFailure    Kind = "generation_failure"
	KindScoringFailure       Kind = "scoring_failure"
	KindInvalidInput         Kind = "invalid_input"
	KindNotFound             Kind = "not_found"
	KindUnauthorized         Kind = "unauthorized"
)

// Error is a categorized error with optional details.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail returns a copy of e with key set in its details.
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	cp := *e
	cp.Details = details
	return &cp
}

// New creates an error of the given kind.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Sentinels for errors.Is comparisons.
var (
	ErrRetrievalUnavailable = New(KindRetrievalUnavailable, "knowledge base unavailable", nil)
	ErrGenerationFailure    = New(KindGenerationFailure, "agent invocation failed", nil)
	ErrScoringFailure       = New(KindScoringFailure, "relevance scoring failed", nil)
	ErrInvalidInput         = New(KindInvalidInput, "invalid input", nil)
	ErrNotFound             = New(KindNotFound, "not found", nil)
	ErrUnauthorized         = New(KindUnauthorized, "unauthorized", nil)
)

func RetrievalUnavailable(message string, err error) *Error {
	return New(KindRetrievalUnavailable, message, err)
}

func GenerationFailure(message string, err error) *Error {
	return New(KindGenerationFailure, message, err)
}

func InvalidInput(message string) *Error {
	return New(KindInvalidInput, message, nil)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message, nil)
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message, nil)
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps err to the status code an API should answer with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindRetrievalUnavailable:
		return http.StatusServiceUnavailable
	case KindInvalidInput:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
