// Package apierr defines the error taxonomy returned by services and the
// echo error handler that renders it.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies an API error.
type Kind int

const (
	KindUnauthenticated Kind = iota + 1
	KindForbidden
	KindNotFound
	KindValidation
)

// NonFieldErrors is the key for validation errors not tied to one field.
const NonFieldErrors = "non_field_errors"

// FieldErrors maps a request field to its error messages.
type FieldErrors map[string][]string

// Add appends msg to field.
func (f FieldErrors) Add(field, msg string) {
	f[field] = append(f[field], msg)
}

// Merge copies every message of other into f.
func (f FieldErrors) Merge(other FieldErrors) {
	for field, msgs := range other {
		f[field] = append(f[field], msgs...)
	}
}

// Error is a classified API error.
type Error struct {
	Kind   Kind
	Detail string
	Fields FieldErrors
}

func (e *Error) Error() string {
	if e.Kind == KindValidation && len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], " ")))
		}
		return "validation failed: " + strings.Join(parts, "; ")
	}
	return e.Detail
}

// Status maps the kind to its HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Body returns the JSON response body.
func (e *Error) Body() interface{} {
	if e.Kind == KindValidation && len(e.Fields) > 0 {
		return e.Fields
	}
	return map[string]string{"detail": e.Detail}
}

// Is matches another *Error of the same kind, so errors.Is(err, ErrNotFound)
// holds for every not-found error regardless of detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrUnauthenticated = Unauthenticated("Authentication credentials were not provided.")
	ErrForbidden       = Forbidden("You do not have permission to perform this action.")
	ErrNotFound        = NotFound("Not found.")
)

func Unauthenticated(detail string) *Error {
	return &Error{Kind: KindUnauthenticated, Detail: detail}
}

func Forbidden(detail string) *Error {
	return &Error{Kind: KindForbidden, Detail: detail}
}

func NotFound(detail string) *Error {
	return &Error{Kind: KindNotFound, Detail: detail}
}

// Validation wraps field errors.
func Validation(fields FieldErrors) *Error {
	return &Error{Kind: KindValidation, Detail: "invalid input", Fields: fields}
}

// Field is a single-field validation error.
func Field(field, msg string) *Error {
	return Validation(FieldErrors{field: {msg}})
}

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
