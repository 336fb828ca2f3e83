package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Kind classifies a failed API interaction
type Kind string

const (
	KindNetwork            Kind = "network-error"
	KindValidation         Kind = "validation-error"
	KindAuth               Kind = "auth-error"
	KindInvalidCredentials Kind = "invalid-credentials"
	KindForbidden          Kind = "forbidden"
	KindConflict           Kind = "conflict-error"
	KindNotFound           Kind = "not-found"
	KindServer             Kind = "server-error"
)

// Sentinels for errors.Is matching by kind
var (
	ErrNetwork            = &Error{Kind: KindNetwork}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrAuth               = &Error{Kind: KindAuth}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrServer             = &Error{Kind: KindServer}
)

// Error is the typed failure returned by every Client call
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of err, or "" when err is not an *Error
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// UserMessage returns the text to show a user for err
func UserMessage(err error) string {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	switch {
	case apiErr.Message != "":
		return apiErr.Message
	case apiErr.Kind == KindNetwork:
		return "connection error"
	case apiErr.Kind == KindServer:
		return "server error, please try again"
	default:
		return string(apiErr.Kind)
	}
}

// kindForStatus maps an HTTP status to an error kind.
// credentials marks login/register, where 401 means wrong credentials
// rather than an expired session.
func kindForStatus(status int, credentials bool) Kind {
	switch {
	case status == http.StatusUnauthorized && credentials:
		return KindInvalidCredentials
	case status == http.StatusUnauthorized:
		return KindAuth
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status >= 500:
		return KindServer
	default:
		return KindValidation
	}
}

// NewValidationError converts validator failures into a validation-error
// with one message per field.
func NewValidationError(err error) *Error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return &Error{Kind: KindValidation, Message: err.Error(), Err: err}
	}

	fields := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		field := e.Field()
		switch e.Tag() {
		case "required":
			fields[field] = "field is required"
		case "email":
			fields[field] = "invalid email format"
		case "min":
			fields[field] = "must be at least " + e.Param() + " characters"
		case "max":
			fields[field] = "must be at most " + e.Param() + " characters"
		case "oneof":
			fields[field] = "must be one of " + e.Param()
		default:
			fields[field] = "validation failed on " + e.Tag()
		}
	}

	return &Error{
		Kind:    KindValidation,
		Message: "invalid input",
		Fields:  fields,
		Err:     err,
	}
}
