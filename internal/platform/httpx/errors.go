// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrConflict     = errors.New("conflicting state")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// FieldError is implemented by validation errors that point at one input field.
type FieldError interface {
	error
	FieldName() string
}

// ConditionError is implemented by authorization errors naming the failed condition.
type ConditionError interface {
	error
	FailedCondition() string
}

// StatusFor maps err to the HTTP status RespondError would use.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	detail := ProblemDetail{Title: http.StatusText(status), Status: status, Detail: err.Error()}
	switch status {
	case http.StatusInternalServerError:
		detail.Title = "Internal Error"
		detail.Detail = ""
	case http.StatusBadRequest:
		detail.Title = "Validation Failed"
		var fe FieldError
		if errors.As(err, &fe) {
			detail.Field = fe.FieldName()
		}
	case http.StatusForbidden:
		var ce ConditionError
		if errors.As(err, &ce) {
			detail.Condition = ce.FailedCondition()
		}
	case http.StatusConflict:
		if errors.Is(err, ErrDuplicate) {
			detail.Title = "Duplicate"
		}
	}
	writeProblem(w, detail)
}
