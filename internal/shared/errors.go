package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrTokenMissing occurs when the Authorization header carries no bearer token.
	ErrTokenMissing = errors.New("bearer token missing")
	// ErrTokenInvalid occurs when the bearer token fails verification.
	ErrTokenInvalid = errors.New("bearer token invalid")
)
