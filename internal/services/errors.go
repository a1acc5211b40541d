package services

import "errors"

var (
	// ErrNotFound covers both a missing entity and an entity owned by another
	// user, so ownership probing leaks nothing.
	ErrNotFound = errors.New("not found")

	ErrNoSession          = errors.New("no session in request context")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrValidation         = errors.New("invalid input")
)
