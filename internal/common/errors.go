// Package common defines shared constants and sentinel errors used across
// the file-sharing service. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Storage-level errors, wrapped around the underlying filesystem
	// failure so the cause stays inspectable.
	ErrorStorageFailure = errors.New("storage failure")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorValidation   = errors.New("validation error")

	// Auth errors. Every token verification failure collapses into
	// ErrInvalidToken; callers never learn which check rejected it.
	ErrInvalidToken = errors.New("invalid or expired token")
)
