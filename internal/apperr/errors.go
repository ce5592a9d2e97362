// Package apperr holds the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	ErrValidation   = errors.New("validation failed")
	ErrRemoteLookup = errors.New("remote lookup failed")
	ErrStore        = errors.New("store operation failed")
	ErrEditor       = errors.New("editor edit failed")
)
