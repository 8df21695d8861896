package models

import "errors"

// Domain errors. They are wrapped with context where raised and matched with errors.Is
// at the HTTP boundary.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrCredential       = errors.New("wrong password")
	ErrAccessDenied     = errors.New("access denied")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrInvalidInput     = errors.New("invalid input")
)
