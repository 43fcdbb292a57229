package repositories

import "errors"

var (
	// ErrNotFound indicates no matching subscription or log row exists.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a uniqueness violation, typically a checkout
	// session id being recorded twice.
	ErrConflict = errors.New("record conflict")
)
