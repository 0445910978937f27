package store

import "errors"

var (
	// ErrUnavailable means the store could not be reached. Callers fall back
	// to local in-memory mutation so the user's action is not lost.
	ErrUnavailable = errors.New("record store unavailable")

	// ErrNotFound means the record or list value does not exist in the store.
	ErrNotFound = errors.New("record not found")
)
