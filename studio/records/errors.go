package records

import "errors"

var (
	// ErrUnavailable means the backend could not be reached or opened.
	ErrUnavailable = errors.New("records: store unavailable")
	// ErrWriteConflict marks a transient backend conflict; the write may be retried.
	ErrWriteConflict = errors.New("records: write conflict")
	// ErrNotFound is returned for missing rows, collections or matches.
	ErrNotFound = errors.New("records: not found")
	// ErrColumnCount rejects appends whose width differs from the header.
	ErrColumnCount = errors.New("records: column count mismatch")
)
