package storage

import "errors"

var (
	// ErrRunNotFound is returned when a run id is unknown.
	ErrRunNotFound = errors.New("run not found")
	// ErrItemNotFound is returned when a run has no line for a seller and card.
	ErrItemNotFound = errors.New("run item not found")
)
