package storage

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists. Bid inserts keyed by tx hash rely
	// on this for replay protection.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized is returned when the requester does not own the record.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict is returned when the record's state forbids the operation,
	// such as deleting an auction that already has bids.
	ErrConflict = errors.New("conflict")
)
