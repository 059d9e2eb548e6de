package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidDateRange indicates the start date falls after the end date.
	ErrInvalidDateRange = errors.New("start date must not be after end date")
	// ErrUnknownClient indicates a client scope did not resolve to a tenant.
	ErrUnknownClient = errors.New("unknown client")
	// ErrDuplicateRow indicates a uniqueness constraint was violated.
	ErrDuplicateRow = errors.New("duplicate row")
)
