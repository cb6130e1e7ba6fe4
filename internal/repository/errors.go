package repository

import "errors"

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateToken is returned when an access token collides with one
	// stored for a different (user, provider) pair
	ErrDuplicateToken = errors.New("access token already stored for another connection")
)
