package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when an insert collides with an existing
// non-removed account holding the same email address.
var ErrDuplicateEmail = errors.New("email already in use")
