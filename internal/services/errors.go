package services

import "errors"

// Sentinel errors for account lifecycle outcomes. Operations wrap these
// with detail; the transport layer maps them to status codes with errors.Is.
var (
	// ErrValidation marks missing or malformed caller input.
	ErrValidation = errors.New("invalid input")

	// ErrForbidden marks failed authentication. Its message never
	// distinguishes a nonexistent account from a wrong password.
	ErrForbidden = errors.New("forbidden")

	// ErrEmailTaken marks a signup against an email already held by a
	// non-removed account.
	ErrEmailTaken = errors.New("email address is already in use")

	// ErrAccountNotFound marks an operation whose target account is
	// missing or removed. Never used for password-reset requests.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidToken marks a verification or reset token that is
	// invalid, expired, or already consumed.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrNotification marks a failed notification dispatch on an
	// operation whose sole purpose is sending that notification.
	ErrNotification = errors.New("notification failed")
)
