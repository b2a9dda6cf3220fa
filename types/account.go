package types

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorization level of an account. It is a closed set:
// self-service paths never set it, only privileged administrative tooling does.
type Role string

const (
	RoleUser    Role = "User"
	RoleManager Role = "Manager"
	RoleAdmin   Role = "Admin"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// Account represents a credential/identity record in the system.
// It contains identity, verification state, and audit metadata.
type Account struct {
	// ID is the unique identifier of the account, assigned at creation.
	ID uuid.UUID `json:"id" db:"id"`

	// Email is the account's normalized (lowercase) email address.
	Email string `json:"email" db:"email"`

	// EmailVerified reports whether ownership of Email has been proven
	// by redeeming a verification token.
	EmailVerified bool `json:"email_verified" db:"email_verified"`

	// Name is the account's display or full name.
	Name string `json:"name" db:"name"`

	// PasswordHash stores the hashed representation of the account's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Role indicates the account's authorization level within the system.
	Role Role `json:"role" db:"role"`

	// Phone is the account's contact phone number (10 digits).
	Phone string `json:"phone" db:"phone"`

	// VerifyToken is the outstanding email-verification or password-reset
	// token, if any. Never exposed in API responses; only the raw value
	// mailed to the user can redeem it.
	VerifyToken string `json:"-" db:"verify_token"`

	// VerifyTokenExpires is the moment VerifyToken becomes invalid.
	// Set and cleared together with VerifyToken.
	VerifyTokenExpires *time.Time `json:"-" db:"verify_token_expires"`

	// Removed is the soft-delete flag. Removed accounts do not participate
	// in signin, uniqueness checks, or token redemption.
	Removed bool `json:"-" db:"removed"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AccountSummary is the safe projection of an Account returned by
// authentication endpoints. It carries no credential or token fields.
type AccountSummary struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Role          Role      `json:"role"`
}

// Summary returns the safe projection of the account.
func (a Account) Summary() AccountSummary {
	return AccountSummary{
		ID:            a.ID,
		Email:         a.Email,
		EmailVerified: a.EmailVerified,
		Name:          a.Name,
		Phone:         a.Phone,
		Role:          a.Role,
	}
}
