package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDataIntegrity marks faults that indicate corrupted or inconsistent stored
// data. They are never turned into a Result.
var ErrDataIntegrity = errors.New("data integrity violation")

// ErrUserWithoutRoles is returned when a persisted user has no role membership.
var ErrUserWithoutRoles = fmt.Errorf("%w: a user must have at least one role", ErrDataIntegrity)

// Record persistence failures reported by storage adapters.
var (
	ErrStaleRecord     = errors.New("record was modified concurrently")
	ErrDuplicateRecord = errors.New("record violates a uniqueness constraint")
)

// RoleMissingError reports a membership that points at a role which does not exist.
type RoleMissingError struct {
	RoleName string
}

func (e *RoleMissingError) Error() string {
	return fmt.Sprintf("the role %q doesn't exist", e.RoleName)
}

func (e *RoleMissingError) Unwrap() error { return ErrDataIntegrity }

// RoleWithoutClaimsError reports a role that grants nothing.
type RoleWithoutClaimsError struct {
	RoleName string
}

func (e *RoleWithoutClaimsError) Error() string {
	return fmt.Sprintf("an attempt to retrieve claims of a role named %q happened", e.RoleName)
}

func (e *RoleWithoutClaimsError) Unwrap() error { return ErrDataIntegrity }

// UnusedFieldError is returned by setters of fields the identity model does not support.
type UnusedFieldError struct {
	Field string
}

func (e *UnusedFieldError) Error() string {
	return fmt.Sprintf("field %q isn't supposed to be used", e.Field)
}

// IdentityError is a rejection reported by the credential store, e.g. a weak
// password, an invalid token or a concurrency conflict.
type IdentityError struct {
	Descriptions []string
}

// NewIdentityError builds a rejection from one or more descriptions.
func NewIdentityError(descriptions ...string) *IdentityError {
	return &IdentityError{Descriptions: descriptions}
}

func (e *IdentityError) Error() string {
	return "identity: " + strings.Join(e.Descriptions, "; ")
}

// AsIdentityError extracts a store rejection from err, if any.
func AsIdentityError(err error) (*IdentityError, bool) {
	var rej *IdentityError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// Canonical store rejection messages.
const (
	MsgConcurrencyFailure = "Optimistic concurrency failure, object has been modified."
	MsgInvalidToken       = "Invalid token."
	MsgPasswordTooShort   = "Passwords must be at least %d characters."
	MsgInvalidUserName    = "Username '%s' is invalid, can only contain letters or digits."
	MsgDuplicateUserName  = "Username '%s' is already taken."
	MsgDuplicateEmail     = "Email '%s' is already taken."
	MsgDuplicateRoleName  = "Role name '%s' is already taken."
	MsgDuplicateClaim     = "Role already has claim '%s'."
	MsgUserAlreadyInRole  = "User already in role '%s'."
	MsgUserNotInRole      = "User is not in role '%s'."
)
