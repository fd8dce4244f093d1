package domain

import (
	"strings"

	"github.com/google/uuid"
)

// User models an identity that can authenticate against the system.
type User struct {
	ID                 uuid.UUID `json:"id"`
	UserName           string    `json:"userName"`
	NormalizedUserName string    `json:"-"`
	Email              string    `json:"email"`
	NormalizedEmail    string    `json:"-"`
	EmailConfirmed     bool      `json:"emailConfirmed"`
	PasswordHash       string    `json:"-"`
	SecurityStamp      string    `json:"-"`
	ConcurrencyStamp   string    `json:"-"`
	LockoutEnabled     bool      `json:"-"`
	AccessFailedCount  int       `json:"-"`
}

// NewUser builds a self-registered user whose email still needs confirmation.
func NewUser(userName, email string) *User {
	return &User{
		ID:                 uuid.New(),
		UserName:           userName,
		NormalizedUserName: Normalize(userName),
		Email:              email,
		NormalizedEmail:    Normalize(email),
		ConcurrencyStamp:   uuid.NewString(),
	}
}

// NewConfirmedUser builds a user created by an administrator, e.g. during seeding.
func NewConfirmedUser(userName, email string) *User {
	u := NewUser(userName, email)
	u.EmailConfirmed = true
	return u
}

// UpdateUserName renames the user and refreshes the normalized projection.
func (u *User) UpdateUserName(userName string) {
	u.UserName = userName
	u.NormalizedUserName = Normalize(userName)
}

// UpdateEmail changes the email and refreshes the normalized projection.
func (u *User) UpdateEmail(email string) {
	u.Email = email
	u.NormalizedEmail = Normalize(email)
}

// PhoneNumber is always empty: users carry no phone number.
func (u *User) PhoneNumber() string { return "" }

// PhoneNumberConfirmed is always false.
func (u *User) PhoneNumberConfirmed() bool { return false }

// SetPhoneNumber always fails.
func (u *User) SetPhoneNumber(string) error {
	return &UnusedFieldError{Field: "PhoneNumber"}
}

// SetPhoneNumberConfirmed always fails.
func (u *User) SetPhoneNumberConfirmed(bool) error {
	return &UnusedFieldError{Field: "PhoneNumberConfirmed"}
}

// Clone returns a copy that shares no state with u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// Normalize returns the canonical comparison form of a name or email.
func Normalize(s string) string {
	return strings.ToUpper(s)
}
