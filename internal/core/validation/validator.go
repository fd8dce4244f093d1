// Package validation checks users and roles before they are persisted.
//
// Every rule of an entity is evaluated, in declaration order, and each violated
// rule contributes exactly one fixed message. An empty slice means valid.
package validation

import (
	"github.com/go-playground/validator/v10"

	"github.com/modernapi/identity-system/internal/core/domain"
)

const (
	notNilIdentTag  = "ne=00000000-0000-0000-0000-000000000000"
	upperProjection = "eqfield"
)

// rule is a single check of one value. When cross is set the value is compared
// against other (e.g. a normalized field against the upper-cased source).
type rule struct {
	value   any
	other   any
	cross   bool
	tag     string
	message string
}

// Validator validates domain entities with go-playground/validator.
type Validator struct {
	v *validator.Validate
}

// New returns a ready Validator.
func New() *Validator {
	return &Validator{v: validator.New()}
}

// ValidateRole returns the violated Role rules.
func (val *Validator) ValidateRole(r *domain.Role) []string {
	upper := domain.Normalize(r.Name)
	return val.run([]rule{
		{value: r.ID.String(), tag: notNilIdentTag, message: "Role.Id can't be equal Guid.Empty"},

		{value: r.Name, tag: "required", message: "Role.Name can't be empty"},
		{value: r.Name, tag: "min=4", message: "Role.Name can't have less than 4 characters"},
		{value: r.Name, tag: "max=10", message: "Role.Name can't be greater than 10 characters"},

		{value: r.NormalizedName, tag: "required", message: "Role.NormalizedName can't be empty"},
		{value: r.NormalizedName, other: upper, cross: true, tag: upperProjection, message: "Role.NormalizedName must be equal Role.Name in UpperCase"},
		{value: r.NormalizedName, tag: "min=4", message: "Role.NormalizedName can't have less than 4 characters"},
		{value: r.NormalizedName, tag: "max=10", message: "Role.NormalizedName can't be greater than 10 characters"},

		{value: r.ConcurrencyStamp, tag: "required", message: "Role.ConcurrencyStamp can't be empty"},
		{value: r.ConcurrencyStamp, tag: notNilIdentTag, message: "Role.ConcurrencyStamp can't be equal Guid.Empty"},
	})
}

// ValidateUser returns the violated User rules.
func (val *Validator) ValidateUser(u *domain.User) []string {
	upperName := domain.Normalize(u.UserName)
	upperEmail := domain.Normalize(u.Email)
	return val.run([]rule{
		{value: u.ID.String(), tag: notNilIdentTag, message: "User.Id can't be equal Guid.Empty"},

		{value: u.UserName, tag: "required", message: "User.UserName can't be empty"},
		{value: u.UserName, tag: "min=4", message: "User.UserName can't have less than 4 characters"},
		{value: u.UserName, tag: "max=16", message: "User.UserName can't be greater than 16 characters"},

		{value: u.NormalizedUserName, tag: "required", message: "User.NormalizedUserName can't be empty"},
		{value: u.NormalizedUserName, other: upperName, cross: true, tag: upperProjection, message: "User.NormalizedUserName must be equal User.UserName in UpperCase"},
		{value: u.NormalizedUserName, tag: "min=4", message: "User.NormalizedUserName can't have less than 4 characters"},
		{value: u.NormalizedUserName, tag: "max=16", message: "User.NormalizedUserName can't be greater than 16 characters"},

		{value: u.Email, tag: "required", message: "User.Email can't be empty"},
		{value: u.Email, tag: "email", message: "User.Email must be a valid email"},
		{value: u.Email, tag: "max=320", message: "User.Email can't be greater than 320 characters"},

		{value: u.NormalizedEmail, tag: "required", message: "User.NormalizedEmail can't be empty"},
		{value: u.NormalizedEmail, other: upperEmail, cross: true, tag: upperProjection, message: "User.NormalizedEmail must be equal User.NormalizedEmail in UpperCase"},
		{value: u.NormalizedEmail, tag: "email", message: "User.NormalizedEmail must be a valid email"},
		{value: u.NormalizedEmail, tag: "max=320", message: "User.NormalizedEmail can't be greater than 320 characters"},

		{value: u.ConcurrencyStamp, tag: "required", message: "User.ConcurrencyStamp can't be empty"},
		{value: u.ConcurrencyStamp, tag: notNilIdentTag, message: "User.ConcurrencyStamp can't be equal Guid.Empty"},
	})
}

func (val *Validator) run(rules []rule) []string {
	violations := []string{}
	for _, r := range rules {
		var err error
		if r.cross {
			err = val.v.VarWithValue(r.value, r.other, r.tag)
		} else {
			err = val.v.Var(r.value, r.tag)
		}
		if err != nil {
			violations = append(violations, r.message)
		}
	}
	return violations
}
