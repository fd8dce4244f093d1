package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/modernapi/identity-system/internal/core/domain"
)

// CredentialStore owns durable users and roles, password hashing and one-time
// tokens.
//
// Lookups return (nil, nil) when nothing matches. Mutations that the store
// refuses (weak password, duplicate name, invalid token, concurrency conflict)
// return a *domain.IdentityError; any other error is an infrastructure failure.
type CredentialStore interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindUserByName(ctx context.Context, userName string) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	// CreateUser persists user and sets its password hash.
	CreateUser(ctx context.Context, user *domain.User, password string) error
	UpdateUser(ctx context.Context, user *domain.User) error
	CheckPassword(ctx context.Context, user *domain.User, password string) (bool, error)

	// GetRoles returns the names of the roles user belongs to.
	GetRoles(ctx context.Context, user *domain.User) ([]string, error)
	IsInRole(ctx context.Context, user *domain.User, roleName string) (bool, error)
	AddToRole(ctx context.Context, user *domain.User, roleName string) error
	RemoveFromRole(ctx context.Context, user *domain.User, roleName string) error

	FindRoleByID(ctx context.Context, id uuid.UUID) (*domain.Role, error)
	FindRoleByName(ctx context.Context, name string) (*domain.Role, error)
	CreateRole(ctx context.Context, role *domain.Role) error
	UpdateRole(ctx context.Context, role *domain.Role) error
	GetClaims(ctx context.Context, role *domain.Role) ([]domain.Claim, error)
	AddClaim(ctx context.Context, role *domain.Role, claim domain.Claim) error

	GenerateEmailConfirmationToken(ctx context.Context, user *domain.User) (string, error)
	// ConfirmEmail validates token and marks the user's email as confirmed.
	ConfirmEmail(ctx context.Context, user *domain.User, token string) error
	GeneratePasswordResetToken(ctx context.Context, user *domain.User) (string, error)
	// ResetPassword validates token and replaces the user's password.
	ResetPassword(ctx context.Context, user *domain.User, token, newPassword string) error
}
