package ports

import (
	"context"

	"github.com/modernapi/identity-system/internal/core/domain"
)

// RegisterInput carries the data of a new account.
type RegisterInput struct {
	UserName string
	Email    string
	Password string
	RoleID   string
}

// ResetPasswordInput carries a password reset request.
type ResetPasswordInput struct {
	Email       string
	NewPassword string
	Token       string
}

// UserService defines the account and credential lifecycle use cases.
//
// Expected failures come back inside the Result. A non-nil error means an
// infrastructure failure or, for Authenticate, a data integrity fault
// (errors.Is(err, domain.ErrDataIntegrity)).
type UserService interface {
	List(ctx context.Context) (domain.Result[[]domain.UserRolesView], error)
	Register(ctx context.Context, in RegisterInput) (domain.Status, error)
	Authenticate(ctx context.Context, email, password string) (domain.Result[[]domain.Claim], error)
	ConfirmEmail(ctx context.Context, email, token string) (domain.Status, error)
	RequestPasswordReset(ctx context.Context, email string) (domain.Status, error)
	ResetPassword(ctx context.Context, in ResetPasswordInput) (domain.Status, error)
}
