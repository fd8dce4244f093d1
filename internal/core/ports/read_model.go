package ports

import (
	"context"

	"github.com/modernapi/identity-system/internal/core/domain"
)

// UserReadModel lists users joined with their roles.
type UserReadModel interface {
	List(ctx context.Context) ([]domain.UserRolesView, error)
}

// RoleReadModel lists roles.
type RoleReadModel interface {
	List(ctx context.Context) ([]domain.Role, error)
}
