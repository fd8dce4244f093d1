package ports

import (
	"context"

	"github.com/modernapi/identity-system/internal/core/domain"
)

// RoleService defines the role management use cases.
type RoleService interface {
	List(ctx context.Context) (domain.Result[[]domain.Role], error)
	Create(ctx context.Context, name string) (domain.Result[string], error)
	Update(ctx context.Context, id, name string) (domain.Status, error)
	AddClaimsToRole(ctx context.Context, id string, claims []domain.Claim) (domain.Status, error)
	RemoveRoleFromUser(ctx context.Context, roleID, userID string) (domain.Status, error)
	Policies() domain.PolicyCatalogue
}
