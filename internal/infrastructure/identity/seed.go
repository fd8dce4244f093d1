package identity

import (
	"context"
	"fmt"

	"github.com/modernapi/identity-system/internal/core/domain"
)

// Admin describes the bootstrap administrator.
type Admin struct {
	Role     string
	UserName string
	Email    string
	Password string
}

// Seed makes sure an administrator role holding every catalogued policy exists
// and, when admin.Email is set, that an administrator account belongs to it.
// Without it a fresh deployment has nobody allowed to register users.
// Seed is idempotent: policies missing from an existing role are granted, other
// existing records are left untouched.
func (s *Store) Seed(ctx context.Context, policies domain.PolicyCatalogue, admin Admin) error {
	role, err := s.FindRoleByName(ctx, admin.Role)
	if err != nil {
		return fmt.Errorf("seed: find role: %w", err)
	}
	if role == nil {
		role = domain.NewRole(admin.Role)
		if err := s.CreateRole(ctx, role); err != nil {
			return fmt.Errorf("seed: create role %q: %w", admin.Role, err)
		}
		s.log.Info().Str("role", role.Name).Msg("seeded administrator role")
	}
	if err := s.grantMissing(ctx, role, append(policies.Users(), policies.Roles()...)); err != nil {
		return err
	}

	if admin.Email == "" {
		return nil
	}

	user, err := s.FindUserByEmail(ctx, admin.Email)
	if err != nil {
		return fmt.Errorf("seed: find user: %w", err)
	}
	if user != nil {
		return nil
	}

	user = domain.NewConfirmedUser(admin.UserName, admin.Email)
	if err := s.CreateUser(ctx, user, admin.Password); err != nil {
		return fmt.Errorf("seed: create user %q: %w", admin.UserName, err)
	}
	if err := s.AddToRole(ctx, user, role.Name); err != nil {
		return fmt.Errorf("seed: add %q to %q: %w", admin.UserName, role.Name, err)
	}
	s.log.Info().Str("user_id", user.ID.String()).Str("role", role.Name).Msg("seeded administrator account")
	return nil
}

// grantMissing adds the policies role does not hold yet, so a seed interrupted
// halfway is completed on the next start.
func (s *Store) grantMissing(ctx context.Context, role *domain.Role, policies []string) error {
	claims, err := s.GetClaims(ctx, role)
	if err != nil {
		return fmt.Errorf("seed: claims of %q: %w", role.Name, err)
	}
	held := make(map[string]struct{}, len(claims))
	for _, c := range claims {
		held[c.Value] = struct{}{}
	}

	var granted []string
	for _, p := range policies {
		if _, ok := held[p]; ok {
			continue
		}
		if err := s.AddClaim(ctx, role, domain.PolicyClaim(p)); err != nil {
			return fmt.Errorf("seed: grant %q: %w", p, err)
		}
		held[p] = struct{}{}
		granted = append(granted, p)
	}
	if len(granted) > 0 {
		s.log.Info().Str("role", role.Name).Strs("policies", granted).Msg("granted administrator policies")
	}
	return nil
}
