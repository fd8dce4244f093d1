package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/modernapi/identity-system/internal/core/domain"
	"github.com/modernapi/identity-system/internal/core/ports"
	"github.com/modernapi/identity-system/internal/core/validation"
)

var tracer = otel.Tracer("github.com/modernapi/identity-system/internal/core/service")

// RoleService implements role management and claim assignment.
type RoleService struct {
	store     ports.CredentialStore
	roles     ports.RoleReadModel
	validator *validation.Validator
	policies  domain.PolicyCatalogue
	log       zerolog.Logger
}

func NewRoleService(
	store ports.CredentialStore,
	roles ports.RoleReadModel,
	validator *validation.Validator,
	policies domain.PolicyCatalogue,
	log zerolog.Logger,
) *RoleService {
	return &RoleService{
		store:     store,
		roles:     roles,
		validator: validator,
		policies:  policies,
		log:       log,
	}
}

// Policies returns the catalogue of assignable policies.
func (s *RoleService) Policies() domain.PolicyCatalogue {
	return s.policies
}

// List returns every role.
func (s *RoleService) List(ctx context.Context) (domain.Result[[]domain.Role], error) {
	ctx, span := tracer.Start(ctx, "RoleService.List")
	defer span.End()

	roles, err := s.roles.List(ctx)
	if err != nil {
		return domain.Result[[]domain.Role]{}, fmt.Errorf("list roles: %w", err)
	}
	if roles == nil {
		roles = []domain.Role{}
	}
	return domain.Ok(roles), nil
}

// Create adds a new role and returns its id.
func (s *RoleService) Create(ctx context.Context, name string) (domain.Result[string], error) {
	ctx, span := tracer.Start(ctx, "RoleService.Create")
	defer span.End()

	existing, err := s.store.FindRoleByName(ctx, name)
	if err != nil {
		return domain.Result[string]{}, fmt.Errorf("create role: find by name: %w", err)
	}
	if existing != nil {
		return domain.Fail[string](domain.RoleAlreadyExists), nil
	}

	role := domain.NewRole(name)

	if violations := s.validator.ValidateRole(role); len(violations) > 0 {
		return domain.Invalid[string](violations), nil
	}

	if err := s.store.CreateRole(ctx, role); err != nil {
		if rej, ok := domain.AsIdentityError(err); ok {
			return domain.Rejected[string](rej), nil
		}
		return domain.Result[string]{}, fmt.Errorf("create role: %w", err)
	}

	span.SetAttributes(attribute.String("role.id", role.ID.String()))
	s.log.Info().Str("role_id", role.ID.String()).Str("name", role.Name).Msg("role created")

	return domain.Ok(role.ID.String()), nil
}

// Update renames an existing role.
func (s *RoleService) Update(ctx context.Context, id, name string) (domain.Status, error) {
	ctx, span := tracer.Start(ctx, "RoleService.Update")
	defer span.End()

	role, err := findRole(ctx, s.store, id)
	if err != nil {
		return domain.Status{}, fmt.Errorf("update role: %w", err)
	}
	if role == nil {
		return domain.Fail[domain.None](domain.RoleNotFound), nil
	}

	role.UpdateName(name)

	if violations := s.validator.ValidateRole(role); len(violations) > 0 {
		return domain.Invalid[domain.None](violations), nil
	}

	if err := s.store.UpdateRole(ctx, role); err != nil {
		if rej, ok := domain.AsIdentityError(err); ok {
			return domain.Rejected[domain.None](rej), nil
		}
		return domain.Status{}, fmt.Errorf("update role: %w", err)
	}

	s.log.Info().Str("role_id", role.ID.String()).Str("name", role.Name).Msg("role renamed")
	return domain.Done(), nil
}

// AddClaimsToRole grants claims to a role. Every candidate is checked before
// the first write; a store failure while appending stops immediately and keeps
// the claims already appended.
func (s *RoleService) AddClaimsToRole(ctx context.Context, id string, claims []domain.Claim) (domain.Status, error) {
	ctx, span := tracer.Start(ctx, "RoleService.AddClaimsToRole")
	defer span.End()

	role, err := findRole(ctx, s.store, id)
	if err != nil {
		return domain.Status{}, fmt.Errorf("add claims to role: %w", err)
	}
	if role == nil {
		return domain.Fail[domain.None](domain.RoleNotFound), nil
	}

	assigned, err := s.store.GetClaims(ctx, role)
	if err != nil {
		return domain.Status{}, fmt.Errorf("add claims to role: get claims: %w", err)
	}
	current := make(map[string]struct{}, len(assigned))
	for _, c := range assigned {
		current[c.Value] = struct{}{}
	}

	for _, claim := range claims {
		if !s.policies.Recognizes(claim.Value) {
			return domain.FailWith[domain.None](domain.InvalidPolicy, claim.Value), nil
		}
		if _, dup := current[claim.Value]; dup {
			return domain.FailWith[domain.None](domain.PolicyAlreadyAssignedToRole, claim.Value), nil
		}
		// A value repeated within the batch counts as already assigned.
		current[claim.Value] = struct{}{}
	}

	for i, claim := range claims {
		if err := s.store.AddClaim(ctx, role, claim); err != nil {
			if rej, ok := domain.AsIdentityError(err); ok {
				s.log.Warn().
					Str("role_id", role.ID.String()).
					Int("applied", i).
					Int("requested", len(claims)).
					Msg("claim append rejected, earlier claims kept")
				return domain.Rejected[domain.None](rej), nil
			}
			return domain.Status{}, fmt.Errorf("add claims to role: add %q: %w", claim.Value, err)
		}
	}

	s.log.Info().
		Str("role_id", role.ID.String()).
		Strs("claims", domain.ClaimValues(claims)).
		Msg("claims added to role")
	return domain.Done(), nil
}

// RemoveRoleFromUser revokes a user's membership in a role. The role itself is kept.
func (s *RoleService) RemoveRoleFromUser(ctx context.Context, roleID, userID string) (domain.Status, error) {
	ctx, span := tracer.Start(ctx, "RoleService.RemoveRoleFromUser")
	defer span.End()

	user, err := findUser(ctx, s.store, userID)
	if err != nil {
		return domain.Status{}, fmt.Errorf("remove role from user: %w", err)
	}
	if user == nil {
		return domain.Fail[domain.None](domain.UserNotFound), nil
	}

	role, err := findRole(ctx, s.store, roleID)
	if err != nil {
		return domain.Status{}, fmt.Errorf("remove role from user: %w", err)
	}
	if role == nil {
		return domain.Fail[domain.None](domain.RoleNotFound), nil
	}

	member, err := s.store.IsInRole(ctx, user, role.Name)
	if err != nil {
		return domain.Status{}, fmt.Errorf("remove role from user: membership: %w", err)
	}
	if !member {
		return domain.Fail[domain.None](domain.UserDoesntHaveRole), nil
	}

	if err := s.store.RemoveFromRole(ctx, user, role.Name); err != nil {
		if rej, ok := domain.AsIdentityError(err); ok {
			return domain.Rejected[domain.None](rej), nil
		}
		return domain.Status{}, fmt.Errorf("remove role from user: %w", err)
	}

	s.log.Info().Str("role_id", role.ID.String()).Str("user_id", user.ID.String()).Msg("role removed from user")
	return domain.Done(), nil
}

// findRole resolves a role by its textual id. Malformed ids resolve to nothing.
func findRole(ctx context.Context, store ports.CredentialStore, id string) (*domain.Role, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, nil
	}
	return store.FindRoleByID(ctx, parsed)
}

func findUser(ctx context.Context, store ports.CredentialStore, id string) (*domain.User, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, nil
	}
	return store.FindUserByID(ctx, parsed)
}
