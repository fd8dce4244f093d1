package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/modernapi/identity-system/internal/api/metrics"
	"github.com/modernapi/identity-system/internal/core/domain"
	"github.com/modernapi/identity-system/internal/core/ports"
)

type RoleHandler struct {
	roles ports.RoleService
	log   zerolog.Logger
}

func NewRoleHandler(roles ports.RoleService, log zerolog.Logger) *RoleHandler {
	return &RoleHandler{roles: roles, log: log}
}

// name is checked by the entity rules in the service.
type roleNameRequest struct {
	Name string `json:"name"`
}

type claimRequest struct {
	Type  string `json:"type"  validate:"omitempty,oneof=policy"`
	Value string `json:"value" validate:"required"`
}

type addClaimsRequest struct {
	Claims []claimRequest `json:"claims" validate:"required,min=1,dive"`
}

type policiesResponse struct {
	Users []string `json:"users"`
	Roles []string `json:"roles"`
}

// List returns every role.
//
// @Summary      List roles
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]any
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /api/roles [get]
func (h *RoleHandler) List(c echo.Context) error {
	res, err := h.roles.List(c.Request().Context())
	if err != nil {
		return err
	}
	return respond(c, res)
}

// Policies returns the catalogue of assignable policies.
//
// @Summary      List policies
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]any
// @Router       /api/roles/policies [get]
func (h *RoleHandler) Policies(c echo.Context) error {
	catalogue := h.roles.Policies()
	return respond(c, domain.Ok(policiesResponse{
		Users: catalogue.Users(),
		Roles: catalogue.Roles(),
	}))
}

// Create adds a role and returns its id.
//
// @Summary      Create a role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      roleNameRequest  true  "Role name"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  map[string]any
// @Router       /api/roles [post]
func (h *RoleHandler) Create(c echo.Context) error {
	actor, err := ctxSubject(c)
	if err != nil {
		return err
	}

	var req roleNameRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	res, err := h.roles.Create(c.Request().Context(), req.Name)
	if err != nil {
		return err
	}
	h.record(actor, "create", res.ErrorCode)
	return respond(c, res)
}

// Update renames a role.
//
// @Summary      Rename a role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string           true  "Role id"
// @Param        body  body      roleNameRequest  true  "New name"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  map[string]any
// @Router       /api/roles/{id} [put]
func (h *RoleHandler) Update(c echo.Context) error {
	actor, err := ctxSubject(c)
	if err != nil {
		return err
	}

	var req roleNameRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	res, err := h.roles.Update(c.Request().Context(), c.Param("id"), req.Name)
	if err != nil {
		return err
	}
	h.record(actor, "update", res.ErrorCode)
	return respond(c, res)
}

// AddClaims grants policies to a role.
//
// @Summary      Add claims to a role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string            true  "Role id"
// @Param        body  body      addClaimsRequest  true  "Claims to grant"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  map[string]any
// @Router       /api/roles/{id}/add-claims [post]
func (h *RoleHandler) AddClaims(c echo.Context) error {
	actor, err := ctxSubject(c)
	if err != nil {
		return err
	}

	var req addClaimsRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	claims := make([]domain.Claim, len(req.Claims))
	for i, cr := range req.Claims {
		claims[i] = domain.PolicyClaim(cr.Value)
	}

	res, err := h.roles.AddClaimsToRole(c.Request().Context(), c.Param("id"), claims)
	if err != nil {
		return err
	}
	h.record(actor, "add_claims", res.ErrorCode)
	return respond(c, res)
}

// RemoveFromUser revokes a user's membership in a role.
//
// @Summary      Remove a role from a user
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Param        id      path      string  true  "Role id"
// @Param        userId  path      string  true  "User id"
// @Success      200     {object}  map[string]any
// @Failure      400     {object}  map[string]any
// @Router       /api/roles/{id}/users/{userId} [delete]
func (h *RoleHandler) RemoveFromUser(c echo.Context) error {
	actor, err := ctxSubject(c)
	if err != nil {
		return err
	}

	res, err := h.roles.RemoveRoleFromUser(c.Request().Context(), c.Param("id"), c.Param("userId"))
	if err != nil {
		return err
	}
	h.record(actor, "remove_from_user", res.ErrorCode)
	return respond(c, res)
}

func (h *RoleHandler) record(actor, operation string, code domain.ErrorCode) {
	metrics.RoleOperationsTotal.WithLabelValues(operation, code.String()).Inc()
	h.log.Debug().Str("actor", actor).Str("operation", operation).Stringer("outcome", code).Msg("role operation")
}
