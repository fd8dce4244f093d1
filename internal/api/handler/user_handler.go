package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/modernapi/identity-system/internal/api/metrics"
	"github.com/modernapi/identity-system/internal/core/domain"
	"github.com/modernapi/identity-system/internal/core/ports"
)

type UserHandler struct {
	users  ports.UserService
	tokens ports.TokenIssuer
	log    zerolog.Logger
}

func NewUserHandler(users ports.UserService, tokens ports.TokenIssuer, log zerolog.Logger) *UserHandler {
	return &UserHandler{users: users, tokens: tokens, log: log}
}

type authenticateRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// userName and email are checked by the entity rules in the service.
type registerRequest struct {
	UserName string `json:"userName"`
	Email    string `json:"email"`
	Password string `json:"password" validate:"required"`
	RoleID   string `json:"roleId"   validate:"required"`
}

type confirmEmailRequest struct {
	Email string `json:"email" validate:"required"`
	Token string `json:"token" validate:"required"`
}

type requestPasswordResetRequest struct {
	Email string `json:"email" validate:"required"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"       validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
	Token       string `json:"token"       validate:"required"`
}

// List returns every user with its roles.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]any
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /api/users [get]
func (h *UserHandler) List(c echo.Context) error {
	res, err := h.users.List(c.Request().Context())
	if err != nil {
		return err
	}
	return respond(c, res)
}

// Authenticate exchanges credentials for a bearer token.
//
// @Summary      Authenticate
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      authenticateRequest  true  "Credentials"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  map[string]any
// @Failure      429   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/users/authenticate [post]
func (h *UserHandler) Authenticate(c echo.Context) error {
	var req authenticateRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	res, err := h.users.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrDataIntegrity) {
			metrics.AuthenticationsTotal.WithLabelValues("integrity_fault").Inc()
		}
		return err
	}
	metrics.AuthenticationsTotal.WithLabelValues(res.ErrorCode.String()).Inc()
	if !res.Success() {
		return respond(c, res)
	}

	signed, err := h.tokens.Issue(req.Email, res.Data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, domain.Ok(signed))
}

// Register creates an account in the given role and mails a confirmation token.
//
// @Summary      Register a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      registerRequest  true  "Account details"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  map[string]any
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Router       /api/users/register [post]
func (h *UserHandler) Register(c echo.Context) error {
	actor, err := ctxSubject(c)
	if err != nil {
		return err
	}

	var req registerRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	res, err := h.users.Register(c.Request().Context(), ports.RegisterInput{
		UserName: req.UserName,
		Email:    req.Email,
		Password: req.Password,
		RoleID:   req.RoleID,
	})
	if err != nil {
		return err
	}
	metrics.UserOperationsTotal.WithLabelValues("register", res.ErrorCode.String()).Inc()
	if res.Success() {
		h.log.Info().Str("actor", actor).Str("email", req.Email).Msg("user registered")
	}
	return respond(c, res)
}

// ConfirmEmail consumes an email confirmation token.
//
// @Summary      Confirm email
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      confirmEmailRequest  true  "Email and token"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  map[string]any
// @Router       /api/users/confirm-email [post]
func (h *UserHandler) ConfirmEmail(c echo.Context) error {
	var req confirmEmailRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	res, err := h.users.ConfirmEmail(c.Request().Context(), req.Email, req.Token)
	if err != nil {
		return err
	}
	metrics.UserOperationsTotal.WithLabelValues("confirm_email", res.ErrorCode.String()).Inc()
	return respond(c, res)
}

// RequestPasswordReset mails a password reset token.
//
// @Summary      Request a password reset
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      requestPasswordResetRequest  true  "Email"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  map[string]any
// @Router       /api/users/request-password-reset [post]
func (h *UserHandler) RequestPasswordReset(c echo.Context) error {
	var req requestPasswordResetRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	res, err := h.users.RequestPasswordReset(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}
	metrics.UserOperationsTotal.WithLabelValues("request_password_reset", res.ErrorCode.String()).Inc()
	return respond(c, res)
}

// ResetPassword consumes a password reset token and sets the new password.
//
// @Summary      Reset password
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      resetPasswordRequest  true  "Email, token and new password"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  map[string]any
// @Router       /api/users/reset-password [post]
func (h *UserHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	res, err := h.users.ResetPassword(c.Request().Context(), ports.ResetPasswordInput{
		Email:       req.Email,
		NewPassword: req.NewPassword,
		Token:       req.Token,
	})
	if err != nil {
		return err
	}
	metrics.UserOperationsTotal.WithLabelValues("reset_password", res.ErrorCode.String()).Inc()
	return respond(c, res)
}
