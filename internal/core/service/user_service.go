package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/modernapi/identity-system/internal/core/domain"
	"github.com/modernapi/identity-system/internal/core/ports"
	"github.com/modernapi/identity-system/internal/core/validation"
)

// UserService implements registration, authentication and the email
// confirmation and password reset flows.
type UserService struct {
	store     ports.CredentialStore
	users     ports.UserReadModel
	notifier  ports.Notifier
	validator *validation.Validator
	log       zerolog.Logger
}

func NewUserService(
	store ports.CredentialStore,
	users ports.UserReadModel,
	notifier ports.Notifier,
	validator *validation.Validator,
	log zerolog.Logger,
) *UserService {
	return &UserService{
		store:     store,
		users:     users,
		notifier:  notifier,
		validator: validator,
		log:       log,
	}
}

// List returns every user with its roles.
func (s *UserService) List(ctx context.Context) (domain.Result[[]domain.UserRolesView], error) {
	ctx, span := tracer.Start(ctx, "UserService.List")
	defer span.End()

	views, err := s.users.List(ctx)
	if err != nil {
		return domain.Result[[]domain.UserRolesView]{}, fmt.Errorf("list users: %w", err)
	}
	if views == nil {
		views = []domain.UserRolesView{}
	}
	return domain.Ok(views), nil
}

// Register creates an unconfirmed account, assigns its role and mails an
// email confirmation token.
func (s *UserService) Register(ctx context.Context, in ports.RegisterInput) (domain.Status, error) {
	ctx, span := tracer.Start(ctx, "UserService.Register")
	defer span.End()

	byName, err := s.store.FindUserByName(ctx, in.UserName)
	if err != nil {
		return domain.Status{}, fmt.Errorf("register: find by name: %w", err)
	}
	if byName != nil {
		return domain.Fail[domain.None](domain.UserNameAlreadyTaken), nil
	}

	byEmail, err := s.store.FindUserByEmail(ctx, in.Email)
	if err != nil {
		return domain.Status{}, fmt.Errorf("register: find by email: %w", err)
	}
	if byEmail != nil {
		return domain.Fail[domain.None](domain.EmailAlreadyTaken), nil
	}

	user := domain.NewUser(in.UserName, in.Email)

	if violations := s.validator.ValidateUser(user); len(violations) > 0 {
		return domain.Invalid[domain.None](violations), nil
	}

	if err := s.store.CreateUser(ctx, user, in.Password); err != nil {
		if rej, ok := domain.AsIdentityError(err); ok {
			return domain.Rejected[domain.None](rej), nil
		}
		return domain.Status{}, fmt.Errorf("register: create user: %w", err)
	}

	role, err := findRole(ctx, s.store, in.RoleID)
	if err != nil {
		return domain.Status{}, fmt.Errorf("register: find role: %w", err)
	}
	if role == nil {
		return domain.Fail[domain.None](domain.RoleNotFound), nil
	}

	if err := s.store.AddToRole(ctx, user, role.Name); err != nil {
		if rej, ok := domain.AsIdentityError(err); ok {
			return domain.Rejected[domain.None](rej), nil
		}
		return domain.Status{}, fmt.Errorf("register: add to role: %w", err)
	}

	s.log.Info().Str("user_id", user.ID.String()).Str("role", role.Name).Msg("user registered")

	token, err := s.store.GenerateEmailConfirmationToken(ctx, user)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("failed to generate email confirmation token")
		return domain.Done(), nil
	}
	s.notify(ctx, domain.EmailMessage{
		To:      user.Email,
		Subject: "Confirm Email",
		Body:    fmt.Sprintf("<h1>%s</h1>", token),
	})

	return domain.Done(), nil
}

// Authenticate checks credentials and returns the claims granted to the user.
//
// An unknown email and a wrong password yield the same error code. When the
// user belongs to several roles, the claims of the last role win.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (domain.Result[[]domain.Claim], error) {
	ctx, span := tracer.Start(ctx, "UserService.Authenticate")
	defer span.End()

	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return domain.Result[[]domain.Claim]{}, fmt.Errorf("authenticate: find by email: %w", err)
	}
	if user == nil {
		return domain.Fail[[]domain.Claim](domain.EmailOrPasswordIncorrect), nil
	}

	if !user.EmailConfirmed {
		return domain.Fail[[]domain.Claim](domain.EmailNotConfirmed), nil
	}

	ok, err := s.store.CheckPassword(ctx, user, password)
	if err != nil {
		return domain.Result[[]domain.Claim]{}, fmt.Errorf("authenticate: check password: %w", err)
	}
	if !ok {
		return domain.Fail[[]domain.Claim](domain.EmailOrPasswordIncorrect), nil
	}

	roleNames, err := s.store.GetRoles(ctx, user)
	if err != nil {
		return domain.Result[[]domain.Claim]{}, fmt.Errorf("authenticate: get roles: %w", err)
	}
	if len(roleNames) == 0 {
		s.log.Error().Str("user_id", user.ID.String()).Msg("user without roles")
		return domain.Result[[]domain.Claim]{}, domain.ErrUserWithoutRoles
	}

	var claims []domain.Claim
	for _, name := range roleNames {
		role, err := s.store.FindRoleByName(ctx, name)
		if err != nil {
			return domain.Result[[]domain.Claim]{}, fmt.Errorf("authenticate: find role %q: %w", name, err)
		}
		if role == nil {
			s.log.Error().Str("user_id", user.ID.String()).Str("role", name).Msg("membership points at a missing role")
			return domain.Result[[]domain.Claim]{}, &domain.RoleMissingError{RoleName: name}
		}

		claims, err = s.store.GetClaims(ctx, role)
		if err != nil {
			return domain.Result[[]domain.Claim]{}, fmt.Errorf("authenticate: get claims of %q: %w", name, err)
		}
		if len(claims) == 0 {
			s.log.Error().Str("role", name).Msg("role without claims")
			return domain.Result[[]domain.Claim]{}, &domain.RoleWithoutClaimsError{RoleName: name}
		}
	}

	s.log.Debug().Str("user_id", user.ID.String()).Int("claims", len(claims)).Msg("user authenticated")
	return domain.Ok(claims), nil
}

// ConfirmEmail consumes an email confirmation token.
func (s *UserService) ConfirmEmail(ctx context.Context, email, token string) (domain.Status, error) {
	ctx, span := tracer.Start(ctx, "UserService.ConfirmEmail")
	defer span.End()

	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return domain.Status{}, fmt.Errorf("confirm email: find by email: %w", err)
	}
	if user == nil {
		return domain.Fail[domain.None](domain.EmailNotFound), nil
	}

	if user.EmailConfirmed {
		return domain.Fail[domain.None](domain.EmailAlreadyConfirmed), nil
	}

	if err := s.store.ConfirmEmail(ctx, user, token); err != nil {
		if rej, ok := domain.AsIdentityError(err); ok {
			return domain.Rejected[domain.None](rej), nil
		}
		return domain.Status{}, fmt.Errorf("confirm email: %w", err)
	}

	s.log.Info().Str("user_id", user.ID.String()).Msg("email confirmed")
	s.notify(ctx, domain.EmailMessage{
		To:      user.Email,
		Subject: "Email Confirmed",
		Body:    "Email confirmed.",
	})

	return domain.Done(), nil
}

// RequestPasswordReset mails a password reset token to a confirmed address.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) (domain.Status, error) {
	ctx, span := tracer.Start(ctx, "UserService.RequestPasswordReset")
	defer span.End()

	user, err := s.confirmedUser(ctx, email)
	if err != nil {
		return domain.Status{}, fmt.Errorf("request password reset: %w", err)
	}
	if user.ErrorCode != domain.NoError {
		return domain.Convert[domain.None](user), nil
	}

	token, err := s.store.GeneratePasswordResetToken(ctx, user.Data)
	if err != nil {
		return domain.Status{}, fmt.Errorf("request password reset: generate token: %w", err)
	}

	s.notify(ctx, domain.EmailMessage{
		To:      user.Data.Email,
		Subject: "Reset your Password",
		Body:    fmt.Sprintf("<h1>%s</h1>", token),
	})

	return domain.Done(), nil
}

// ResetPassword consumes a password reset token and sets the new password.
func (s *UserService) ResetPassword(ctx context.Context, in ports.ResetPasswordInput) (domain.Status, error) {
	ctx, span := tracer.Start(ctx, "UserService.ResetPassword")
	defer span.End()

	user, err := s.confirmedUser(ctx, in.Email)
	if err != nil {
		return domain.Status{}, fmt.Errorf("reset password: %w", err)
	}
	if user.ErrorCode != domain.NoError {
		return domain.Convert[domain.None](user), nil
	}

	if err := s.store.ResetPassword(ctx, user.Data, in.Token, in.NewPassword); err != nil {
		if rej, ok := domain.AsIdentityError(err); ok {
			return domain.Rejected[domain.None](rej), nil
		}
		return domain.Status{}, fmt.Errorf("reset password: %w", err)
	}

	s.log.Info().Str("user_id", user.Data.ID.String()).Msg("password reset")
	s.notify(ctx, domain.EmailMessage{
		To:      user.Data.Email,
		Subject: "Password Changed",
		Body:    fmt.Sprintf("Hello %s, your password was changed successfully", user.Data.UserName),
	})

	return domain.Done(), nil
}

// confirmedUser resolves email to a user whose address is confirmed.
func (s *UserService) confirmedUser(ctx context.Context, email string) (domain.Result[*domain.User], error) {
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return domain.Result[*domain.User]{}, fmt.Errorf("find by email: %w", err)
	}
	if user == nil {
		return domain.Fail[*domain.User](domain.EmailNotFound), nil
	}
	if !user.EmailConfirmed {
		return domain.Fail[*domain.User](domain.EmailNotConfirmed), nil
	}
	return domain.Ok(user), nil
}

// notify delivers msg on a best-effort basis: failures are logged and never
// change the outcome of the calling operation.
func (s *UserService) notify(ctx context.Context, msg domain.EmailMessage) {
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.log.Warn().Err(err).Str("email", msg.To).Str("subject", msg.Subject).Msg("email notification failed")
	}
}
