// Package identity implements the credential store on top of the user and
// role repositories, bcrypt password hashing and the one-time token store.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/modernapi/identity-system/internal/core/domain"
)

const (
	purposeEmailConfirmation = "email_confirmation"
	purposePasswordReset     = "password_reset"

	tokenBytes = 32
)

// UserRecords is the persistence the store needs for users.
type UserRecords interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindByNormalizedUserName(ctx context.Context, normalized string) (*domain.User, error)
	FindByNormalizedEmail(ctx context.Context, normalized string) (*domain.User, error)
	Insert(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User, expectedStamp string) error
}

// RoleRecords is the persistence the store needs for roles, claims and memberships.
type RoleRecords interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Role, error)
	FindByNormalizedName(ctx context.Context, normalized string) (*domain.Role, error)
	Insert(ctx context.Context, role *domain.Role) error
	Update(ctx context.Context, role *domain.Role, expectedStamp string) error
	Claims(ctx context.Context, roleID uuid.UUID) ([]domain.Claim, error)
	AddClaim(ctx context.Context, roleID uuid.UUID, claim domain.Claim) error
	RoleNamesOfUser(ctx context.Context, userID uuid.UUID) ([]string, error)
	IsMember(ctx context.Context, userID, roleID uuid.UUID) (bool, error)
	AddMember(ctx context.Context, userID, roleID uuid.UUID) error
	RemoveMember(ctx context.Context, userID, roleID uuid.UUID) error
}

// Tokens keeps one outstanding one-time token per purpose and subject.
type Tokens interface {
	Save(ctx context.Context, purpose, subject, token string, ttl time.Duration) error
	Match(ctx context.Context, purpose, subject, token string) (bool, error)
	Delete(ctx context.Context, purpose, subject string) error
}

// Options are the account rules enforced by the store.
type Options struct {
	AllowedUserNameCharacters string
	RequireUniqueEmail        bool
	MinPasswordLength         int
	EmailConfirmationTTL      time.Duration
	PasswordResetTTL          time.Duration
	BcryptCost                int
}

// DefaultOptions returns lowercase letters and underscore user names, unique
// emails and passwords of at least six characters.
func DefaultOptions() Options {
	return Options{
		AllowedUserNameCharacters: "abcdefghijklmnopqrstuvwxyz_",
		RequireUniqueEmail:        true,
		MinPasswordLength:         6,
		EmailConfirmationTTL:      24 * time.Hour,
		PasswordResetTTL:          time.Hour,
		BcryptCost:                bcrypt.DefaultCost,
	}
}

// Store implements ports.CredentialStore.
type Store struct {
	users  UserRecords
	roles  RoleRecords
	tokens Tokens
	opts   Options
	log    zerolog.Logger
}

func NewStore(users UserRecords, roles RoleRecords, tokens Tokens, opts Options, log zerolog.Logger) *Store {
	return &Store{
		users:  users,
		roles:  roles,
		tokens: tokens,
		opts:   opts,
		log:    log,
	}
}

// ── Users ─────────────────────────────────────────────────────────────────────

func (s *Store) FindUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *Store) FindUserByName(ctx context.Context, userName string) (*domain.User, error) {
	return s.users.FindByNormalizedUserName(ctx, domain.Normalize(userName))
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.users.FindByNormalizedEmail(ctx, domain.Normalize(email))
}

// CreateUser checks the account rules, hashes password and inserts user.
func (s *Store) CreateUser(ctx context.Context, user *domain.User, password string) error {
	problems, err := s.checkUser(ctx, user)
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		return domain.NewIdentityError(problems...)
	}
	if problems := s.checkPassword(password); len(problems) > 0 {
		return domain.NewIdentityError(problems...)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.SecurityStamp = newStamp()

	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateRecord) {
			return domain.NewIdentityError(fmt.Sprintf(domain.MsgDuplicateUserName, user.UserName))
		}
		return err
	}
	return nil
}

// UpdateUser checks the account rules and saves user under a fresh concurrency stamp.
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	problems, err := s.checkUser(ctx, user)
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		return domain.NewIdentityError(problems...)
	}
	return s.saveUser(ctx, user)
}

func (s *Store) CheckPassword(_ context.Context, user *domain.User, password string) (bool, error) {
	if user.PasswordHash == "" {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("check password of %s: %w", user.ID, err)
	}
}

// ── Memberships ───────────────────────────────────────────────────────────────

func (s *Store) GetRoles(ctx context.Context, user *domain.User) ([]string, error) {
	return s.roles.RoleNamesOfUser(ctx, user.ID)
}

func (s *Store) IsInRole(ctx context.Context, user *domain.User, roleName string) (bool, error) {
	role, err := s.FindRoleByName(ctx, roleName)
	if err != nil {
		return false, err
	}
	if role == nil {
		return false, nil
	}
	return s.roles.IsMember(ctx, user.ID, role.ID)
}

// AddToRole adds user to an existing role. An unknown role is a caller bug and
// returns a plain error.
func (s *Store) AddToRole(ctx context.Context, user *domain.User, roleName string) error {
	role, err := s.requireRole(ctx, roleName)
	if err != nil {
		return err
	}

	member, err := s.roles.IsMember(ctx, user.ID, role.ID)
	if err != nil {
		return err
	}
	if member {
		return domain.NewIdentityError(fmt.Sprintf(domain.MsgUserAlreadyInRole, roleName))
	}

	if err := s.roles.AddMember(ctx, user.ID, role.ID); err != nil {
		if errors.Is(err, domain.ErrDuplicateRecord) {
			return domain.NewIdentityError(fmt.Sprintf(domain.MsgUserAlreadyInRole, roleName))
		}
		return err
	}
	return s.saveUser(ctx, user)
}

func (s *Store) RemoveFromRole(ctx context.Context, user *domain.User, roleName string) error {
	role, err := s.requireRole(ctx, roleName)
	if err != nil {
		return err
	}

	member, err := s.roles.IsMember(ctx, user.ID, role.ID)
	if err != nil {
		return err
	}
	if !member {
		return domain.NewIdentityError(fmt.Sprintf(domain.MsgUserNotInRole, roleName))
	}

	if err := s.roles.RemoveMember(ctx, user.ID, role.ID); err != nil {
		return err
	}
	return s.saveUser(ctx, user)
}

// ── Roles ─────────────────────────────────────────────────────────────────────

func (s *Store) FindRoleByID(ctx context.Context, id uuid.UUID) (*domain.Role, error) {
	return s.roles.FindByID(ctx, id)
}

func (s *Store) FindRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	return s.roles.FindByNormalizedName(ctx, domain.Normalize(name))
}

func (s *Store) CreateRole(ctx context.Context, role *domain.Role) error {
	if msg, err := s.checkRoleName(ctx, role); err != nil || msg != "" {
		if err != nil {
			return err
		}
		return domain.NewIdentityError(msg)
	}

	if err := s.roles.Insert(ctx, role); err != nil {
		if errors.Is(err, domain.ErrDuplicateRecord) {
			return domain.NewIdentityError(fmt.Sprintf(domain.MsgDuplicateRoleName, role.Name))
		}
		return err
	}
	return nil
}

func (s *Store) UpdateRole(ctx context.Context, role *domain.Role) error {
	if msg, err := s.checkRoleName(ctx, role); err != nil || msg != "" {
		if err != nil {
			return err
		}
		return domain.NewIdentityError(msg)
	}
	return s.saveRole(ctx, role)
}

func (s *Store) GetClaims(ctx context.Context, role *domain.Role) ([]domain.Claim, error) {
	return s.roles.Claims(ctx, role.ID)
}

// AddClaim claims the role's concurrency stamp first, so a concurrent
// modification rejects the claim before anything is written. A claim value the
// role already holds is rejected.
func (s *Store) AddClaim(ctx context.Context, role *domain.Role, claim domain.Claim) error {
	if err := s.saveRole(ctx, role); err != nil {
		return err
	}
	if err := s.roles.AddClaim(ctx, role.ID, claim); err != nil {
		return storeRejection(err, fmt.Sprintf(domain.MsgDuplicateClaim, claim.Value))
	}
	return nil
}

// ── Tokens ────────────────────────────────────────────────────────────────────

func (s *Store) GenerateEmailConfirmationToken(ctx context.Context, user *domain.User) (string, error) {
	return s.issueToken(ctx, purposeEmailConfirmation, user, s.opts.EmailConfirmationTTL)
}

func (s *Store) ConfirmEmail(ctx context.Context, user *domain.User, token string) error {
	if err := s.verifyToken(ctx, purposeEmailConfirmation, user, token); err != nil {
		return err
	}

	user.EmailConfirmed = true
	if err := s.saveUser(ctx, user); err != nil {
		user.EmailConfirmed = false
		return err
	}
	s.revokeToken(ctx, purposeEmailConfirmation, user)
	return nil
}

func (s *Store) GeneratePasswordResetToken(ctx context.Context, user *domain.User) (string, error) {
	return s.issueToken(ctx, purposePasswordReset, user, s.opts.PasswordResetTTL)
}

// ResetPassword replaces the password and rotates the security stamp, which
// also revokes any outstanding email confirmation token.
func (s *Store) ResetPassword(ctx context.Context, user *domain.User, token, newPassword string) error {
	if err := s.verifyToken(ctx, purposePasswordReset, user, token); err != nil {
		return err
	}
	if problems := s.checkPassword(newPassword); len(problems) > 0 {
		return domain.NewIdentityError(problems...)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	previousHash, previousStamp := user.PasswordHash, user.SecurityStamp
	user.PasswordHash = string(hash)
	user.SecurityStamp = newStamp()
	if err := s.saveUser(ctx, user); err != nil {
		user.PasswordHash, user.SecurityStamp = previousHash, previousStamp
		return err
	}

	s.revokeToken(ctx, purposePasswordReset, user)
	s.revokeToken(ctx, purposeEmailConfirmation, user)
	return nil
}

func (s *Store) issueToken(ctx context.Context, purpose string, user *domain.User, ttl time.Duration) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate %s token: %w", purpose, err)
	}
	token := hex.EncodeToString(buf)

	if err := s.tokens.Save(ctx, purpose, user.ID.String(), token, ttl); err != nil {
		return "", err
	}
	return token, nil
}

func (s *Store) verifyToken(ctx context.Context, purpose string, user *domain.User, token string) error {
	if token == "" {
		return domain.NewIdentityError(domain.MsgInvalidToken)
	}
	ok, err := s.tokens.Match(ctx, purpose, user.ID.String(), token)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NewIdentityError(domain.MsgInvalidToken)
	}
	return nil
}

// revokeToken deletes a consumed token. The state change it guarded is already
// saved, so a failure only leaves the token to expire on its own.
func (s *Store) revokeToken(ctx context.Context, purpose string, user *domain.User) {
	if err := s.tokens.Delete(ctx, purpose, user.ID.String()); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID.String()).Str("purpose", purpose).Msg("failed to revoke token")
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// checkUser returns the account rule violations of user.
func (s *Store) checkUser(ctx context.Context, user *domain.User) ([]string, error) {
	var problems []string

	if !s.allowedUserName(user.UserName) {
		problems = append(problems, fmt.Sprintf(domain.MsgInvalidUserName, user.UserName))
	} else {
		owner, err := s.users.FindByNormalizedUserName(ctx, user.NormalizedUserName)
		if err != nil {
			return nil, err
		}
		if owner != nil && owner.ID != user.ID {
			problems = append(problems, fmt.Sprintf(domain.MsgDuplicateUserName, user.UserName))
		}
	}

	if s.opts.RequireUniqueEmail {
		owner, err := s.users.FindByNormalizedEmail(ctx, user.NormalizedEmail)
		if err != nil {
			return nil, err
		}
		if owner != nil && owner.ID != user.ID {
			problems = append(problems, fmt.Sprintf(domain.MsgDuplicateEmail, user.Email))
		}
	}

	return problems, nil
}

func (s *Store) allowedUserName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !strings.ContainsRune(s.opts.AllowedUserNameCharacters, r) {
			return false
		}
	}
	return true
}

func (s *Store) checkPassword(password string) []string {
	if len(password) < s.opts.MinPasswordLength {
		return []string{fmt.Sprintf(domain.MsgPasswordTooShort, s.opts.MinPasswordLength)}
	}
	return nil
}

// checkRoleName returns a rejection message when another role owns role's name.
func (s *Store) checkRoleName(ctx context.Context, role *domain.Role) (string, error) {
	owner, err := s.roles.FindByNormalizedName(ctx, role.NormalizedName)
	if err != nil {
		return "", err
	}
	if owner != nil && owner.ID != role.ID {
		return fmt.Sprintf(domain.MsgDuplicateRoleName, role.Name), nil
	}
	return "", nil
}

func (s *Store) requireRole(ctx context.Context, roleName string) (*domain.Role, error) {
	role, err := s.FindRoleByName(ctx, roleName)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, fmt.Errorf("role %q does not exist", roleName)
	}
	return role, nil
}

// saveUser compare-and-swaps user under a fresh concurrency stamp. On
// rejection the in-memory stamp is restored.
func (s *Store) saveUser(ctx context.Context, user *domain.User) error {
	expected := user.ConcurrencyStamp
	user.ConcurrencyStamp = newStamp()

	if err := s.users.Update(ctx, user, expected); err != nil {
		user.ConcurrencyStamp = expected
		return storeRejection(err, fmt.Sprintf(domain.MsgDuplicateUserName, user.UserName))
	}
	return nil
}

func (s *Store) saveRole(ctx context.Context, role *domain.Role) error {
	expected := role.ConcurrencyStamp
	role.ConcurrencyStamp = newStamp()

	if err := s.roles.Update(ctx, role, expected); err != nil {
		role.ConcurrencyStamp = expected
		return storeRejection(err, fmt.Sprintf(domain.MsgDuplicateRoleName, role.Name))
	}
	return nil
}

// storeRejection turns persistence conflicts into rejections and passes any
// other failure through.
func storeRejection(err error, duplicateMsg string) error {
	switch {
	case errors.Is(err, domain.ErrStaleRecord):
		return domain.NewIdentityError(domain.MsgConcurrencyFailure)
	case errors.Is(err, domain.ErrDuplicateRecord):
		return domain.NewIdentityError(duplicateMsg)
	default:
		return err
	}
}

func newStamp() string {
	return uuid.NewString()
}
