package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/modernapi/identity-system/internal/core/domain"
)

const stubMinPassword = 6

// stubStore is an in-memory CredentialStore. It hands out clones so callers
// never mutate stored state by accident, and counts every mutating call.
type stubStore struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*domain.User
	passwords   map[uuid.UUID]string
	roles       map[uuid.UUID]*domain.Role
	claims      map[uuid.UUID][]domain.Claim
	memberships map[uuid.UUID][]string
	tokens      map[string]string
	calls       map[string]int

	// rejectAddClaimAt makes the n-th AddClaim call (1-based) fail with a
	// store rejection.
	rejectAddClaimAt int
	// failGetRoles makes GetRoles return an infrastructure error.
	failGetRoles bool
}

func newStubStore() *stubStore {
	return &stubStore{
		users:       make(map[uuid.UUID]*domain.User),
		passwords:   make(map[uuid.UUID]string),
		roles:       make(map[uuid.UUID]*domain.Role),
		claims:      make(map[uuid.UUID][]domain.Claim),
		memberships: make(map[uuid.UUID][]string),
		tokens:      make(map[string]string),
		calls:       make(map[string]int),
	}
}

func (s *stubStore) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

// seedRole stores a role with the given policies and returns it.
func (s *stubStore) seedRole(name string, policies ...string) *domain.Role {
	role := domain.NewRole(name)
	s.roles[role.ID] = role.Clone()
	for _, p := range policies {
		s.claims[role.ID] = append(s.claims[role.ID], domain.PolicyClaim(p))
	}
	return role
}

// seedUser stores a user with password and role memberships and returns it.
func (s *stubStore) seedUser(user *domain.User, password string, roleNames ...string) *domain.User {
	s.users[user.ID] = user.Clone()
	s.passwords[user.ID] = password
	s.memberships[user.ID] = append([]string(nil), roleNames...)
	return user
}

func (s *stubStore) FindUserByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id].Clone(), nil
}

func (s *stubStore) FindUserByName(_ context.Context, userName string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.NormalizedUserName == domain.Normalize(userName) {
			return u.Clone(), nil
		}
	}
	return nil, nil
}

func (s *stubStore) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.NormalizedEmail == domain.Normalize(email) {
			return u.Clone(), nil
		}
	}
	return nil, nil
}

func (s *stubStore) CreateUser(_ context.Context, user *domain.User, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["CreateUser"]++
	if len(password) < stubMinPassword {
		return domain.NewIdentityError(fmt.Sprintf(domain.MsgPasswordTooShort, stubMinPassword))
	}
	s.users[user.ID] = user.Clone()
	s.passwords[user.ID] = password
	return nil
}

func (s *stubStore) UpdateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["UpdateUser"]++
	s.users[user.ID] = user.Clone()
	return nil
}

func (s *stubStore) CheckPassword(_ context.Context, user *domain.User, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passwords[user.ID] == password, nil
}

func (s *stubStore) GetRoles(_ context.Context, user *domain.User) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGetRoles {
		return nil, errors.New("connection reset")
	}
	return append([]string(nil), s.memberships[user.ID]...), nil
}

func (s *stubStore) IsInRole(_ context.Context, user *domain.User, roleName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range s.memberships[user.ID] {
		if name == roleName {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubStore) AddToRole(_ context.Context, user *domain.User, roleName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["AddToRole"]++
	s.memberships[user.ID] = append(s.memberships[user.ID], roleName)
	return nil
}

func (s *stubStore) RemoveFromRole(_ context.Context, user *domain.User, roleName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["RemoveFromRole"]++
	kept := s.memberships[user.ID][:0]
	for _, name := range s.memberships[user.ID] {
		if name != roleName {
			kept = append(kept, name)
		}
	}
	s.memberships[user.ID] = kept
	return nil
}

func (s *stubStore) FindRoleByID(_ context.Context, id uuid.UUID) (*domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roles[id].Clone(), nil
}

func (s *stubStore) FindRoleByName(_ context.Context, name string) (*domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roles {
		if r.NormalizedName == domain.Normalize(name) {
			return r.Clone(), nil
		}
	}
	return nil, nil
}

func (s *stubStore) CreateRole(_ context.Context, role *domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["CreateRole"]++
	s.roles[role.ID] = role.Clone()
	return nil
}

func (s *stubStore) UpdateRole(_ context.Context, role *domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["UpdateRole"]++
	s.roles[role.ID] = role.Clone()
	return nil
}

func (s *stubStore) GetClaims(_ context.Context, role *domain.Role) ([]domain.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Claim(nil), s.claims[role.ID]...), nil
}

func (s *stubStore) AddClaim(_ context.Context, role *domain.Role, claim domain.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["AddClaim"]++
	if s.calls["AddClaim"] == s.rejectAddClaimAt {
		return domain.NewIdentityError(domain.MsgConcurrencyFailure)
	}
	s.claims[role.ID] = append(s.claims[role.ID], claim)
	return nil
}

func (s *stubStore) GenerateEmailConfirmationToken(_ context.Context, user *domain.User) (string, error) {
	return s.issue("confirm", user), nil
}

func (s *stubStore) ConfirmEmail(_ context.Context, user *domain.User, token string) error {
	if !s.consume("confirm", user, token) {
		return domain.NewIdentityError(domain.MsgInvalidToken)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID].EmailConfirmed = true
	return nil
}

func (s *stubStore) GeneratePasswordResetToken(_ context.Context, user *domain.User) (string, error) {
	return s.issue("reset", user), nil
}

func (s *stubStore) ResetPassword(_ context.Context, user *domain.User, token, newPassword string) error {
	if !s.consume("reset", user, token) {
		return domain.NewIdentityError(domain.MsgInvalidToken)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passwords[user.ID] = newPassword
	return nil
}

func (s *stubStore) issue(purpose string, user *domain.User) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := uuid.NewString()
	s.tokens[purpose+":"+user.ID.String()] = token
	return token
}

func (s *stubStore) consume(purpose string, user *domain.User, token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := purpose + ":" + user.ID.String()
	if s.tokens[key] == "" || s.tokens[key] != token {
		return false
	}
	delete(s.tokens, key)
	return true
}

type stubRoleReadModel struct{ store *stubStore }

func (m stubRoleReadModel) List(context.Context) ([]domain.Role, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []domain.Role
	for _, r := range m.store.roles {
		out = append(out, *r)
	}
	return out, nil
}

type stubUserReadModel struct{ store *stubStore }

func (m stubUserReadModel) List(context.Context) ([]domain.UserRolesView, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []domain.UserRolesView
	for _, u := range m.store.users {
		view := domain.UserRolesView{ID: u.ID, UserName: u.UserName, Email: u.Email, EmailConfirmed: u.EmailConfirmed}
		for _, name := range m.store.memberships[u.ID] {
			for _, r := range m.store.roles {
				if r.Name == name {
					view.Roles = append(view.Roles, domain.RoleRef{ID: r.ID, Name: r.Name})
				}
			}
		}
		out = append(out, view)
	}
	return out, nil
}

// stubNotifier records sent messages and optionally fails every send.
type stubNotifier struct {
	mu   sync.Mutex
	sent []domain.EmailMessage
	err  error
}

func (n *stubNotifier) Send(_ context.Context, msg domain.EmailMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *stubNotifier) last() (domain.EmailMessage, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return domain.EmailMessage{}, false
	}
	return n.sent[len(n.sent)-1], true
}
