package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/modernapi/identity-system/internal/core/domain"
)

type memUsers struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*domain.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[uuid.UUID]*domain.User)}
}

func (m *memUsers) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id].Clone(), nil
}

func (m *memUsers) FindByNormalizedUserName(_ context.Context, normalized string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.NormalizedUserName == normalized {
			return u.Clone(), nil
		}
	}
	return nil, nil
}

func (m *memUsers) FindByNormalizedEmail(_ context.Context, normalized string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.NormalizedEmail == normalized {
			return u.Clone(), nil
		}
	}
	return nil, nil
}

func (m *memUsers) Insert(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.NormalizedUserName == user.NormalizedUserName || u.NormalizedEmail == user.NormalizedEmail {
			return fmt.Errorf("insert: %w", domain.ErrDuplicateRecord)
		}
	}
	m.byID[user.ID] = user.Clone()
	return nil
}

func (m *memUsers) Update(_ context.Context, user *domain.User, expectedStamp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[user.ID]
	if !ok || stored.ConcurrencyStamp != expectedStamp {
		return fmt.Errorf("update: %w", domain.ErrStaleRecord)
	}
	m.byID[user.ID] = user.Clone()
	return nil
}

type membership struct {
	userID, roleID uuid.UUID
}

type memRoles struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*domain.Role
	claims  map[uuid.UUID][]domain.Claim
	members []membership
}

func newMemRoles() *memRoles {
	return &memRoles{
		byID:   make(map[uuid.UUID]*domain.Role),
		claims: make(map[uuid.UUID][]domain.Claim),
	}
}

func (m *memRoles) FindByID(_ context.Context, id uuid.UUID) (*domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id].Clone(), nil
}

func (m *memRoles) FindByNormalizedName(_ context.Context, normalized string) (*domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.byID {
		if r.NormalizedName == normalized {
			return r.Clone(), nil
		}
	}
	return nil, nil
}

func (m *memRoles) Insert(_ context.Context, role *domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[role.ID] = role.Clone()
	return nil
}

func (m *memRoles) Update(_ context.Context, role *domain.Role, expectedStamp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[role.ID]
	if !ok || stored.ConcurrencyStamp != expectedStamp {
		return fmt.Errorf("update: %w", domain.ErrStaleRecord)
	}
	m.byID[role.ID] = role.Clone()
	return nil
}

func (m *memRoles) Claims(_ context.Context, roleID uuid.UUID) ([]domain.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Claim{}, m.claims[roleID]...), nil
}

func (m *memRoles) AddClaim(_ context.Context, roleID uuid.UUID, claim domain.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.claims[roleID] {
		if c.Value == claim.Value {
			return fmt.Errorf("add claim: %w", domain.ErrDuplicateRecord)
		}
	}
	m.claims[roleID] = append(m.claims[roleID], claim)
	return nil
}

func (m *memRoles) RoleNamesOfUser(_ context.Context, userID uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := []string{}
	for _, ms := range m.members {
		if ms.userID == userID {
			names = append(names, m.byID[ms.roleID].Name)
		}
	}
	return names, nil
}

func (m *memRoles) IsMember(_ context.Context, userID, roleID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ms := range m.members {
		if ms.userID == userID && ms.roleID == roleID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRoles) AddMember(_ context.Context, userID, roleID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members = append(m.members, membership{userID: userID, roleID: roleID})
	return nil
}

func (m *memRoles) RemoveMember(_ context.Context, userID, roleID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.members[:0]
	for _, ms := range m.members {
		if ms.userID != userID || ms.roleID != roleID {
			kept = append(kept, ms)
		}
	}
	m.members = kept
	return nil
}

type memTokens struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemTokens() *memTokens {
	return &memTokens{values: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (m *memTokens) Save(_ context.Context, purpose, subject, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[purpose+":"+subject] = token
	m.ttls[purpose+":"+subject] = ttl
	return nil
}

func (m *memTokens) Match(_ context.Context, purpose, subject, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.values[purpose+":"+subject]
	return ok && stored == token, nil
}

func (m *memTokens) Delete(_ context.Context, purpose, subject string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, purpose+":"+subject)
	return nil
}

func (m *memTokens) has(purpose string, user *domain.User) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[purpose+":"+user.ID.String()]
	return ok
}
