package domain

import "github.com/google/uuid"

// ClaimTypePolicy is the claim type used for every policy granted to a role.
const ClaimTypePolicy = "policy"

// Role groups a set of policy claims that users inherit through membership.
type Role struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	NormalizedName   string    `json:"-"`
	ConcurrencyStamp string    `json:"-"`
}

// NewRole builds a role with a fresh id and concurrency stamp.
func NewRole(name string) *Role {
	return &Role{
		ID:               uuid.New(),
		Name:             name,
		NormalizedName:   Normalize(name),
		ConcurrencyStamp: uuid.NewString(),
	}
}

// UpdateName renames the role and refreshes NormalizedName.
func (r *Role) UpdateName(name string) {
	r.Name = name
	r.NormalizedName = Normalize(name)
}

// Clone returns a copy that shares no state with r.
func (r *Role) Clone() *Role {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Claim is a single capability granted to a role.
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// PolicyClaim wraps a policy value in a Claim.
func PolicyClaim(value string) Claim {
	return Claim{Type: ClaimTypePolicy, Value: value}
}

// ClaimValues extracts the values of claims, preserving order.
func ClaimValues(claims []Claim) []string {
	out := make([]string, len(claims))
	for i, c := range claims {
		out[i] = c.Value
	}
	return out
}
