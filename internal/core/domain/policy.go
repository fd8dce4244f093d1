package domain

// PolicyCatalogue is the fixed set of recognised policy values, split between
// policies meant for end-user roles and policies that manage roles.
// It is built once at startup and never mutated.
type PolicyCatalogue struct {
	users []string
	roles []string
	index map[string]struct{}
}

// NewPolicyCatalogue copies and deduplicates both sets, preserving order.
func NewPolicyCatalogue(users, roles []string) PolicyCatalogue {
	c := PolicyCatalogue{index: make(map[string]struct{}, len(users)+len(roles))}
	c.users = c.add(users)
	c.roles = c.add(roles)
	return c
}

func (c *PolicyCatalogue) add(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, seen := c.index[v]; seen {
			continue
		}
		c.index[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Recognizes reports whether value belongs to either set.
func (c PolicyCatalogue) Recognizes(value string) bool {
	_, ok := c.index[value]
	return ok
}

// Users returns a copy of the user-assignable policies.
func (c PolicyCatalogue) Users() []string {
	return append([]string(nil), c.users...)
}

// Roles returns a copy of the role-management policies.
func (c PolicyCatalogue) Roles() []string {
	return append([]string(nil), c.roles...)
}
