package domain

import "fmt"

// Role is an ordered privilege level. Higher values include the privileges
// of lower ones.
type Role int

const (
	RoleClient Role = iota
	RoleAdmin
	RoleSuperAdmin
)

var roleNames = map[Role]string{
	RoleClient:     "client",
	RoleAdmin:      "admin",
	RoleSuperAdmin: "super_admin",
}

// ParseRole maps a stored role name to its Role value.
func ParseRole(name string) (Role, error) {
	for role, n := range roleNames {
		if n == name {
			return role, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", name)
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// AtLeast reports whether r grants the privileges of min.
func (r Role) AtLeast(min Role) bool {
	return r >= min
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// RoleHierarchy returns role names ordered low to high, for middleware that
// compares roles by rank.
func RoleHierarchy() []string {
	return []string{
		RoleClient.String(),
		RoleAdmin.String(),
		RoleSuperAdmin.String(),
	}
}
