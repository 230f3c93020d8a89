package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// Role is the closed set of authorization levels a user can hold.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super admin"
)

// ErrUnknownRole is returned when a role value is outside the closed set.
var ErrUnknownRole = errors.New("unknown role")

// ParseRole converts a raw string into a Role, rejecting anything outside the closed set.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// Scan implements sql.Scanner. A role column holding an unknown value is a
// data-integrity failure and fails the whole read.
func (r *Role) Scan(value any) error {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		return fmt.Errorf("%w: null", ErrUnknownRole)
	default:
		return fmt.Errorf("scan role: unsupported type %T", value)
	}
	parsed, err := ParseRole(raw)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value implements driver.Valuer.
func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, string(r))
	}
	return string(r), nil
}

// RoleSet is an explicit list of roles allowed to perform an operation.
type RoleSet struct {
	roles map[Role]struct{}
}

// NewRoleSet builds a RoleSet. It panics on an unknown role because role sets
// are declared once at route wiring time.
func NewRoleSet(roles ...Role) RoleSet {
	set := RoleSet{roles: make(map[Role]struct{}, len(roles))}
	for _, r := range roles {
		if !r.Valid() {
			panic(fmt.Sprintf("model: role set declared with unknown role %q", string(r)))
		}
		set.roles[r] = struct{}{}
	}
	return set
}

// Contains reports whether r is allowed by the set.
func (s RoleSet) Contains(r Role) bool {
	_, ok := s.roles[r]
	return ok
}

// Roles returns the members of the set in declaration-independent order.
func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, len(s.roles))
	for _, r := range []Role{RoleUser, RoleAdmin, RoleSuperAdmin} {
		if s.Contains(r) {
			out = append(out, r)
		}
	}
	return out
}
