package domain

import (
	"slices"
	"time"
)

// Role names. RoleUser is guaranteed on every account; RoleAdmin marks the
// singleton privileged account that gets recreated after auto-deletion.
const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"
)

// Account is the sole entity of the service.
//
// SessionMarker is the opaque token of the one currently authorised session;
// nil means not logged in. Clearing it is the only way an account gets logged
// out, whether by the user, the lifecycle engine, or a login elsewhere.
type Account struct {
	ID            int64
	Name          string
	Roles         []string
	PasswordHash  string
	SessionMarker *string
	LastLoginAt   *time.Time
	CreatedAt     time.Time
}

// HasRole reports whether the account carries the exact role name.
func (a Account) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

// NormalizeRoles guarantees the default role is present and removes
// duplicates, preserving first-seen order.
func (a *Account) NormalizeRoles() {
	if !slices.Contains(a.Roles, RoleUser) {
		a.Roles = append(a.Roles, RoleUser)
	}

	seen := make(map[string]struct{}, len(a.Roles))
	out := a.Roles[:0]
	for _, r := range a.Roles {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	a.Roles = out
}

// SameRoles reports whether two accounts carry identical role sets,
// ignoring order and duplicates.
func SameRoles(a, b Account) bool {
	return roleSet(a.Roles) == roleSet(b.Roles)
}

func roleSet(roles []string) string {
	sorted := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		sorted = append(sorted, r)
	}
	slices.Sort(sorted)

	out := ""
	for _, r := range sorted {
		out += r + " "
	}
	return out
}
