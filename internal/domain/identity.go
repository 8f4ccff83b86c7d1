package domain

import "slices"

type Role string

const (
	RoleClient Role = "CLIENT"
	RoleAdmin  Role = "ADMIN"
)

// Identity is the authenticated principal. A nil *Identity means anonymous.
type Identity struct {
	PrincipalName string `json:"username"`
	Role          Role   `json:"role"`
}

func (i *Identity) HasAnyRole(roles []Role) bool {
	if i == nil {
		return false
	}
	return slices.Contains(roles, i.Role)
}
