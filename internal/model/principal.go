package model

import "github.com/google/uuid"

type Role string

const (
	RoleAnalyst Role = "ANALYST"
	RoleAdmin   Role = "ADMIN"
)

type Principal struct {
	UserID uuid.UUID
	Role   Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanAccess reports whether the principal may read or delete a dataset
// uploaded by owner.
func (p Principal) CanAccess(owner uuid.UUID) bool {
	if p.IsAdmin() {
		return true
	}
	return p.UserID != uuid.Nil && p.UserID == owner
}
