package domain

import "github.com/google/uuid"

// Role is supplied by the external auth layer.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleBuyer || r == RoleSeller || r == RoleAdmin
}

// Principal is the authenticated caller.
type Principal struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanActFor is true for the owner itself and for admins.
func (p Principal) CanActFor(ownerID uuid.UUID) bool {
	return p.IsAdmin() || p.UserID == ownerID
}
