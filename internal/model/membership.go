package model

import "time"

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

var Roles = []Role{RoleOwner, RoleAdmin, RoleMember}

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

type Permission string

const (
	PermManageInventory       Permission = "canManageInventory"
	PermManageShoppingLists   Permission = "canManageShoppingLists"
	PermManageCategories      Permission = "canManageCategories"
	PermInviteMembers         Permission = "canInviteMembers"
	PermManageMembers         Permission = "canManageMembers"
	PermEditHouseholdSettings Permission = "canEditHouseholdSettings"
	PermDeleteHousehold       Permission = "canDeleteHousehold"
)

// AllPermissions lists every permission name in display order.
var AllPermissions = []Permission{
	PermManageInventory,
	PermManageShoppingLists,
	PermManageCategories,
	PermInviteMembers,
	PermManageMembers,
	PermEditHouseholdSettings,
	PermDeleteHousehold,
}

func (p Permission) Valid() bool {
	for _, known := range AllPermissions {
		if p == known {
			return true
		}
	}
	return false
}

// Permissions is a partial override map. A present key wins over the role
// default whether it grants or revokes.
type Permissions map[Permission]bool

type Membership struct {
	ID           int64       `json:"id"`
	HouseholdID  int64       `json:"household_id"`
	UserID       string      `json:"user_id"`
	Email        string      `json:"email,omitempty"`
	Name         string      `json:"name,omitempty"`
	Role         Role        `json:"role"`
	Permissions  Permissions `json:"permissions,omitempty"`
	IsActive     bool        `json:"is_active"`
	JoinedAt     time.Time   `json:"joined_at"`
	LastActiveAt *time.Time  `json:"last_active_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
