package access

import "github.com/jburchel/kitchentory/internal/model"

// RoleDefaults is the single source of role default permissions. It is read
// by the resolver and served to clients; never mutate it.
var RoleDefaults = map[model.Role]map[model.Permission]bool{
	model.RoleOwner: {
		model.PermManageInventory:       true,
		model.PermManageShoppingLists:   true,
		model.PermManageCategories:      true,
		model.PermInviteMembers:         true,
		model.PermManageMembers:         true,
		model.PermEditHouseholdSettings: true,
		model.PermDeleteHousehold:       true,
	},
	model.RoleAdmin: {
		model.PermManageInventory:       true,
		model.PermManageShoppingLists:   true,
		model.PermManageCategories:      true,
		model.PermInviteMembers:         true,
		model.PermManageMembers:         false,
		model.PermEditHouseholdSettings: true,
		model.PermDeleteHousehold:       false,
	},
	model.RoleMember: {
		model.PermManageInventory:       false,
		model.PermManageShoppingLists:   true,
		model.PermManageCategories:      false,
		model.PermInviteMembers:         false,
		model.PermManageMembers:         false,
		model.PermEditHouseholdSettings: false,
		model.PermDeleteHousehold:       false,
	},
}

// DefaultsFor returns a copy of the role's default permissions with every
// known permission present. Unknown roles get an all-false map.
func DefaultsFor(role model.Role) map[model.Permission]bool {
	defaults := RoleDefaults[role]
	out := make(map[model.Permission]bool, len(model.AllPermissions))
	for _, p := range model.AllPermissions {
		out[p] = defaults[p]
	}
	return out
}

// ValidateOverrides rejects override maps naming permissions outside the
// known set.
func ValidateOverrides(overrides model.Permissions) error {
	for p := range overrides {
		if !p.Valid() {
			return &DeniedError{Reason: "unknown permission " + string(p), Err: ErrInvalidPermission}
		}
	}
	return nil
}
