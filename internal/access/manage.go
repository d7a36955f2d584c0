package access

import "github.com/jburchel/kitchentory/internal/model"

type Action string

const (
	ActionRemove            Action = "remove"
	ActionUpdateRole        Action = "update_role"
	ActionUpdatePermissions Action = "update_permissions"
	ActionViewDetails       Action = "view_details"
)

func (a Action) Valid() bool {
	switch a {
	case ActionRemove, ActionUpdateRole, ActionUpdatePermissions, ActionViewDetails:
		return true
	}
	return false
}

type Decision struct {
	CanManage bool   `json:"canManage"`
	Reason    string `json:"reason,omitempty"`
	err       error
}

// Err is nil when the action is allowed and a *DeniedError otherwise.
func (d Decision) Err() error {
	if d.CanManage {
		return nil
	}
	return deny(d.Reason, d.err)
}

func allow() Decision {
	return Decision{CanManage: true}
}

func refuse(reason string, err error) Decision {
	return Decision{Reason: reason, err: err}
}

// CanManageMember decides whether actor may perform action on target.
// activeOwners is the number of active owners in the household and is only
// consulted when an owner removes themself. The first matching rule decides.
func CanManageMember(actor, target *model.Membership, activeOwners int, action Action) Decision {
	if actor == nil || !actor.IsActive {
		return refuse("actor not active member", ErrNotAMember)
	}
	if target == nil || !target.IsActive {
		return refuse("target not a member", ErrTargetNotFound)
	}
	if !action.Valid() {
		return refuse("unknown action "+string(action), ErrPermissionDenied)
	}

	if actor.UserID == target.UserID {
		switch action {
		case ActionRemove:
			if actor.Role == model.RoleOwner && activeOwners <= 1 {
				return refuse("cannot remove the last owner", ErrLastOwnerProtected)
			}
			return allow()
		case ActionViewDetails:
			return allow()
		default:
			return refuse("cannot modify own role or permissions", ErrSelfEscalationDenied)
		}
	}

	isOwner := actor.Role == model.RoleOwner
	canManageMembers := HasPermission(actor, model.PermManageMembers).HasPermission

	switch action {
	case ActionViewDetails:
		return allow()
	case ActionRemove:
		if isOwner || (canManageMembers && target.Role == model.RoleMember) {
			return allow()
		}
		return refuse("Insufficient permissions to remove this member", ErrPermissionDenied)
	case ActionUpdateRole:
		if isOwner {
			return allow()
		}
		return refuse("only owners can change member roles", ErrPermissionDenied)
	default:
		if isOwner || (canManageMembers && target.Role != model.RoleOwner) {
			return allow()
		}
		return refuse("Insufficient permissions to update this member's permissions", ErrPermissionDenied)
	}
}
