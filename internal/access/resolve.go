package access

import (
	"time"

	"github.com/jburchel/kitchentory/internal/model"
)

const reasonNotActiveMember = "not an active member of this household"

type EffectivePermissions struct {
	Role         model.Role                `json:"role"`
	Permissions  map[model.Permission]bool `json:"permissions"`
	IsActive     bool                      `json:"is_active"`
	JoinedAt     time.Time                 `json:"joined_at"`
	LastActiveAt *time.Time                `json:"last_active_at,omitempty"`
}

// Resolve overlays the membership's overrides on its role defaults. It
// returns nil for a missing or inactive membership.
func Resolve(m *model.Membership) *EffectivePermissions {
	if m == nil || !m.IsActive {
		return nil
	}
	perms := DefaultsFor(m.Role)
	for p, v := range m.Permissions {
		if p.Valid() {
			perms[p] = v
		}
	}
	return &EffectivePermissions{
		Role:         m.Role,
		Permissions:  perms,
		IsActive:     m.IsActive,
		JoinedAt:     m.JoinedAt,
		LastActiveAt: m.LastActiveAt,
	}
}

type Check struct {
	HasPermission bool   `json:"hasPermission"`
	Reason        string `json:"reason,omitempty"`
	err           error
}

// Err is nil when the check passed and a *DeniedError otherwise.
func (c Check) Err() error {
	if c.HasPermission {
		return nil
	}
	return deny(c.Reason, c.err)
}

func HasPermission(m *model.Membership, p model.Permission) Check {
	eff := Resolve(m)
	if eff == nil {
		return Check{Reason: reasonNotActiveMember, err: ErrNotAMember}
	}
	if !eff.Permissions[p] {
		return Check{Reason: "does not have " + string(p) + " permission", err: ErrPermissionDenied}
	}
	return Check{HasPermission: true}
}

type MultiCheck struct {
	IsValid     bool                      `json:"isValid"`
	Permissions map[model.Permission]bool `json:"permissions"`
}

// HasAllPermissions resolves each requested name independently. IsValid is
// the AND of the results, so an empty request from an active member is valid.
func HasAllPermissions(m *model.Membership, ps []model.Permission) MultiCheck {
	out := MultiCheck{Permissions: make(map[model.Permission]bool, len(ps))}
	eff := Resolve(m)
	if eff == nil {
		for _, p := range ps {
			out.Permissions[p] = false
		}
		return out
	}

	out.IsValid = true
	for _, p := range ps {
		ok := eff.Permissions[p]
		out.Permissions[p] = ok
		if !ok {
			out.IsValid = false
		}
	}
	return out
}
