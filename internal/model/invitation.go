package model

import "time"

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
)

const DefaultInvitationTTL = 7 * 24 * time.Hour

type Invitation struct {
	ID          int64            `json:"id"`
	HouseholdID int64            `json:"household_id"`
	Email       string           `json:"email"`
	Role        Role             `json:"role"`
	InvitedBy   string           `json:"invited_by"`
	Status      InvitationStatus `json:"status"`
	Token       string           `json:"invite_token,omitempty"`
	Message     string           `json:"message,omitempty"`
	ExpiresAt   time.Time        `json:"expires_at"`
	AcceptedAt  *time.Time       `json:"accepted_at,omitempty"`
	AcceptedBy  *string          `json:"accepted_by,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (i *Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// EffectiveStatus reports a stored pending invitation past its expiry as
// expired. Terminal statuses are returned unchanged.
func (i *Invitation) EffectiveStatus(now time.Time) InvitationStatus {
	if i.Status == InvitationPending && i.IsExpired(now) {
		return InvitationExpired
	}
	return i.Status
}

// InvitableRole reports whether an invitation may carry the role. Ownership
// is never granted by invitation.
func InvitableRole(r Role) bool {
	return r == RoleAdmin || r == RoleMember
}
