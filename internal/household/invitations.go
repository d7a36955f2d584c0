package household

import (
	"strings"
	"time"

	"github.com/jburchel/kitchentory/internal/access"
	"github.com/jburchel/kitchentory/internal/email"
	"github.com/jburchel/kitchentory/internal/model"
	"github.com/jburchel/kitchentory/internal/store"
	"github.com/jburchel/kitchentory/internal/websocket"
)

type InvitationRequest struct {
	HouseholdID int64
	Email       string
	Role        model.Role
	InvitedBy   string
	Message     string
	// TTLHours overrides the default lifetime when positive.
	TTLHours int
}

// CreateInvitation issues a pending invitation. The inviter needs effective
// canInviteMembers and the household must have a free slot. The returned
// invitation is the only place the plaintext token appears.
func (s *Service) CreateInvitation(req InvitationRequest) (*model.Invitation, error) {
	if !model.InvitableRole(req.Role) {
		return nil, &access.DeniedError{Reason: "invitations may only grant admin or member", Err: access.ErrInvalidRole}
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		return nil, &access.DeniedError{Reason: "email is required", Err: access.ErrInvalidInput}
	}
	if err := s.RequirePermission(req.HouseholdID, req.InvitedBy, model.PermInviteMembers); err != nil {
		return nil, err
	}

	ttl := s.inviteTTL
	if req.TTLHours > 0 {
		ttl = time.Duration(req.TTLHours) * time.Hour
	}

	inv, err := s.invitations.Create(store.CreateInvitationParams{
		HouseholdID: req.HouseholdID,
		Email:       req.Email,
		Role:        req.Role,
		InvitedBy:   req.InvitedBy,
		Message:     req.Message,
		ExpiresAt:   s.now().Add(ttl),
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordInvitation(string(model.InvitationPending))
	s.logger.Info("invitation created", "household_id", inv.HouseholdID, "invitation_id", inv.ID, "role", inv.Role)
	s.notify(inv)
	s.broadcast(inv.HouseholdID, websocket.NewMessage("invitation", "created", inv.ID, map[string]any{
		"role": string(inv.Role),
	}))
	return inv, nil
}

// notify sends the invitation email. Delivery problems are logged only.
func (s *Service) notify(inv *model.Invitation) {
	if s.notifier == nil || !s.notifier.Configured() {
		return
	}

	h, err := s.households.GetByID(inv.HouseholdID)
	if err != nil || h == nil {
		s.logger.Warn("invitation email skipped", "invitation_id", inv.ID, "error", err)
		return
	}
	var inviterName string
	if u, err := s.users.GetByID(inv.InvitedBy); err == nil && u != nil {
		inviterName = u.Name
	}

	err = s.notifier.SendInvitation(email.Invitation{
		To:            inv.Email,
		HouseholdName: h.Name,
		InviterName:   inviterName,
		Role:          string(inv.Role),
		Token:         inv.Token,
		Message:       inv.Message,
		ExpiresAt:     inv.ExpiresAt,
	})
	if err != nil {
		s.logger.Error("send invitation email", "invitation_id", inv.ID, "error", err)
	}
}

// ReadInvitation returns the invitation for token with its effective status,
// or nil if the token is unknown. It never writes.
func (s *Service) ReadInvitation(token string) (*model.Invitation, error) {
	inv, err := s.invitations.GetByToken(token)
	if err != nil || inv == nil {
		return nil, err
	}
	inv.Status = inv.EffectiveStatus(s.now())
	return inv, nil
}

// ListPendingInvitations returns invitations still pending at the current
// time. The caller needs canInviteMembers.
func (s *Service) ListPendingInvitations(householdID int64, userID string) ([]model.Invitation, error) {
	if err := s.RequirePermission(householdID, userID, model.PermInviteMembers); err != nil {
		return nil, err
	}
	stored, err := s.invitations.ListPending(householdID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	pending := make([]model.Invitation, 0, len(stored))
	for _, inv := range stored {
		if inv.EffectiveStatus(now) == model.InvitationPending {
			pending = append(pending, inv)
		}
	}
	return pending, nil
}

func (s *Service) AcceptInvitation(token, userID, userEmail string) (*model.Membership, error) {
	m, inv, err := s.invitations.Accept(token, userID, userEmail, s.now())
	if err != nil {
		return nil, err
	}

	s.metrics.RecordInvitation(string(model.InvitationAccepted))
	s.metrics.RecordMembership("joined")
	s.logger.Info("invitation accepted", "household_id", m.HouseholdID, "invitation_id", inv.ID, "user_id", userID)
	s.broadcast(m.HouseholdID, websocket.NewMessage("invitation", "accepted", inv.ID, nil))
	s.broadcast(m.HouseholdID, websocket.NewMessage("membership", "created", m.ID, map[string]any{
		"user_id": userID,
		"role":    string(m.Role),
	}))
	return m, nil
}

func (s *Service) DeclineInvitation(token string) error {
	inv, err := s.invitations.Decline(token, s.now())
	if err != nil {
		return err
	}
	s.metrics.RecordInvitation(string(model.InvitationDeclined))
	s.logger.Info("invitation declined", "household_id", inv.HouseholdID, "invitation_id", inv.ID)
	s.broadcast(inv.HouseholdID, websocket.NewMessage("invitation", "declined", inv.ID, nil))
	return nil
}
