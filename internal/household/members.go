package household

import (
	"golang.org/x/sync/errgroup"

	"github.com/jburchel/kitchentory/internal/access"
	"github.com/jburchel/kitchentory/internal/model"
	"github.com/jburchel/kitchentory/internal/websocket"
)

// decide loads actor, target and the active owner count concurrently and
// runs the authorizer over them.
func (s *Service) decide(householdID int64, actingUserID, targetUserID string, action access.Action) (access.Decision, *model.Membership, error) {
	var (
		actor, target *model.Membership
		owners        int
	)

	var g errgroup.Group
	g.Go(func() error {
		m, err := s.households.GetMember(householdID, actingUserID)
		actor = m
		return err
	})
	g.Go(func() error {
		m, err := s.households.GetMember(householdID, targetUserID)
		target = m
		return err
	})
	g.Go(func() error {
		n, err := s.households.CountActiveOwners(householdID)
		owners = n
		return err
	})
	if err := g.Wait(); err != nil {
		return access.Decision{}, nil, err
	}

	d := access.CanManageMember(actor, target, owners, action)
	s.metrics.RecordDecision("manage:"+string(action), d.CanManage)
	if !d.CanManage {
		s.logger.Debug("member management denied",
			"household_id", householdID, "actor", actingUserID, "target", targetUserID,
			"action", action, "reason", d.Reason)
	}
	return d, target, nil
}

func (s *Service) CanManageMember(householdID int64, actingUserID, targetUserID string, action access.Action) (access.Decision, error) {
	d, _, err := s.decide(householdID, actingUserID, targetUserID, action)
	return d, err
}

// ListMembers returns the active members; the caller must be one.
func (s *Service) ListMembers(householdID int64, userID string) ([]model.Membership, error) {
	if _, err := s.requireMember(householdID, userID); err != nil {
		return nil, err
	}
	return s.households.ListMembers(householdID)
}

func (s *Service) MemberDetails(householdID int64, actingUserID, targetUserID string) (*model.Membership, error) {
	d, target, err := s.decide(householdID, actingUserID, targetUserID, access.ActionViewDetails)
	if err != nil {
		return nil, err
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return target, nil
}

// RemoveMember deactivates the target membership; acting == target is a
// self-leave. The store re-checks the last-owner rule in the same statement.
func (s *Service) RemoveMember(householdID int64, actingUserID, targetUserID string) error {
	d, target, err := s.decide(householdID, actingUserID, targetUserID, access.ActionRemove)
	if err != nil {
		return err
	}
	if err := d.Err(); err != nil {
		return err
	}

	if err := s.households.DeactivateMember(householdID, targetUserID); err != nil {
		return err
	}
	s.metrics.RecordMembership("removed")
	s.logger.Info("member removed", "household_id", householdID, "user_id", targetUserID, "by", actingUserID)
	s.broadcast(householdID, websocket.NewMessage("membership", "removed", target.ID, map[string]any{
		"user_id": targetUserID,
	}))
	s.revoke(householdID, targetUserID)
	return nil
}

func (s *Service) UpdateMemberRole(householdID int64, actingUserID, targetUserID string, role model.Role) (*model.Membership, error) {
	if !role.Valid() {
		return nil, &access.DeniedError{Reason: "invalid role " + string(role), Err: access.ErrInvalidRole}
	}
	d, _, err := s.decide(householdID, actingUserID, targetUserID, access.ActionUpdateRole)
	if err != nil {
		return nil, err
	}
	if err := d.Err(); err != nil {
		return nil, err
	}

	m, err := s.households.UpdateMemberRole(householdID, targetUserID, role)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordMembership("role")
	s.logger.Info("member role changed", "household_id", householdID, "user_id", targetUserID, "role", role, "by", actingUserID)
	s.broadcast(householdID, websocket.NewMessage("membership", "updated", m.ID, map[string]any{
		"user_id": targetUserID,
		"role":    string(role),
	}))
	return m, nil
}

// UpdateMemberPermissions replaces the target's override map.
func (s *Service) UpdateMemberPermissions(householdID int64, actingUserID, targetUserID string, perms model.Permissions) (*model.Membership, error) {
	if err := access.ValidateOverrides(perms); err != nil {
		return nil, err
	}
	d, _, err := s.decide(householdID, actingUserID, targetUserID, access.ActionUpdatePermissions)
	if err != nil {
		return nil, err
	}
	if err := d.Err(); err != nil {
		return nil, err
	}

	m, err := s.households.UpdateMemberPermissions(householdID, targetUserID, perms)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordMembership("permissions")
	s.logger.Info("member permissions changed", "household_id", householdID, "user_id", targetUserID, "by", actingUserID)
	s.broadcast(householdID, websocket.NewMessage("membership", "updated", m.ID, map[string]any{
		"user_id": targetUserID,
	}))
	return m, nil
}
