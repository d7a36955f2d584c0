package household

import (
	"github.com/jburchel/kitchentory/internal/access"
	"github.com/jburchel/kitchentory/internal/model"
)

// Membership loads the (household, user) membership in any state. It
// returns nil when none exists.
func (s *Service) Membership(householdID int64, userID string) (*model.Membership, error) {
	return s.households.GetMember(householdID, userID)
}

func (s *Service) requireMember(householdID int64, userID string) (*model.Membership, error) {
	m, err := s.households.GetMember(householdID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil || !m.IsActive {
		return nil, &access.DeniedError{Reason: "not an active member of this household", Err: access.ErrNotAMember}
	}
	return m, nil
}

// touch records activity; a failure is logged and never fails the request.
func (s *Service) touch(householdID int64, userID string) {
	if err := s.households.TouchMember(householdID, userID, s.now()); err != nil {
		s.logger.Warn("touch member", "household_id", householdID, "user_id", userID, "error", err)
	}
}

// EffectivePermissions resolves the caller's permissions in the household.
// An absent or inactive membership is ErrNotAMember, never a default set.
func (s *Service) EffectivePermissions(householdID int64, userID string) (*access.EffectivePermissions, error) {
	m, err := s.households.GetMember(householdID, userID)
	if err != nil {
		return nil, err
	}
	eff := access.Resolve(m)
	if eff == nil {
		return nil, &access.DeniedError{Reason: "not an active member of this household", Err: access.ErrNotAMember}
	}
	s.touch(householdID, userID)
	now := s.now()
	eff.LastActiveAt = &now
	return eff, nil
}

func (s *Service) HasPermission(householdID int64, userID string, p model.Permission) (access.Check, error) {
	m, err := s.households.GetMember(householdID, userID)
	if err != nil {
		return access.Check{}, err
	}
	check := access.HasPermission(m, p)
	s.metrics.RecordDecision(string(p), check.HasPermission)
	return check, nil
}

func (s *Service) HasAllPermissions(householdID int64, userID string, ps []model.Permission) (access.MultiCheck, error) {
	m, err := s.households.GetMember(householdID, userID)
	if err != nil {
		return access.MultiCheck{}, err
	}
	result := access.HasAllPermissions(m, ps)
	s.metrics.RecordDecision("all", result.IsValid)
	return result, nil
}

// RequirePermission is HasPermission for mutating paths: a denial comes back
// as a *access.DeniedError. Allowed callers have their activity recorded.
func (s *Service) RequirePermission(householdID int64, userID string, p model.Permission) error {
	check, err := s.HasPermission(householdID, userID, p)
	if err != nil {
		return err
	}
	if err := check.Err(); err != nil {
		return err
	}
	s.touch(householdID, userID)
	return nil
}
