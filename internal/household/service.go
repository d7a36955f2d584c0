// Package household composes the access decisions in package access with
// persistence, notification and live events.
package household

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jburchel/kitchentory/internal/access"
	"github.com/jburchel/kitchentory/internal/email"
	"github.com/jburchel/kitchentory/internal/metrics"
	"github.com/jburchel/kitchentory/internal/model"
	"github.com/jburchel/kitchentory/internal/store"
	"github.com/jburchel/kitchentory/internal/websocket"
)

// Notifier delivers invitation emails.
type Notifier interface {
	Configured() bool
	SendInvitation(inv email.Invitation) error
}

// Broadcaster fans live events out to a household's connected clients and
// drops the connections of members who lose access. An empty userID means
// every connection of the household.
type Broadcaster interface {
	Broadcast(householdID int64, msg websocket.Message)
	Disconnect(householdID int64, userID string) int
}

type Service struct {
	households  *store.HouseholdStore
	invitations *store.InvitationStore
	users       *store.UserStore
	notifier    Notifier
	events      Broadcaster
	metrics     *metrics.Metrics
	inviteTTL   time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithBroadcaster(b Broadcaster) Option {
	return func(s *Service) {
		s.events = b
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithInviteTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.inviteTTL = d
		}
	}
}

func NewService(households *store.HouseholdStore, invitations *store.InvitationStore, users *store.UserStore, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		households:  households,
		invitations: invitations,
		users:       users,
		inviteTTL:   model.DefaultInvitationTTL,
		now:         time.Now,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) broadcast(householdID int64, msg websocket.Message) {
	if s.events == nil {
		return
	}
	s.events.Broadcast(householdID, msg)
}

func (s *Service) revoke(householdID int64, userID string) {
	if s.events == nil {
		return
	}
	s.events.Disconnect(householdID, userID)
}

func validateSettings(settings model.HouseholdSettings) error {
	if settings.MaxMembers < 1 {
		return &access.DeniedError{Reason: "maxMembers must be at least 1", Err: access.ErrInvalidSettings}
	}
	if settings.LowStockThreshold < 0 {
		return &access.DeniedError{Reason: "lowStockThreshold must not be negative", Err: access.ErrInvalidSettings}
	}
	return nil
}

// CreateHousehold creates a household with userID as its first owner. Nil
// settings take the defaults.
func (s *Service) CreateHousehold(userID, name string, settings *model.HouseholdSettings) (*model.Household, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &access.DeniedError{Reason: "name is required", Err: access.ErrInvalidInput}
	}
	effective := model.DefaultHouseholdSettings()
	if settings != nil {
		effective = *settings
	}
	if err := validateSettings(effective); err != nil {
		return nil, err
	}

	h, err := s.households.Create(name, userID, effective, s.now())
	if err != nil {
		return nil, err
	}
	s.metrics.RecordMembership("joined")
	s.logger.Info("household created", "household_id", h.ID, "owner", userID)
	return h, nil
}

// Household returns the household if userID is an active member of it.
func (s *Service) Household(householdID int64, userID string) (*model.Household, error) {
	if _, err := s.requireMember(householdID, userID); err != nil {
		return nil, err
	}
	h, err := s.households.GetByID(householdID)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, access.ErrHouseholdNotFound
	}
	return h, nil
}

func (s *Service) ListHouseholds(userID string) ([]model.Household, error) {
	return s.households.ListForUser(userID)
}

func (s *Service) RenameHousehold(householdID int64, userID, name string) (*model.Household, error) {
	if err := s.RequirePermission(householdID, userID, model.PermEditHouseholdSettings); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &access.DeniedError{Reason: "name is required", Err: access.ErrInvalidInput}
	}
	h, err := s.households.Rename(householdID, name)
	if err != nil {
		return nil, err
	}
	s.broadcast(householdID, websocket.NewMessage("household", "updated", householdID, nil))
	return h, nil
}

// UpdateSettings requires canEditHouseholdSettings. maxMembers may not drop
// below the current member count.
func (s *Service) UpdateSettings(householdID int64, userID string, settings model.HouseholdSettings) (*model.Household, error) {
	if err := s.RequirePermission(householdID, userID, model.PermEditHouseholdSettings); err != nil {
		return nil, err
	}
	if err := validateSettings(settings); err != nil {
		return nil, err
	}
	h, err := s.households.UpdateSettings(householdID, settings)
	if err != nil {
		return nil, err
	}
	s.broadcast(householdID, websocket.NewMessage("household", "updated", householdID, map[string]any{
		"max_members":         h.Settings.MaxMembers,
		"low_stock_threshold": h.Settings.LowStockThreshold,
	}))
	return h, nil
}

// DeleteHousehold hard-deletes the household. Only an active owner whose
// effective canDeleteHousehold is true may do so.
func (s *Service) DeleteHousehold(householdID int64, userID string) error {
	m, err := s.requireMember(householdID, userID)
	if err != nil {
		return err
	}
	if m.Role != model.RoleOwner {
		s.metrics.RecordDecision(string(model.PermDeleteHousehold), false)
		return &access.DeniedError{Reason: "only owners can delete the household", Err: access.ErrPermissionDenied}
	}
	check := access.HasPermission(m, model.PermDeleteHousehold)
	s.metrics.RecordDecision(string(model.PermDeleteHousehold), check.HasPermission)
	if err := check.Err(); err != nil {
		return err
	}

	if err := s.households.Delete(householdID); err != nil {
		return err
	}
	s.logger.Info("household deleted", "household_id", householdID, "by", userID)
	s.broadcast(householdID, websocket.NewMessage("household", "deleted", householdID, nil))
	s.revoke(householdID, "")
	return nil
}

type Capacity struct {
	CanAddMembers  bool   `json:"canAddMembers"`
	RemainingSlots int    `json:"remainingSlots"`
	Reason         string `json:"reason,omitempty"`
}

func (s *Service) CanAddMembers(householdID int64) (Capacity, error) {
	h, err := s.households.GetByID(householdID)
	if err != nil {
		return Capacity{}, err
	}
	if h == nil {
		return Capacity{}, access.ErrHouseholdNotFound
	}
	remaining := h.RemainingSlots()
	if remaining == 0 {
		return Capacity{Reason: fmt.Sprintf("household has reached its limit of %d members", h.Settings.MaxMembers)}, nil
	}
	return Capacity{CanAddMembers: true, RemainingSlots: remaining}, nil
}
