package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/jburchel/kitchentory/internal/access"
	"github.com/jburchel/kitchentory/internal/model"
)

type InvitationStore struct {
	db *sql.DB
}

func NewInvitationStore(db *sql.DB) *InvitationStore {
	return &InvitationStore{db: db}
}

func scanInvitation(scanner interface{ Scan(...any) error }) (*model.Invitation, error) {
	var inv model.Invitation
	var acceptedAt sql.NullTime
	var acceptedBy sql.NullString

	err := scanner.Scan(
		&inv.ID, &inv.HouseholdID, &inv.Email, &inv.Role, &inv.InvitedBy, &inv.Status,
		&inv.Message, &inv.ExpiresAt, &acceptedAt, &acceptedBy, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if acceptedAt.Valid {
		inv.AcceptedAt = &acceptedAt.Time
	}
	if acceptedBy.Valid {
		inv.AcceptedBy = &acceptedBy.String
	}
	return &inv, nil
}

const invitationCols = `id, household_id, email, role, invited_by, status, message, expires_at, accepted_at, accepted_by, created_at, updated_at`

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// hashToken is the only form of an invite token that is persisted.
func hashToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

type CreateInvitationParams struct {
	HouseholdID int64
	Email       string
	Role        model.Role
	InvitedBy   string
	Message     string
	ExpiresAt   time.Time
}

// Create stores a pending invitation while the household is below its member
// limit. The returned invitation carries the plaintext token; it is not
// recoverable afterwards.
func (s *InvitationStore) Create(p CreateInvitationParams) (*model.Invitation, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	h, err := getHousehold(tx, p.HouseholdID)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, access.ErrHouseholdNotFound
	}
	if h.MemberCount >= h.Settings.MaxMembers {
		return nil, access.ErrMemberLimitReached
	}

	result, err := tx.Exec(
		`INSERT INTO invitations (household_id, email, role, invited_by, status, token_hash, message, expires_at)
		 VALUES (?, ?, ?, ?, 'pending', ?, ?, ?)`,
		p.HouseholdID, p.Email, p.Role, p.InvitedBy, hashToken(token), p.Message, p.ExpiresAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert invitation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	inv, err := getInvitation(tx, `id = ?`, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit invitation: %w", err)
	}
	inv.Token = token
	return inv, nil
}

func getInvitation(q querier, where string, arg any) (*model.Invitation, error) {
	row := q.QueryRow(`SELECT `+invitationCols+` FROM invitations WHERE `+where, arg)
	inv, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	return inv, nil
}

// GetByToken returns the stored invitation, or nil if the token is unknown.
// The stored status is returned as-is; callers apply lazy expiry.
func (s *InvitationStore) GetByToken(token string) (*model.Invitation, error) {
	return getInvitation(s.db, `token_hash = ?`, hashToken(token))
}

func (s *InvitationStore) GetByID(id int64) (*model.Invitation, error) {
	return getInvitation(s.db, `id = ?`, id)
}

// ListPending returns invitations whose stored status is pending, newest first.
func (s *InvitationStore) ListPending(householdID int64) ([]model.Invitation, error) {
	rows, err := s.db.Query(
		`SELECT `+invitationCols+` FROM invitations
		 WHERE household_id = ? AND status = 'pending'
		 ORDER BY created_at DESC, id DESC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending invitations: %w", err)
	}
	defer rows.Close()

	var invitations []model.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		invitations = append(invitations, *inv)
	}
	return invitations, rows.Err()
}

// loadPending fetches the invitation for token inside tx and checks it is
// still pending at now. A lapsed invitation is persisted as expired and the
// transaction committed before ErrInvitationNotPending is returned.
func loadPending(tx *sql.Tx, token string, now time.Time) (*model.Invitation, error) {
	inv, err := getInvitation(tx, `token_hash = ?`, hashToken(token))
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, access.ErrInvitationNotFound
	}
	if inv.Status != model.InvitationPending {
		return nil, access.ErrInvitationNotPending
	}
	if inv.IsExpired(now) {
		if err := setStatus(tx, inv.ID, model.InvitationExpired); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit expiry: %w", err)
		}
		return nil, access.ErrInvitationNotPending
	}
	return inv, nil
}

func setStatus(q querier, id int64, status model.InvitationStatus) error {
	result, err := q.Exec(
		`UPDATE invitations SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = 'pending'`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("set invitation status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return access.ErrInvitationNotPending
	}
	return nil
}

// Accept turns a pending invitation into an active membership for userID.
// An inactive membership is reactivated with the invitation's role and its
// overrides cleared. The member limit is checked by the same statement that
// increments memberCount.
func (s *InvitationStore) Accept(token, userID, email string, now time.Time) (*model.Membership, *model.Invitation, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	inv, err := loadPending(tx, token, now)
	if err != nil {
		return nil, nil, err
	}
	if inv.Email != email {
		return nil, nil, access.ErrEmailMismatch
	}

	existing, err := getMember(tx, inv.HouseholdID, userID)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil && existing.IsActive {
		return nil, nil, access.ErrAlreadyMember
	}

	result, err := tx.Exec(
		`UPDATE households SET member_count = member_count + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND member_count < max_members`,
		inv.HouseholdID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("increment member count: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil, access.ErrMemberLimitReached
	}

	joinedAt := now.UTC()
	if existing != nil {
		_, err = tx.Exec(
			`UPDATE household_members
			 SET is_active = 1, role = ?, permissions = NULL, joined_at = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			inv.Role, joinedAt, existing.ID,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("reactivate member: %w", err)
		}
	} else {
		_, err = tx.Exec(
			`INSERT INTO household_members (household_id, user_id, role, is_active, joined_at) VALUES (?, ?, ?, 1, ?)`,
			inv.HouseholdID, userID, inv.Role, joinedAt,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("insert member: %w", err)
		}
	}

	if _, err := tx.Exec(
		`UPDATE invitations SET status = 'accepted', accepted_at = ?, accepted_by = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = 'pending'`,
		joinedAt, userID, inv.ID,
	); err != nil {
		return nil, nil, fmt.Errorf("mark invitation accepted: %w", err)
	}

	m, err := getMember(tx, inv.HouseholdID, userID)
	if err != nil {
		return nil, nil, err
	}
	accepted, err := getInvitation(tx, `id = ?`, inv.ID)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit acceptance: %w", err)
	}
	return m, accepted, nil
}

// Decline moves a pending invitation to declined.
func (s *InvitationStore) Decline(token string, now time.Time) (*model.Invitation, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	inv, err := loadPending(tx, token, now)
	if err != nil {
		return nil, err
	}
	if err := setStatus(tx, inv.ID, model.InvitationDeclined); err != nil {
		return nil, err
	}
	inv.Status = model.InvitationDeclined

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit decline: %w", err)
	}
	return inv, nil
}
