package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jburchel/kitchentory/internal/access"
	"github.com/jburchel/kitchentory/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

type HouseholdStore struct {
	db *sql.DB
}

func NewHouseholdStore(db *sql.DB) *HouseholdStore {
	return &HouseholdStore{db: db}
}

func scanHousehold(scanner interface{ Scan(...any) error }) (*model.Household, error) {
	var h model.Household
	err := scanner.Scan(
		&h.ID, &h.Name, &h.MemberCount, &h.Settings.MaxMembers, &h.Settings.LowStockThreshold,
		&h.CreatedBy, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func scanMembership(scanner interface{ Scan(...any) error }, extra ...any) (*model.Membership, error) {
	var m model.Membership
	var perms sql.NullString
	var lastActive sql.NullTime

	dest := []any{
		&m.ID, &m.HouseholdID, &m.UserID, &m.Role, &perms, &m.IsActive,
		&m.JoinedAt, &lastActive, &m.CreatedAt, &m.UpdatedAt,
	}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if perms.Valid && perms.String != "" {
		if err := json.Unmarshal([]byte(perms.String), &m.Permissions); err != nil {
			return nil, fmt.Errorf("decode permissions: %w", err)
		}
	}
	if lastActive.Valid {
		m.LastActiveAt = &lastActive.Time
	}
	return &m, nil
}

const householdCols = `id, name, member_count, max_members, low_stock_threshold, created_by, created_at, updated_at`
const membershipCols = `id, household_id, user_id, role, permissions, is_active, joined_at, last_active_at, created_at, updated_at`

// activeOwnerCount is a correlated subquery; its single parameter is the household id.
const activeOwnerCount = `(SELECT COUNT(*) FROM household_members
	WHERE household_id = ? AND role = 'owner' AND is_active = 1)`

func encodePermissions(p model.Permissions) (sql.NullString, error) {
	if len(p) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode permissions: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// Create inserts the household and its first owner membership together.
func (s *HouseholdStore) Create(name, createdBy string, settings model.HouseholdSettings, now time.Time) (*model.Household, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO households (name, member_count, max_members, low_stock_threshold, created_by)
		 VALUES (?, 1, ?, ?, ?)`,
		name, settings.MaxMembers, settings.LowStockThreshold, createdBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert household: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO household_members (household_id, user_id, role, is_active, joined_at) VALUES (?, ?, 'owner', 1, ?)`,
		id, createdBy, now.UTC(),
	); err != nil {
		return nil, fmt.Errorf("insert owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit household: %w", err)
	}
	return s.GetByID(id)
}

func (s *HouseholdStore) GetByID(id int64) (*model.Household, error) {
	return getHousehold(s.db, id)
}

func getHousehold(q querier, id int64) (*model.Household, error) {
	row := q.QueryRow(`SELECT `+householdCols+` FROM households WHERE id = ?`, id)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	return h, nil
}

func (s *HouseholdStore) Rename(id int64, name string) (*model.Household, error) {
	_, err := s.db.Exec(`UPDATE households SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, name, id)
	if err != nil {
		return nil, fmt.Errorf("rename household: %w", err)
	}
	return s.GetByID(id)
}

// UpdateSettings refuses a maxMembers below the current active member count.
// The comparison happens in the UPDATE so a concurrent join cannot slip past it.
func (s *HouseholdStore) UpdateSettings(id int64, settings model.HouseholdSettings) (*model.Household, error) {
	result, err := s.db.Exec(
		`UPDATE households SET max_members = ?, low_stock_threshold = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND member_count <= ?`,
		settings.MaxMembers, settings.LowStockThreshold, id, settings.MaxMembers,
	)
	if err != nil {
		return nil, fmt.Errorf("update household settings: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		h, err := s.GetByID(id)
		if err != nil {
			return nil, err
		}
		if h == nil {
			return nil, access.ErrHouseholdNotFound
		}
		return nil, &access.DeniedError{
			Reason: fmt.Sprintf("maxMembers %d is below the current member count %d", settings.MaxMembers, h.MemberCount),
			Err:    access.ErrInvalidSettings,
		}
	}
	return s.GetByID(id)
}

// Delete removes the household. Memberships and invitations cascade.
func (s *HouseholdStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM households WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete household: %w", err)
	}
	return nil
}

// ListForUser returns the households where userID holds an active membership.
func (s *HouseholdStore) ListForUser(userID string) ([]model.Household, error) {
	rows, err := s.db.Query(
		`SELECT h.id, h.name, h.member_count, h.max_members, h.low_stock_threshold, h.created_by, h.created_at, h.updated_at
		 FROM households h
		 JOIN household_members hm ON h.id = hm.household_id
		 WHERE hm.user_id = ? AND hm.is_active = 1
		 ORDER BY h.name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list households for user: %w", err)
	}
	defer rows.Close()

	var households []model.Household
	for rows.Next() {
		h, err := scanHousehold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan household: %w", err)
		}
		households = append(households, *h)
	}
	return households, rows.Err()
}

// GetMember returns the membership in any state, or nil if none exists.
func (s *HouseholdStore) GetMember(householdID int64, userID string) (*model.Membership, error) {
	return getMember(s.db, householdID, userID)
}

func getMember(q querier, householdID int64, userID string) (*model.Membership, error) {
	row := q.QueryRow(
		`SELECT `+membershipCols+` FROM household_members WHERE household_id = ? AND user_id = ?`,
		householdID, userID,
	)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// ListMembers returns active members with their user profile, oldest first.
func (s *HouseholdStore) ListMembers(householdID int64) ([]model.Membership, error) {
	rows, err := s.db.Query(
		`SELECT m.id, m.household_id, m.user_id, m.role, m.permissions, m.is_active,
		        m.joined_at, m.last_active_at, m.created_at, m.updated_at,
		        COALESCE(u.email, ''), COALESCE(u.name, '')
		 FROM household_members m
		 LEFT JOIN users u ON u.id = m.user_id
		 WHERE m.household_id = ? AND m.is_active = 1
		 ORDER BY m.joined_at ASC, m.id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.Membership
	for rows.Next() {
		var email, name string
		m, err := scanMembership(rows, &email, &name)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.Email, m.Name = email, name
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *HouseholdStore) CountActiveOwners(householdID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT `+activeOwnerCount, householdID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active owners: %w", err)
	}
	return n, nil
}

// DeactivateMember marks the membership inactive and decrements memberCount.
// An active owner is only deactivated while another active owner remains,
// counted inside the same statement.
func (s *HouseholdStore) DeactivateMember(householdID int64, userID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE household_members SET is_active = 0, updated_at = CURRENT_TIMESTAMP
		 WHERE household_id = ? AND user_id = ? AND is_active = 1
		   AND (role != 'owner' OR `+activeOwnerCount+` > 1)`,
		householdID, userID, householdID,
	)
	if err != nil {
		return fmt.Errorf("deactivate member: %w", err)
	}
	if err := explainNoRows(tx, result, householdID, userID); err != nil {
		return err
	}

	if _, err := tx.Exec(
		`UPDATE households SET member_count = member_count - 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND member_count > 0`,
		householdID,
	); err != nil {
		return fmt.Errorf("decrement member count: %w", err)
	}

	return tx.Commit()
}

// UpdateMemberRole changes an active member's role. Demoting the last active
// owner is refused inside the statement.
func (s *HouseholdStore) UpdateMemberRole(householdID int64, userID string, role model.Role) (*model.Membership, error) {
	result, err := s.db.Exec(
		`UPDATE household_members SET role = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE household_id = ? AND user_id = ? AND is_active = 1
		   AND (role != 'owner' OR ? = 'owner' OR `+activeOwnerCount+` > 1)`,
		role, householdID, userID, role, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("update member role: %w", err)
	}
	if err := explainNoRows(s.db, result, householdID, userID); err != nil {
		return nil, err
	}
	return s.GetMember(householdID, userID)
}

// UpdateMemberPermissions replaces the override map. An empty map clears it.
func (s *HouseholdStore) UpdateMemberPermissions(householdID int64, userID string, perms model.Permissions) (*model.Membership, error) {
	encoded, err := encodePermissions(perms)
	if err != nil {
		return nil, err
	}
	result, err := s.db.Exec(
		`UPDATE household_members SET permissions = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE household_id = ? AND user_id = ? AND is_active = 1`,
		encoded, householdID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update member permissions: %w", err)
	}
	if err := explainNoRows(s.db, result, householdID, userID); err != nil {
		return nil, err
	}
	return s.GetMember(householdID, userID)
}

func (s *HouseholdStore) TouchMember(householdID int64, userID string, now time.Time) error {
	_, err := s.db.Exec(
		`UPDATE household_members SET last_active_at = ? WHERE household_id = ? AND user_id = ? AND is_active = 1`,
		now.UTC(), householdID, userID,
	)
	if err != nil {
		return fmt.Errorf("touch member: %w", err)
	}
	return nil
}

// explainNoRows turns a guarded membership update that matched nothing into
// the reason it matched nothing.
func explainNoRows(q querier, result sql.Result, householdID int64, userID string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	m, err := getMember(q, householdID, userID)
	if err != nil {
		return err
	}
	if m == nil || !m.IsActive {
		return access.ErrTargetNotFound
	}
	return &access.DeniedError{Reason: "cannot remove the last owner", Err: access.ErrLastOwnerProtected}
}
