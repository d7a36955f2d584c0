package store

import (
	"errors"
	"testing"
	"time"

	"github.com/jburchel/kitchentory/internal/access"
	"github.com/jburchel/kitchentory/internal/model"
)

func createTestInvitation(t *testing.T, is *InvitationStore, householdID int64, email string, expiresAt time.Time) *model.Invitation {
	t.Helper()
	inv, err := is.Create(CreateInvitationParams{
		HouseholdID: householdID,
		Email:       email,
		Role:        model.RoleMember,
		InvitedBy:   "owner",
		Message:     "join us",
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	return inv
}

func TestInvitationCreate(t *testing.T) {
	hs, is := setupHouseholdTestDB(t)
	h := createTestHousehold(t, hs, "owner")

	inv := createTestInvitation(t, is, h.ID, "new@example.com", testNow.Add(time.Hour))
	if len(inv.Token) != 64 {
		t.Errorf("token length = %d, want 64", len(inv.Token))
	}
	if inv.Status != model.InvitationPending {
		t.Errorf("status = %q, want pending", inv.Status)
	}
	if inv.Message != "join us" {
		t.Errorf("message = %q, want %q", inv.Message, "join us")
	}

	other := createTestInvitation(t, is, h.ID, "new@example.com", testNow.Add(time.Hour))
	if other.Token == inv.Token {
		t.Error("expected distinct tokens")
	}
}

func TestInvitationTokenStoredAsDigest(t *testing.T) {
	hs, is := setupHouseholdTestDB(t)
	h := createTestHousehold(t, hs, "owner")
	inv := createTestInvitation(t, is, h.ID, "new@example.com", testNow.Add(time.Hour))

	var stored string
	if err := is.db.QueryRow(`SELECT token_hash FROM invitations WHERE id = ?`, inv.ID).Scan(&stored); err != nil {
		t.Fatalf("read token hash: %v", err)
	}
	if stored == inv.Token {
		t.Error("plaintext token was persisted")
	}
	if stored != hashToken(inv.Token) {
		t.Errorf("token_hash = %q, want digest of token", stored)
	}

	got, err := is.GetByToken(inv.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got == nil || got.ID != inv.ID {
		t.Fatalf("got %+v, want invitation %d", got, inv.ID)
	}
	if got.Token != "" {
		t.Error("token should not be readable after creation")
	}
}

func TestInvitationCreateAtCapacity(t *testing.T) {
	hs, is := setupHouseholdTestDB(t)
	h, err := hs.Create("Tiny", "owner", model.HouseholdSettings{MaxMembers: 1}, testNow)
	if err != nil {
		t.Fatalf("create household: %v", err)
	}

	_, err = is.Create(CreateInvitationParams{
		HouseholdID: h.ID, Email: "x@example.com", Role: model.RoleMember,
		InvitedBy: "owner", ExpiresAt: testNow.Add(time.Hour),
	})
	if !errors.Is(err, access.ErrMemberLimitReached) {
		t.Errorf("err = %v, want ErrMemberLimitReached", err)
	}
}

func TestInvitationAccept(t *testing.T) {
	hs, is := setupHouseholdTestDB(t)
	h := createTestHousehold(t, hs, "owner")
	inv := createTestInvitation(t, is, h.ID, "new@example.com", testNow.Add(time.Hour))

	m, accepted, err := is.Accept(inv.Token, "u2", "new@example.com", testNow)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if m.Role != model.RoleMember || !m.IsActive {
		t.Errorf("membership = %+v, want active member", m)
	}
	if accepted.Status != model.InvitationAccepted {
		t.Errorf("status = %q, want accepted", accepted.Status)
	}
	if accepted.AcceptedBy == nil || *accepted.AcceptedBy != "u2" {
		t.Errorf("accepted by = %v, want u2", accepted.AcceptedBy)
	}
	if accepted.AcceptedAt == nil {
		t.Error("expected accepted at")
	}

	got, err := hs.GetByID(h.ID)
	if err != nil {
		t.Fatalf("get household: %v", err)
	}
	if got.MemberCount != 2 {
		t.Errorf("member count = %d, want 2", got.MemberCount)
	}

	_, _, err = is.Accept(inv.Token, "u2", "new@example.com", testNow)
	if !errors.Is(err, access.ErrInvitationNotPending) {
		t.Errorf("second accept err = %v, want ErrInvitationNotPending", err)
	}
}

func TestInvitationAcceptUnknownToken(t *testing.T) {
	_, is := setupHouseholdTestDB(t)

	_, _, err := is.Accept("nope", "u2", "new@example.com", testNow)
	if !errors.Is(err, access.ErrInvitationNotFound) {
		t.Errorf("err = %v, want ErrInvitationNotFound", err)
	}
}

func TestInvitationAcceptEmailMismatch(t *testing.T) {
	hs, is := setupHouseholdTestDB(t)
	h := createTestHousehold(t, hs, "owner")
	inv := createTestInvitation(t, is, h.ID, "new@example.com", testNow.Add(time.Hour))

	_, _, err := is.Accept(inv.Token, "u2", "New@example.com", testNow)
	if !errors.Is(err, access.ErrEmailMismatch) {
		t.Errorf("err = %v, want ErrEmailMismatch", err)
	}

	got, err := is.GetByToken(inv.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got.Status != model.InvitationPending {
		t.Errorf("status = %q, want pending after mismatch", got.Status)
	}
}

func TestInvitationAcceptExpiredPersistsStatus(t *testing.T) {
	hs, is := setupHouseholdTestDB(t)
	h := createTestHousehold(t, hs, "owner")
	inv := createTestInvitation(t, is, h.ID, "new@example.com", testNow.Add(time.Hour))

	_, _, err := is.Accept(inv.Token, "u2", "new@example.com", testNow.Add(2*time.Hour))
	if !errors.Is(err, access.ErrInvitationNotPending) {
		t.Fatalf("err = %v, want ErrInvitationNotPending", err)
	}

	got, err := is.GetByToken(inv.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got.Status != model.InvitationExpired {
		t.Errorf("status = %q, want expired", got.Status)
	}
}

func TestInvitationAcceptAtCapacity(t *testing.T) {
	hs, is := setupHouseholdTestDB(t)
	h, err := hs.Create("Pair", "owner", model.HouseholdSettings{MaxMembers: 2}, testNow)
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	first := createTestInvitation(t, is, h.ID, "a@example.com", testNow.Add(time.Hour))
	second := createTestInvitation(t, is, h.ID, "b@example.com", testNow.Add(time.Hour))

	if _, _, err := is.Accept(first.Token, "a", "a@example.com", testNow); err != nil {
		t.Fatalf("accept first: %v", err)
	}
	_, _, err = is.Accept(second.Token, "b", "b@example.com", testNow)
	if !errors.Is(err, access.ErrMemberLimitReached) {
		t.Errorf("err = %v, want ErrMemberLimitReached", err)
	}

	got, err := is.GetByToken(second.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got.Status != model.InvitationPending {
		t.Errorf("status = %q, want pending after rollback", got.Status)
	}
}

func TestInvitationAcceptReactivates(t *testing.T) {
	hs, is := setupHouseholdTestDB(t)
	h := createTestHousehold(t, hs, "owner")
	addTestMember(t, hs, is, h.ID, "u2", model.RoleMember)
	if _, err := hs.UpdateMemberPermissions(h.ID, "u2", model.Permissions{model.PermManageInventory: true}); err != nil {
		t.Fatalf("update permissions: %v", err)
	}
	if err := hs.DeactivateMember(h.ID, "u2"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	inv, err := is.Create(CreateInvitationParams{
		HouseholdID: h.ID, Email: "u2@example.com", Role: model.RoleAdmin,
		InvitedBy: "owner", ExpiresAt: testNow.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	later := testNow.Add(30 * time.Minute)
	m, _, err := is.Accept(inv.Token, "u2", "u2@example.com", later)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !m.IsActive || m.Role != model.RoleAdmin {
		t.Errorf("membership = %+v, want active admin", m)
	}
	if len(m.Permissions) != 0 {
		t.Errorf("permissions = %v, want cleared", m.Permissions)
	}
	if !m.JoinedAt.Equal(later) {
		t.Errorf("joined at = %v, want %v", m.JoinedAt, later)
	}

	got, err := hs.GetByID(h.ID)
	if err != nil {
		t.Fatalf("get household: %v", err)
	}
	if got.MemberCount != 2 {
		t.Errorf("member count = %d, want 2", got.MemberCount)
	}
}

func TestInvitationAcceptAlreadyMember(t *testing.T) {
	hs, is := setupHouseholdTestDB(t)
	h := createTestHousehold(t, hs, "owner")
	first := createTestInvitation(t, is, h.ID, "new@example.com", testNow.Add(time.Hour))
	second := createTestInvitation(t, is, h.ID, "new@example.com", testNow.Add(time.Hour))

	if _, _, err := is.Accept(first.Token, "u2", "new@example.com", testNow); err != nil {
		t.Fatalf("accept first: %v", err)
	}
	_, _, err := is.Accept(second.Token, "u2", "new@example.com", testNow)
	if !errors.Is(err, access.ErrAlreadyMember) {
		t.Errorf("err = %v, want ErrAlreadyMember", err)
	}
}

func TestInvitationDecline(t *testing.T) {
	hs, is := setupHouseholdTestDB(t)
	h := createTestHousehold(t, hs, "owner")
	inv := createTestInvitation(t, is, h.ID, "new@example.com", testNow.Add(time.Hour))

	declined, err := is.Decline(inv.Token, testNow)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if declined.Status != model.InvitationDeclined {
		t.Errorf("status = %q, want declined", declined.Status)
	}

	if _, err := is.Decline(inv.Token, testNow); !errors.Is(err, access.ErrInvitationNotPending) {
		t.Errorf("second decline err = %v, want ErrInvitationNotPending", err)
	}
	if _, _, err := is.Accept(inv.Token, "u2", "new@example.com", testNow); !errors.Is(err, access.ErrInvitationNotPending) {
		t.Errorf("accept after decline err = %v, want ErrInvitationNotPending", err)
	}
}

func TestInvitationListPending(t *testing.T) {
	hs, is := setupHouseholdTestDB(t)
	h := createTestHousehold(t, hs, "owner")
	a := createTestInvitation(t, is, h.ID, "a@example.com", testNow.Add(time.Hour))
	b := createTestInvitation(t, is, h.ID, "b@example.com", testNow.Add(time.Hour))
	if _, err := is.Decline(a.Token, testNow); err != nil {
		t.Fatalf("decline: %v", err)
	}

	list, err := is.ListPending(h.ID)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}
	if list[0].ID != b.ID {
		t.Errorf("id = %d, want %d", list[0].ID, b.ID)
	}
}
