package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jburchel/kitchentory/internal/access"
	"github.com/jburchel/kitchentory/internal/auth"
	"github.com/jburchel/kitchentory/internal/database"
	"github.com/jburchel/kitchentory/internal/household"
	"github.com/jburchel/kitchentory/internal/model"
	"github.com/jburchel/kitchentory/internal/store"
)

var (
	owner   = auth.Principal{UserID: "owner-1", Email: "owner@example.com", Name: "Olive"}
	invitee = auth.Principal{UserID: "user-2", Email: "guest@example.com", Name: "Gus"}
)

func setupHandlerTest(t *testing.T) http.Handler {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := household.NewService(store.NewHouseholdStore(db), store.NewInvitationStore(db), store.NewUserStore(db), logger)

	hh := NewHouseholdHandler(svc, logger)
	mh := NewMemberHandler(svc, logger)
	ih := NewInvitationHandler(svc, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/roles", hh.Roles)
	mux.HandleFunc("GET /api/households", hh.List)
	mux.HandleFunc("POST /api/households", hh.Create)
	mux.HandleFunc("GET /api/households/{id}", hh.Get)
	mux.HandleFunc("PUT /api/households/{id}/settings", hh.UpdateSettings)
	mux.HandleFunc("GET /api/households/{id}/capacity", hh.Capacity)
	mux.HandleFunc("GET /api/households/{id}/permissions", hh.Permissions)
	mux.HandleFunc("POST /api/households/{id}/permissions/check", hh.CheckPermissions)
	mux.HandleFunc("GET /api/households/{id}/members", mh.List)
	mux.HandleFunc("GET /api/households/{id}/members/{userID}/can-manage", mh.CanManage)
	mux.HandleFunc("DELETE /api/households/{id}/members/{userID}", mh.Remove)
	mux.HandleFunc("POST /api/households/{id}/invitations", ih.Create)
	mux.HandleFunc("GET /api/invitations/{token}", ih.Read)
	mux.HandleFunc("POST /api/invitations/{token}/accept", ih.Accept)
	mux.HandleFunc("POST /api/invitations/{token}/decline", ih.Decline)
	return mux
}

func do(t *testing.T, h http.Handler, p auth.Principal, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req = req.WithContext(auth.WithPrincipal(req.Context(), p))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func createHousehold(t *testing.T, h http.Handler, settings *model.HouseholdSettings) model.Household {
	t.Helper()
	rec := do(t, h, owner, "POST", "/api/households", map[string]any{"name": "Pantry", "settings": settings})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create household: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var hh model.Household
	decodeBody(t, rec, &hh)
	return hh
}

func invite(t *testing.T, h http.Handler, householdID int64, email string) model.Invitation {
	t.Helper()
	rec := do(t, h, owner, "POST", fmt.Sprintf("/api/households/%d/invitations", householdID),
		map[string]any{"email": email, "role": "member"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create invitation: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var inv model.Invitation
	decodeBody(t, rec, &inv)
	return inv
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{access.ErrHouseholdNotFound, http.StatusNotFound},
		{access.ErrTargetNotFound, http.StatusNotFound},
		{&access.DeniedError{Reason: "no", Err: access.ErrNotAMember}, http.StatusForbidden},
		{&access.DeniedError{Reason: "no", Err: access.ErrPermissionDenied}, http.StatusForbidden},
		{access.ErrEmailMismatch, http.StatusForbidden},
		{access.ErrInvitationNotPending, http.StatusGone},
		{access.ErrMemberLimitReached, http.StatusConflict},
		{access.ErrLastOwnerProtected, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", access.ErrInvalidSettings), http.StatusBadRequest},
		{errors.New("database is locked"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRoles(t *testing.T) {
	h := setupHandlerTest(t)

	rec := do(t, h, owner, "GET", "/api/roles", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var roles map[model.Role]map[model.Permission]bool
	decodeBody(t, rec, &roles)
	if !roles[model.RoleOwner][model.PermDeleteHousehold] {
		t.Error("owner should default to canDeleteHousehold")
	}
	if roles[model.RoleMember][model.PermManageInventory] {
		t.Error("member should not default to canManageInventory")
	}
}

func TestCreateHouseholdValidation(t *testing.T) {
	h := setupHandlerTest(t)

	rec := do(t, h, owner, "POST", "/api/households", map[string]any{"name": ""})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["error"] != "name is required" {
		t.Errorf("error = %q, want %q", body["error"], "name is required")
	}

	rec = do(t, h, owner, "POST", "/api/households", map[string]any{
		"name":     "Pantry",
		"settings": map[string]int{"max_members": 0},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero max_members: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHouseholdVisibleToMembersOnly(t *testing.T) {
	h := setupHandlerTest(t)
	hh := createHousehold(t, h, nil)

	rec := do(t, h, owner, "GET", fmt.Sprintf("/api/households/%d", hh.ID), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("owner: status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = do(t, h, invitee, "GET", fmt.Sprintf("/api/households/%d", hh.ID), nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("outsider: status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	rec = do(t, h, owner, "GET", "/api/households/nope", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestUpdateSettingsPartial(t *testing.T) {
	h := setupHandlerTest(t)
	hh := createHousehold(t, h, nil)

	rec := do(t, h, owner, "PUT", fmt.Sprintf("/api/households/%d/settings", hh.ID), map[string]int{"low_stock_threshold": 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var updated model.Household
	decodeBody(t, rec, &updated)
	if updated.Settings.LowStockThreshold != 5 {
		t.Errorf("low stock threshold = %d, want 5", updated.Settings.LowStockThreshold)
	}
	if updated.Settings.MaxMembers != model.DefaultMaxMembers {
		t.Errorf("max members = %d, want %d", updated.Settings.MaxMembers, model.DefaultMaxMembers)
	}
}

func TestInvitationFlow(t *testing.T) {
	h := setupHandlerTest(t)
	hh := createHousehold(t, h, nil)
	inv := invite(t, h, hh.ID, invitee.Email)

	if inv.Token == "" {
		t.Fatal("create response should carry the token")
	}

	rec := do(t, h, invitee, "GET", "/api/invitations/"+inv.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("read: status = %d", rec.Code)
	}
	var read model.Invitation
	decodeBody(t, rec, &read)
	if read.Status != model.InvitationPending {
		t.Errorf("status = %q, want %q", read.Status, model.InvitationPending)
	}
	if read.Token != "" {
		t.Error("read response must not carry the token")
	}

	rec = do(t, h, invitee, "POST", "/api/invitations/"+inv.Token+"/accept", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var m model.Membership
	decodeBody(t, rec, &m)
	if m.Role != model.RoleMember || !m.IsActive {
		t.Errorf("membership = %+v", m)
	}

	rec = do(t, h, invitee, "POST", "/api/invitations/"+inv.Token+"/accept", nil)
	if rec.Code != http.StatusGone {
		t.Errorf("second accept: status = %d, want %d", rec.Code, http.StatusGone)
	}

	rec = do(t, h, invitee, "GET", fmt.Sprintf("/api/households/%d/members", hh.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list members: status = %d", rec.Code)
	}
	var members []model.Membership
	decodeBody(t, rec, &members)
	if len(members) != 2 {
		t.Errorf("members = %d, want 2", len(members))
	}
}

func TestAcceptInvitationEmailMismatch(t *testing.T) {
	h := setupHandlerTest(t)
	hh := createHousehold(t, h, nil)
	inv := invite(t, h, hh.ID, "someone-else@example.com")

	rec := do(t, h, invitee, "POST", "/api/invitations/"+inv.Token+"/accept", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestDeclineInvitation(t *testing.T) {
	h := setupHandlerTest(t)
	hh := createHousehold(t, h, nil)
	inv := invite(t, h, hh.ID, invitee.Email)

	rec := do(t, h, invitee, "POST", "/api/invitations/"+inv.Token+"/decline", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	rec = do(t, h, invitee, "GET", "/api/invitations/"+inv.Token, nil)
	var read model.Invitation
	decodeBody(t, rec, &read)
	if read.Status != model.InvitationDeclined {
		t.Errorf("status = %q, want %q", read.Status, model.InvitationDeclined)
	}
}

func TestReadUnknownInvitation(t *testing.T) {
	h := setupHandlerTest(t)

	rec := do(t, h, invitee, "GET", "/api/invitations/deadbeef", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestCreateInvitationValidation(t *testing.T) {
	h := setupHandlerTest(t)
	hh := createHousehold(t, h, nil)
	path := fmt.Sprintf("/api/households/%d/invitations", hh.ID)

	rec := do(t, h, owner, "POST", path, map[string]any{"email": "not-an-email"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad email: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = do(t, h, owner, "POST", path, map[string]any{"email": "a@example.com", "role": "owner"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("owner role: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = do(t, h, invitee, "POST", path, map[string]any{"email": "a@example.com"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("outsider: status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestMemberLimitConflict(t *testing.T) {
	h := setupHandlerTest(t)
	hh := createHousehold(t, h, &model.HouseholdSettings{MaxMembers: 1, LowStockThreshold: 2})

	rec := do(t, h, owner, "GET", fmt.Sprintf("/api/households/%d/capacity", hh.ID), nil)
	var c household.Capacity
	decodeBody(t, rec, &c)
	if c.CanAddMembers || c.RemainingSlots != 0 {
		t.Errorf("capacity = %+v, want full", c)
	}

	rec = do(t, h, owner, "POST", fmt.Sprintf("/api/households/%d/invitations", hh.ID),
		map[string]any{"email": invitee.Email})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestPermissionsEndpoints(t *testing.T) {
	h := setupHandlerTest(t)
	hh := createHousehold(t, h, nil)

	rec := do(t, h, owner, "GET", fmt.Sprintf("/api/households/%d/permissions", hh.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var eff access.EffectivePermissions
	decodeBody(t, rec, &eff)
	if eff.Role != model.RoleOwner || !eff.Permissions[model.PermManageMembers] {
		t.Errorf("effective = %+v", eff)
	}

	rec = do(t, h, owner, "POST", fmt.Sprintf("/api/households/%d/permissions/check", hh.ID),
		map[string]any{"permissions": []string{"canManageInventory", "canDeleteHousehold"}})
	var mc access.MultiCheck
	decodeBody(t, rec, &mc)
	if !mc.IsValid {
		t.Errorf("owner check = %+v, want valid", mc)
	}

	rec = do(t, h, invitee, "POST", fmt.Sprintf("/api/households/%d/permissions/check", hh.ID),
		map[string]any{"permissions": []string{"canManageInventory"}})
	decodeBody(t, rec, &mc)
	if mc.IsValid {
		t.Error("outsider check should be invalid")
	}
}

func TestCanManageAndRemove(t *testing.T) {
	h := setupHandlerTest(t)
	hh := createHousehold(t, h, nil)
	inv := invite(t, h, hh.ID, invitee.Email)
	if rec := do(t, h, invitee, "POST", "/api/invitations/"+inv.Token+"/accept", nil); rec.Code != http.StatusOK {
		t.Fatalf("accept: status = %d", rec.Code)
	}
	base := fmt.Sprintf("/api/households/%d/members/", hh.ID)

	rec := do(t, h, invitee, "GET", base+owner.UserID+"/can-manage?action=remove", nil)
	var d access.Decision
	decodeBody(t, rec, &d)
	if d.CanManage {
		t.Error("member should not be able to remove the owner")
	}

	rec = do(t, h, owner, "GET", base+invitee.UserID+"/can-manage?action=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus action: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = do(t, h, owner, "DELETE", base+owner.UserID, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("last owner leaving: status = %d, want %d", rec.Code, http.StatusConflict)
	}

	rec = do(t, h, owner, "DELETE", base+invitee.UserID, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("remove member: status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}
