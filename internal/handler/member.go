package handler

import (
	"log/slog"
	"net/http"

	"github.com/jburchel/kitchentory/internal/access"
	"github.com/jburchel/kitchentory/internal/household"
	"github.com/jburchel/kitchentory/internal/model"
)

type MemberHandler struct {
	svc    *household.Service
	logger *slog.Logger
}

func NewMemberHandler(svc *household.Service, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{svc: svc, logger: logger}
}

type updateRoleRequest struct {
	Role model.Role `json:"role" validate:"required,oneof=owner admin member"`
}

// A null or empty map clears every override.
type updatePermissionsRequest struct {
	Permissions model.Permissions `json:"permissions"`
}

// memberParams reads the household id and target user id from the path.
func memberParams(w http.ResponseWriter, r *http.Request) (int64, string, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return 0, "", false
	}
	target := r.PathValue("userID")
	if target == "" {
		writeMessage(w, http.StatusBadRequest, "invalid user id")
		return 0, "", false
	}
	return id, target, true
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	members, err := h.svc.ListMembers(id, principal(r).UserID)
	if err != nil {
		writeError(w, h.logger, "failed to list members", err)
		return
	}
	if members == nil {
		members = []model.Membership{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, target, ok := memberParams(w, r)
	if !ok {
		return
	}

	m, err := h.svc.MemberDetails(id, principal(r).UserID, target)
	if err != nil {
		writeError(w, h.logger, "failed to get member", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// CanManage answers without acting. A denial is a normal 200 response.
func (h *MemberHandler) CanManage(w http.ResponseWriter, r *http.Request) {
	id, target, ok := memberParams(w, r)
	if !ok {
		return
	}
	action := access.Action(r.URL.Query().Get("action"))
	if !action.Valid() {
		writeMessage(w, http.StatusBadRequest, "action must be one of remove, update_role, update_permissions, view_details")
		return
	}

	d, err := h.svc.CanManageMember(id, principal(r).UserID, target, action)
	if err != nil {
		writeError(w, h.logger, "failed to check member management", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *MemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, target, ok := memberParams(w, r)
	if !ok {
		return
	}

	if err := h.svc.RemoveMember(id, principal(r).UserID, target); err != nil {
		writeError(w, h.logger, "failed to remove member", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MemberHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, target, ok := memberParams(w, r)
	if !ok {
		return
	}
	var req updateRoleRequest
	if !decode(w, r, &req) {
		return
	}

	m, err := h.svc.UpdateMemberRole(id, principal(r).UserID, target, req.Role)
	if err != nil {
		writeError(w, h.logger, "failed to update role", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MemberHandler) UpdatePermissions(w http.ResponseWriter, r *http.Request) {
	id, target, ok := memberParams(w, r)
	if !ok {
		return
	}
	var req updatePermissionsRequest
	if !decode(w, r, &req) {
		return
	}

	m, err := h.svc.UpdateMemberPermissions(id, principal(r).UserID, target, req.Permissions)
	if err != nil {
		writeError(w, h.logger, "failed to update permissions", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
