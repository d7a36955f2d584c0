package handler

import (
	"log/slog"
	"net/http"

	"github.com/jburchel/kitchentory/internal/household"
	"github.com/jburchel/kitchentory/internal/model"
)

type InvitationHandler struct {
	svc    *household.Service
	logger *slog.Logger
}

func NewInvitationHandler(svc *household.Service, logger *slog.Logger) *InvitationHandler {
	return &InvitationHandler{svc: svc, logger: logger}
}

type createInvitationRequest struct {
	Email    string     `json:"email" validate:"required,email,max=254"`
	Role     model.Role `json:"role" validate:"required,oneof=admin member"`
	Message  string     `json:"message" validate:"max=500"`
	TTLHours int        `json:"ttl_hours" validate:"min=0,max=720"`
}

func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	invitations, err := h.svc.ListPendingInvitations(id, principal(r).UserID)
	if err != nil {
		writeError(w, h.logger, "failed to list invitations", err)
		return
	}
	writeJSON(w, http.StatusOK, invitations)
}

// Create responds with the invitation including its token. This is the only
// response that ever carries it.
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	req := createInvitationRequest{Role: model.RoleMember}
	if !decode(w, r, &req) {
		return
	}

	inv, err := h.svc.CreateInvitation(household.InvitationRequest{
		HouseholdID: id,
		Email:       req.Email,
		Role:        req.Role,
		InvitedBy:   principal(r).UserID,
		Message:     req.Message,
		TTLHours:    req.TTLHours,
	})
	if err != nil {
		writeError(w, h.logger, "failed to create invitation", err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *InvitationHandler) Read(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.ReadInvitation(r.PathValue("token"))
	if err != nil {
		writeError(w, h.logger, "failed to read invitation", err)
		return
	}
	if inv == nil {
		writeMessage(w, http.StatusNotFound, "invitation not found")
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	m, err := h.svc.AcceptInvitation(r.PathValue("token"), p.UserID, p.Email)
	if err != nil {
		writeError(w, h.logger, "failed to accept invitation", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *InvitationHandler) Decline(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeclineInvitation(r.PathValue("token")); err != nil {
		writeError(w, h.logger, "failed to decline invitation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
