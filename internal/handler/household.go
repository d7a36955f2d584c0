package handler

import (
	"log/slog"
	"net/http"

	"github.com/jburchel/kitchentory/internal/access"
	"github.com/jburchel/kitchentory/internal/household"
	"github.com/jburchel/kitchentory/internal/model"
)

type HouseholdHandler struct {
	svc    *household.Service
	logger *slog.Logger
}

func NewHouseholdHandler(svc *household.Service, logger *slog.Logger) *HouseholdHandler {
	return &HouseholdHandler{svc: svc, logger: logger}
}

type createHouseholdRequest struct {
	Name     string                   `json:"name" validate:"required,max=100"`
	Settings *model.HouseholdSettings `json:"settings"`
}

type renameHouseholdRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// Omitted settings keep their current value.
type updateSettingsRequest struct {
	MaxMembers        *int `json:"max_members" validate:"omitempty,min=1"`
	LowStockThreshold *int `json:"low_stock_threshold" validate:"omitempty,min=0"`
}

type checkPermissionsRequest struct {
	Permissions []model.Permission `json:"permissions" validate:"dive,required"`
}

// Roles serves the role default table.
func (h *HouseholdHandler) Roles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, access.RoleDefaults)
}

func (h *HouseholdHandler) List(w http.ResponseWriter, r *http.Request) {
	households, err := h.svc.ListHouseholds(principal(r).UserID)
	if err != nil {
		writeError(w, h.logger, "failed to list households", err)
		return
	}
	if households == nil {
		households = []model.Household{}
	}
	writeJSON(w, http.StatusOK, households)
}

func (h *HouseholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createHouseholdRequest
	if !decode(w, r, &req) {
		return
	}

	hh, err := h.svc.CreateHousehold(principal(r).UserID, req.Name, req.Settings)
	if err != nil {
		writeError(w, h.logger, "failed to create household", err)
		return
	}
	writeJSON(w, http.StatusCreated, hh)
}

func (h *HouseholdHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	hh, err := h.svc.Household(id, principal(r).UserID)
	if err != nil {
		writeError(w, h.logger, "failed to get household", err)
		return
	}
	writeJSON(w, http.StatusOK, hh)
}

func (h *HouseholdHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req renameHouseholdRequest
	if !decode(w, r, &req) {
		return
	}

	hh, err := h.svc.RenameHousehold(id, principal(r).UserID, req.Name)
	if err != nil {
		writeError(w, h.logger, "failed to rename household", err)
		return
	}
	writeJSON(w, http.StatusOK, hh)
}

func (h *HouseholdHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req updateSettingsRequest
	if !decode(w, r, &req) {
		return
	}

	userID := principal(r).UserID
	current, err := h.svc.Household(id, userID)
	if err != nil {
		writeError(w, h.logger, "failed to get household", err)
		return
	}
	settings := current.Settings
	if req.MaxMembers != nil {
		settings.MaxMembers = *req.MaxMembers
	}
	if req.LowStockThreshold != nil {
		settings.LowStockThreshold = *req.LowStockThreshold
	}

	hh, err := h.svc.UpdateSettings(id, userID, settings)
	if err != nil {
		writeError(w, h.logger, "failed to update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, hh)
}

func (h *HouseholdHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.svc.DeleteHousehold(id, principal(r).UserID); err != nil {
		writeError(w, h.logger, "failed to delete household", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Capacity is visible to members only.
func (h *HouseholdHandler) Capacity(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	if _, err := h.svc.Household(id, principal(r).UserID); err != nil {
		writeError(w, h.logger, "failed to get household", err)
		return
	}

	c, err := h.svc.CanAddMembers(id)
	if err != nil {
		writeError(w, h.logger, "failed to check capacity", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *HouseholdHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	eff, err := h.svc.EffectivePermissions(id, principal(r).UserID)
	if err != nil {
		writeError(w, h.logger, "failed to resolve permissions", err)
		return
	}
	writeJSON(w, http.StatusOK, eff)
}

func (h *HouseholdHandler) CheckPermissions(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req checkPermissionsRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.svc.HasAllPermissions(id, principal(r).UserID, req.Permissions)
	if err != nil {
		writeError(w, h.logger, "failed to check permissions", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
