package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jburchel/kitchentory/internal/access"
	"github.com/jburchel/kitchentory/internal/auth"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decode reads a JSON body into dst and validates it. On failure the
// response has been written and false is returned.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "email":
			msgs = append(msgs, field+" must be an email address")
		case "min":
			msgs = append(msgs, field+" must be at least "+fe.Param())
		case "max":
			msgs = append(msgs, field+" must be at most "+fe.Param())
		case "oneof":
			msgs = append(msgs, field+" must be one of "+fe.Param())
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, ", ")
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

// statusFor maps a service error onto an HTTP status. Unknown errors are
// internal.
func statusFor(err error) int {
	switch {
	case errors.Is(err, access.ErrHouseholdNotFound),
		errors.Is(err, access.ErrInvitationNotFound),
		errors.Is(err, access.ErrTargetNotFound):
		return http.StatusNotFound
	case errors.Is(err, access.ErrNotAMember),
		errors.Is(err, access.ErrPermissionDenied),
		errors.Is(err, access.ErrSelfEscalationDenied),
		errors.Is(err, access.ErrEmailMismatch):
		return http.StatusForbidden
	case errors.Is(err, access.ErrInvitationNotPending):
		return http.StatusGone
	case errors.Is(err, access.ErrMemberLimitReached),
		errors.Is(err, access.ErrLastOwnerProtected),
		errors.Is(err, access.ErrAlreadyMember):
		return http.StatusConflict
	case errors.Is(err, access.ErrInvalidRole),
		errors.Is(err, access.ErrInvalidSettings),
		errors.Is(err, access.ErrInvalidPermission),
		errors.Is(err, access.ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError renders err with its mapped status. Internal errors are logged
// and their text withheld.
func writeError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(msg, "error", err)
		writeMessage(w, status, msg)
		return
	}
	writeMessage(w, status, access.Reason(err))
}
