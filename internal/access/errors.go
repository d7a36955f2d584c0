package access

import "errors"

var (
	ErrNotAMember           = errors.New("not an active member of this household")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrInvitationNotPending = errors.New("invitation is not pending")
	ErrMemberLimitReached   = errors.New("household member limit reached")
	ErrLastOwnerProtected   = errors.New("cannot remove the last owner")
	ErrSelfEscalationDenied = errors.New("cannot modify own role or permissions")
	ErrEmailMismatch        = errors.New("invitation email does not match")

	ErrInvitationNotFound = errors.New("invitation not found")
	ErrHouseholdNotFound  = errors.New("household not found")
	ErrTargetNotFound     = errors.New("target not a member")
	ErrAlreadyMember      = errors.New("already an active member of this household")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidSettings    = errors.New("invalid household settings")
	ErrInvalidPermission  = errors.New("unknown permission")
	ErrInvalidInput       = errors.New("invalid input")
)

// DeniedError carries the human-readable reason for a denied decision.
// Err is one of the sentinels above, so errors.Is works through it.
type DeniedError struct {
	Reason string
	Err    error
}

func (e *DeniedError) Error() string {
	return e.Reason
}

func (e *DeniedError) Unwrap() error {
	return e.Err
}

func deny(reason string, err error) error {
	return &DeniedError{Reason: reason, Err: err}
}

// Reason returns the denial reason carried by err, or err's message.
func Reason(err error) string {
	var de *DeniedError
	if errors.As(err, &de) {
		return de.Reason
	}
	return err.Error()
}
