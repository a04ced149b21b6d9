package business

import (
	"errors"
	"fmt"
)

var (
	// ErrQuotaExceeded is returned when a role ceiling has been reached
	ErrQuotaExceeded = errors.New("role quota exceeded")
	// ErrDuplicateMember is returned when the user is already a member
	ErrDuplicateMember = errors.New("user is already a member of this business")
	// ErrMemberNotFound is returned when the user is not a member
	ErrMemberNotFound = errors.New("member not found")
	// ErrLastSuperAdmin is returned when removing or demoting the only SuperAdmin
	ErrLastSuperAdmin = errors.New("business must keep at least one SuperAdmin")
	// ErrInvalidRole is returned for any role outside the closed set
	ErrInvalidRole = errors.New("invalid role")
	// ErrInconsistentDocument is returned when stored counters disagree with the members list
	ErrInconsistentDocument = errors.New("inconsistent business document")
)

// QuotaExceededError carries the role and counts behind a quota rejection
type QuotaExceededError struct {
	Role    Role
	Current int
	Limit   int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for role %s: %d of %d", e.Role, e.Current, e.Limit)
}

// Is lets errors.Is(err, ErrQuotaExceeded) match
func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// IsQuotaExceeded checks if an error is a quota exceeded error
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// AsQuotaExceeded extracts the quota details from err, if present
func AsQuotaExceeded(err error) (*QuotaExceededError, bool) {
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}
