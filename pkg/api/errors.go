package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/synergyhub/pkg/business"
	"github.com/platinummonkey/synergyhub/pkg/docstore"
	"github.com/platinummonkey/synergyhub/pkg/httputil"
	"github.com/platinummonkey/synergyhub/pkg/invitations"
	"github.com/platinummonkey/synergyhub/pkg/membership"
	"github.com/platinummonkey/synergyhub/pkg/observability"
	"github.com/platinummonkey/synergyhub/pkg/users"
)

var (
	// errForbiddenRole is returned when the caller may not manage the target role
	errForbiddenRole = errors.New("insufficient role to manage this member")
	// errForbidden is returned when the caller's current role lacks a permission
	errForbidden = errors.New("insufficient permissions")
)

// quotaErrorBody is the 409 body for a quota rejection
type quotaErrorBody struct {
	httputil.ErrorResponse
	Role    business.Role `json:"role"`
	Current int           `json:"current"`
	Limit   int           `json:"limit"`
}

// statusFor maps a service error to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, business.ErrInvalidRole),
		errors.Is(err, membership.ErrInvalidName),
		errors.Is(err, invitations.ErrInvalidEmail):
		return http.StatusBadRequest
	case errors.Is(err, errForbiddenRole),
		errors.Is(err, errForbidden),
		errors.Is(err, invitations.ErrForbidden),
		errors.Is(err, invitations.ErrEmailMismatch):
		return http.StatusForbidden
	case errors.Is(err, membership.ErrBusinessNotFound),
		errors.Is(err, business.ErrMemberNotFound),
		errors.Is(err, invitations.ErrNotFound),
		errors.Is(err, users.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, business.ErrQuotaExceeded),
		errors.Is(err, business.ErrDuplicateMember),
		errors.Is(err, business.ErrLastSuperAdmin),
		errors.Is(err, invitations.ErrAlreadyAccepted):
		return http.StatusConflict
	case errors.Is(err, invitations.ErrExpired):
		return http.StatusGone
	case errors.Is(err, docstore.ErrRetriesExhausted):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeServiceError writes err with its mapped status. Quota rejections
// carry the role and counts; server errors are logged and masked.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if qe, ok := business.AsQuotaExceeded(err); ok {
		body := quotaErrorBody{
			ErrorResponse: httputil.NewErrorResponse(w, http.StatusConflict, business.ErrQuotaExceeded.Error()),
			Role:          qe.Role,
			Current:       qe.Current,
			Limit:         qe.Limit,
		}
		body.Code = "quota_exceeded"
		httputil.WriteJSON(w, http.StatusConflict, body)
		return
	}

	status := statusFor(err)
	switch status {
	case http.StatusInternalServerError:
		observability.FromContext(r.Context()).WithError(err).Error("Request failed")
		httputil.WriteErrorMessage(w, status, "internal server error")
	case http.StatusServiceUnavailable:
		observability.FromContext(r.Context()).WithError(err).Warn("Gave up on concurrent modification")
		httputil.WriteServiceUnavailable(w, "business is being modified concurrently, retry later")
	default:
		httputil.WriteError(w, status, err)
	}
}
