package rbac

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/synergyhub/pkg/auth"
	"github.com/platinummonkey/synergyhub/pkg/business"
	"github.com/platinummonkey/synergyhub/pkg/contextkeys"
	"github.com/platinummonkey/synergyhub/pkg/observability"
)

func TestRequirePermission(t *testing.T) {
	src := &fakeSource{roles: map[string]business.Role{
		"b1/admin":  business.RoleAdmin,
		"b1/client": business.RoleClient,
	}}
	pm := NewPermissionMiddleware(NewChecker(src, 16, time.Minute), observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{}))

	var gotRole business.Role
	handler := pm.RequirePermission(PermMembersManage)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRole, _ = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		userID     string
		businessID string
		srcErr     error
		wantStatus int
	}{
		{"unauthenticated", "", "b1", nil, http.StatusUnauthorized},
		{"missing business var", "admin", "", nil, http.StatusBadRequest},
		{"allowed", "admin", "b1", nil, http.StatusOK},
		{"insufficient", "client", "b1", nil, http.StatusForbidden},
		{"not a member", "stranger", "b1", nil, http.StatusForbidden},
		{"business not found", "admin", "b9", ErrBusinessNotFound, http.StatusNotFound},
		{"store failure", "admin", "b8", errors.New("store down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotRole = ""
			src.err = tt.srcErr
			defer func() { src.err = nil }()

			req := httptest.NewRequest(http.MethodPost, "/businesses/"+tt.businessID+"/members", nil)
			if tt.userID != "" {
				req = req.WithContext(contextkeys.WithAuth(req.Context(), &auth.AuthContext{UserID: tt.userID}))
			}
			if tt.businessID != "" {
				req = mux.SetURLVars(req, map[string]string{BusinessIDVar: tt.businessID})
			}

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, business.RoleAdmin, gotRole)
			}
		})
	}
}

func TestRoleFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := RoleFromContext(req.Context())
	assert.False(t, ok)
}
