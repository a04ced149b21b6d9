package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addMemberBody struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"userId":"u1","role":"Admin"}`, ""},
		{"empty body", ``, "empty"},
		{"malformed", `{"userId":`, "unexpected EOF"},
		{"trailing data", `{"userId":"u1"} {"userId":"u2"}`, "unexpected data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dest addMemberBody
			err := DecodeJSON(req, &dest)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, addMemberBody{UserID: "u1", Role: "Admin"}, dest)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParseJSONOrError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`nope`))
	w := httptest.NewRecorder()
	var dest addMemberBody
	assert.False(t, ParseJSONOrError(w, req, &dest))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid JSON")
}

func TestPathParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = mux.SetURLVars(req, map[string]string{"businessId": " biz-1 "})
	assert.Equal(t, "biz-1", PathParam(req, "businessId"))
	assert.Empty(t, PathParam(req, "userId"))
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		query   string
		want    Page
		wantErr bool
	}{
		{"", Page{Limit: 100}, false},
		{"limit=25&offset=50", Page{Limit: 25, Offset: 50}, false},
		{"limit=0", Page{Limit: 1000}, false},
		{"limit=5000", Page{Limit: 1000}, false},
		{"limit=abc", Page{}, true},
		{"offset=-1", Page{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			page, err := ParsePage(req, 100, 1000)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, page)
		})
	}
}

func TestRequireNonEmpty(t *testing.T) {
	w := httptest.NewRecorder()
	assert.False(t, RequireNonEmpty(w, "   ", "email"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "email is required")

	assert.True(t, RequireNonEmpty(httptest.NewRecorder(), "x", "email"))
}
