package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/synergyhub/pkg/async"
	"github.com/platinummonkey/synergyhub/pkg/audit"
	"github.com/platinummonkey/synergyhub/pkg/auth"
	"github.com/platinummonkey/synergyhub/pkg/business"
	"github.com/platinummonkey/synergyhub/pkg/docstore"
	"github.com/platinummonkey/synergyhub/pkg/invitations"
	"github.com/platinummonkey/synergyhub/pkg/membership"
	"github.com/platinummonkey/synergyhub/pkg/middleware"
	"github.com/platinummonkey/synergyhub/pkg/observability"
	"github.com/platinummonkey/synergyhub/pkg/rbac"
	"github.com/platinummonkey/synergyhub/pkg/users"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// testEnv runs the API over in-memory stores
type testEnv struct {
	server     *Server
	businesses docstore.Collection[*business.Document]
	tokens     *auth.TokenManager
	membership *membership.Service
	users      *users.Service
	events     *audit.DocStore
	tasks      *async.Tracker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	businesses := docstore.NewMemoryCollection[*business.Document]()
	userSvc := users.NewService(docstore.NewMemoryCollection[*users.User](), logger)
	checker := rbac.NewChecker(rbac.NewStoreSource(businesses), 100, time.Minute)
	events := audit.NewDocStore(docstore.NewMemoryCollection[*audit.AuditEvent]())
	tasks := async.NewTracker(logger)

	members := membership.NewService(membership.Options{
		Businesses: businesses,
		Users:      userSvc,
		Roles:      checker,
		Audit:      events,
		Tasks:      tasks,
		Logger:     logger,
	})
	invites := invitations.NewService(invitations.Options{
		Store:   docstore.NewMemoryCollection[*invitations.Invitation](),
		Members: members,
		Audit:   events,
		Logger:  logger,
	})

	tokens, err := auth.NewTokenManager(testSecret, "synergyhub", time.Hour)
	require.NoError(t, err)

	env := &testEnv{
		businesses: businesses,
		tokens:     tokens,
		membership: members,
		users:      userSvc,
		events:     events,
		tasks:      tasks,
	}
	env.server = NewServer(Deps{
		Membership:  members,
		Invitations: invites,
		Users:       userSvc,
		Auth:        middleware.NewAuthMiddleware(tokens, logger, false).WithProvisioner(userSvc),
		Permissions: rbac.NewPermissionMiddleware(checker, logger),
		Audit:       audit.NewMiddleware(events, logger),
		AuditStore:  events,
		Logger:      logger,
		Limits: Limits{
			RequestTimeout: 5 * time.Second,
			MaxBodyBytes:   4096,
			CORSOrigins:    []string{"https://app.example.com"},
		},
	})
	t.Cleanup(func() { tasks.Wait(time.Second) })
	return env
}

// token issues a bearer token for userID whose email is userID@example.com
func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	tok, _, err := e.tokens.IssueToken(userID, userID+"@example.com", userID)
	require.NoError(t, err)
	return tok
}

// do sends a request as userID; an empty userID sends no credentials
func (e *testEnv) do(t *testing.T, userID, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(t, userID))
	}
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	return w
}

// createBusiness creates a business owned by ownerID and returns its id
func (e *testEnv) createBusiness(t *testing.T, ownerID string) string {
	t.Helper()
	w := e.do(t, ownerID, http.MethodPost, "/api/v1/businesses", CreateBusinessRequest{Name: "Acme"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp BusinessResponse
	decode(t, w, &resp)
	return resp.ID
}

// addMember adds userID through the API as actorID and asserts success
func (e *testEnv) addMember(t *testing.T, actorID, businessID, userID string, role business.Role) {
	t.Helper()
	w := e.do(t, actorID, http.MethodPost, "/api/v1/businesses/"+businessID+"/members",
		AddMemberRequest{UserID: userID, Role: string(role)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	decode(t, w, &body)
	msg, _ := body["error"].(string)
	return msg
}

func TestServer_RequiresAuthentication(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "", http.MethodGet, "/api/v1/businesses", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/businesses", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_RequestLimits(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "owner", http.MethodPost, "/api/v1/businesses",
		CreateBusinessRequest{Name: string(bytes.Repeat([]byte("a"), 5000))})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, errorMessage(t, w), "exceeds 4096 bytes")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/businesses", bytes.NewReader([]byte(`name=Acme`)))
	req.Header.Set("Authorization", "Bearer "+env.token(t, "owner"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestServer_CORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/businesses/b1/members", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	env.server.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_UnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, "owner", http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route not found", errorMessage(t, w))
}

func TestServer_AssignsRequestID(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, "owner", http.MethodGet, "/api/v1/businesses", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestServer_NonMemberIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	id := env.createBusiness(t, "owner")

	w := env.do(t, "stranger", http.MethodGet, "/api/v1/businesses/"+id, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "not a member of this business", errorMessage(t, w))
}

func TestServer_MissingBusiness(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, "owner", http.MethodGet, "/api/v1/businesses/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_DeniedRequestsAreAudited(t *testing.T) {
	env := newTestEnv(t)
	id := env.createBusiness(t, "owner")
	env.addMember(t, "owner", id, "client", business.RoleClient)

	w := env.do(t, "client", http.MethodGet, "/api/v1/businesses/"+id+"/members", nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	events, err := env.events.Search(t.Context(), audit.SearchFilter{
		BusinessID: id,
		EventTypes: []audit.EventType{audit.EventTypeAuthzAccessDenied},
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "client", events[0].ActorID)
}

func TestServer_AuditTrail(t *testing.T) {
	env := newTestEnv(t)
	id := env.createBusiness(t, "owner")
	env.addMember(t, "owner", id, "alice", business.RoleMember)
	require.NoError(t, env.tasks.Wait(time.Second))

	w := env.do(t, "owner", http.MethodGet, "/api/v1/businesses/"+id+"/audit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Events []audit.AuditEvent `json:"events"`
		Count  int                `json:"count"`
	}
	decode(t, w, &body)
	types := make([]audit.EventType, 0, len(body.Events))
	for _, e := range body.Events {
		types = append(types, e.EventType)
	}
	assert.Contains(t, types, audit.EventTypeBusinessCreate)
	assert.Contains(t, types, audit.EventTypeMemberAdd)

	w = env.do(t, "alice", http.MethodGet, "/api/v1/businesses/"+id+"/audit", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetCurrentUser(t *testing.T) {
	env := newTestEnv(t)
	id := env.createBusiness(t, "owner")

	w := env.do(t, "owner", http.MethodGet, "/api/v1/users/me", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var me CurrentUserResponse
	decode(t, w, &me)
	assert.Equal(t, "owner", me.ID)
	assert.Equal(t, "owner@example.com", me.Email)
	require.Len(t, me.Businesses, 1)
	assert.Equal(t, id, me.Businesses[0].BusinessID)
	assert.Equal(t, business.RoleSuperAdmin, me.Businesses[0].Role)
	assert.Equal(t, id, me.DefaultBusiness)
}

func TestGetCurrentUser_NewCaller(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "newcomer", http.MethodGet, "/api/v1/users/me", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var me CurrentUserResponse
	decode(t, w, &me)
	assert.Equal(t, "newcomer", me.ID)
	assert.Empty(t, me.Businesses)
	assert.NotNil(t, me.Businesses)
}
