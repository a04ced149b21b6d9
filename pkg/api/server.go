package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/synergyhub/pkg/audit"
	"github.com/platinummonkey/synergyhub/pkg/business"
	"github.com/platinummonkey/synergyhub/pkg/httputil"
	"github.com/platinummonkey/synergyhub/pkg/invitations"
	"github.com/platinummonkey/synergyhub/pkg/membership"
	"github.com/platinummonkey/synergyhub/pkg/middleware"
	"github.com/platinummonkey/synergyhub/pkg/observability"
	"github.com/platinummonkey/synergyhub/pkg/rbac"
	"github.com/platinummonkey/synergyhub/pkg/users"
)

// MembershipService is the membership engine as seen by the handlers
type MembershipService interface {
	Get(ctx context.Context, businessID string) (*business.Business, error)
	CreateBusiness(ctx context.Context, name, ownerID string) (*business.Business, error)
	ListBusinessesForUser(ctx context.Context, userID string) ([]*business.Business, error)
	RenameBusiness(ctx context.Context, businessID, name string) (*business.Business, error)
	DeleteBusiness(ctx context.Context, businessID string) error
	AddMember(ctx context.Context, businessID, userID string, role business.Role) (*business.Business, error)
	RemoveMember(ctx context.Context, businessID, userID string) (*business.Business, error)
	UpdateMemberRole(ctx context.Context, businessID, userID string, role business.Role) (*business.Business, business.Role, error)
	ListMembers(ctx context.Context, businessID string) ([]membership.MemberView, error)
	Quotas(ctx context.Context, businessID string) ([]business.Quota, error)
}

// InvitationService manages invitations
type InvitationService interface {
	Create(ctx context.Context, businessID, email string, role business.Role, inviterID string) (*invitations.Invitation, error)
	List(ctx context.Context, businessID string) ([]*invitations.Invitation, error)
	Revoke(ctx context.Context, businessID, token string) error
	Accept(ctx context.Context, token, userID, email string) (*invitations.Invitation, error)
}

// UserService loads user profiles
type UserService interface {
	Get(ctx context.Context, userID string) (*users.User, error)
}

// Middleware is anything that wraps a handler, such as a rate limiter
type Middleware interface {
	Handler(next http.Handler) http.Handler
}

// Deps wires the server. Membership, Users, Auth and Permissions are
// required; the rest are optional.
type Deps struct {
	Membership  MembershipService
	Invitations InvitationService
	Users       UserService
	Auth        *middleware.AuthMiddleware
	Permissions *rbac.PermissionMiddleware
	RateLimit   Middleware
	Audit       *audit.Middleware
	AuditStore  audit.Store
	Metrics     *observability.Metrics
	Logger      *observability.Logger
	Limits      Limits
}

// Limits bounds what a single API request may consume. Zero values disable
// the corresponding check.
type Limits struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	CORSOrigins    []string
}

// Server represents our API server
type Server struct {
	router      *mux.Router
	handler     http.Handler
	membership  MembershipService
	invitations InvitationService
	users       UserService
	perms       *rbac.PermissionMiddleware
	auditStore  audit.Store
	logger      *observability.Logger
}

// NewServer creates a new API server
func NewServer(deps Deps) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		membership:  deps.Membership,
		invitations: deps.Invitations,
		users:       deps.Users,
		perms:       deps.Permissions,
		auditStore:  deps.AuditStore,
		logger:      deps.Logger,
	}
	if s.logger == nil {
		s.logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s.router.Use(httputil.RequestID)
	s.router.Use(httputil.AccessLog(s.logger))
	s.router.Use(observability.RecoveryMiddleware(s.logger, func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}))
	if deps.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(deps.Metrics))
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "route not found")
	})

	var stack []func(http.Handler) http.Handler
	if deps.Limits.RequestTimeout > 0 {
		stack = append(stack, httputil.Deadline(deps.Limits.RequestTimeout))
	}
	stack = append(stack, httputil.RequireJSON)
	if deps.Limits.MaxBodyBytes > 0 {
		stack = append(stack, httputil.LimitBody(deps.Limits.MaxBodyBytes))
	}
	stack = append(stack, deps.Auth.Handler)
	if deps.RateLimit != nil {
		stack = append(stack, deps.RateLimit.Handler)
	}
	if deps.Audit != nil {
		stack = append(stack, deps.Audit.Handler)
	}

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.Use(httputil.Chain(stack...))

	s.setupRoutes(v1)

	s.handler = s.router
	if len(deps.Limits.CORSOrigins) > 0 {
		s.handler = httputil.CORS(deps.Limits.CORSOrigins)(s.router)
	}
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(r *mux.Router) {
	require := s.perms.RequirePermission

	// Businesses
	r.HandleFunc("/businesses", s.createBusiness).Methods("POST")
	r.HandleFunc("/businesses", s.listBusinesses).Methods("GET")
	r.Handle("/businesses/{businessId}", require(rbac.PermBusinessRead)(http.HandlerFunc(s.getBusiness))).Methods("GET")
	r.Handle("/businesses/{businessId}", require(rbac.PermBusinessUpdate)(http.HandlerFunc(s.renameBusiness))).Methods("PATCH")
	r.Handle("/businesses/{businessId}", require(rbac.PermBusinessDelete)(http.HandlerFunc(s.deleteBusiness))).Methods("DELETE")

	// Members
	r.Handle("/businesses/{businessId}/members", require(rbac.PermMembersRead)(http.HandlerFunc(s.listMembers))).Methods("GET")
	r.Handle("/businesses/{businessId}/members", require(rbac.PermMembersManage)(http.HandlerFunc(s.addMember))).Methods("POST")
	r.Handle("/businesses/{businessId}/members/{userId}", require(rbac.PermMembersManage)(http.HandlerFunc(s.removeMember))).Methods("DELETE")
	r.Handle("/businesses/{businessId}/members/{userId}/role", require(rbac.PermMembersManage)(http.HandlerFunc(s.updateMemberRole))).Methods("PATCH")

	// Quotas
	r.Handle("/businesses/{businessId}/quotas", require(rbac.PermBusinessRead)(http.HandlerFunc(s.getQuotas))).Methods("GET")

	// Invitations
	if s.invitations != nil {
		r.Handle("/businesses/{businessId}/invitations", require(rbac.PermInvitationsManage)(http.HandlerFunc(s.createInvitation))).Methods("POST")
		r.Handle("/businesses/{businessId}/invitations", require(rbac.PermInvitationsManage)(http.HandlerFunc(s.listInvitations))).Methods("GET")
		r.Handle("/businesses/{businessId}/invitations/{token}", require(rbac.PermInvitationsManage)(http.HandlerFunc(s.revokeInvitation))).Methods("DELETE")
		r.HandleFunc("/invitations/{token}/accept", s.acceptInvitation).Methods("POST")
	}

	// Audit trail
	if s.auditStore != nil {
		h := audit.NewHandlers(s.auditStore)
		r.Handle("/businesses/{businessId}/audit", require(rbac.PermAuditRead)(http.HandlerFunc(h.ListEvents))).Methods("GET")
		r.Handle("/businesses/{businessId}/audit/export", require(rbac.PermAuditRead)(http.HandlerFunc(h.ExportEvents))).Methods("GET")
		r.Handle("/businesses/{businessId}/audit/stats", require(rbac.PermAuditRead)(http.HandlerFunc(h.GetStats))).Methods("GET")
	}

	// Users
	r.HandleFunc("/users/me", s.getCurrentUser).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the underlying router, e.g. for instrumentation
func (s *Server) Router() *mux.Router {
	return s.router
}
