package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/synergyhub/pkg/async"
	"github.com/platinummonkey/synergyhub/pkg/audit"
	"github.com/platinummonkey/synergyhub/pkg/business"
	"github.com/platinummonkey/synergyhub/pkg/docstore"
	"github.com/platinummonkey/synergyhub/pkg/notify"
	"github.com/platinummonkey/synergyhub/pkg/observability"
	"github.com/platinummonkey/synergyhub/pkg/users"
	"github.com/platinummonkey/synergyhub/pkg/workspace"
)

var (
	// ErrBusinessNotFound is returned when no business has the requested id
	ErrBusinessNotFound = errors.New("business not found")
	// ErrInvalidName is returned for an empty or oversized business name
	ErrInvalidName = errors.New("business name must be 1-100 characters")
)

// UserDirectory keeps user profiles in step with business membership
type UserDirectory interface {
	Get(ctx context.Context, userID string) (*users.User, error)
	AddBusiness(ctx context.Context, userID, businessID string, role business.Role) error
	SetRole(ctx context.Context, userID, businessID string, role business.Role) error
	RemoveBusiness(ctx context.Context, userID, businessID string) error
	Profiles(ctx context.Context, ids []string) (map[string]users.Profile, error)
}

// MemberDetacher removes a departed member from workspace records
type MemberDetacher interface {
	DetachUser(ctx context.Context, businessID, userID string) (workspace.DetachResult, error)
}

// RoleCache is told about every membership change
type RoleCache interface {
	Invalidate(businessID, userID string)
	InvalidateBusiness(businessID string)
}

// Cascade deletes data owned by a business
type Cascade struct {
	Name   string
	Delete func(ctx context.Context, businessID string) error
}

// Options configures a Service. Businesses and Users are required.
type Options struct {
	Businesses docstore.Collection[*business.Document]
	Users      UserDirectory
	Workspace  MemberDetacher
	Roles      RoleCache
	Audit      audit.Logger
	Notifier   notify.Notifier
	Tasks      *async.Tracker
	Metrics    *observability.Metrics
	Logger     *observability.Logger
	Cascades   []Cascade

	// MaxAttempts bounds the optimistic concurrency retry loop
	MaxAttempts int
	// TaskTimeout bounds each background audit or notification task
	TaskTimeout time.Duration
}

// Service applies membership changes to the business document and then
// propagates them to dependent records
type Service struct {
	businesses  docstore.Collection[*business.Document]
	users       UserDirectory
	workspace   MemberDetacher
	roles       RoleCache
	audit       audit.Logger
	notifier    notify.Notifier
	tasks       *async.Tracker
	metrics     *observability.Metrics
	logger      *observability.Logger
	cascades    []Cascade
	maxAttempts int
	taskTimeout time.Duration
	tracer      trace.Tracer
	now         func() time.Time
	newID       func() string
}

// NewService creates a membership service
func NewService(opts Options) *Service {
	s := &Service{
		businesses:  opts.Businesses,
		users:       opts.Users,
		workspace:   opts.Workspace,
		roles:       opts.Roles,
		audit:       opts.Audit,
		notifier:    opts.Notifier,
		tasks:       opts.Tasks,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		cascades:    opts.Cascades,
		maxAttempts: opts.MaxAttempts,
		taskTimeout: opts.TaskTimeout,
		tracer:      observability.Tracer("membership"),
		now:         time.Now,
		newID:       newBusinessID,
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = docstore.DefaultMaxAttempts
	}
	if s.taskTimeout <= 0 {
		s.taskTimeout = 5 * time.Second
	}
	if s.audit == nil {
		s.audit = audit.NopLogger{}
	}
	if s.logger == nil {
		s.logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if s.tasks == nil {
		s.tasks = async.NewTracker(s.logger)
	}
	return s
}

// Get loads a business
func (s *Service) Get(ctx context.Context, businessID string) (*business.Business, error) {
	doc, err := s.businesses.Get(ctx, businessID)
	if err != nil {
		if docstore.IsNotFound(err) {
			return nil, ErrBusinessNotFound
		}
		return nil, fmt.Errorf("failed to get business: %w", err)
	}
	b, err := business.FromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to load business %s: %w", businessID, err)
	}
	return b, nil
}

// mutate runs fn against a freshly loaded business and writes the result
// with a version check, retrying from the reload on conflict. fn reports
// whether it changed anything; unchanged businesses are not written.
func (s *Service) mutate(ctx context.Context, op, businessID string, fn func(b *business.Business, now time.Time) (bool, error)) (*business.Business, error) {
	var result *business.Business
	err := docstore.RetryOnConflict(ctx, s.maxAttempts, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			s.metrics.RecordVersionConflict(op)
		}
		b, err := s.Get(ctx, businessID)
		if err != nil {
			return err
		}
		changed, err := fn(b, s.now())
		if err != nil {
			return err
		}
		if !changed {
			result = b
			return nil
		}
		doc := b.Document()
		if err := s.businesses.Replace(ctx, doc); err != nil {
			if docstore.IsNotFound(err) {
				return ErrBusinessNotFound
			}
			return err
		}
		result, err = business.FromDocument(doc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// log returns the service logger tagged with the span in ctx
func (s *Service) log(ctx context.Context) *observability.Logger {
	return observability.WithTraceContext(ctx, s.logger)
}

func (s *Service) startSpan(ctx context.Context, op, businessID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "membership."+op, trace.WithAttributes(
		attribute.String("business.id", businessID),
	))
}

// finish records the outcome of op on span and in metrics
func (s *Service) finish(span trace.Span, op string, err error) {
	defer span.End()
	if err == nil {
		s.metrics.RecordMembershipOp(op, "success")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if q, ok := business.AsQuotaExceeded(err); ok {
		s.metrics.RecordQuotaRejection(q.Role.String())
	}
	s.metrics.RecordMembershipOp(op, outcome(err))
}

func outcome(err error) string {
	switch {
	case business.IsQuotaExceeded(err):
		return "quota_exceeded"
	case errors.Is(err, business.ErrDuplicateMember):
		return "duplicate"
	case errors.Is(err, business.ErrMemberNotFound):
		return "member_not_found"
	case errors.Is(err, business.ErrLastSuperAdmin):
		return "last_super_admin"
	case errors.Is(err, business.ErrInvalidRole):
		return "invalid_role"
	case errors.Is(err, ErrBusinessNotFound):
		return "business_not_found"
	case errors.Is(err, docstore.ErrRetriesExhausted):
		return "conflict"
	}
	return "error"
}

// dependent runs a best-effort follow-up write. Failures are logged and
// counted but never undo the business change.
func (s *Service) dependent(ctx context.Context, name string, fields map[string]interface{}, fn func(ctx context.Context) error) {
	if err := fn(ctx); err != nil {
		s.metrics.RecordDependentFailure(name)
		s.log(ctx).WithFields(fields).WithError(err).
			WithField("dependent", name).
			Warn("Dependent update failed")
	}
}

// emit records an audit event and sends notifications in the background
func (s *Service) emit(ctx context.Context, event *audit.AuditEvent, notes ...notify.Notification) {
	s.tasks.Go(ctx, s.taskTimeout, "audit "+string(event.EventType), func(ctx context.Context) error {
		return s.audit.Log(ctx, event)
	})
	if s.notifier == nil {
		return
	}
	for _, n := range notes {
		s.tasks.Go(ctx, s.taskTimeout, "notify "+string(n.Type), func(ctx context.Context) error {
			return s.notifier.Notify(ctx, n)
		})
	}
}

// auditRejection records a quota refusal so business owners can see demand
// for seats they do not have
func (s *Service) auditRejection(ctx context.Context, businessID, userID string, err error) {
	q, ok := business.AsQuotaExceeded(err)
	if !ok {
		return
	}
	event := audit.NewEvent(ctx, audit.EventTypeQuotaRejected, businessID)
	event.Status = audit.EventStatusDenied
	event.ResourceType = audit.ResourceTypeMember
	event.ResourceID = userID
	event.Message = fmt.Sprintf("%s quota full (%d of %d)", q.Role, q.Current, q.Limit)
	event.Metadata["role"] = q.Role.String()
	event.Metadata["current"] = q.Current
	event.Metadata["limit"] = q.Limit
	s.emit(ctx, event)
}

func (s *Service) invalidate(businessID, userID string) {
	if s.roles != nil {
		s.roles.Invalidate(businessID, userID)
	}
}
