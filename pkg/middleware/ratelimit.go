package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/synergyhub/pkg/httputil"
	"github.com/platinummonkey/synergyhub/pkg/observability"
)

// Policy allows Limit requests per Window
type Policy struct {
	Limit  int
	Window time.Duration
}

// PerMinute is a one-minute Policy
func PerMinute(n int) Policy {
	return Policy{Limit: n, Window: time.Minute}
}

// Decision is the outcome of one Take
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetIn is the time until the current window ends
	ResetIn time.Duration
}

// Limiter counts requests per key in fixed windows
type Limiter interface {
	Take(ctx context.Context, key string, p Policy) (Decision, error)
}

// Policies are the budgets RateLimit applies. Writes is an extra budget for
// mutating requests by signed-in users, on top of User.
type Policies struct {
	Anonymous Policy
	User      Policy
	Writes    Policy
}

// DefaultPolicies returns the stock per-minute budgets
func DefaultPolicies() Policies {
	return Policies{
		Anonymous: PerMinute(100),
		User:      PerMinute(1000),
		Writes:    PerMinute(120),
	}
}

// RateLimit is HTTP middleware enforcing Policies through a Limiter. It must
// run after AuthMiddleware to see the caller.
type RateLimit struct {
	limiter  Limiter
	policies Policies
	failOpen bool
	logger   *observability.Logger
}

// NewRateLimit builds the middleware. It fails open by default.
func NewRateLimit(limiter Limiter, policies Policies, logger *observability.Logger) *RateLimit {
	return &RateLimit{limiter: limiter, policies: policies, failOpen: true, logger: logger}
}

// FailOpen sets whether requests pass (true) or get a 503 (false) when the
// limiter errors
func (m *RateLimit) FailOpen(open bool) *RateLimit {
	m.failOpen = open
	return m
}

type bucket struct {
	key    string
	policy Policy
}

func (m *RateLimit) buckets(r *http.Request) []bucket {
	authCtx := GetAuthContext(r)
	if !authCtx.IsAuthenticated() {
		return []bucket{{"ip:" + clientIP(r), m.policies.Anonymous}}
	}
	user := "user:" + authCtx.UserID
	out := []bucket{{user, m.policies.User}}
	if isWrite(r.Method) && m.policies.Writes.Limit > 0 {
		out = append(out, bucket{"write:" + user, m.policies.Writes})
	}
	return out
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Handler wraps next with rate limiting
func (m *RateLimit) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var tightest *Decision
		for _, b := range m.buckets(r) {
			d, err := m.limiter.Take(r.Context(), b.key, b.policy)
			if err != nil {
				observability.FromContext(r.Context()).WithError(err).
					WithField("bucket", b.key).Warn("Rate limiter unavailable")
				if m.failOpen {
					next.ServeHTTP(w, r)
				} else {
					httputil.WriteServiceUnavailable(w, "rate limiter unavailable")
				}
				return
			}
			if !d.Allowed {
				setRateLimitHeaders(w, d)
				httputil.WriteRateLimited(w, d.ResetIn)
				return
			}
			if tightest == nil || d.Remaining < tightest.Remaining {
				tightest = &d
			}
		}
		if tightest != nil {
			setRateLimitHeaders(w, *tightest)
		}
		next.ServeHTTP(w, r)
	})
}

func setRateLimitHeaders(w http.ResponseWriter, d Decision) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(d.ResetIn).Unix(), 10))
}

// clientIP is the first X-Forwarded-For hop, then X-Real-IP, then the peer
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
