package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/sync/errgroup"
)

// Health states reported by the checker
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusDraining  = "draining"
)

const defaultProbeTimeout = 2 * time.Second

// Probe reports whether a dependency is reachable
type Probe func(ctx context.Context) error

// SQLProbe pings a database/sql pool
func SQLProbe(db *sql.DB) Probe {
	return db.PingContext
}

// RedisProbe pings a redis client
func RedisProbe(client *redis.Client) Probe {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// MongoProbe pings the primary of a MongoDB deployment
func MongoProbe(client *mongo.Client) Probe {
	return func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	}
}

// HealthStatus is the readiness report
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus is one probe's result
type DependencyStatus struct {
	Status    string `json:"status"`
	Required  bool   `json:"required"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type dependency struct {
	name     string
	required bool
	probe    Probe
}

// HealthChecker backs the liveness and readiness endpoints. A failing
// required probe makes the service unhealthy; a failing optional one only
// degrades it. Once Drain is called readiness fails regardless of probes.
type HealthChecker struct {
	version      string
	probeTimeout time.Duration
	draining     atomic.Bool

	mu   sync.RWMutex
	deps []dependency
}

// NewHealthChecker creates a checker with no dependencies
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{version: version, probeTimeout: defaultProbeTimeout}
}

// Register adds a probe
func (h *HealthChecker) Register(name string, required bool, probe Probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deps = append(h.deps, dependency{name: name, required: required, probe: probe})
}

// Names lists registered dependencies in sorted order
func (h *HealthChecker) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.deps))
	for _, d := range h.deps {
		names = append(names, d.name)
	}
	sort.Strings(names)
	return names
}

// Drain marks the instance as leaving so load balancers stop routing to it
func (h *HealthChecker) Drain(context.Context) error {
	h.draining.Store(true)
	return nil
}

// Check runs every probe concurrently, each under its own timeout
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	h.mu.RLock()
	deps := append([]dependency(nil), h.deps...)
	h.mu.RUnlock()

	results := make([]DependencyStatus, len(deps))
	var g errgroup.Group
	for i, d := range deps {
		g.Go(func() error {
			results[i] = h.probe(ctx, d)
			return nil
		})
	}
	g.Wait()

	report := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now().UTC(),
		Version:      h.version,
		Dependencies: make(map[string]DependencyStatus, len(deps)),
	}
	for i, d := range deps {
		r := results[i]
		report.Dependencies[d.name] = r
		switch {
		case r.Status == StatusHealthy:
		case d.required:
			report.Status = StatusUnhealthy
		case report.Status == StatusHealthy:
			report.Status = StatusDegraded
		}
	}
	if h.draining.Load() {
		report.Status = StatusDraining
	}
	return report
}

func (h *HealthChecker) probe(ctx context.Context, d dependency) DependencyStatus {
	ctx, cancel := context.WithTimeout(ctx, h.probeTimeout)
	defer cancel()

	start := time.Now()
	err := d.probe(ctx)
	r := DependencyStatus{
		Status:    StatusHealthy,
		Required:  d.required,
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		r.Status = StatusUnhealthy
		r.Message = err.Error()
	}
	return r
}

// Liveness answers 200 while the process can serve at all
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now().UTC(),
	})
}

// Readiness answers 503 when a required dependency is down or the instance
// is draining
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	report := h.Check(r.Context())
	code := http.StatusOK
	if report.Status == StatusUnhealthy || report.Status == StatusDraining {
		code = http.StatusServiceUnavailable
	}
	writeHealth(w, code, report)
}

func writeHealth(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// RegisterHealthRoutes mounts /health, /health/live and /health/ready
func RegisterHealthRoutes(serveMux *http.ServeMux, checker *HealthChecker) {
	serveMux.HandleFunc("/health", checker.Readiness)
	serveMux.HandleFunc("/health/live", checker.Liveness)
	serveMux.HandleFunc("/health/ready", checker.Readiness)
}
