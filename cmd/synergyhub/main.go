package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/synergyhub/pkg/api"
	"github.com/platinummonkey/synergyhub/pkg/async"
	"github.com/platinummonkey/synergyhub/pkg/audit"
	"github.com/platinummonkey/synergyhub/pkg/auth"
	"github.com/platinummonkey/synergyhub/pkg/config"
	"github.com/platinummonkey/synergyhub/pkg/invitations"
	"github.com/platinummonkey/synergyhub/pkg/janitor"
	"github.com/platinummonkey/synergyhub/pkg/membership"
	"github.com/platinummonkey/synergyhub/pkg/middleware"
	"github.com/platinummonkey/synergyhub/pkg/notify"
	"github.com/platinummonkey/synergyhub/pkg/observability"
	"github.com/platinummonkey/synergyhub/pkg/rbac"
	"github.com/platinummonkey/synergyhub/pkg/users"
	"github.com/platinummonkey/synergyhub/pkg/workspace"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "synergyhub: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("SynergyHub exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		registry *prometheus.Registry
		metrics  *observability.Metrics
	)
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(registry)
	}

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		// tracing is optional; keep serving without it
		logger.WithError(err).Warn("OpenTelemetry unavailable, continuing without it")
	}

	st, err := openStores(ctx, cfg.Storage, registry)
	if err != nil {
		return err
	}
	st.instrument(metrics)
	logger.WithField("storage", cfg.Storage.Type).Info("Storage ready")

	health := observability.NewHealthChecker(cfg.Observability.OTelServiceVersion)
	if st.probe != nil {
		health.Register("storage", true, st.probe)
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
		if cfg.Redis.Password != "" {
			opts.Password = cfg.Redis.Password
		}
		if cfg.Redis.DB != 0 {
			opts.DB = cfg.Redis.DB
		}
		opts.PoolSize = cfg.Redis.PoolSize
		redisClient = redis.NewClient(opts)
		health.Register("redis", false, observability.RedisProbe(redisClient))
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	checker := rbac.NewChecker(rbac.NewStoreSource(st.Businesses), cfg.Roles.CacheSize, cfg.Roles.CacheTTL)
	metrics.RegisterCacheStats("roles", checker.CacheStats)

	events := audit.NewDocStore(st.Events)
	var auditLog audit.Logger = events
	if cfg.Audit.FilePath != "" {
		auditFile, err := audit.NewFileLogger(audit.FileLoggerConfig{Dir: cfg.Audit.FilePath})
		if err != nil {
			return err
		}
		auditLog = audit.NewTee(events, func(err error) {
			logger.WithError(err).Warn("Audit file sink failed")
		}, auditFile)
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if redisClient != nil {
		notifier = notify.Multi{notifier, notify.NewRedisNotifier(redisClient)}
	}

	userSvc := users.NewService(st.Users, logger)
	workspaceSvc := workspace.NewService(st.Workspace)
	tasks := async.NewTracker(logger)

	// invitations depend on membership, and membership deletes invitations
	// when a business goes away
	var invites *invitations.Service
	members := membership.NewService(membership.Options{
		Businesses: st.Businesses,
		Users:      userSvc,
		Workspace:  workspaceSvc,
		Roles:      checker,
		Audit:      auditLog,
		Notifier:   notifier,
		Tasks:      tasks,
		Metrics:    metrics,
		Logger:     logger,
		Cascades: []membership.Cascade{
			{Name: "workspace", Delete: func(ctx context.Context, businessID string) error {
				_, err := workspaceSvc.DeleteBusiness(ctx, businessID)
				return err
			}},
			{Name: "invitations", Delete: func(ctx context.Context, businessID string) error {
				return invites.DeleteBusiness(ctx, businessID)
			}},
			{Name: "audit", Delete: func(ctx context.Context, businessID string) error {
				_, err := events.DeleteBusiness(ctx, businessID)
				return err
			}},
		},
	})
	invites = invitations.NewService(invitations.Options{
		Store:    st.Invitations,
		Members:  members,
		Audit:    auditLog,
		Notifier: notifier,
		Metrics:  metrics,
		Logger:   logger,
		TTL:      cfg.Invitations.TTL,
	})

	jobLog := logrus.New()
	jobLog.SetFormatter(&logrus.JSONFormatter{})
	jobLog.SetLevel(logrusLevel(cfg.Observability.LogLevel))
	jobs := janitor.New(jobLog, time.Minute)
	if err := jobs.Add(janitor.InvitationJob(cfg.Invitations.CleanupSchedule, invites)); err != nil {
		return err
	}
	if cfg.Audit.RetentionDays > 0 {
		policy := audit.RetentionPolicy{RetentionDays: cfg.Audit.RetentionDays}
		if err := jobs.Add(janitor.AuditRetentionJob(cfg.Audit.PruneSchedule, events, policy)); err != nil {
			return err
		}
	}
	jobs.Start()

	var limiter api.Middleware
	if rl := cfg.RateLimit; rl.Enabled {
		var backend middleware.Limiter
		if redisClient != nil {
			backend = middleware.NewRedisLimiter(redisClient, "synergyhub:ratelimit")
		} else {
			local := middleware.NewLocalLimiter()
			go local.Run(ctx, time.Minute)
			backend = local
		}
		limiter = middleware.NewRateLimit(backend, middleware.Policies{
			Anonymous: middleware.PerMinute(rl.AnonymousPerMinute),
			User:      middleware.PerMinute(rl.UserPerMinute),
			Writes:    middleware.PerMinute(rl.WritesPerMinute),
		}, logger).FailOpen(rl.FailOpen)
	}

	server := api.NewServer(api.Deps{
		Membership:  members,
		Invitations: invites,
		Users:       userSvc,
		Auth:        middleware.NewAuthMiddleware(tokens, logger, false).WithProvisioner(userSvc),
		Permissions: rbac.NewPermissionMiddleware(checker, logger),
		RateLimit:   limiter,
		Audit:       audit.NewMiddleware(auditLog, logger),
		AuditStore:  events,
		Metrics:     metrics,
		Logger:      logger,
		Limits: api.Limits{
			RequestTimeout: cfg.Server.RequestTimeout,
			MaxBodyBytes:   cfg.Server.MaxBodyBytes,
			CORSOrigins:    cfg.Server.CORSOrigins,
		},
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      otelhttp.NewHandler(server, "synergyhub"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, health)
	if registry != nil {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:              cfg.Server.HealthAddr(),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// stages run in order: stop taking traffic, drain work, then release
	// what that work writes to
	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	shutdown.Stage("readiness", health.Drain)
	shutdown.Stage("api server", httpServer.Shutdown)
	shutdown.Stage("janitor", jobs.Stop)
	shutdown.Stage("background tasks", func(ctx context.Context) error {
		return tasks.Wait(remaining(ctx))
	})
	shutdown.Stage("audit", func(context.Context) error {
		return auditLog.Close()
	})
	shutdown.Stage("storage", st.close)
	if redisClient != nil {
		shutdown.Stage("redis", func(context.Context) error {
			return redisClient.Close()
		})
	}
	if providers != nil {
		shutdown.Stage("otel", providers.Shutdown)
	}
	shutdown.Stage("health server", healthServer.Shutdown)

	serveErr := make(chan error, 2)
	go serve(healthServer, "health", logger, serveErr)
	go serve(httpServer, "api", logger, serveErr)

	go func() {
		if err := <-serveErr; err != nil {
			logger.WithError(err).Error("Server failed, shutting down")
			cancel()
		}
	}()

	return shutdown.WaitForShutdown(ctx)
}

func serve(srv *http.Server, name string, logger *observability.Logger, errs chan<- error) {
	logger.WithFields(map[string]interface{}{
		"server": name,
		"addr":   srv.Addr,
	}).Info("Listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errs <- fmt.Errorf("%s server: %w", name, err)
	}
}

// remaining is the time left before ctx expires
func remaining(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		return time.Until(deadline)
	}
	return 30 * time.Second
}

func logrusLevel(level observability.LogLevel) logrus.Level {
	switch level {
	case observability.DebugLevel:
		return logrus.DebugLevel
	case observability.WarnLevel:
		return logrus.WarnLevel
	case observability.ErrorLevel:
		return logrus.ErrorLevel
	}
	return logrus.InfoLevel
}
