// Package observability provides structured logging, Prometheus metrics, health checks and OpenTelemetry tracing.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("business_id", id).Info("Member added")
//
// FromContext returns a logger carrying the request, user, business and trace
// IDs found in the context. Values under token, password, secret and
// authorization keys are written as [REDACTED].
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordQuotaRejection("Admin")
//
// Every recorder is safe on a nil *Metrics, so packages take metrics as an
// optional dependency. docstore.Instrument reports store calls through
// ObserveStorage.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version)
//	checker.Register("store", true, observability.SQLProbe(db))
//	checker.Register("redis", false, observability.RedisProbe(client))
//
// A failing required probe makes /health/ready return 503. Optional probes
// only degrade the reported status. Each probe gets its own short timeout.
// After Drain, readiness reports "draining" so traffic moves elsewhere
// before the API server stops.
//
// # Graceful Shutdown
//
//	shutdown := observability.NewShutdownManager(logger, 30*time.Second)
//	shutdown.Stage("readiness", checker.Drain)
//	shutdown.Stage("api server", server.Shutdown)
//	shutdown.Stage("storage", store.Close)
//	return shutdown.WaitForShutdown(ctx)
//
// Stages run one after another under a single deadline.
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer providers.Shutdown(ctx)
//
// Trace and metric exporters share one gRPC connection to the collector.
//
// # Related Packages
//
//   - pkg/config: observability settings
//   - pkg/httputil: request ID and access log middleware
package observability
