// Package config loads SynergyHub service configuration.
//
// # Overview
//
// Configuration starts from built-in defaults, is overlaid by an optional
// YAML file named by SYNERGY_CONFIG_FILE, and finally by SYNERGY_*
// environment variables. The result is validated before it is returned.
//
// # Configuration Structure
//
// Server settings:
//
//	SYNERGY_HOST="0.0.0.0"
//	SYNERGY_PORT="8080"
//	SYNERGY_HEALTH_PORT="9090"
//	SYNERGY_READ_TIMEOUT="15s"
//	SYNERGY_WRITE_TIMEOUT="15s"
//	SYNERGY_REQUEST_TIMEOUT="10s"   # per API request context
//	SYNERGY_MAX_BODY_BYTES="1048576"
//	SYNERGY_CORS_ORIGINS="https://app.example.com,https://admin.example.com"
//
// Storage settings:
//
//	SYNERGY_STORAGE_TYPE="postgres"  # memory, postgres, sqlite, mongo
//	SYNERGY_POSTGRES_URL="postgres://localhost/synergyhub?sslmode=disable"
//	SYNERGY_SQLITE_PATH="synergyhub.db"
//	SYNERGY_MONGO_URI="mongodb://localhost:27017"
//	SYNERGY_MONGO_DATABASE="synergyhub"
//
// Redis (notifications and distributed rate limiting):
//
//	SYNERGY_REDIS_URL="redis://localhost:6379/0"
//
// Auth:
//
//	SYNERGY_JWT_SECRET="at-least-32-bytes-of-secret-material"
//	SYNERGY_TOKEN_TTL="24h"
//
// Background jobs:
//
//	SYNERGY_INVITATION_TTL="168h"
//	SYNERGY_INVITATION_CLEANUP_SCHEDULE="@hourly"
//	SYNERGY_AUDIT_RETENTION_DAYS="365"
//	SYNERGY_AUDIT_DIR="/var/log/synergyhub/audit"
//
// Rate limiting (per minute; Redis-backed when SYNERGY_REDIS_URL is set):
//
//	SYNERGY_RATE_LIMIT_ENABLED="true"
//	SYNERGY_RATE_LIMIT_ANONYMOUS="100"
//	SYNERGY_RATE_LIMIT_USER="1000"
//	SYNERGY_RATE_LIMIT_WRITES="120"
//
// Observability:
//
//	SYNERGY_LOG_LEVEL="info"
//	SYNERGY_METRICS_ENABLED="true"
//	SYNERGY_OTEL_ENABLED="false"
//	SYNERGY_OTEL_ENDPOINT="localhost:4317"
//	SYNERGY_OTEL_SAMPLE_RATIO="0.1"
//
// # File Overlay
//
//	server:
//	  port: "8080"
//	storage:
//	  type: sqlite
//	  sqlitePath: /var/lib/synergyhub/data.db
//	observability:
//	  logLevel: debug
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	srv := &http.Server{Addr: cfg.Server.Addr()}
package config
