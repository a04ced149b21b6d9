package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/synergyhub/pkg/observability"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageMongo    = "mongo"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Redis         RedisConfig         `yaml:"redis"`
	Auth          AuthConfig          `yaml:"auth"`
	RateLimit     RateLimitConfig     `yaml:"rateLimit"`
	Roles         RolesConfig         `yaml:"roles"`
	Audit         AuditConfig         `yaml:"audit"`
	Invitations   InvitationsConfig   `yaml:"invitations"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RequestTimeout bounds each API request's context
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	MaxBodyBytes   int64         `yaml:"maxBodyBytes"`
	// CORSOrigins lists browser origins allowed to call the API; "*" allows any
	CORSOrigins []string `yaml:"corsOrigins"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"healthPort"`
}

// StorageConfig selects and configures the document store backend
type StorageConfig struct {
	Type          string `yaml:"type"`
	PostgresURL   string `yaml:"postgresURL"`
	SQLitePath    string `yaml:"sqlitePath"`
	MongoURI      string `yaml:"mongoURI"`
	MongoDatabase string `yaml:"mongoDatabase"`
	MaxOpenConns  int    `yaml:"maxOpenConns"`
}

// RedisConfig configures the optional Redis connection used for
// notifications and distributed rate limiting. An empty URL disables Redis.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// AuthConfig configures bearer token validation
type AuthConfig struct {
	JWTSecret string        `yaml:"jwtSecret"`
	Issuer    string        `yaml:"issuer"`
	TokenTTL  time.Duration `yaml:"tokenTTL"`
}

// RateLimitConfig toggles request rate limiting
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`
	// FailOpen lets requests through when Redis is unreachable
	FailOpen bool `yaml:"failOpen"`

	AnonymousPerMinute int `yaml:"anonymousPerMinute"`
	UserPerMinute      int `yaml:"userPerMinute"`
	// WritesPerMinute caps POST/PUT/PATCH/DELETE per user, on top of UserPerMinute
	WritesPerMinute int `yaml:"writesPerMinute"`
}

// RolesConfig sizes the cached role resolver
type RolesConfig struct {
	CacheSize int           `yaml:"cacheSize"`
	CacheTTL  time.Duration `yaml:"cacheTTL"`
}

// AuditConfig configures audit sinks and retention
type AuditConfig struct {
	// FilePath names a directory for an additional JSON-lines file sink
	FilePath      string `yaml:"filePath"`
	RetentionDays int    `yaml:"retentionDays"`
	PruneSchedule string `yaml:"pruneSchedule"`
}

// InvitationsConfig configures invitation lifetime and cleanup
type InvitationsConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	CleanupSchedule string        `yaml:"cleanupSchedule"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel `yaml:"-"`
	// Level is the textual log level as read from a config file
	Level string `yaml:"logLevel"`

	MetricsEnabled bool `yaml:"metricsEnabled"`

	OTelEnabled        bool   `yaml:"otelEnabled"`
	OTelEndpoint       string `yaml:"otelEndpoint"`
	OTelServiceName    string `yaml:"otelServiceName"`
	OTelServiceVersion string `yaml:"otelServiceVersion"`
	OTelInsecure       bool    `yaml:"otelInsecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otelSampleRatio"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  10 * time.Second,
			MaxBodyBytes:    1 << 20,
			HealthPort:      "9090",
		},
		Storage: StorageConfig{
			Type:          StorageMemory,
			SQLitePath:    "synergyhub.db",
			MongoDatabase: "synergyhub",
			MaxOpenConns:  20,
		},
		Redis: RedisConfig{
			PoolSize: 10,
		},
		Auth: AuthConfig{
			Issuer:   "synergyhub",
			TokenTTL: 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:            true,
			FailOpen:           true,
			AnonymousPerMinute: 100,
			UserPerMinute:      1000,
			WritesPerMinute:    120,
		},
		Roles: RolesConfig{
			CacheSize: 10000,
			CacheTTL:  time.Minute,
		},
		Audit: AuditConfig{
			RetentionDays: 365,
			PruneSchedule: "@daily",
		},
		Invitations: InvitationsConfig{
			TTL:             7 * 24 * time.Hour,
			CleanupSchedule: "@hourly",
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.InfoLevel,
			Level:              "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "synergyhub",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig builds configuration from defaults, the optional YAML file
// named by SYNERGY_CONFIG_FILE, then SYNERGY_* environment variables
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("SYNERGY_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile overlays the YAML document at path onto c
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.Observability.LogLevel = observability.ParseLevel(c.Observability.Level)
	return nil
}

// applyEnv overrides c with any SYNERGY_* variables that are set
func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("SYNERGY_HOST", s.Host)
	s.Port = getEnv("SYNERGY_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("SYNERGY_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("SYNERGY_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("SYNERGY_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("SYNERGY_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.HealthPort = getEnv("SYNERGY_HEALTH_PORT", s.HealthPort)
	s.RequestTimeout = getEnvDuration("SYNERGY_REQUEST_TIMEOUT", s.RequestTimeout)
	s.MaxBodyBytes = int64(getEnvInt("SYNERGY_MAX_BODY_BYTES", int(s.MaxBodyBytes)))
	if origins := os.Getenv("SYNERGY_CORS_ORIGINS"); origins != "" {
		s.CORSOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				s.CORSOrigins = append(s.CORSOrigins, o)
			}
		}
	}

	st := &c.Storage
	st.Type = strings.ToLower(getEnv("SYNERGY_STORAGE_TYPE", st.Type))
	st.PostgresURL = getEnv("SYNERGY_POSTGRES_URL", st.PostgresURL)
	st.SQLitePath = getEnv("SYNERGY_SQLITE_PATH", st.SQLitePath)
	st.MongoURI = getEnv("SYNERGY_MONGO_URI", st.MongoURI)
	st.MongoDatabase = getEnv("SYNERGY_MONGO_DATABASE", st.MongoDatabase)
	st.MaxOpenConns = getEnvInt("SYNERGY_DB_MAX_OPEN_CONNS", st.MaxOpenConns)

	r := &c.Redis
	r.URL = getEnv("SYNERGY_REDIS_URL", r.URL)
	r.Password = getEnv("SYNERGY_REDIS_PASSWORD", r.Password)
	r.DB = getEnvInt("SYNERGY_REDIS_DB", r.DB)
	r.PoolSize = getEnvInt("SYNERGY_REDIS_POOL_SIZE", r.PoolSize)

	a := &c.Auth
	a.JWTSecret = getEnv("SYNERGY_JWT_SECRET", a.JWTSecret)
	a.Issuer = getEnv("SYNERGY_JWT_ISSUER", a.Issuer)
	a.TokenTTL = getEnvDuration("SYNERGY_TOKEN_TTL", a.TokenTTL)

	c.RateLimit.Enabled = getEnvBool("SYNERGY_RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.FailOpen = getEnvBool("SYNERGY_RATE_LIMIT_FAIL_OPEN", c.RateLimit.FailOpen)
	c.RateLimit.AnonymousPerMinute = getEnvInt("SYNERGY_RATE_LIMIT_ANONYMOUS", c.RateLimit.AnonymousPerMinute)
	c.RateLimit.UserPerMinute = getEnvInt("SYNERGY_RATE_LIMIT_USER", c.RateLimit.UserPerMinute)
	c.RateLimit.WritesPerMinute = getEnvInt("SYNERGY_RATE_LIMIT_WRITES", c.RateLimit.WritesPerMinute)

	c.Roles.CacheSize = getEnvInt("SYNERGY_ROLE_CACHE_SIZE", c.Roles.CacheSize)
	c.Roles.CacheTTL = getEnvDuration("SYNERGY_ROLE_CACHE_TTL", c.Roles.CacheTTL)

	c.Audit.FilePath = getEnv("SYNERGY_AUDIT_DIR", c.Audit.FilePath)
	c.Audit.RetentionDays = getEnvInt("SYNERGY_AUDIT_RETENTION_DAYS", c.Audit.RetentionDays)
	c.Audit.PruneSchedule = getEnv("SYNERGY_AUDIT_PRUNE_SCHEDULE", c.Audit.PruneSchedule)

	c.Invitations.TTL = getEnvDuration("SYNERGY_INVITATION_TTL", c.Invitations.TTL)
	c.Invitations.CleanupSchedule = getEnv("SYNERGY_INVITATION_CLEANUP_SCHEDULE", c.Invitations.CleanupSchedule)

	o := &c.Observability
	if level := os.Getenv("SYNERGY_LOG_LEVEL"); level != "" {
		o.Level = level
		o.LogLevel = observability.ParseLevel(level)
	}
	o.MetricsEnabled = getEnvBool("SYNERGY_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("SYNERGY_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("SYNERGY_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("SYNERGY_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("SYNERGY_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("SYNERGY_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("SYNERGY_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("max body bytes must not be negative")
	}
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must not be negative")
	}

	switch c.Storage.Type {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite storage")
		}
	case StorageMongo:
		if c.Storage.MongoURI == "" || c.Storage.MongoDatabase == "" {
			return fmt.Errorf("mongo URI and database are required for mongo storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory, postgres, sqlite, or mongo)", c.Storage.Type)
	}

	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 bytes")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}

	if c.Roles.CacheSize <= 0 {
		return fmt.Errorf("role cache size must be positive")
	}
	if c.Invitations.TTL <= 0 {
		return fmt.Errorf("invitation TTL must be positive")
	}
	if c.Invitations.CleanupSchedule == "" {
		return fmt.Errorf("invitation cleanup schedule is required")
	}
	if rl := c.RateLimit; rl.Enabled && (rl.AnonymousPerMinute <= 0 || rl.UserPerMinute <= 0 || rl.WritesPerMinute < 0) {
		return fmt.Errorf("rate limits must be positive when rate limiting is enabled")
	}
	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit retention days must not be negative")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if r := c.Observability.OTelSampleRatio; r < 0 || r > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be within [0, 1]")
		}
	}

	return nil
}

// Addr returns the API listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// HealthAddr returns the health/metrics listen address
func (s ServerConfig) HealthAddr() string {
	return s.Host + ":" + s.HealthPort
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
