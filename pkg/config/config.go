package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blueline/blueline/pkg/observability"
	"github.com/blueline/blueline/pkg/storage"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	Storage       storage.Config
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	Retention     RetentionConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	CORSOrigins     []string

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	OIDCEnabled   bool
	OIDCIssuerURL string
	OIDCClientID  string
}

// RateLimitConfig holds the per-IP and per-user window limits.
type RateLimitConfig struct {
	Enabled            bool
	IPRequestsPerMin   int
	UserRequestsPerMin int
}

// RetentionConfig controls the sweeper that purges soft-deleted documents
// and expired API tokens.
type RetentionConfig struct {
	DocumentRetention time.Duration
	SweepSchedule     string
}

// ObservabilityConfig holds observability settings.
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration: defaults, then the YAML file named by
// BLUELINE_CONFIG_FILE when set, then environment variables.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("BLUELINE_CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
			HealthPort:      "9090",
		},
		Storage: storage.DefaultConfig(),
		Auth: AuthConfig{
			OIDCEnabled: false,
		},
		RateLimit: RateLimitConfig{
			Enabled:            true,
			IPRequestsPerMin:   60,
			UserRequestsPerMin: 300,
		},
		Retention: RetentionConfig{
			DocumentRetention: 90 * 24 * time.Hour,
			SweepSchedule:     "0 3 * * *",
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.InfoLevel,
			MetricsEnabled:     true,
			OTelEnabled:        false,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "blueline",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// fileConfig mirrors Config with yaml tags; only set fields override.
type fileConfig struct {
	Server struct {
		Host            string   `yaml:"host"`
		Port            string   `yaml:"port"`
		ReadTimeout     string   `yaml:"read_timeout"`
		WriteTimeout    string   `yaml:"write_timeout"`
		IdleTimeout     string   `yaml:"idle_timeout"`
		ShutdownTimeout string   `yaml:"shutdown_timeout"`
		HealthPort      string   `yaml:"health_port"`
		CORSOrigins     []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Storage struct {
		PostgresURL         string   `yaml:"postgres_url"`
		PostgresReplicaURLs []string `yaml:"postgres_replica_urls"`
		RedisURL            string   `yaml:"redis_url"`
		S3Endpoint          string   `yaml:"s3_endpoint"`
		S3Region            string   `yaml:"s3_region"`
		S3Bucket            string   `yaml:"s3_bucket"`
	} `yaml:"storage"`
	Auth struct {
		OIDCEnabled   *bool  `yaml:"oidc_enabled"`
		OIDCIssuerURL string `yaml:"oidc_issuer_url"`
		OIDCClientID  string `yaml:"oidc_client_id"`
	} `yaml:"auth"`
	RateLimit struct {
		Enabled            *bool `yaml:"enabled"`
		IPRequestsPerMin   int   `yaml:"ip_requests_per_min"`
		UserRequestsPerMin int   `yaml:"user_requests_per_min"`
	} `yaml:"rate_limit"`
	Retention struct {
		DocumentRetention string `yaml:"document_retention"`
		SweepSchedule     string `yaml:"sweep_schedule"`
	} `yaml:"retention"`
	Observability struct {
		LogLevel     string `yaml:"log_level"`
		OTelEnabled  *bool  `yaml:"otel_enabled"`
		OTelEndpoint string `yaml:"otel_endpoint"`
	} `yaml:"observability"`
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	setString(&cfg.Server.Host, fc.Server.Host)
	setString(&cfg.Server.Port, fc.Server.Port)
	setString(&cfg.Server.HealthPort, fc.Server.HealthPort)
	setDuration(&cfg.Server.ReadTimeout, fc.Server.ReadTimeout)
	setDuration(&cfg.Server.WriteTimeout, fc.Server.WriteTimeout)
	setDuration(&cfg.Server.IdleTimeout, fc.Server.IdleTimeout)
	setDuration(&cfg.Server.ShutdownTimeout, fc.Server.ShutdownTimeout)
	if len(fc.Server.CORSOrigins) > 0 {
		cfg.Server.CORSOrigins = fc.Server.CORSOrigins
	}

	setString(&cfg.Storage.PostgresURL, fc.Storage.PostgresURL)
	if len(fc.Storage.PostgresReplicaURLs) > 0 {
		cfg.Storage.PostgresReplicaURLs = fc.Storage.PostgresReplicaURLs
	}
	setString(&cfg.Storage.RedisURL, fc.Storage.RedisURL)
	setString(&cfg.Storage.S3Endpoint, fc.Storage.S3Endpoint)
	setString(&cfg.Storage.S3Region, fc.Storage.S3Region)
	setString(&cfg.Storage.S3Bucket, fc.Storage.S3Bucket)

	if fc.Auth.OIDCEnabled != nil {
		cfg.Auth.OIDCEnabled = *fc.Auth.OIDCEnabled
	}
	setString(&cfg.Auth.OIDCIssuerURL, fc.Auth.OIDCIssuerURL)
	setString(&cfg.Auth.OIDCClientID, fc.Auth.OIDCClientID)

	if fc.RateLimit.Enabled != nil {
		cfg.RateLimit.Enabled = *fc.RateLimit.Enabled
	}
	if fc.RateLimit.IPRequestsPerMin > 0 {
		cfg.RateLimit.IPRequestsPerMin = fc.RateLimit.IPRequestsPerMin
	}
	if fc.RateLimit.UserRequestsPerMin > 0 {
		cfg.RateLimit.UserRequestsPerMin = fc.RateLimit.UserRequestsPerMin
	}

	setDuration(&cfg.Retention.DocumentRetention, fc.Retention.DocumentRetention)
	setString(&cfg.Retention.SweepSchedule, fc.Retention.SweepSchedule)

	if fc.Observability.LogLevel != "" {
		cfg.Observability.LogLevel = observability.ParseLogLevel(strings.ToLower(fc.Observability.LogLevel))
	}
	if fc.Observability.OTelEnabled != nil {
		cfg.Observability.OTelEnabled = *fc.Observability.OTelEnabled
	}
	setString(&cfg.Observability.OTelEndpoint, fc.Observability.OTelEndpoint)

	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, os.Getenv("BLUELINE_HOST"))
	setString(&cfg.Server.Port, os.Getenv("BLUELINE_PORT"))
	setString(&cfg.Server.HealthPort, os.Getenv("BLUELINE_HEALTH_PORT"))
	setDuration(&cfg.Server.ReadTimeout, os.Getenv("BLUELINE_READ_TIMEOUT"))
	setDuration(&cfg.Server.WriteTimeout, os.Getenv("BLUELINE_WRITE_TIMEOUT"))
	setDuration(&cfg.Server.IdleTimeout, os.Getenv("BLUELINE_IDLE_TIMEOUT"))
	setDuration(&cfg.Server.ShutdownTimeout, os.Getenv("BLUELINE_SHUTDOWN_TIMEOUT"))
	if origins := os.Getenv("BLUELINE_CORS_ORIGINS"); origins != "" {
		cfg.Server.CORSOrigins = splitAndTrim(origins)
	}
	if maxBody := getEnvInt64("BLUELINE_MAX_BODY_BYTES", 0); maxBody > 0 {
		cfg.Server.MaxBodyBytes = maxBody
	}

	setString(&cfg.Storage.PostgresURL, os.Getenv("BLUELINE_POSTGRES_URL"))
	if replicas := os.Getenv("BLUELINE_POSTGRES_REPLICA_URLS"); replicas != "" {
		cfg.Storage.PostgresReplicaURLs = splitAndTrim(replicas)
	}
	if maxConns := getEnvInt("BLUELINE_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.Storage.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("BLUELINE_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.Storage.PostgresMinConns = minConns
	}
	setDuration(&cfg.Storage.PostgresTimeout, os.Getenv("BLUELINE_POSTGRES_TIMEOUT"))

	setString(&cfg.Storage.RedisURL, os.Getenv("BLUELINE_REDIS_URL"))
	setString(&cfg.Storage.RedisPassword, os.Getenv("BLUELINE_REDIS_PASSWORD"))
	if redisDB := getEnvInt("BLUELINE_REDIS_DB", -1); redisDB >= 0 {
		cfg.Storage.RedisDB = redisDB
	}
	if poolSize := getEnvInt("BLUELINE_REDIS_POOL_SIZE", 0); poolSize > 0 {
		cfg.Storage.RedisPoolSize = poolSize
	}

	setString(&cfg.Storage.S3Endpoint, os.Getenv("BLUELINE_S3_ENDPOINT"))
	setString(&cfg.Storage.S3Region, os.Getenv("BLUELINE_S3_REGION"))
	setString(&cfg.Storage.S3Bucket, os.Getenv("BLUELINE_S3_BUCKET"))
	setString(&cfg.Storage.S3AccessKey, os.Getenv("BLUELINE_S3_ACCESS_KEY"))
	setString(&cfg.Storage.S3SecretKey, os.Getenv("BLUELINE_S3_SECRET_KEY"))
	if pathStyle := os.Getenv("BLUELINE_S3_USE_PATH_STYLE"); pathStyle != "" {
		cfg.Storage.S3UsePathStyle = isTrue(pathStyle)
	}

	if cacheEnabled := os.Getenv("BLUELINE_CACHE_ENABLED"); cacheEnabled != "" {
		cfg.Storage.CacheEnabled = isTrue(cacheEnabled)
	}
	setDuration(&cfg.Storage.ProfileCacheTTL, os.Getenv("BLUELINE_PROFILE_CACHE_TTL"))
	if l1Size := getEnvInt("BLUELINE_L1_CACHE_SIZE", 0); l1Size > 0 {
		cfg.Storage.L1CacheSize = l1Size
	}

	if oidcEnabled := os.Getenv("BLUELINE_OIDC_ENABLED"); oidcEnabled != "" {
		cfg.Auth.OIDCEnabled = isTrue(oidcEnabled)
	}
	setString(&cfg.Auth.OIDCIssuerURL, os.Getenv("BLUELINE_OIDC_ISSUER_URL"))
	setString(&cfg.Auth.OIDCClientID, os.Getenv("BLUELINE_OIDC_CLIENT_ID"))

	if rlEnabled := os.Getenv("BLUELINE_RATE_LIMIT_ENABLED"); rlEnabled != "" {
		cfg.RateLimit.Enabled = isTrue(rlEnabled)
	}
	if n := getEnvInt("BLUELINE_RATE_LIMIT_IP_PER_MIN", 0); n > 0 {
		cfg.RateLimit.IPRequestsPerMin = n
	}
	if n := getEnvInt("BLUELINE_RATE_LIMIT_USER_PER_MIN", 0); n > 0 {
		cfg.RateLimit.UserRequestsPerMin = n
	}

	setDuration(&cfg.Retention.DocumentRetention, os.Getenv("BLUELINE_DOCUMENT_RETENTION"))
	setString(&cfg.Retention.SweepSchedule, os.Getenv("BLUELINE_SWEEP_SCHEDULE"))

	if level := os.Getenv("BLUELINE_LOG_LEVEL"); level != "" {
		cfg.Observability.LogLevel = observability.ParseLogLevel(strings.ToLower(level))
	}
	if metricsEnabled := os.Getenv("BLUELINE_METRICS_ENABLED"); metricsEnabled != "" {
		cfg.Observability.MetricsEnabled = isTrue(metricsEnabled)
	}
	if otelEnabled := os.Getenv("BLUELINE_OTEL_ENABLED"); otelEnabled != "" {
		cfg.Observability.OTelEnabled = isTrue(otelEnabled)
	}
	setString(&cfg.Observability.OTelEndpoint, os.Getenv("BLUELINE_OTEL_ENDPOINT"))
	setString(&cfg.Observability.OTelServiceName, os.Getenv("BLUELINE_OTEL_SERVICE_NAME"))
	setString(&cfg.Observability.OTelServiceVersion, os.Getenv("BLUELINE_OTEL_SERVICE_VERSION"))
	if insecureStr := os.Getenv("BLUELINE_OTEL_INSECURE"); insecureStr != "" {
		cfg.Observability.OTelInsecure = isTrue(insecureStr)
	}
}

// Validate checks if the configuration is valid.
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

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Storage.RedisURL == "" {
		return fmt.Errorf("redis URL is required")
	}

	if c.Auth.OIDCEnabled {
		if c.Auth.OIDCIssuerURL == "" {
			return fmt.Errorf("OIDC issuer URL is required when OIDC is enabled")
		}
		if c.Auth.OIDCClientID == "" {
			return fmt.Errorf("OIDC client ID is required when OIDC is enabled")
		}
	}

	if c.Retention.DocumentRetention <= 0 {
		return fmt.Errorf("document retention must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func setDuration(dst *time.Duration, value string) {
	if value == "" {
		return
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		*dst = d
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func isTrue(s string) bool {
	return strings.ToLower(s) == "true" || s == "1"
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}
