package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenAddr string
	TLSAddr    string

	LogLevel  string
	LogFormat string
	LogFile   string

	AuditLogDir string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	DBDriver         string
	SQLitePath       string
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     string
	PostgresDatabase string
	PostgresSSLMode  string

	CacheBackend       string
	CacheTTL           time.Duration
	CacheKeyWindow     time.Duration
	CacheMemorySize    int
	CachePurgeInterval time.Duration

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	OnadataBaseURL string
	OnadataToken   string
	OnadataTimeout time.Duration

	RateLimit       int
	RateLimitWindow time.Duration

	CORSAllowedOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:         getEnv("LISTEN_ADDR", ":8080"),
		TLSAddr:            getEnv("TLS_ADDR", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		LogFile:            getEnv("LOG_FILE", ""),
		AuditLogDir:        getEnv("AUDIT_LOG_DIR", "logs"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		AccessTokenTTL:     getEnvDuration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL:    getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		DBDriver:           getEnv("DB_DRIVER", "postgres"),
		SQLitePath:         getEnv("SQLITE_PATH", "formgate.db"),
		PostgresUser:       getEnv("POSTGRES_USER", "formgate"),
		PostgresPassword:   getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:       getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:       getEnv("POSTGRES_PORT", "5432"),
		PostgresDatabase:   getEnv("POSTGRES_DATABASE", "formgate"),
		PostgresSSLMode:    getEnv("POSTGRES_SSL_MODE", "disable"),
		CacheBackend:       getEnv("CACHE_BACKEND", "memory"),
		CacheTTL:           getEnvDuration("CACHE_TTL", 300*time.Second),
		CacheKeyWindow:     getEnvDuration("CACHE_KEY_WINDOW", 60*time.Second),
		CacheMemorySize:    getEnvInt("CACHE_MEMORY_SIZE", 1024),
		CachePurgeInterval: getEnvDuration("CACHE_PURGE_INTERVAL", 30*time.Minute),
		S3Bucket:           getEnv("S3_BUCKET", "formgate-cache"),
		S3Region:           getEnv("AWS_REGION", "us-east-1"),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		S3AccessKey:        getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:        getEnv("AWS_SECRET_ACCESS_KEY", ""),
		OnadataBaseURL:     strings.TrimRight(getEnv("ONADATA_BASE_URL", "https://api.ona.io"), "/"),
		OnadataToken:       getEnv("ONADATA_TOKEN", ""),
		OnadataTimeout:     getEnvDuration("ONADATA_TIMEOUT", 30*time.Second),
		RateLimit:          getEnvInt("RATE_LIMIT", 100),
		RateLimitWindow:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first configuration problem that would prevent startup.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("missing required environment variable: JWT_SECRET")
	}

	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.CacheBackend {
	case "memory", "database":
	case "s3":
		if c.S3AccessKey == "" || c.S3SecretKey == "" || c.S3Endpoint == "" {
			return fmt.Errorf("AWS credentials and S3_ENDPOINT must be provided for the s3 cache backend")
		}
	default:
		return fmt.Errorf("unsupported CACHE_BACKEND %q", c.CacheBackend)
	}

	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.CachePurgeInterval <= 0 {
		return fmt.Errorf("CACHE_PURGE_INTERVAL must be positive")
	}
	if c.CacheKeyWindow < 0 {
		return fmt.Errorf("CACHE_KEY_WINDOW must not be negative")
	}
	if c.RateLimit <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT and RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
