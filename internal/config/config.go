// Package config loads application configuration from the environment,
// with an optional flat YAML file supplying fallback values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvProduction is the production environment name.
const EnvProduction = "production"

// Config holds all application configuration.
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Auth      AuthConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	SMTP      SMTPConfig
	Jobs      JobsConfig
	Audit     AuditConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name  string
	Env   string
	Debug bool
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxBodySize     int64
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds Postgres configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the Postgres connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Addr returns the Redis address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level              string
	Format             string
	SlowRequestSeconds int
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	JWTSecret           string
	JWTIssuer           string
	AccessTokenDuration time.Duration

	PasswordMinLength      int
	PasswordRequireUpper   bool
	PasswordRequireLower   bool
	PasswordRequireNumber  bool
	PasswordRequireSpecial bool
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled         bool
	RequestsPerSec  float64
	Burst           int
	CleanupInterval time.Duration
}

// SMTPConfig holds SMTP configuration for outgoing email.
type SMTPConfig struct {
	Enabled    bool
	Host       string
	Port       int
	User       string
	Password   string
	From       string
	FromName   string
	TLS        bool
	SkipVerify bool
	BaseURL    string
	Timeout    time.Duration
}

// IsConfigured returns true if SMTP is usable.
func (c *SMTPConfig) IsConfigured() bool {
	return c.Enabled && c.Host != "" && c.Port > 0 && c.From != ""
}

// JobsConfig holds background job worker configuration.
type JobsConfig struct {
	Concurrency int
}

// AuditConfig holds audit log retention configuration.
type AuditConfig struct {
	RetentionDays int
}

// fileValues holds fallback values loaded from the optional YAML file
// named by CONFIG_FILE. Environment variables always win.
var fileValues map[string]string

// Load builds the configuration from the environment.
func Load() (*Config, error) {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name:  getEnv("APP_NAME", "connecthub"),
			Env:   getEnv("APP_ENV", "development"),
			Debug: getEnvBool("APP_DEBUG", false),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			RequestTimeout:  getEnvDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxBodySize:     getEnvInt64("SERVER_MAX_BODY_SIZE", 10<<20), // imports can be large
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "connecthub"),
			Password:        getEnv("DB_PASSWORD", "secret"),
			Name:            getEnv("DB_NAME", "connecthub"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Log: LogConfig{
			Level:              getEnv("LOG_LEVEL", "info"),
			Format:             getEnv("LOG_FORMAT", "json"),
			SlowRequestSeconds: getEnvInt("LOG_SLOW_REQUEST_SECONDS", 5),
		},
		Auth: AuthConfig{
			JWTSecret:              getEnv("AUTH_JWT_SECRET", ""),
			JWTIssuer:              getEnv("AUTH_JWT_ISSUER", "connecthub"),
			AccessTokenDuration:    getEnvDuration("AUTH_ACCESS_TOKEN_DURATION", 15*time.Minute),
			PasswordMinLength:      getEnvInt("AUTH_PASSWORD_MIN_LENGTH", 8),
			PasswordRequireUpper:   getEnvBool("AUTH_PASSWORD_REQUIRE_UPPERCASE", true),
			PasswordRequireLower:   getEnvBool("AUTH_PASSWORD_REQUIRE_LOWERCASE", true),
			PasswordRequireNumber:  getEnvBool("AUTH_PASSWORD_REQUIRE_NUMBER", true),
			PasswordRequireSpecial: getEnvBool("AUTH_PASSWORD_REQUIRE_SPECIAL", false),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}),
			AllowedHeaders: getEnvSlice("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"}),
			MaxAge:         getEnvInt("CORS_MAX_AGE", 86400),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerSec:  getEnvFloat("RATE_LIMIT_RPS", 100),
			Burst:           getEnvInt("RATE_LIMIT_BURST", 200),
			CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP", 1*time.Minute),
		},
		SMTP: SMTPConfig{
			Enabled:    getEnvBool("SMTP_ENABLED", false),
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvInt("SMTP_PORT", 587),
			User:       getEnv("SMTP_USER", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			From:       getEnv("SMTP_FROM", ""),
			FromName:   getEnv("SMTP_FROM_NAME", "ConnectHub"),
			TLS:        getEnvBool("SMTP_TLS", true),
			SkipVerify: getEnvBool("SMTP_SKIP_VERIFY", false),
			BaseURL:    getEnv("SMTP_BASE_URL", "http://localhost:3000"),
			Timeout:    getEnvDuration("SMTP_TIMEOUT", 30*time.Second),
		},
		Jobs: JobsConfig{
			Concurrency: getEnvInt("JOBS_CONCURRENCY", 10),
		},
		Audit: AuditConfig{
			RetentionDays: getEnvInt("AUDIT_RETENTION_DAYS", 90),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile reads a flat YAML file of KEY: value pairs used as fallbacks
// for unset environment variables.
func loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	values := make(map[string]string)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	fileValues = values
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 characters")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("invalid LOG_LEVEL: %s (must be debug, info, warn, or error)", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
	default:
		return fmt.Errorf("invalid LOG_FORMAT: %s (must be json or text)", c.Log.Format)
	}

	if c.IsProduction() && c.CORS.AllowedOrigins[0] == "*" {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS must not be a wildcard in production")
	}

	return nil
}

// IsProduction reports whether the app runs in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}

func lookup(key string) (string, bool) {
	if value, ok := os.LookupEnv(key); ok {
		return value, true
	}
	if value, ok := fileValues[key]; ok {
		return value, true
	}
	return "", false
}

func getEnv(key, defaultValue string) string {
	if value, ok := lookup(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, ok := lookup(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, ok := lookup(key); ok {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, ok := lookup(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, ok := lookup(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := lookup(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value, ok := lookup(key); ok && value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
