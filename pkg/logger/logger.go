// Package logger wraps log/slog with redaction and context helpers.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger.
type Logger struct {
	*slog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level  string
	Format string
	Output io.Writer
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Output: os.Stdout,
	}
}

// New creates a new Logger instance.
func New(cfg Config) *Logger {
	level := parseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   level == slog.LevelDebug,
		ReplaceAttr: sanitizeAttr,
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// sensitiveKeys are attribute keys whose values are masked in logs.
var sensitiveKeys = map[string]bool{
	"password":          true,
	"passwd":            true,
	"secret":            true,
	"token":             true,
	"authorization":     true,
	"bearer":            true,
	"api_key":           true,
	"apikey":            true,
	"access_token":      true,
	"refresh_token":     true,
	"jwt":               true,
	"cookie":            true,
	"session":           true,
	"session_id":        true,
	"client_secret":     true,
	"connection_string": true,
	"dsn":               true,
	"database_url":      true,
	"db_password":       true,
	"redis_password":    true,
	"smtp_password":     true,
	"secret_ref":        true,
	"signing_key":       true,
	"encryption_key":    true,
	"credential":        true,
	"credentials":       true,
	"hash":              true,
	"salt":              true,
}

// sanitizeAttr masks sensitive values in log attributes.
func sanitizeAttr(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)

	if sensitiveKeys[key] {
		return slog.String(a.Key, "[REDACTED]")
	}

	// Catch composite keys like "jwt_secret" or "user_password".
	for sensitive := range sensitiveKeys {
		if strings.Contains(key, sensitive) {
			return slog.String(a.Key, "[REDACTED]")
		}
	}

	return a
}

// NewDefault creates a Logger with default configuration.
func NewDefault() *Logger {
	return New(DefaultConfig())
}

// NewDevelopment creates a logger configured for development.
func NewDevelopment() *Logger {
	return New(Config{
		Level:  "debug",
		Format: "text",
		Output: os.Stdout,
	})
}

// NewProduction creates a logger configured for production.
func NewProduction() *Logger {
	return New(Config{
		Level:  "info",
		Format: "json",
		Output: os.Stdout,
	})
}

// NewNop creates a no-op logger that discards all output.
func NewNop() *Logger {
	return New(Config{
		Level:  "error",
		Format: "json",
		Output: io.Discard,
	})
}

// With returns a new Logger with the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithError returns a new Logger with the error attribute.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.Logger.With(slog.Any("error", err))}
}

// ContextKey types request-scoped values shared with middleware.
type ContextKey string

const (
	ContextKeyRequestID ContextKey = "request_id"
	ContextKeyUserID    ContextKey = "user_id"
)

// WithContext returns a Logger annotated with known context values.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	logger := l.Logger

	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok && requestID != "" {
		logger = logger.With(slog.String("request_id", requestID))
	}
	if userID, ok := ctx.Value(ContextKeyUserID).(string); ok && userID != "" {
		logger = logger.With(slog.String("user_id", userID))
	}

	return &Logger{Logger: logger}
}

// SetDefault installs this logger as the default slog logger.
func (l *Logger) SetDefault() {
	slog.SetDefault(l.Logger)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
