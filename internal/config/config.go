package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/unitledger/pkg/ledger"
	"go.uber.org/zap/zapcore"
)

const (
	StoreGorm = "gorm"
	StorePgx  = "pgx"

	defaultDatabaseURL         = "sqlite:///tmp/unitledger.db"
	defaultHTTPListenAddr      = ":8080"
	defaultGRPCListenAddr      = ":7000"
	defaultAllowedOrigin       = "http://localhost:8000"
	defaultSessionIssuer       = "tauth"
	defaultSessionCookie       = "app_session"
	defaultLogLevel            = "info"
	defaultRequestTimeout      = 10 * time.Second
	defaultShutdownTimeout     = 5 * time.Second
	defaultLockTTL             = 10 * time.Second
	defaultLockWait            = 5 * time.Second
	defaultNotificationWorkers = 4
	defaultNotificationQueue   = 256
	defaultNotificationSubject = "unitledger.notifications.sms"
	defaultEventSubjectPrefix  = "unitledger.events"
)

// Config aggregates runtime settings for unitledgerd.
type Config struct {
	DatabaseURL            string
	Store                  string
	AutoMigrate            bool
	HTTPListenAddr         string
	GRPCListenAddr         string
	AllowedOrigins         []string
	SessionSigningKey      string
	SessionIssuer          string
	SessionCookieName      string
	WebhookSecret          string
	MinimumWithdrawalCents int64
	OperationsPhone        string
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	LockTTL                time.Duration
	LockWait               time.Duration
	NATSURL                string
	NotificationSubject    string
	EventSubjectPrefix     string
	NotificationWorkers    int
	NotificationQueueSize  int
	LogLevel               string
	RequestTimeout         time.Duration
	ShutdownTimeout        time.Duration
}

// Validate fills defaults and ensures the configuration contains sane values.
func (cfg *Config) Validate() error {
	cfg.DatabaseURL = defaultIfEmpty(cfg.DatabaseURL, defaultDatabaseURL)
	cfg.Store = strings.ToLower(defaultIfEmpty(cfg.Store, StoreGorm))
	cfg.HTTPListenAddr = defaultIfEmpty(cfg.HTTPListenAddr, defaultHTTPListenAddr)
	cfg.GRPCListenAddr = defaultIfEmpty(cfg.GRPCListenAddr, defaultGRPCListenAddr)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	cfg.SessionIssuer = defaultIfEmpty(cfg.SessionIssuer, defaultSessionIssuer)
	cfg.SessionCookieName = defaultIfEmpty(cfg.SessionCookieName, defaultSessionCookie)
	if cfg.MinimumWithdrawalCents == 0 {
		cfg.MinimumWithdrawalCents = int64(ledger.DefaultMinimumWithdrawal)
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = defaultLockWait
	}
	cfg.NotificationSubject = defaultIfEmpty(cfg.NotificationSubject, defaultNotificationSubject)
	cfg.EventSubjectPrefix = defaultIfEmpty(cfg.EventSubjectPrefix, defaultEventSubjectPrefix)
	if cfg.NotificationWorkers <= 0 {
		cfg.NotificationWorkers = defaultNotificationWorkers
	}
	if cfg.NotificationQueueSize <= 0 {
		cfg.NotificationQueueSize = defaultNotificationQueue
	}
	cfg.LogLevel = defaultIfEmpty(cfg.LogLevel, defaultLogLevel)
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.Store != StoreGorm && cfg.Store != StorePgx {
		return fmt.Errorf("store must be %q or %q, got %q", StoreGorm, StorePgx, cfg.Store)
	}
	if cfg.Store == StorePgx && !IsPostgresURL(cfg.DatabaseURL) {
		return fmt.Errorf("store %q requires a postgres database url", StorePgx)
	}
	if len(cfg.SessionSigningKey) == 0 {
		return fmt.Errorf("jwt signing key is required")
	}
	if cfg.MinimumWithdrawalCents < 0 {
		return fmt.Errorf("minimum withdrawal must be positive")
	}
	if cfg.RedisDB < 0 {
		return fmt.Errorf("redis db must not be negative")
	}
	if _, err := cfg.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (cfg *Config) Level() (zapcore.Level, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	return level, nil
}

// MinimumWithdrawal returns the configured minimum as an amount.
func (cfg *Config) MinimumWithdrawal() ledger.AmountCents {
	return ledger.AmountCents(cfg.MinimumWithdrawalCents)
}

// IsPostgresURL reports whether dsn names a PostgreSQL database.
func IsPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
