package main

import (
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/unitledger/internal/config"
	"github.com/MarkoPoloResearchLab/unitledger/pkg/ledger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagEnvFile               = "env-file"
	flagDatabaseURL           = "database-url"
	flagStore                 = "store"
	flagAutoMigrate           = "auto-migrate"
	flagHTTPListenAddr        = "http-listen-addr"
	flagGRPCListenAddr        = "grpc-listen-addr"
	flagAllowedOrigins        = "allowed-origins"
	flagJWTSigningKey         = "jwt-signing-key"
	flagJWTIssuer             = "jwt-issuer"
	flagJWTCookieName         = "jwt-cookie-name"
	flagWebhookSecret         = "webhook-secret"
	flagMinimumWithdrawal     = "minimum-withdrawal"
	flagOperationsPhone       = "operations-phone"
	flagRedisAddr             = "redis-addr"
	flagRedisPassword         = "redis-password"
	flagRedisDB               = "redis-db"
	flagLockTTL               = "lock-ttl"
	flagLockWait              = "lock-wait"
	flagNATSURL               = "nats-url"
	flagNotificationSubject   = "notification-subject"
	flagEventSubjectPrefix    = "event-subject-prefix"
	flagNotificationWorkers   = "notification-workers"
	flagNotificationQueueSize = "notification-queue-size"
	flagLogLevel              = "log-level"
	flagRequestTimeout        = "request-timeout"
	flagShutdownTimeout       = "shutdown-timeout"
	envPrefix                 = "UNITLEDGER"
)

var serveFlags = []string{
	flagDatabaseURL, flagStore, flagAutoMigrate, flagHTTPListenAddr, flagGRPCListenAddr, flagAllowedOrigins,
	flagJWTSigningKey, flagJWTIssuer, flagJWTCookieName, flagWebhookSecret, flagMinimumWithdrawal,
	flagOperationsPhone, flagRedisAddr, flagRedisPassword, flagRedisDB, flagLockTTL, flagLockWait, flagNATSURL,
	flagNotificationSubject, flagEventSubjectPrefix, flagNotificationWorkers, flagNotificationQueueSize,
	flagLogLevel, flagRequestTimeout, flagShutdownTimeout,
}

func registerFlags(cmd *cobra.Command) {
	persistent := cmd.PersistentFlags()
	persistent.String(flagEnvFile, "", "dotenv file to load before reading the environment (default .env when present)")
	persistent.String(flagDatabaseURL, "", "database url: postgres://, sqlite:// or a sqlite file path")

	flags := cmd.Flags()
	flags.String(flagStore, "", "store implementation: gorm or pgx")
	flags.Bool(flagAutoMigrate, false, "apply PostgreSQL migrations before serving")
	flags.String(flagHTTPListenAddr, "", "HTTP listen address")
	flags.String(flagGRPCListenAddr, "", "gRPC listen address")
	flags.String(flagAllowedOrigins, "", "comma-separated list of allowed CORS origins")
	flags.String(flagJWTSigningKey, "", "TAuth session signing key (required)")
	flags.String(flagJWTIssuer, "", "expected session issuer")
	flags.String(flagJWTCookieName, "", "session cookie name")
	flags.String(flagWebhookSecret, "", "shared secret expected in the verif-hash webhook header")
	flags.String(flagMinimumWithdrawal, "", "smallest withdrawal in units, e.g. 5000")
	flags.String(flagOperationsPhone, "", "phone notified about new withdrawal requests")
	flags.String(flagRedisAddr, "", "redis address for cross-instance account locks")
	flags.String(flagRedisPassword, "", "redis password")
	flags.Int(flagRedisDB, 0, "redis database number")
	flags.Duration(flagLockTTL, 0, "account lock expiry")
	flags.Duration(flagLockWait, 0, "maximum wait for an account lock")
	flags.String(flagNATSURL, "", "NATS url for notifications and ledger events")
	flags.String(flagNotificationSubject, "", "NATS subject for SMS notifications")
	flags.String(flagEventSubjectPrefix, "", "NATS subject prefix for committed ledger events")
	flags.Int(flagNotificationWorkers, 0, "notification worker count")
	flags.Int(flagNotificationQueueSize, 0, "notification queue capacity")
	flags.String(flagLogLevel, "", "log level: debug, info, warn, error")
	flags.Duration(flagRequestTimeout, 0, "per-request timeout")
	flags.Duration(flagShutdownTimeout, 0, "graceful shutdown timeout")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// loadEnvFile loads path, or .env when path is empty and the file exists.
// Variables already present in the environment win.
func loadEnvFile(path string) error {
	if path == "" {
		_ = godotenv.Load()
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func loadConfig(cmd *cobra.Command, cfg *config.Config) error {
	if err := loadEnvFile(flagString(cmd, flagEnvFile)); err != nil {
		return err
	}
	v := newViper()
	for _, flagName := range serveFlags {
		if err := v.BindPFlag(flagName, cmd.Flag(flagName)); err != nil {
			return err
		}
	}

	var minimumWithdrawal int64
	if raw := strings.TrimSpace(v.GetString(flagMinimumWithdrawal)); raw != "" {
		amount, err := ledger.ParseAmount(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", flagMinimumWithdrawal, err)
		}
		minimumWithdrawal = amount.Int64()
	}

	*cfg = config.Config{
		DatabaseURL:            v.GetString(flagDatabaseURL),
		Store:                  v.GetString(flagStore),
		AutoMigrate:            v.GetBool(flagAutoMigrate),
		HTTPListenAddr:         v.GetString(flagHTTPListenAddr),
		GRPCListenAddr:         v.GetString(flagGRPCListenAddr),
		AllowedOrigins:         config.ParseAllowedOrigins(v.GetString(flagAllowedOrigins)),
		SessionSigningKey:      v.GetString(flagJWTSigningKey),
		SessionIssuer:          v.GetString(flagJWTIssuer),
		SessionCookieName:      v.GetString(flagJWTCookieName),
		WebhookSecret:          v.GetString(flagWebhookSecret),
		MinimumWithdrawalCents: minimumWithdrawal,
		OperationsPhone:        v.GetString(flagOperationsPhone),
		RedisAddr:              v.GetString(flagRedisAddr),
		RedisPassword:          v.GetString(flagRedisPassword),
		RedisDB:                v.GetInt(flagRedisDB),
		LockTTL:                v.GetDuration(flagLockTTL),
		LockWait:               v.GetDuration(flagLockWait),
		NATSURL:                v.GetString(flagNATSURL),
		NotificationSubject:    v.GetString(flagNotificationSubject),
		EventSubjectPrefix:     v.GetString(flagEventSubjectPrefix),
		NotificationWorkers:    v.GetInt(flagNotificationWorkers),
		NotificationQueueSize:  v.GetInt(flagNotificationQueueSize),
		LogLevel:               v.GetString(flagLogLevel),
		RequestTimeout:         v.GetDuration(flagRequestTimeout),
		ShutdownTimeout:        v.GetDuration(flagShutdownTimeout),
	}
	return cfg.Validate()
}

func flagString(cmd *cobra.Command, name string) string {
	flag := cmd.Flag(name)
	if flag == nil {
		return ""
	}
	return flag.Value.String()
}
