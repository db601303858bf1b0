package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Storage       StorageConfig       `mapstructure:"storage"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	AES           AESConfig           `mapstructure:"aes"`
	Log           LogConfig           `mapstructure:"log"`
	Settlement    SettlementConfig    `mapstructure:"settlement"`
	Webhooks      WebhookConfig       `mapstructure:"webhooks"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Payout        PayoutConfig        `mapstructure:"payout"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// StorageConfig selects the ledger store backend: postgres or memory.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// SettlementConfig carries commission policy. Rates are decimal strings
// such as "0.10"; category keys are matched case-insensitively.
type SettlementConfig struct {
	CommissionRate          string            `mapstructure:"commission_rate"`
	CategoryCommissionRates map[string]string `mapstructure:"category_commission_rates"`
	PlatformOwnerID         string            `mapstructure:"platform_owner_id"`
	MaxVersionRetries       int               `mapstructure:"max_version_retries"`
}

type WebhookConfig struct {
	PaymentSecret    string        `mapstructure:"payment_secret"`
	PayoutSecret     string        `mapstructure:"payout_secret"`
	SweepGrace       time.Duration `mapstructure:"sweep_grace"`
	MaxApplyAttempts int           `mapstructure:"max_apply_attempts"`
	DedupCacheTTL    time.Duration `mapstructure:"dedup_cache_ttl"`
}

type GatewayConfig struct {
	Driver         string        `mapstructure:"driver"` // http, sandbox
	BaseURL        string        `mapstructure:"base_url"`
	KeyID          string        `mapstructure:"key_id"`
	KeySecret      string        `mapstructure:"key_secret"`
	Currency       string        `mapstructure:"currency"`
	PayoutMode     string        `mapstructure:"payout_mode"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

type PayoutConfig struct {
	ReconcileAfter     time.Duration `mapstructure:"reconcile_after"`
	HoldReleaseTimeout time.Duration `mapstructure:"hold_release_timeout"`
}

type WorkerConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	LockKey   string        `mapstructure:"lock_key"`
	LockTTL   time.Duration `mapstructure:"lock_ttl"`
	Embedded  bool          `mapstructure:"embedded"`
	BatchSize int           `mapstructure:"batch_size"`
}

type NotificationsConfig struct {
	Driver       string `mapstructure:"driver"` // log, http, pubsub
	URL          string `mapstructure:"url"`
	Secret       string `mapstructure:"secret"`
	GCPProjectID string `mapstructure:"gcp_project_id"`
	Topic        string `mapstructure:"topic"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: MKS_ (MarKetplace Settlement).
// Nested keys use underscore: MKS_DATABASE_HOST, MKS_WEBHOOKS_PAYMENT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "marketplace_settlement")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "marketplace-auth")
	v.SetDefault("aes.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("settlement.commission_rate", "0.10")
	v.SetDefault("settlement.platform_owner_id", "00000000-0000-0000-0000-000000000001")
	v.SetDefault("settlement.max_version_retries", 5)
	v.SetDefault("webhooks.sweep_grace", "2m")
	v.SetDefault("webhooks.max_apply_attempts", 10)
	v.SetDefault("webhooks.dedup_cache_ttl", "24h")
	v.SetDefault("gateway.driver", "sandbox")
	v.SetDefault("gateway.currency", "INR")
	v.SetDefault("gateway.payout_mode", "IMPS")
	v.SetDefault("gateway.request_timeout", "5s")
	v.SetDefault("gateway.max_retries", 2)
	v.SetDefault("payout.reconcile_after", "30m")
	v.SetDefault("payout.hold_release_timeout", "168h")
	v.SetDefault("worker.interval", "1m")
	v.SetDefault("worker.lock_key", "settlement:worker:lock")
	v.SetDefault("worker.lock_ttl", "5m")
	v.SetDefault("worker.embedded", false)
	v.SetDefault("worker.batch_size", 100)
	v.SetDefault("notifications.driver", "log")
	v.SetDefault("notifications.topic", "settlement-events")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: MKS_DATABASE_HOST -> database.host
	v.SetEnvPrefix("MKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Settlement.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that every commission rate parses and lies in [0, 1).
func (s SettlementConfig) Validate() error {
	_, _, err := s.Rates()
	return err
}

// ParseRate parses a decimal commission rate.
func ParseRate(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid rate %q: %w", raw, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, errors.New("rate must be in [0, 1)")
	}
	return rate, nil
}

// Rates parses the global and per-category commission rates.
func (s SettlementConfig) Rates() (decimal.Decimal, map[string]decimal.Decimal, error) {
	global, err := ParseRate(s.CommissionRate)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("settlement.commission_rate: %w", err)
	}
	overrides := make(map[string]decimal.Decimal, len(s.CategoryCommissionRates))
	for category, raw := range s.CategoryCommissionRates {
		rate, err := ParseRate(raw)
		if err != nil {
			return decimal.Zero, nil, fmt.Errorf("settlement.category_commission_rates[%s]: %w", category, err)
		}
		overrides[category] = rate
	}
	return global, overrides, nil
}
