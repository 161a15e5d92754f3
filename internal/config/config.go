// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
// It is built once by Load and treated as read-only afterwards.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Security  SecurityConfig  `mapstructure:"security"`
	Balance   BalanceConfig   `mapstructure:"balance"`
	Migration MigrationConfig `mapstructure:"migration"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Log       LogConfig       `mapstructure:"log"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token   string `mapstructure:"token"`
	Enabled bool   `mapstructure:"enabled"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// HTTPConfig holds the HTTP API server configuration.
type HTTPConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// SecurityConfig holds signing secrets and token lifetimes.
type SecurityConfig struct {
	SigningSecret string        `mapstructure:"signing_secret"`
	JWTSecret     string        `mapstructure:"jwt_secret"`
	DownloadTTL   time.Duration `mapstructure:"download_ttl"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	OTPTTL        time.Duration `mapstructure:"otp_ttl"`
}

// BalanceConfig holds the defaults materialized for absent balance rows.
type BalanceConfig struct {
	ClaimDefault    int64         `mapstructure:"claim_default"`
	SpinDefault     int64         `mapstructure:"spin_default"`
	MegaspinDefault int64         `mapstructure:"megaspin_default"`
	RollCooldown    time.Duration `mapstructure:"roll_cooldown"`
}

// MigrationConfig holds values consumed by one-time backfills.
type MigrationConfig struct {
	DefaultGroupChatID string `mapstructure:"default_group_chat_id"`
	AutoMigrate        bool   `mapstructure:"auto_migrate"`
}

// StorageConfig selects where card images are read from.
type StorageConfig struct {
	Driver string   `mapstructure:"driver"`
	S3     S3Config `mapstructure:"s3"`
}

// S3Config holds S3-compatible object storage settings.
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AdminConfig holds bot admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// A .env file in the working directory is loaded into the environment first, if present.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. BOT_TOKEN, DATABASE_HOST, SECURITY_SIGNING_SECRET
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees env overrides for keys viper already knows.
	for _, key := range envOnlyKeys {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	var errs []error
	if c.Security.SigningSecret == "" {
		errs = append(errs, errors.New("security.signing_secret is required"))
	}
	if c.Security.JWTSecret == "" {
		errs = append(errs, errors.New("security.jwt_secret is required"))
	}
	if c.Bot.Enabled && c.Bot.Token == "" {
		errs = append(errs, errors.New("bot.token is required when the bot is enabled"))
	}
	switch c.Storage.Driver {
	case "postgres":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			errs = append(errs, errors.New("storage.s3.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	return errors.Join(errs...)
}

// envOnlyKeys have no default and usually come from the environment.
var envOnlyKeys = []string{
	"bot.token",
	"database.password",
	"security.signing_secret",
	"security.jwt_secret",
	"migration.default_group_chat_id",
	"storage.s3.bucket",
	"storage.s3.endpoint",
	"storage.s3.access_key",
	"storage.s3.secret_key",
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.enabled", true)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "gacha")
	v.SetDefault("database.name", "gacha")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.allowed_origins", []string{"https://web.telegram.org"})
	v.SetDefault("http.rate_limit_rps", 10)
	v.SetDefault("http.rate_limit_burst", 20)

	v.SetDefault("security.download_ttl", "5m")
	v.SetDefault("security.session_ttl", "24h")
	v.SetDefault("security.otp_ttl", "5m")

	v.SetDefault("balance.claim_default", 1)
	v.SetDefault("balance.spin_default", 10)
	v.SetDefault("balance.megaspin_default", 0)
	v.SetDefault("balance.roll_cooldown", "24h")

	v.SetDefault("migration.auto_migrate", true)

	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.prefix", "cards")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// IsAdmin reports whether userID may run admin bot commands.
func (c *Config) IsAdmin(userID int64) bool {
	return slices.Contains(c.Admin.IDs, userID)
}

// IsChatAllowed reports whether the bot serves chatID. An empty whitelist allows every chat.
func (c *Config) IsChatAllowed(chatID int64) bool {
	return len(c.Whitelist.Chats) == 0 || slices.Contains(c.Whitelist.Chats, chatID)
}
