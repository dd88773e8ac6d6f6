package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvBotToken     = "BOT_TOKEN"
	EnvVaultKey     = "VAULT_KEY"
	EnvJWTSecret    = "JWT_SECRET"
	EnvJWTExpiry    = "JWT_EXPIRY"
	EnvAdminUser    = "ADMIN_USERNAME"
	EnvAdminPass    = "ADMIN_PASSWORD"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// ErrMissingBotToken indicates no bot token is configured.
var ErrMissingBotToken = errors.New("missing bot token (set `bot.token` in config file or env BOT_TOKEN)")

// ErrMissingVaultKey indicates no vault key is configured.
var ErrMissingVaultKey = errors.New("missing vault key (set `vault.key` in config file or env VAULT_KEY)")

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// LoadBotToken reads the chat transport token from env or the config file.
func LoadBotToken(configPath string) (string, error) {
	if token := strings.TrimSpace(os.Getenv(EnvBotToken)); token != "" {
		return token, nil
	}

	// fileConfig maps the YAML fields needed for the bot transport.
	type fileConfig struct {
		Bot struct {
			Token string `yaml:"token"`
		} `yaml:"bot"`
	}

	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		return "", fmt.Errorf("read config file: %w", errRead)
	}
	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}
	if token := strings.TrimSpace(cfg.Bot.Token); token != "" {
		return token, nil
	}
	return "", ErrMissingBotToken
}

// LoadVaultKey reads the vault secret from env or the config file.
func LoadVaultKey(configPath string) (string, error) {
	if key := strings.TrimSpace(os.Getenv(EnvVaultKey)); key != "" {
		return key, nil
	}

	// fileConfig maps the YAML fields needed for the vault.
	type fileConfig struct {
		Vault struct {
			Key string `yaml:"key"`
		} `yaml:"vault"`
	}

	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		return "", fmt.Errorf("read config file: %w", errRead)
	}
	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}
	if key := strings.TrimSpace(cfg.Vault.Key); key != "" {
		return key, nil
	}
	return "", ErrMissingVaultKey
}

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 30 * 24 * time.Hour

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings.
	type fileConfig struct {
		JWT JWTConfig `yaml:"jwt"`
	}

	result := JWTConfig{Expiry: defaultJWTExpiry}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.JWT
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}

// AdminBootstrap holds the explicit operator registration applied at startup.
type AdminBootstrap struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LoadAdminBootstrap loads the operator bootstrap credentials. An empty
// result means no operator is registered this run.
func LoadAdminBootstrap(configPath string) (AdminBootstrap, error) {
	// fileConfig maps the YAML fields needed for operator bootstrap.
	type fileConfig struct {
		Admin AdminBootstrap `yaml:"admin"`
	}

	var result AdminBootstrap

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.Admin
		}
	}

	if user := strings.TrimSpace(os.Getenv(EnvAdminUser)); user != "" {
		result.Username = user
	}
	if pass := strings.TrimSpace(os.Getenv(EnvAdminPass)); pass != "" {
		result.Password = pass
	}
	result.Username = strings.TrimSpace(result.Username)
	return result, nil
}

// Defaults for service settings when the config omits them.
const (
	DefaultStandardQuota    = 3
	DefaultPremiumQuota     = 10
	DefaultBulkMaxCount     = 20
	DefaultBulkItemDelay    = 5 * time.Second
	DefaultUserCmdPerSecond = 1
	DefaultAdminListen      = ":8318"
)

// ServiceConfig holds the core behavioral settings.
type ServiceConfig struct {
	Quotas struct {
		Standard int `yaml:"standard"` // Max active accounts for standard users.
		Premium  int `yaml:"premium"`  // Max active accounts for premium users.
	} `yaml:"quotas"`

	Bulk struct {
		MaxCount     int           `yaml:"max-count"`  // Upper bound for one bulk run.
		ItemDelayRaw string        `yaml:"item-delay"` // Pause between remote creations, e.g. "5s".
		ItemDelay    time.Duration `yaml:"-"`          // Parsed from ItemDelayRaw.
	} `yaml:"bulk"`

	RateLimit struct {
		PerUserPerSecond int    `yaml:"per-user-per-second"` // Inbound command budget per user.
		RedisAddr        string `yaml:"redis-addr"`
		RedisPassword    string `yaml:"redis-password"`
		RedisDB          int    `yaml:"redis-db"`
		RedisPrefix      string `yaml:"redis-prefix"`
	} `yaml:"rate-limit"`

	Automation struct {
		Endpoint string `yaml:"endpoint"` // Sidecar automation service base URL.
	} `yaml:"automation"`

	Admin struct {
		Listen string `yaml:"listen"` // Admin API listen address, e.g. ":8318".
	} `yaml:"admin"`
}

// LoadServiceConfig loads service settings from the YAML config file,
// applying defaults for anything missing or out of range.
func LoadServiceConfig(configPath string) (ServiceConfig, error) {
	// fileConfig maps the YAML fields needed for service settings.
	type fileConfig struct {
		Service ServiceConfig `yaml:"service"`
	}

	var result ServiceConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return result, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
		result = cfg.Service
	}

	if result.Quotas.Standard <= 0 {
		result.Quotas.Standard = DefaultStandardQuota
	}
	if result.Quotas.Premium <= 0 {
		result.Quotas.Premium = DefaultPremiumQuota
	}
	if result.Bulk.MaxCount <= 0 {
		result.Bulk.MaxCount = DefaultBulkMaxCount
	}
	if raw := strings.TrimSpace(result.Bulk.ItemDelayRaw); raw != "" {
		if delay, errParse := time.ParseDuration(raw); errParse == nil && delay > 0 {
			result.Bulk.ItemDelay = delay
		}
	}
	if result.Bulk.ItemDelay <= 0 {
		result.Bulk.ItemDelay = DefaultBulkItemDelay
	}
	if result.RateLimit.PerUserPerSecond <= 0 {
		result.RateLimit.PerUserPerSecond = DefaultUserCmdPerSecond
	}
	result.RateLimit.RedisAddr = strings.TrimSpace(result.RateLimit.RedisAddr)
	result.Automation.Endpoint = strings.TrimSpace(result.Automation.Endpoint)
	result.Admin.Listen = strings.TrimSpace(result.Admin.Listen)
	if result.Admin.Listen == "" {
		result.Admin.Listen = DefaultAdminListen
	}
	return result, nil
}
