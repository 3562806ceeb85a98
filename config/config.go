package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// FileEnv names the optional YAML file layered between defaults and env.
const FileEnv = "TOURNEY_CONFIG"

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string `koanf:"database_url"`
	JWTSecretKey string `koanf:"jwt_secret_key"`
	ServerPort   int    `koanf:"server_port"`
	LogLevel     string `koanf:"log_level"`
	// Store selects the repositories: postgres, or memory for demos.
	Store string `koanf:"store"`

	TxTimeout       time.Duration `koanf:"tx_timeout"`
	TxMaxRetries    int           `koanf:"tx_max_retries"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	NotifyRedisURL     string `koanf:"notify_redis_url"`
	NotifyRedisChannel string `koanf:"notify_redis_channel"`
	// Comma-separated.
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`

	// Results archive (Cloudflare R2 or any S3-compatible bucket).
	R2AccountID       string `koanf:"r2_account_id"`
	R2Endpoint        string `koanf:"r2_endpoint"`
	R2Region          string `koanf:"r2_region"`
	R2AccessKeyID     string `koanf:"r2_access_key_id"`
	R2SecretAccessKey string `koanf:"r2_secret_access_key"`
	R2BucketName      string `koanf:"r2_bucket_name"`
	R2PublicBaseURL   string `koanf:"r2_public_base_url"`
	ArchivePrefix     string `koanf:"archive_prefix"`
}

func Default() *Config {
	return &Config{
		ServerPort:         8080,
		LogLevel:           "info",
		Store:              StorePostgres,
		TxTimeout:          5 * time.Second,
		TxMaxRetries:       3,
		ShutdownTimeout:    10 * time.Second,
		NotifyRedisChannel: "tournament-events",
		CORSAllowedOrigins: "*",
		ArchivePrefix:      "results",
	}
}

// Load собирает конфигурацию: значения по умолчанию, затем YAML из
// TOURNEY_CONFIG (если задан), затем переменные окружения. Опционально
// подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Ошибку отсутствия .env не считаем фатальной.
	_ = godotenv.Load()

	k := koanf.New(".")
	if path := os.Getenv(FileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}
	// DATABASE_URL -> database_url
	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("%w: environment: %w", ErrLoadConfig, err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL is not set", ErrInvalidConfig)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}
	if c.JWTSecretKey == "" {
		return fmt.Errorf("%w: JWT_SECRET_KEY is not set", ErrInvalidConfig)
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("%w: SERVER_PORT must be between 1 and 65535, got %d", ErrInvalidConfig, c.ServerPort)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.TxTimeout <= 0 {
		return fmt.Errorf("%w: TX_TIMEOUT must be positive", ErrInvalidConfig)
	}
	if c.TxMaxRetries < 0 {
		return fmt.Errorf("%w: TX_MAX_RETRIES must not be negative", ErrInvalidConfig)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: SHUTDOWN_TIMEOUT must be positive", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: LOG_LEVEL %q", ErrInvalidConfig, c.LogLevel)
	}
	return level, nil
}

func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

// ArchiveEnabled reports whether object storage credentials are configured.
func (c *Config) ArchiveEnabled() bool {
	return c.R2BucketName != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != ""
}
