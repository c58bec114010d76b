// Package config loads server settings from the environment.
//
// Values come from, in increasing priority: built-in defaults, a .env file
// in the working directory (if present), and real environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Session SessionConfig `mapstructure:"session"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Upload  UploadConfig  `mapstructure:"upload"`
	MinIO   MinIOConfig   `mapstructure:"minio"`
	Log     LogConfig     `mapstructure:"log"`
	Admin   AdminConfig   `mapstructure:"admin"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig picks the repository backend: "sqlite" or "memory".
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	DBPath string `mapstructure:"db_path"`
}

type SessionConfig struct {
	Secret       string        `mapstructure:"secret"`
	TTL          time.Duration `mapstructure:"ttl"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

// RedisConfig is optional. With an empty Addr sessions stay in the main store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// UploadConfig picks where uploads go ("disk" or "minio"). An empty
// ClamdAddr disables malware scanning.
type UploadConfig struct {
	Driver    string `mapstructure:"driver"`
	Dir       string `mapstructure:"dir"`
	BaseURL   string `mapstructure:"base_url"`
	MaxBytes  int64  `mapstructure:"max_bytes"`
	ClamdAddr string `mapstructure:"clamd_addr"`
}

type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	PublicURL       string `mapstructure:"public_url"`
}

// LogConfig controls slog output. A non-empty File also writes rotated
// logs there.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// AdminConfig bootstraps the first administrator. Empty Username skips it.
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads .env (if it exists) and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return fromEnv()
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func fromEnv() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("config: bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	cfg.Upload.Driver = strings.ToLower(strings.TrimSpace(cfg.Upload.Driver))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.db_path", "data/memorial.db")
	v.SetDefault("session.ttl", 7*24*time.Hour)
	v.SetDefault("session.cookie_secure", false)
	v.SetDefault("redis.db", 0)
	v.SetDefault("upload.driver", "disk")
	v.SetDefault("upload.dir", "data/uploads")
	v.SetDefault("upload.base_url", "/uploads")
	v.SetDefault("upload.max_bytes", 10<<20)
	v.SetDefault("minio.bucket", "memorial")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("admin.name", "Administrator")
	v.SetDefault("metrics.enabled", true)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"server.port":             "PORT",
		"server.shutdown_timeout": "SHUTDOWN_TIMEOUT",
		"storage.driver":          "STORAGE_DRIVER",
		"storage.db_path":         "DB_PATH",
		"session.secret":          "SESSION_SECRET",
		"session.ttl":             "SESSION_TTL",
		"session.cookie_secure":   "COOKIE_SECURE",
		"redis.addr":              "REDIS_ADDR",
		"redis.password":          "REDIS_PASSWORD",
		"redis.db":                "REDIS_DB",
		"upload.driver":           "UPLOAD_DRIVER",
		"upload.dir":              "UPLOAD_DIR",
		"upload.base_url":         "UPLOAD_BASE_URL",
		"upload.max_bytes":        "UPLOAD_MAX_BYTES",
		"upload.clamd_addr":       "CLAMD_ADDR",
		"minio.endpoint":          "MINIO_ENDPOINT",
		"minio.access_key_id":     "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key": "MINIO_SECRET_ACCESS_KEY",
		"minio.bucket":            "MINIO_BUCKET",
		"minio.region":            "MINIO_REGION",
		"minio.use_ssl":           "MINIO_USE_SSL",
		"minio.public_url":        "MINIO_PUBLIC_URL",
		"log.level":               "LOG_LEVEL",
		"log.format":              "LOG_FORMAT",
		"log.file":                "LOG_FILE",
		"log.max_size_mb":         "LOG_MAX_SIZE_MB",
		"log.max_backups":         "LOG_MAX_BACKUPS",
		"log.max_age_days":        "LOG_MAX_AGE_DAYS",
		"admin.username":          "ADMIN_USERNAME",
		"admin.password":          "ADMIN_PASSWORD",
		"admin.name":              "ADMIN_NAME",
		"metrics.enabled":         "METRICS_ENABLED",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}
	return nil
}

func validate(cfg Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New("PORT must be between 1 and 65535")
	}
	if len(cfg.Session.Secret) < 16 {
		return errors.New("SESSION_SECRET must be at least 16 characters")
	}
	if cfg.Session.TTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}

	switch cfg.Storage.Driver {
	case "sqlite":
		if cfg.Storage.DBPath == "" {
			return errors.New("DB_PATH is required for the sqlite driver")
		}
	case "memory":
	default:
		return fmt.Errorf("STORAGE_DRIVER %q must be sqlite or memory", cfg.Storage.Driver)
	}

	switch cfg.Upload.Driver {
	case "disk":
		if cfg.Upload.Dir == "" {
			return errors.New("UPLOAD_DIR is required for the disk driver")
		}
	case "minio":
		if cfg.MinIO.Endpoint == "" {
			return errors.New("MINIO_ENDPOINT is required for the minio driver")
		}
		if cfg.MinIO.AccessKeyID == "" || cfg.MinIO.SecretAccessKey == "" {
			return errors.New("MINIO_ACCESS_KEY_ID and MINIO_SECRET_ACCESS_KEY are required for the minio driver")
		}
		if cfg.MinIO.Bucket == "" {
			return errors.New("MINIO_BUCKET is required for the minio driver")
		}
	default:
		return fmt.Errorf("UPLOAD_DRIVER %q must be disk or minio", cfg.Upload.Driver)
	}
	if cfg.Upload.MaxBytes <= 0 {
		return errors.New("UPLOAD_MAX_BYTES must be positive")
	}

	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("LOG_FORMAT %q must be text or json", cfg.Log.Format)
	}

	if cfg.Admin.Username != "" && cfg.Admin.Password == "" {
		return errors.New("ADMIN_PASSWORD is required when ADMIN_USERNAME is set")
	}
	return nil
}
