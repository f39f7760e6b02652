package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Session   SessionConfig   `mapstructure:"session"`
	Uploads   UploadsConfig   `mapstructure:"uploads"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Login     LoginConfig     `mapstructure:"login"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
	ClamdAddr string          `mapstructure:"clamd_addr"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// SessionConfig 会话 Cookie 的签名密钥与有效期。
type SessionConfig struct {
	Secret   string `mapstructure:"secret"`
	TTLHours int    `mapstructure:"ttl_hours"`
}

// UploadsConfig controls where uploaded files live.
// Backend is either "local" (filesystem tree under Dir) or "minio".
type UploadsConfig struct {
	Backend     string `mapstructure:"backend"`
	Dir         string `mapstructure:"dir"`
	MaxUploadMB int    `mapstructure:"max_upload_mb"`
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Bucket          string `mapstructure:"bucket"`
}

// LoginConfig 登录限流与锁定阈值。
type LoginConfig struct {
	RateLimitPerHour int `mapstructure:"rate_limit_per_hour"`
	LockThreshold    int `mapstructure:"lock_threshold"`
	LockTTLMinutes   int `mapstructure:"lock_ttl_minutes"`
}

// BootstrapConfig holds the default main-admin credentials created on first startup.
type BootstrapConfig struct {
	AdminUsername string `mapstructure:"admin_username"`
	AdminPassword string `mapstructure:"admin_password"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// TTL returns the session lifetime as a duration.
func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLHours) * time.Hour
}

// LockTTL returns the login lockout window as a duration.
func (l LoginConfig) LockTTL() time.Duration {
	return time.Duration(l.LockTTLMinutes) * time.Minute
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "dalildocs")
	v.SetDefault("database.user", "dalildocs")
	v.SetDefault("database.password", "dalildocs")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("session.secret", "change-this-in-production")
	v.SetDefault("session.ttl_hours", 24*30)
	v.SetDefault("uploads.backend", "local")
	v.SetDefault("uploads.dir", "uploads")
	v.SetDefault("uploads.max_upload_mb", 50)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "dalildocs")
	v.SetDefault("login.rate_limit_per_hour", 10)
	v.SetDefault("login.lock_threshold", 5)
	v.SetDefault("login.lock_ttl_minutes", 15)
	v.SetDefault("bootstrap.admin_username", "admin")
	v.SetDefault("bootstrap.admin_password", "admin123")
	v.SetDefault("clamd_addr", "")
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                  "API_PORT",
		"database.host":             "DATABASE_HOST",
		"database.port":             "DATABASE_PORT",
		"database.name":             "POSTGRES_DB",
		"database.user":             "POSTGRES_USER",
		"database.password":         "POSTGRES_PASSWORD",
		"database.sslmode":          "DATABASE_SSLMODE",
		"redis.host":                "REDIS_HOST",
		"redis.port":                "REDIS_PORT",
		"session.secret":            "SESSION_SECRET",
		"session.ttl_hours":         "SESSION_TTL_HOURS",
		"uploads.backend":           "UPLOAD_BACKEND",
		"uploads.dir":               "UPLOAD_DIR",
		"uploads.max_upload_mb":     "MAX_UPLOAD_MB",
		"minio.endpoint":            "MINIO_ENDPOINT",
		"minio.access_key_id":       "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":   "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":             "MINIO_USE_SSL",
		"minio.bucket":              "MINIO_BUCKET",
		"login.rate_limit_per_hour": "LOGIN_RATE_LIMIT_PER_HOUR",
		"login.lock_threshold":      "LOGIN_LOCK_THRESHOLD",
		"login.lock_ttl_minutes":    "LOGIN_LOCK_TTL_MINUTES",
		"bootstrap.admin_username":  "BOOTSTRAP_ADMIN_USERNAME",
		"bootstrap.admin_password":  "BOOTSTRAP_ADMIN_PASSWORD",
		"clamd_addr":                "CLAMD_ADDR",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.Session.Secret == "" {
		return errors.New("session secret is required")
	}
	if cfg.Session.TTLHours <= 0 {
		return errors.New("session ttl must be positive")
	}
	switch cfg.Uploads.Backend {
	case "local":
		if cfg.Uploads.Dir == "" {
			return errors.New("upload dir is required for the local backend")
		}
	case "minio":
		if cfg.MinIO.Endpoint == "" {
			return errors.New("minio endpoint is required")
		}
		if cfg.MinIO.AccessKeyID == "" {
			return errors.New("minio access key id is required")
		}
		if cfg.MinIO.SecretAccessKey == "" {
			return errors.New("minio secret access key is required")
		}
		if cfg.MinIO.Bucket == "" {
			return errors.New("minio bucket is required")
		}
	default:
		return fmt.Errorf("unknown upload backend %q", cfg.Uploads.Backend)
	}
	if cfg.Bootstrap.AdminUsername == "" {
		return errors.New("bootstrap admin username is required")
	}
	if cfg.Bootstrap.AdminPassword == "" {
		return errors.New("bootstrap admin password is required")
	}
	return nil
}
