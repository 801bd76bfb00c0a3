// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultJWTSecret is the development signing secret; production refuses it.
const DefaultJWTSecret = "inkwell-dev-secret-change-in-production"

// Storage drivers understood by STORAGE_DRIVER.
const (
	StorageS3     = "s3"
	StorageMinio  = "minio"
	StorageMemory = "memory"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"APP_ENV"`
	DBDriver       string        `mapstructure:"DB_DRIVER"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBHost         string        `mapstructure:"DB_HOST"`
	DBPort         string        `mapstructure:"DB_PORT"`
	DBUser         string        `mapstructure:"DB_USER"`
	DBPassword     string        `mapstructure:"DB_PASSWORD"`
	DBName         string        `mapstructure:"DB_NAME"`
	DBSSLMode      string        `mapstructure:"DB_SSLMODE"`
	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	TokenTTL       time.Duration `mapstructure:"TOKEN_TTL"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	StorageDriver  string        `mapstructure:"STORAGE_DRIVER"`
	BucketName     string        `mapstructure:"BUCKET_NAME"`
	Region         string        `mapstructure:"REGION"`
	AccessKeyID    string        `mapstructure:"ACCESS_KEY_ID"`
	SecretKey      string        `mapstructure:"SECRET_ACCESS_KEY"`
	StorageURL     string        `mapstructure:"STORAGE_ENDPOINT"`
	StorageUseSSL  bool          `mapstructure:"STORAGE_USE_SSL"`
	MaxUploadMB    int           `mapstructure:"MAX_UPLOAD_MB"`
	AllowedOrigins string        `mapstructure:"ALLOWED_ORIGINS"`

	TracingEnabled     bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter    string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint       string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
}

// LoadConfig loads application configuration from .env, config.yml and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// The config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	setDefaults(v)
	if err := v.BindEnv("JWT_SECRET", "JWT_SECRET", "SECRET_JWT_KEY"); err != nil {
		return nil, fmt.Errorf("bind JWT_SECRET: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "5000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "inkwell")
	v.SetDefault("DB_PASSWORD", "inkwell")
	v.SetDefault("DB_NAME", "inkwell")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("JWT_SECRET", DefaultJWTSecret)
	v.SetDefault("TOKEN_TTL", "1h")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("STORAGE_DRIVER", StorageS3)
	v.SetDefault("BUCKET_NAME", "")
	v.SetDefault("REGION", "us-east-1")
	v.SetDefault("ACCESS_KEY_ID", "")
	v.SetDefault("SECRET_ACCESS_KEY", "")
	v.SetDefault("STORAGE_ENDPOINT", "")
	v.SetDefault("STORAGE_USE_SSL", true)
	v.SetDefault("MAX_UPLOAD_MB", 10)
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_EXPORTER", "stdout")
	v.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	v.SetDefault("TRACING_SAMPLE_RATIO", 1.0)
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.TracingExporter = strings.ToLower(strings.TrimSpace(c.TracingExporter))
	if c.TokenTTL <= 0 {
		c.TokenTTL = time.Hour
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = 10
	}
}

// IsProduction reports whether strict production rules apply.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// DSN returns the database connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	if c.DBDriver == "sqlite" {
		return "inkwell.db"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// BodyLimit returns the request body limit in bytes.
func (c *Config) BodyLimit() int {
	return c.MaxUploadMB * 1024 * 1024
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	switch c.DBDriver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.StorageDriver {
	case "", StorageS3, StorageMinio, StorageMemory:
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}

	switch c.TracingExporter {
	case "", "stdout", "otlp":
	default:
		return fmt.Errorf("unsupported TRACING_EXPORTER %q", c.TracingExporter)
	}
	if c.TracingSampleRatio < 0 || c.TracingSampleRatio > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATIO must be between 0 and 1, got %v", c.TracingSampleRatio)
	}

	if c.IsProduction() {
		if c.JWTSecret == DefaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.StorageDriver != StorageMemory && c.BucketName == "" {
			return errors.New("BUCKET_NAME is required in production")
		}
		if c.AllowedOrigins == "*" {
			slog.Warn("ALLOWED_ORIGINS is set to '*' in production")
		}
	} else if len(c.JWTSecret) < 32 {
		slog.Warn("JWT_SECRET is shorter than 32 characters; use a stronger secret for production")
	}

	return nil
}
