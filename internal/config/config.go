// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`

	// BackendURL and BackendKey are the two values the backend collaborator
	// needs. When either is empty the degraded stub backend is used.
	BackendURL string `mapstructure:"BACKEND_URL"`
	BackendKey string `mapstructure:"BACKEND_KEY"`

	RedisURL string `mapstructure:"REDIS_URL"`

	// DBSchemaMode is hybrid, sql or auto.
	DBSchemaMode                  string `mapstructure:"DB_SCHEMA_MODE"`
	DBAutoMigrateAllowDestructive bool   `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`
	DBMaxOpenConns                int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns                int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes      int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	StorageDriver    string `mapstructure:"STORAGE_DRIVER"`
	StorageDir       string `mapstructure:"STORAGE_DIR"`
	StoragePublicURL string `mapstructure:"STORAGE_PUBLIC_URL"`
	S3Bucket         string `mapstructure:"S3_BUCKET"`
	S3Region         string `mapstructure:"S3_REGION"`
	MailDriver       string `mapstructure:"MAIL_DRIVER"`
	MailSender       string `mapstructure:"MAIL_SENDER"`
	PublicBaseURL    string `mapstructure:"PUBLIC_BASE_URL"`

	// RequireEmailConfirmation holds new accounts until the mailed link is opened.
	RequireEmailConfirmation bool `mapstructure:"AUTH_REQUIRE_CONFIRMATION"`

	SignupTimeoutSeconds      int `mapstructure:"SIGNUP_TIMEOUT_SECONDS"`
	HydrationTimeoutMS        int `mapstructure:"HYDRATION_TIMEOUT_MS"`
	FeedLimit                 int `mapstructure:"FEED_LIMIT"`
	SuccessMessageMS          int `mapstructure:"SUCCESS_MESSAGE_MS"`
	RealtimeMaxRetries        int `mapstructure:"REALTIME_MAX_RETRIES"`
	RealtimeInitialIntervalMS int `mapstructure:"REALTIME_INITIAL_INTERVAL_MS"`
	RealtimeMaxIntervalMS     int `mapstructure:"REALTIME_MAX_INTERVAL_MS"`
	DeviceIdleMinutes         int `mapstructure:"DEVICE_IDLE_MINUTES"`

	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`
	TracingExporter string `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string `mapstructure:"OTLP_ENDPOINT"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.StorageDriver = strings.ToLower(strings.TrimSpace(config.StorageDriver))
	config.MailDriver = strings.ToLower(strings.TrimSpace(config.MailDriver))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("FEATURE_FLAGS", "live_feeds=on,auto_retry_feeds=on")
	viper.SetDefault("BACKEND_URL", "")
	viper.SetDefault("BACKEND_KEY", "")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE", false)
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("STORAGE_DRIVER", "local")
	viper.SetDefault("STORAGE_DIR", "/tmp/campus-hub/storage")
	viper.SetDefault("STORAGE_PUBLIC_URL", "http://localhost:8375/storage")
	viper.SetDefault("S3_BUCKET", "")
	viper.SetDefault("S3_REGION", "us-east-1")
	viper.SetDefault("MAIL_DRIVER", "log")
	viper.SetDefault("MAIL_SENDER", "no-reply@campushub.app")
	viper.SetDefault("AUTH_REQUIRE_CONFIRMATION", false)
	viper.SetDefault("PUBLIC_BASE_URL", "http://localhost:8375")
	viper.SetDefault("SIGNUP_TIMEOUT_SECONDS", 15)
	viper.SetDefault("HYDRATION_TIMEOUT_MS", 2000)
	viper.SetDefault("FEED_LIMIT", 50)
	viper.SetDefault("SUCCESS_MESSAGE_MS", 3000)
	viper.SetDefault("REALTIME_MAX_RETRIES", 5)
	viper.SetDefault("REALTIME_INITIAL_INTERVAL_MS", 500)
	viper.SetDefault("REALTIME_MAX_INTERVAL_MS", 10000)
	viper.SetDefault("DEVICE_IDLE_MINUTES", 30)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}

	switch c.StorageDriver {
	case "", "local":
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when STORAGE_DRIVER is s3")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	switch c.MailDriver {
	case "", "log", "ses":
	default:
		return fmt.Errorf("unknown MAIL_DRIVER %q", c.MailDriver)
	}

	if c.SignupTimeoutSeconds < 0 || c.HydrationTimeoutMS < 0 || c.FeedLimit < 0 {
		return errors.New("timeouts and limits must not be negative")
	}

	if c.IsProduction() {
		if !c.BackendConfigured() {
			return errors.New("BACKEND_URL and BACKEND_KEY are required in production")
		}
		if len(c.BackendKey) < 32 {
			return errors.New("BACKEND_KEY must be at least 32 characters in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if c.BackendConfigured() && len(c.BackendKey) < 32 {
		log.Println("WARNING: BACKEND_KEY is shorter than 32 characters. Consider using a stronger key for production.")
	}

	return nil
}

// IsProduction reports whether the app runs with a production profile.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// BackendConfigured reports whether both backend values are present.
func (c *Config) BackendConfigured() bool {
	return strings.TrimSpace(c.BackendURL) != "" && strings.TrimSpace(c.BackendKey) != ""
}

// SignupTimeout is the deadline raced against the signup backend call.
func (c *Config) SignupTimeout() time.Duration {
	return durationOr(time.Duration(c.SignupTimeoutSeconds)*time.Second, 15*time.Second)
}

// HydrationTimeout bounds how long the route guard waits for persisted stores.
func (c *Config) HydrationTimeout() time.Duration {
	return durationOr(time.Duration(c.HydrationTimeoutMS)*time.Millisecond, 2*time.Second)
}

// SuccessMessageDelay is how long a post form shows its success message.
func (c *Config) SuccessMessageDelay() time.Duration {
	return durationOr(time.Duration(c.SuccessMessageMS)*time.Millisecond, 3*time.Second)
}

// DeviceIdleTimeout is how long an unused device context is kept alive.
func (c *Config) DeviceIdleTimeout() time.Duration {
	return durationOr(time.Duration(c.DeviceIdleMinutes)*time.Minute, 30*time.Minute)
}

// FeedPageSize returns the configured feed limit.
func (c *Config) FeedPageSize() int {
	if c.FeedLimit <= 0 {
		return 50
	}
	return c.FeedLimit
}

// ReconnectPolicy describes how dropped realtime subscriptions are re-established.
type ReconnectPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Reconnect returns the realtime reconnection policy.
func (c *Config) Reconnect() ReconnectPolicy {
	return ReconnectPolicy{
		MaxRetries:      c.RealtimeMaxRetries,
		InitialInterval: durationOr(time.Duration(c.RealtimeInitialIntervalMS)*time.Millisecond, 500*time.Millisecond),
		MaxInterval:     durationOr(time.Duration(c.RealtimeMaxIntervalMS)*time.Millisecond, 10*time.Second),
	}
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
