/**
 * @description
 * This package handles configuration management for the admin-service. It
 * reads settings from environment variables through Viper, applies defaults
 * matching the original console deployment, and validates the values the
 * lifecycle engine cannot run without.
 *
 * @dependencies
 * - github.com/spf13/viper: configuration loading and env binding.
 */
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sophiasearch-2025/admin-interface/internal/domain"
)

// DefaultServiceURL is the shared base URL of the Users and Subscriptions services.
const DefaultServiceURL = "http://172.105.21.15:3000"

// Config holds all configuration for the admin service.
type Config struct {
	ServerPort               string  `mapstructure:"SERVER_PORT"`
	LogLevel                 string  `mapstructure:"LOG_LEVEL"`
	UsersServiceURL          string  `mapstructure:"USERS_SERVICE_URL"`
	SubscriptionsServiceURL  string  `mapstructure:"SUBSCRIPTIONS_SERVICE_URL"`
	InternalAPIKey           string  `mapstructure:"INTERNAL_API_KEY"`
	RequestTimeoutMS         int     `mapstructure:"REQUEST_TIMEOUT_MS"`
	VerifySettleDelayMS      int     `mapstructure:"VERIFY_SETTLE_DELAY_MS"`
	AccountStateStrategy     string  `mapstructure:"ACCOUNT_STATE_STRATEGY"`
	DefaultPlanID            string  `mapstructure:"DEFAULT_PLAN_ID"`
	DefaultPlanName          string  `mapstructure:"DEFAULT_PLAN_NAME"`
	DefaultPlanPrice         float64 `mapstructure:"DEFAULT_PLAN_PRICE"`
	DashboardRefreshSchedule string  `mapstructure:"DASHBOARD_REFRESH_SCHEDULE"`
	ExpiryCheckSchedule      string  `mapstructure:"EXPIRY_CHECK_SCHEDULE"`
	DatabaseURL              string  `mapstructure:"DATABASE_URL"`
	RedisURL                 string  `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix     string  `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RedisSnapshotKey         string  `mapstructure:"REDIS_SNAPSHOT_KEY"`
	ActionRateLimitPerMinute int     `mapstructure:"ACTION_RATE_LIMIT_PER_MINUTE"`
	RabbitMQURL              string  `mapstructure:"RABBITMQ_URL"`
	AdminEventsExchange      string  `mapstructure:"ADMIN_EVENTS_EXCHANGE"`
	JWTSecret                string  `mapstructure:"JWT_SECRET"`
	JWTTTLMinutes            int     `mapstructure:"JWT_TTL_MINUTES"`
	AdminUsername            string  `mapstructure:"ADMIN_USERNAME"`
	AdminPasswordHash        string  `mapstructure:"ADMIN_PASSWORD_HASH"`
	CORSOrigins              string  `mapstructure:"CORS_ORIGINS"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	viper.SetDefault("SERVER_PORT", "8090")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("USERS_SERVICE_URL", DefaultServiceURL)
	viper.SetDefault("SUBSCRIPTIONS_SERVICE_URL", DefaultServiceURL)
	viper.SetDefault("REQUEST_TIMEOUT_MS", 10000)
	viper.SetDefault("VERIFY_SETTLE_DELAY_MS", 1000)
	viper.SetDefault("ACCOUNT_STATE_STRATEGY", string(domain.AuthoritySubscription))
	viper.SetDefault("DEFAULT_PLAN_ID", "basic")
	viper.SetDefault("DEFAULT_PLAN_NAME", "Plan Básico")
	viper.SetDefault("DEFAULT_PLAN_PRICE", 0)
	viper.SetDefault("DASHBOARD_REFRESH_SCHEDULE", "@every 30s")
	viper.SetDefault("EXPIRY_CHECK_SCHEDULE", "0 3 * * *") // 03:00 daily.
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "admin:rate_limit")
	viper.SetDefault("REDIS_SNAPSHOT_KEY", "admin:dashboard:snapshot")
	viper.SetDefault("ACTION_RATE_LIMIT_PER_MINUTE", 10)
	viper.SetDefault("ADMIN_EVENTS_EXCHANGE", "admin_events")
	viper.SetDefault("JWT_TTL_MINUTES", 480)
	viper.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("LOG_LEVEL")
	_ = viper.BindEnv("USERS_SERVICE_URL")
	_ = viper.BindEnv("SUBSCRIPTIONS_SERVICE_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("REQUEST_TIMEOUT_MS")
	_ = viper.BindEnv("VERIFY_SETTLE_DELAY_MS")
	_ = viper.BindEnv("ACCOUNT_STATE_STRATEGY")
	_ = viper.BindEnv("DEFAULT_PLAN_ID")
	_ = viper.BindEnv("DEFAULT_PLAN_NAME")
	_ = viper.BindEnv("DEFAULT_PLAN_PRICE")
	_ = viper.BindEnv("DASHBOARD_REFRESH_SCHEDULE")
	_ = viper.BindEnv("EXPIRY_CHECK_SCHEDULE")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("REDIS_SNAPSHOT_KEY")
	_ = viper.BindEnv("ACTION_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("ADMIN_EVENTS_EXCHANGE")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("JWT_TTL_MINUTES")
	_ = viper.BindEnv("ADMIN_USERNAME")
	_ = viper.BindEnv("ADMIN_PASSWORD_HASH")
	_ = viper.BindEnv("CORS_ORIGINS")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.UsersServiceURL = strings.TrimSpace(config.UsersServiceURL)
	config.SubscriptionsServiceURL = strings.TrimSpace(config.SubscriptionsServiceURL)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)
	config.AccountStateStrategy = strings.ToLower(strings.TrimSpace(config.AccountStateStrategy))

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	if c.UsersServiceURL == "" {
		return fmt.Errorf("USERS_SERVICE_URL is required")
	}
	if c.SubscriptionsServiceURL == "" {
		return fmt.Errorf("SUBSCRIPTIONS_SERVICE_URL is required")
	}
	if c.RequestTimeoutMS <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_MS must be positive, got %d", c.RequestTimeoutMS)
	}
	if c.VerifySettleDelayMS < 0 {
		return fmt.Errorf("VERIFY_SETTLE_DELAY_MS must not be negative, got %d", c.VerifySettleDelayMS)
	}
	if _, err := domain.ParseStateAuthority(c.AccountStateStrategy); err != nil {
		return fmt.Errorf("ACCOUNT_STATE_STRATEGY: %w", err)
	}
	if strings.TrimSpace(c.DefaultPlanID) == "" {
		return fmt.Errorf("DEFAULT_PLAN_ID is required")
	}
	if c.DefaultPlanPrice < 0 {
		return fmt.Errorf("DEFAULT_PLAN_PRICE must not be negative")
	}
	if c.ActionRateLimitPerMinute < 0 {
		return fmt.Errorf("ACTION_RATE_LIMIT_PER_MINUTE must not be negative")
	}
	return nil
}

// RequestTimeout is the per-call deadline for remote requests.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// VerifySettleDelay is the pause between a status write and its verification read.
func (c Config) VerifySettleDelay() time.Duration {
	return time.Duration(c.VerifySettleDelayMS) * time.Millisecond
}

// StateAuthority returns the configured suspend/reactivate strategy.
func (c Config) StateAuthority() domain.StateAuthority {
	authority, err := domain.ParseStateAuthority(c.AccountStateStrategy)
	if err != nil {
		return domain.AuthoritySubscription
	}
	return authority
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// JWTTTL is the lifetime of issued admin tokens.
func (c Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLMinutes) * time.Minute
}
