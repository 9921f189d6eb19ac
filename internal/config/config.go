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

// Ban scope values for flag-triggered automatic bans.
const (
	BanScopeOrganisation = "organisation"
	BanScopeRoom         = "room"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	Env            string `mapstructure:"APP_ENV"`

	// Moderation and ranking tunables.
	RateLimitBudget   int    `mapstructure:"RATE_LIMIT_BUDGET"`
	RateLimitWindowS  int    `mapstructure:"RATE_LIMIT_WINDOW_SECONDS"`
	FlagThreshold     int    `mapstructure:"FLAG_THRESHOLD"`
	DemotionThreshold int    `mapstructure:"DEMOTION_THRESHOLD"`
	AutoBanMinutes    int    `mapstructure:"AUTO_BAN_MINUTES"`
	BanScope          string `mapstructure:"BAN_SCOPE"`
	PinnedPageSize    int    `mapstructure:"PINNED_PAGE_SIZE"`
	RerankIntervalS   int    `mapstructure:"RERANK_INTERVAL_SECONDS"`
	VideoHosts        string `mapstructure:"VIDEO_HOSTS"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// Initial read to get APP_ENV if set in base config.
	// The config file may not exist yet; that is fine.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	viper.SetDefault("PORT", "8375")
	viper.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "lanes")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("RATE_LIMIT_BUDGET", 3)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 3)
	viper.SetDefault("FLAG_THRESHOLD", 4)
	viper.SetDefault("DEMOTION_THRESHOLD", -4)
	viper.SetDefault("AUTO_BAN_MINUTES", 30)
	viper.SetDefault("BAN_SCOPE", BanScopeOrganisation)
	viper.SetDefault("PINNED_PAGE_SIZE", 20)
	viper.SetDefault("RERANK_INTERVAL_SECONDS", 300)
	viper.SetDefault("VIDEO_HOSTS", "youtube.com,youtu.be,vimeo.com")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required configuration values are present and consistent.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.BanScope != BanScopeOrganisation && c.BanScope != BanScopeRoom {
		return fmt.Errorf("BAN_SCOPE must be %q or %q", BanScopeOrganisation, BanScopeRoom)
	}
	if c.RateLimitBudget < 1 {
		return errors.New("RATE_LIMIT_BUDGET must be at least 1")
	}
	if c.RateLimitWindowS < 1 {
		return errors.New("RATE_LIMIT_WINDOW_SECONDS must be at least 1")
	}
	if c.FlagThreshold < 1 {
		return errors.New("FLAG_THRESHOLD must be at least 1")
	}
	if c.PinnedPageSize < 1 {
		return errors.New("PINNED_PAGE_SIZE must be at least 1")
	}

	isProduction := c.Env == "production" || c.Env == "prod"
	if isProduction {
		if c.JWTSecret == "your-secret-key-change-in-production" {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
	}

	return nil
}

// RateLimitWindow returns the rate limit window as a duration.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowS) * time.Second
}

// AutoBanDuration returns the flag-triggered ban duration.
func (c *Config) AutoBanDuration() time.Duration {
	return time.Duration(c.AutoBanMinutes) * time.Minute
}

// RerankInterval returns the period between re-ranking sweeps.
func (c *Config) RerankInterval() time.Duration {
	return time.Duration(c.RerankIntervalS) * time.Second
}

// VideoHostList splits the configured video onebox hosts.
func (c *Config) VideoHostList() []string {
	if strings.TrimSpace(c.VideoHosts) == "" {
		return nil
	}
	parts := strings.Split(c.VideoHosts, ",")
	hosts := make([]string, 0, len(parts))
	for _, p := range parts {
		if h := strings.TrimSpace(p); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}
