package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

/* Config carries everything the engine needs from the environment.
 * Values come from environment variables, with an optional .env file
 * for local development.
 */

type Config struct {
	Port          string `mapstructure:"PORT"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// Source identity stamped into every outbound event envelope
	AppName        string `mapstructure:"APP_NAME"`
	AppVersion     string `mapstructure:"APP_VERSION"`
	AppEnvironment string `mapstructure:"APP_ENVIRONMENT"`

	// Engine tuning
	BatchSize        int    `mapstructure:"BATCH_SIZE"`
	SyncLowWaterMark int    `mapstructure:"SYNC_LOW_WATER_MARK"`
	LeaseSeconds     int    `mapstructure:"LEASE_SECONDS"`
	RetentionHours   int    `mapstructure:"RETENTION_HOURS"`
	ProcessInterval  int    `mapstructure:"PROCESS_INTERVAL_SECONDS"`
	SeedsFile        string `mapstructure:"SEEDS_FILE"`
}

func GetConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("APP_NAME", "caseflow")
	viper.SetDefault("APP_VERSION", "1.0.0")
	viper.SetDefault("APP_ENVIRONMENT", "development")
	viper.SetDefault("BATCH_SIZE", 20)
	viper.SetDefault("SYNC_LOW_WATER_MARK", 10)
	viper.SetDefault("LEASE_SECONDS", 60)
	viper.SetDefault("RETENTION_HOURS", 24)
	viper.SetDefault("PROCESS_INTERVAL_SECONDS", 30)
	viper.SetDefault("SEEDS_FILE", "")

	// A missing .env file is fine; the environment is the source of truth
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	return &config, nil
}

// Lease returns the claim lease duration for delivery processing
func (c *Config) Lease() time.Duration {
	return time.Duration(c.LeaseSeconds) * time.Second
}

// Retention returns how long terminal deliveries are kept before purging
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

// Interval returns how often the worker drains the queue
func (c *Config) Interval() time.Duration {
	return time.Duration(c.ProcessInterval) * time.Second
}
