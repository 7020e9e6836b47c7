package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// HTTP Server
	Port     string `yaml:"port"`
	APIToken string `yaml:"api_token"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	// Storage
	DataBackend  string `yaml:"data_backend"`
	SQLiteDBPath string `yaml:"sqlite_db_path"`
	PostgresDSN  string `yaml:"postgres_dsn"`

	CategoryCacheTTL time.Duration `yaml:"category_cache_ttl"`

	// AMQP
	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`
	AMQPQueue    string `yaml:"amqp_queue"`

	// Redis lock for the recurring worker; empty runs without a lock.
	RedisURL string `yaml:"redis_url"`

	// Push delivery
	DiscordBotToken  string `yaml:"discord_bot_token"`
	DiscordChannelID string `yaml:"discord_channel_id"`

	// Workers
	RecurringInterval   time.Duration `yaml:"recurring_processor_interval"`
	NotifySweepInterval time.Duration `yaml:"notify_sweep_interval"`
	NotifyBatchSize     int           `yaml:"notify_batch_size"`
	PaymentSelection    string        `yaml:"payment_selection"`
	BudgetAlertDedup    bool          `yaml:"budget_alert_dedup"`
	Timezone            string        `yaml:"timezone"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

var (
	validBackends   = []string{"memory", "sqlite", "postgres"}
	validSelections = []string{"on-or-before", "exact"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
)

func defaults() *Config {
	return &Config{
		Port:                "8081",
		RateLimitRPS:        10,
		RateLimitBurst:      20,
		DataBackend:         "memory",
		SQLiteDBPath:        "./data/lana.db",
		CategoryCacheTTL:    5 * time.Minute,
		AMQPExchange:        "lana",
		AMQPQueue:           "notifications",
		RecurringInterval:   time.Hour,
		NotifySweepInterval: 30 * time.Second,
		NotifyBatchSize:     50,
		PaymentSelection:    "on-or-before",
		BudgetAlertDedup:    true,
		Timezone:            "UTC",
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE if any, then environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.APIToken = getEnv("API_TOKEN", c.APIToken)
	c.RateLimitRPS = getEnvFloat("RATE_LIMIT_RPS", c.RateLimitRPS)
	c.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", c.RateLimitBurst)

	c.DataBackend = getEnv("DATA_BACKEND", c.DataBackend)
	c.SQLiteDBPath = getEnv("SQLITE_DB_PATH", c.SQLiteDBPath)
	c.PostgresDSN = getEnv("POSTGRES_DSN", c.PostgresDSN)
	c.CategoryCacheTTL = getEnvDuration("CATEGORY_CACHE_TTL", c.CategoryCacheTTL)

	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPQueue = getEnv("AMQP_QUEUE", c.AMQPQueue)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)

	c.DiscordBotToken = getEnv("DISCORD_BOT_TOKEN", c.DiscordBotToken)
	c.DiscordChannelID = getEnv("DISCORD_CHANNEL_ID", c.DiscordChannelID)

	c.RecurringInterval = getEnvDuration("RECURRING_PROCESSOR_INTERVAL", c.RecurringInterval)
	c.NotifySweepInterval = getEnvDuration("NOTIFY_SWEEP_INTERVAL", c.NotifySweepInterval)
	c.NotifyBatchSize = getEnvInt("NOTIFY_BATCH_SIZE", c.NotifyBatchSize)
	c.PaymentSelection = getEnv("PAYMENT_SELECTION", c.PaymentSelection)
	c.BudgetAlertDedup = getEnvBool("BUDGET_ALERT_DEDUP", c.BudgetAlertDedup)
	c.Timezone = getEnv("TIMEZONE", c.Timezone)

	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))
	c.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", c.LogFormat))
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case "postgres":
		if c.PostgresDSN == "" {
			errs = append(errs, "POSTGRES_DSN is required when using postgres backend")
		}
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RedisURL != "" {
		if u, err := url.Parse(c.RedisURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid Redis URL '%s': %v", c.RedisURL, err))
		} else if u.Scheme != "redis" && u.Scheme != "rediss" {
			errs = append(errs, fmt.Sprintf("invalid Redis URL scheme '%s': must be 'redis' or 'rediss'", u.Scheme))
		}
	}

	if (c.DiscordBotToken == "") != (c.DiscordChannelID == "") {
		errs = append(errs, "DISCORD_BOT_TOKEN and DISCORD_CHANNEL_ID must be set together")
	}

	if c.NotifyBatchSize < 1 || c.NotifyBatchSize > 1000 {
		errs = append(errs, fmt.Sprintf("invalid notify batch size %d: must be between 1 and 1000", c.NotifyBatchSize))
	}
	errs = appendInterval(errs, "recurring processor interval", c.RecurringInterval)
	errs = appendInterval(errs, "notify sweep interval", c.NotifySweepInterval)

	if !slices.Contains(validSelections, c.PaymentSelection) {
		errs = append(errs, fmt.Sprintf("invalid payment selection '%s': must be one of %v", c.PaymentSelection, validSelections))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.RateLimitRPS <= 0 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %v: must be positive", c.RateLimitRPS))
	}
	if c.RateLimitBurst < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit burst %d: must be at least 1", c.RateLimitBurst))
	}
	if c.CategoryCacheTTL < 0 {
		errs = append(errs, "category cache TTL cannot be negative")
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func appendInterval(errs []string, name string, d time.Duration) []string {
	if d < time.Second {
		return append(errs, fmt.Sprintf("invalid %s %v: must be at least 1 second", name, d))
	}
	if d > 24*time.Hour {
		return append(errs, fmt.Sprintf("invalid %s %v: must be at most 24 hours", name, d))
	}
	return errs
}

// Location returns the zone used to decide what "today" is.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
