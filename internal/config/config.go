/**
 * @description
 * Configuration management for the gst-report service.
 * Settings are read from environment variables or a local .env file, then
 * normalised so that downstream code never sees out-of-range values.
 */
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const (
	PriorityParentFirst  = "parent_first"
	PriorityVariantFirst = "variant_first"
)

// Config holds all configuration for the service.
type Config struct {
	ServerPort       string `mapstructure:"SERVER_PORT"`
	DatabaseURL      string `mapstructure:"DATABASE_URL"`
	InternalAPIKey   string `mapstructure:"INTERNAL_API_KEY"`
	BusinessTimezone string `mapstructure:"BUSINESS_TIMEZONE"`
	PublicBaseURL    string `mapstructure:"PUBLIC_BASE_URL"`

	RedisURL       string `mapstructure:"REDIS_URL"`
	RedisKeyPrefix string `mapstructure:"REDIS_KEY_PREFIX"`
	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`

	SMTPHost        string `mapstructure:"SMTP_HOST"`
	SMTPPort        int    `mapstructure:"SMTP_PORT"`
	SMTPUsername    string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword    string `mapstructure:"SMTP_PASSWORD"`
	MailFromAddress string `mapstructure:"MAIL_FROM_ADDRESS"`
	MailFromName    string `mapstructure:"MAIL_FROM_NAME"`

	GeolocationURL string `mapstructure:"GEOLOCATION_URL"`

	AttemptTimeoutSeconds     int    `mapstructure:"ATTEMPT_TIMEOUT_SECONDS"`
	HealthCheckHourlySchedule string `mapstructure:"HEALTH_CHECK_HOURLY_SCHEDULE"`
	HealthCheckFastSchedule   string `mapstructure:"HEALTH_CHECK_FAST_SCHEDULE"`
	TaxSchemaCacheTTLSeconds  int    `mapstructure:"TAX_SCHEMA_CACHE_TTL_SECONDS"`
	WebhookRateLimitPerMinute int    `mapstructure:"WEBHOOK_RATE_LIMIT_PER_MINUTE"`
	ClassificationPriority    string `mapstructure:"CLASSIFICATION_PRIORITY"`
	ReportOrderStatuses       string `mapstructure:"REPORT_ORDER_STATUSES"`

	LogFile     string `mapstructure:"LOG_FILE"`
	ArtifactDir string `mapstructure:"ARTIFACT_DIR"`
}

var boundKeys = []string{
	"SERVER_PORT",
	"PORT",
	"DATABASE_URL",
	"INTERNAL_API_KEY",
	"BUSINESS_TIMEZONE",
	"PUBLIC_BASE_URL",
	"REDIS_URL",
	"REDIS_KEY_PREFIX",
	"RABBITMQ_URL",
	"SMTP_HOST",
	"SMTP_PORT",
	"SMTP_USERNAME",
	"SMTP_PASSWORD",
	"MAIL_FROM_ADDRESS",
	"MAIL_FROM_NAME",
	"GEOLOCATION_URL",
	"ATTEMPT_TIMEOUT_SECONDS",
	"HEALTH_CHECK_HOURLY_SCHEDULE",
	"HEALTH_CHECK_FAST_SCHEDULE",
	"TAX_SCHEMA_CACHE_TTL_SECONDS",
	"WEBHOOK_RATE_LIMIT_PER_MINUTE",
	"CLASSIFICATION_PRIORITY",
	"REPORT_ORDER_STATUSES",
	"LOG_FILE",
	"ARTIFACT_DIR",
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("BUSINESS_TIMEZONE", "Asia/Kolkata")
	viper.SetDefault("REDIS_KEY_PREFIX", "gst-report")
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("MAIL_FROM_NAME", "GST Reports")
	viper.SetDefault("GEOLOCATION_URL", "http://ip-api.com/json")
	viper.SetDefault("ATTEMPT_TIMEOUT_SECONDS", 120)
	viper.SetDefault("HEALTH_CHECK_HOURLY_SCHEDULE", "@hourly")
	viper.SetDefault("HEALTH_CHECK_FAST_SCHEDULE", "@every 4m")
	viper.SetDefault("TAX_SCHEMA_CACHE_TTL_SECONDS", 3600)
	viper.SetDefault("WEBHOOK_RATE_LIMIT_PER_MINUTE", 30)
	viper.SetDefault("CLASSIFICATION_PRIORITY", PriorityParentFirst)
	viper.SetDefault("REPORT_ORDER_STATUSES", "completed,processing")
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	for _, key := range boundKeys {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if port := os.Getenv("PORT"); port != "" {
		config.ServerPort = port
	}

	config.normalize()
	return &config, nil
}

// Validate checks the settings needed to serve traffic.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if strings.TrimSpace(c.InternalAPIKey) == "" {
		return fmt.Errorf("INTERNAL_API_KEY is required")
	}
	return nil
}

func (c *Config) normalize() {
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.InternalAPIKey = strings.TrimSpace(c.InternalAPIKey)
	c.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.PublicBaseURL), "/")
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = "http://localhost:" + c.ServerPort
	}

	if _, err := time.LoadLocation(c.BusinessTimezone); err != nil || strings.TrimSpace(c.BusinessTimezone) == "" {
		c.BusinessTimezone = "UTC"
	}

	if c.AttemptTimeoutSeconds <= 0 {
		c.AttemptTimeoutSeconds = 120
	}
	if c.TaxSchemaCacheTTLSeconds <= 0 {
		c.TaxSchemaCacheTTLSeconds = 3600
	}
	if c.WebhookRateLimitPerMinute < 0 {
		c.WebhookRateLimitPerMinute = 0
	}
	if c.SMTPPort <= 0 {
		c.SMTPPort = 587
	}

	if !validSpec(c.HealthCheckHourlySchedule) {
		c.HealthCheckHourlySchedule = "@hourly"
	}
	if !validSpec(c.HealthCheckFastSchedule) {
		c.HealthCheckFastSchedule = "@every 4m"
	}

	switch strings.ToLower(strings.TrimSpace(c.ClassificationPriority)) {
	case PriorityVariantFirst:
		c.ClassificationPriority = PriorityVariantFirst
	default:
		c.ClassificationPriority = PriorityParentFirst
	}
}

func validSpec(spec string) bool {
	if strings.TrimSpace(spec) == "" {
		return false
	}
	_, err := cron.ParseStandard(spec)
	return err == nil
}

// Location resolves the business timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) AttemptTimeout() time.Duration {
	return time.Duration(c.AttemptTimeoutSeconds) * time.Second
}

func (c *Config) TaxSchemaCacheTTL() time.Duration {
	return time.Duration(c.TaxSchemaCacheTTLSeconds) * time.Second
}

// OrderStatuses splits REPORT_ORDER_STATUSES, falling back to completed and processing.
func (c *Config) OrderStatuses() []string {
	var out []string
	for _, s := range strings.Split(c.ReportOrderStatuses, ",") {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return []string{"completed", "processing"}
	}
	return out
}
