package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Tenant webhook config sources.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Tenant webhook configuration
	TenantConfigSource    string        `envconfig:"TENANT_CONFIG_SOURCE" default:"file"`
	TenantConfigDir       string        `envconfig:"TENANT_CONFIG_DIR" default:"./config/tenants"`
	TenantConfigWatch     bool          `envconfig:"TENANT_CONFIG_WATCH" default:"true"`
	TenantConfigCacheSize int           `envconfig:"TENANT_CONFIG_CACHE_SIZE" default:"1024"`
	TenantConfigCacheTTL  time.Duration `envconfig:"TENANT_CONFIG_CACHE_TTL" default:"5m"`

	// Event bus
	BusMaxRetries     int           `envconfig:"BUS_MAX_RETRIES" default:"3"`
	BusRetryDelay     time.Duration `envconfig:"BUS_RETRY_DELAY" default:"1s"`
	BusRetryBackoff   float64       `envconfig:"BUS_RETRY_BACKOFF" default:"1.0"`
	BusMaxRetryDelay  time.Duration `envconfig:"BUS_MAX_RETRY_DELAY" default:"30s"`
	BusDedupSize      int           `envconfig:"BUS_DEDUP_SIZE" default:"10000"`
	BusDedupWindow    time.Duration `envconfig:"BUS_DEDUP_WINDOW" default:"10m"`
	BusMaxConcurrency int           `envconfig:"BUS_MAX_CONCURRENCY" default:"256"`
	BusHandlerTimeout time.Duration `envconfig:"BUS_HANDLER_TIMEOUT" default:"30s"`

	// Webhooks
	WebhookTimeout time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s"`

	// Usage metering
	UsageEnabled       bool   `envconfig:"USAGE_ENABLED" default:"false"`
	UsageQuotaSchedule string `envconfig:"USAGE_QUOTA_SCHEDULE" default:"@every 5m"`

	// Observability
	MetricsReportInterval time.Duration `envconfig:"METRICS_REPORT_INTERVAL" default:"1m"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// Validate checks cross-field rules envconfig tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.TenantConfigSource {
	case SourceFile:
		if c.TenantConfigDir == "" {
			errs = append(errs, errors.New("TENANT_CONFIG_DIR is required for the file source"))
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres source"))
		}
	default:
		errs = append(errs, fmt.Errorf("TENANT_CONFIG_SOURCE must be %q or %q, got %q", SourceFile, SourcePostgres, c.TenantConfigSource))
	}

	if c.UsageEnabled && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required when USAGE_ENABLED is set"))
	}
	if c.BusMaxRetries < 0 {
		errs = append(errs, errors.New("BUS_MAX_RETRIES must not be negative"))
	}
	if c.BusRetryDelay < 0 {
		errs = append(errs, errors.New("BUS_RETRY_DELAY must not be negative"))
	}
	if c.BusMaxConcurrency < 0 {
		errs = append(errs, errors.New("BUS_MAX_CONCURRENCY must not be negative"))
	}
	if c.WebhookTimeout <= 0 {
		errs = append(errs, errors.New("WEBHOOK_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

// NeedsDatabase reports whether a postgres pool must be opened.
func (c *Config) NeedsDatabase() bool {
	return c.DatabaseURL != "" || c.TenantConfigSource == SourcePostgres || c.UsageEnabled
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
