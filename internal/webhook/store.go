package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultCacheSize = 1024
	DefaultCacheTTL  = 5 * time.Minute
)

// ConfigSource loads a tenant's webhook configuration. A tenant without a
// webhook section yields (nil, nil); errors are reserved for source failures.
type ConfigSource interface {
	Load(ctx context.Context, tenantID string) (*TenantWebhookConfig, error)
}

// ConfigStore caches webhook configuration in front of a ConfigSource.
// Absent configurations are cached too, since most tenants have none.
type ConfigStore struct {
	source ConfigSource
	cache  *lru.LRU[string, *TenantWebhookConfig]
	logger *slog.Logger
}

func NewConfigStore(source ConfigSource, size int, ttl time.Duration, logger *slog.Logger) *ConfigStore {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ConfigStore{
		source: source,
		cache:  lru.NewLRU[string, *TenantWebhookConfig](size, nil, ttl),
		logger: logger.With("component", "webhook_config"),
	}
}

// Get returns the tenant's configuration or nil. It never fails: source
// errors are logged and reported as "no configuration".
func (s *ConfigStore) Get(ctx context.Context, tenantID string) *TenantWebhookConfig {
	cfg, err := s.Lookup(ctx, tenantID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load webhook config",
			"tenant_id", tenantID,
			"error", err,
		)
		return nil
	}
	return cfg
}

// Lookup is Get with source errors surfaced. Errors are not cached.
func (s *ConfigStore) Lookup(ctx context.Context, tenantID string) (*TenantWebhookConfig, error) {
	if tenantID == "" || tenantID == DefaultTenant {
		return nil, nil
	}

	if cfg, ok := s.cache.Get(tenantID); ok {
		return cfg, nil
	}

	cfg, err := s.source.Load(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load webhook config for %s: %w", tenantID, err)
	}

	s.cache.Add(tenantID, cfg)
	return cfg, nil
}

// Invalidate drops one tenant from the cache.
func (s *ConfigStore) Invalidate(tenantID string) {
	s.cache.Remove(tenantID)
}

// Purge drops every cached entry.
func (s *ConfigStore) Purge() {
	s.cache.Purge()
}
