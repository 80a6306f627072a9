package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSource struct {
	mu      sync.Mutex
	configs map[string]*TenantWebhookConfig
	err     error
	calls   map[string]int
}

func newMapSource(configs ...*TenantWebhookConfig) *mapSource {
	s := &mapSource{
		configs: make(map[string]*TenantWebhookConfig),
		calls:   make(map[string]int),
	}
	for _, c := range configs {
		s.configs[c.TenantID] = c
	}
	return s
}

func (s *mapSource) Load(_ context.Context, tenantID string) (*TenantWebhookConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[tenantID]++
	if s.err != nil {
		return nil, s.err
	}
	return s.configs[tenantID], nil
}

func (s *mapSource) callCount(tenantID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[tenantID]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func acmeConfig(url string) *TenantWebhookConfig {
	return &TenantWebhookConfig{
		TenantID:         "acme",
		URL:              url,
		Secret:           "s3cr3t",
		SubscribedEvents: []string{"lead.qualified"},
	}
}

func TestConfigStore_AbsentConfigs(t *testing.T) {
	source := newMapSource(acmeConfig("https://acme.example/hook"))
	store := NewConfigStore(source, 10, time.Minute, discardLogger())
	ctx := context.Background()

	for _, tenantID := range []string{"nonexistent", DefaultTenant, ""} {
		assert.Nil(t, store.Get(ctx, tenantID), "tenant %q", tenantID)
	}

	assert.Equal(t, 0, source.callCount(DefaultTenant))
	assert.Equal(t, 0, source.callCount(""))
}

func TestConfigStore_CachesResults(t *testing.T) {
	source := newMapSource(acmeConfig("https://acme.example/hook"))
	store := NewConfigStore(source, 10, time.Minute, discardLogger())
	ctx := context.Background()

	cfg := store.Get(ctx, "acme")
	require.NotNil(t, cfg)
	assert.Equal(t, "https://acme.example/hook", cfg.URL)

	store.Get(ctx, "acme")
	store.Get(ctx, "nobody")
	store.Get(ctx, "nobody")

	assert.Equal(t, 1, source.callCount("acme"))
	assert.Equal(t, 1, source.callCount("nobody"))
}

func TestConfigStore_Invalidate(t *testing.T) {
	source := newMapSource()
	store := NewConfigStore(source, 10, time.Minute, discardLogger())
	ctx := context.Background()

	assert.Nil(t, store.Get(ctx, "acme"))

	source.mu.Lock()
	source.configs["acme"] = acmeConfig("https://acme.example/hook")
	source.mu.Unlock()

	assert.Nil(t, store.Get(ctx, "acme"), "stale negative entry until invalidated")

	store.Invalidate("acme")
	assert.NotNil(t, store.Get(ctx, "acme"))

	store.Purge()
	store.Get(ctx, "acme")
	assert.Equal(t, 3, source.callCount("acme"))
}

func TestConfigStore_ExpiresAfterTTL(t *testing.T) {
	source := newMapSource(acmeConfig("https://acme.example/hook"))
	store := NewConfigStore(source, 10, 30*time.Millisecond, discardLogger())
	ctx := context.Background()

	store.Get(ctx, "acme")
	time.Sleep(80 * time.Millisecond)
	store.Get(ctx, "acme")

	assert.Equal(t, 2, source.callCount("acme"))
}

func TestConfigStore_SourceErrors(t *testing.T) {
	source := newMapSource()
	source.err = errors.New("connection refused")
	store := NewConfigStore(source, 10, time.Minute, discardLogger())
	ctx := context.Background()

	assert.Nil(t, store.Get(ctx, "acme"))

	cfg, err := store.Lookup(ctx, "acme")
	assert.Nil(t, cfg)
	assert.ErrorIs(t, err, source.err)

	assert.Equal(t, 2, source.callCount("acme"), "errors are not cached")
}

func TestTenantWebhookConfig_Subscribes(t *testing.T) {
	cfg := acmeConfig("https://acme.example/hook")

	assert.True(t, cfg.Subscribes("lead.qualified"))
	assert.False(t, cfg.Subscribes("call.completed"))

	var none *TenantWebhookConfig
	assert.False(t, none.Subscribes("lead.qualified"))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret(""))
	assert.Equal(t, "****", MaskSecret("abc"))
	assert.Equal(t, "****3cr3", MaskSecret("whsec_s3cr3"))
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	require.NoError(t, err)
	b, err := GenerateSecret()
	require.NoError(t, err)

	assert.Regexp(t, `^whsec_[0-9a-f]{64}$`, a)
	assert.NotEqual(t, a, b)
}
