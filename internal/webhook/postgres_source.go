package webhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/domain"
)

// TenantReader is the slice of the tenant repository the Postgres source needs.
type TenantReader interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
}

// PostgresSource reads the "webhook" object of a tenant's settings column.
// Tenants are addressed by slug.
type PostgresSource struct {
	tenants TenantReader
}

func NewPostgresSource(tenants TenantReader) *PostgresSource {
	return &PostgresSource{tenants: tenants}
}

func (s *PostgresSource) Load(ctx context.Context, tenantID string) (*TenantWebhookConfig, error) {
	tenant, err := s.tenants.GetBySlug(ctx, tenantID)
	if errors.Is(err, domain.ErrTenantNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}

	if !tenant.IsActive {
		return nil, nil
	}

	settings, ok := tenant.GetWebhookSettings()
	if !ok {
		return nil, nil
	}

	return &TenantWebhookConfig{
		TenantID:         tenantID,
		URL:              settings.URL,
		Secret:           settings.Secret,
		SubscribedEvents: settings.Events,
	}, nil
}
