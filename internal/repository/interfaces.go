package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/domain"
)

// PgxPool is the subset of *pgxpool.Pool used by repositories.
// pgxmock.PgxPoolIface satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TenantRepositoryInterface defines operations for tenant data access
type TenantRepositoryInterface interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
	ListActive(ctx context.Context) ([]*domain.Tenant, error)
	Create(ctx context.Context, tenant *domain.Tenant) error
	Update(ctx context.Context, tenant *domain.Tenant) error
}

var _ TenantRepositoryInterface = (*TenantRepository)(nil)
