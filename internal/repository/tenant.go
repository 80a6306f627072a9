package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/domain"
)

type TenantRepository struct {
	pool PgxPool
}

func NewTenantRepository(pool PgxPool) *TenantRepository {
	return &TenantRepository{pool: pool}
}

func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	query := `
		SELECT id, name, slug, is_active, plan, settings, created_at, updated_at
		FROM tenants
		WHERE slug = $1
	`

	var tenant domain.Tenant
	err := r.pool.QueryRow(ctx, query, slug).Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.Slug,
		&tenant.IsActive,
		&tenant.Plan,
		&tenant.Settings,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant by slug: %w", err)
	}

	return &tenant, nil
}

// ListActive returns every active tenant ordered by slug.
func (r *TenantRepository) ListActive(ctx context.Context) ([]*domain.Tenant, error) {
	query := `
		SELECT id, name, slug, is_active, plan, settings, created_at, updated_at
		FROM tenants
		WHERE is_active = true
		ORDER BY slug
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*domain.Tenant
	for rows.Next() {
		var tenant domain.Tenant
		err := rows.Scan(
			&tenant.ID,
			&tenant.Name,
			&tenant.Slug,
			&tenant.IsActive,
			&tenant.Plan,
			&tenant.Settings,
			&tenant.CreatedAt,
			&tenant.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, &tenant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenants: %w", err)
	}

	return tenants, nil
}

func (r *TenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, slug, is_active, plan, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}

	if tenant.Settings == nil {
		tenant.Settings = make(map[string]interface{})
	}

	err := r.pool.QueryRow(ctx, query,
		tenant.ID,
		tenant.Name,
		tenant.Slug,
		tenant.IsActive,
		tenant.Plan,
		tenant.Settings,
	).Scan(&tenant.CreatedAt, &tenant.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return &domain.AppError{
				Code:       "TENANT_ALREADY_EXISTS",
				Message:    "Tenant with this slug already exists",
				StatusCode: 409,
			}
		}
		return fmt.Errorf("create tenant: %w", err)
	}

	return nil
}

func (r *TenantRepository) Update(ctx context.Context, tenant *domain.Tenant) error {
	query := `
		UPDATE tenants
		SET name = $2, slug = $3, is_active = $4, plan = $5, settings = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	if tenant.Settings == nil {
		tenant.Settings = make(map[string]interface{})
	}

	err := r.pool.QueryRow(ctx, query,
		tenant.ID,
		tenant.Name,
		tenant.Slug,
		tenant.IsActive,
		tenant.Plan,
		tenant.Settings,
	).Scan(&tenant.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrTenantNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.AppError{
				Code:       "TENANT_SLUG_CONFLICT",
				Message:    "Tenant with this slug already exists",
				StatusCode: 409,
			}
		}
		return fmt.Errorf("update tenant: %w", err)
	}

	return nil
}
